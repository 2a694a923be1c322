package handlers

import (
	"net/http"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

// handleDelete handles DELETE requests
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) {
	rp := r.resource(w, req)
	if rp == nil {
		return
	}

	if rp.Type != storage.ResourceTypeSeries {
		http.Error(w, "Resource type not supported for DELETE", http.StatusMethodNotAllowed)
		return
	}

	ctx := req.Context()
	if _, err := r.planner.Series(ctx, rp.OwnerRef, rp.SeriesID); err != nil {
		r.writeError(w, req, "remove assignment", err)
		return
	}
	if err := r.planner.RemoveAssignment(ctx, rp.SeriesID); err != nil {
		r.writeError(w, req, "remove assignment", err)
		return
	}

	r.logger.Info("assignment removed",
		"owner", rp.OwnerRef,
		"series_id", rp.SeriesID)
	w.WriteHeader(http.StatusNoContent)
}
