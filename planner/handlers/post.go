package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/samber/mo"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/editor"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

const maxBodyBytes = 1 << 20

// handlePost handles POST requests
func (r *Router) handlePost(w http.ResponseWriter, req *http.Request) {
	rp := r.resource(w, req)
	if rp == nil {
		return
	}

	switch rp.Type {
	case storage.ResourceTypeSeriesCollection:
		r.handleAssign(w, req, rp)
	case storage.ResourceTypeSeriesEdit:
		r.handleEdit(w, req, rp)
	default:
		w.Header().Set(HeaderAllow, "GET")
		http.Error(w, "Resource type not supported for POST", http.StatusMethodNotAllowed)
	}
}

// decode reads a JSON body into v and validates it.
func (r *Router) decode(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body", err)
	}
	return r.validate.Struct(v)
}

func (r *Router) handleAssign(w http.ResponseWriter, req *http.Request, rp *storage.ResourcePath) {
	var body assignRequest
	if err := r.decode(w, req, &body); err != nil {
		r.writeError(w, req, "assign", err)
		return
	}

	start, _ := recurrence.ParseDate(body.StartDate)
	end := mo.None[recurrence.Date]()
	if body.EndDate != "" {
		d, _ := recurrence.ParseDate(body.EndDate)
		end = mo.Some(d)
	}

	series, err := r.planner.AssignTemplate(req.Context(), planner.AssignRequest{
		OwnerRef:    rp.OwnerRef,
		TemplateRef: body.TemplateRef,
		StartDate:   start,
		EndDate:     end,
		Pattern:     body.Pattern,
		Notes:       body.Notes,
	})
	if err != nil {
		r.writeError(w, req, "assign", err)
		return
	}

	location := storage.ResourcePath{Type: storage.ResourceTypeSeries, OwnerRef: rp.OwnerRef, SeriesID: series.ID}
	w.Header().Set(HeaderLocation, r.prefix+location.String())
	r.writeJSON(w, http.StatusCreated, newSeriesResponse(series))
}

func (r *Router) handleEdit(w http.ResponseWriter, req *http.Request, rp *storage.ResourcePath) {
	var body editRequest
	if err := r.decode(w, req, &body); err != nil {
		r.writeError(w, req, "edit", err)
		return
	}
	scope, err := editor.ParseScope(body.Scope)
	if err != nil {
		r.writeError(w, req, "edit", err)
		return
	}
	date, _ := recurrence.ParseDate(body.Date)

	ctx := req.Context()
	if _, err := r.planner.Series(ctx, rp.OwnerRef, rp.SeriesID); err != nil {
		r.writeError(w, req, "edit", err)
		return
	}
	res, err := r.planner.EditOccurrence(ctx, rp.SeriesID, scope, date, editor.Mutation{
		Action:      editor.Action(body.Action),
		TemplateRef: body.TemplateRef,
		Reason:      body.Reason,
	})
	if err != nil {
		r.writeError(w, req, "edit", err)
		return
	}

	resp := editResponse{Updated: newSeriesResponse(res.Updated)}
	if succ, ok := res.Successor.Get(); ok {
		s := newSeriesResponse(succ)
		resp.Successor = &s
	}
	r.writeJSON(w, http.StatusOK, resp)
}
