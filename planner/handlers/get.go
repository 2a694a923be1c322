package handlers

import (
	"net/http"
	"strconv"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

// handleGet handles GET requests
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) {
	rp := r.resource(w, req)
	if rp == nil {
		return
	}
	ctx := req.Context()

	switch rp.Type {
	case storage.ResourceTypeCalendar, storage.ResourceTypeCalendarICS, storage.ResourceTypeCalendarXML:
		from, to, err := dateRange(req)
		if err != nil {
			r.writeError(w, req, "calendar", err)
			return
		}
		r.serveCalendar(w, req, rp, from, to)

	case storage.ResourceTypeDay:
		day, err := r.planner.Day(ctx, rp.OwnerRef, rp.Date)
		if err != nil {
			r.writeError(w, req, "day", err)
			return
		}
		r.writeJSON(w, http.StatusOK, day)

	case storage.ResourceTypeSeries:
		series, err := r.planner.Series(ctx, rp.OwnerRef, rp.SeriesID)
		if err != nil {
			r.writeError(w, req, "get series", err)
			return
		}
		r.writeJSON(w, http.StatusOK, newSeriesResponse(series))

	default:
		w.Header().Set(HeaderAllow, "POST")
		http.Error(w, "Resource type not supported for GET", http.StatusMethodNotAllowed)
	}
}

func (r *Router) serveCalendar(w http.ResponseWriter, req *http.Request, rp *storage.ResourcePath, from, to recurrence.Date) {
	ctx := req.Context()
	switch rp.Type {
	case storage.ResourceTypeCalendar:
		days, err := r.planner.Calendar(ctx, rp.OwnerRef, from, to)
		if err != nil {
			r.writeError(w, req, "calendar", err)
			return
		}
		r.writeJSON(w, http.StatusOK, days)

	case storage.ResourceTypeCalendarICS:
		expand, _ := strconv.ParseBool(req.URL.Query().Get("expand"))
		export := r.planner.ExportICS
		if expand {
			export = r.planner.ExportExpandedICS
		}
		body, err := export(ctx, rp.OwnerRef, from, to)
		if err != nil {
			r.writeError(w, req, "ics export", err)
			return
		}
		r.writeBody(w, MimeTypeCalendar, body)

	case storage.ResourceTypeCalendarXML:
		body, err := r.planner.ExportXCal(ctx, rp.OwnerRef, from, to)
		if err != nil {
			r.writeError(w, req, "xcal export", err)
			return
		}
		r.writeBody(w, MimeTypeXCal, body)
	}
}

// dateRange reads the inclusive from and to query parameters.
func dateRange(req *http.Request) (from, to recurrence.Date, err error) {
	q := req.URL.Query()
	if q.Get("from") == "" || q.Get("to") == "" {
		return from, to, badRequest("from and to are required", nil)
	}
	if from, err = recurrence.ParseDate(q.Get("from")); err != nil {
		return from, to, badRequest("invalid from", err)
	}
	if to, err = recurrence.ParseDate(q.Get("to")); err != nil {
		return from, to, badRequest("invalid to", err)
	}
	if to.Before(from) {
		return from, to, badRequest("to is before from", nil)
	}
	return from, to, nil
}
