// Package handlers exposes a Planner over HTTP.
//
// Routes, relative to the router's base URI:
//
//	GET    /u/{owner}/calendar?from=&to=       JSON days
//	GET    /u/{owner}/calendar.ics?from=&to=   iCalendar (add expand=true for one event per day)
//	GET    /u/{owner}/calendar.xml?from=&to=   xCal
//	GET    /u/{owner}/day/{date}               JSON day
//	POST   /u/{owner}/series                   assign a template
//	GET    /u/{owner}/series/{id}              JSON series
//	DELETE /u/{owner}/series/{id}              remove an assignment
//	POST   /u/{owner}/series/{id}/edit         edit occurrences
package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

// Headers set by the handlers.
const (
	HeaderContentType = "Content-Type"
	HeaderAllow       = "Allow"
	HeaderLocation    = "Location"
)

// Response content types.
const (
	MimeTypeJSON     = "application/json; charset=utf-8"
	MimeTypeCalendar = "text/calendar; charset=utf-8"
	MimeTypeXCal     = "application/calendar+xml; charset=utf-8"
)

const (
	// AllowedMethods is the Allow header for OPTIONS and 405 responses.
	AllowedMethods = "OPTIONS, GET, POST, DELETE"
)

// Router dispatches planner requests by method.
type Router struct {
	planner  *planner.Planner
	prefix   string
	byMethod map[string]http.HandlerFunc
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRouter mounts p under baseURI. A nil logger discards output.
func NewRouter(p *planner.Planner, baseURI string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Router{
		planner:  p,
		prefix:   strings.TrimSuffix(baseURI, "/"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
	r.byMethod = map[string]http.HandlerFunc{
		http.MethodOptions: r.handleOptions,
		http.MethodGet:     r.handleGet,
		http.MethodPost:    r.handlePost,
		http.MethodDelete:  r.handleDelete,
	}
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.logger.Debug("planner request",
		"method", req.Method,
		"path", req.URL.Path,
		"remote", req.RemoteAddr)

	h, ok := r.byMethod[req.Method]
	if !ok {
		r.logger.Warn("unsupported method", "method", req.Method, "path", req.URL.Path)
		w.Header().Set(HeaderAllow, AllowedMethods)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h(w, req)
}

// handleOptions handles OPTIONS requests
func (r *Router) handleOptions(w http.ResponseWriter, req *http.Request) {
	r.logger.Debug("handling OPTIONS request", "path", req.URL.Path)

	w.Header().Set(HeaderAllow, AllowedMethods)
	w.WriteHeader(http.StatusOK)
}

// resource parses the request path. It writes a 404 and returns nil when the
// path names no planner resource.
func (r *Router) resource(w http.ResponseWriter, req *http.Request) *storage.ResourcePath {
	path := strings.TrimPrefix(req.URL.Path, r.prefix)
	rp, err := storage.ParseResourcePath(path)
	if err != nil {
		r.logger.Info("invalid resource path",
			"method", req.Method,
			"error", err,
			"path", path)
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil
	}
	return rp
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(HeaderContentType, MimeTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		r.logger.Error("failed to write response", "error", err)
	}
}

func (r *Router) writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set(HeaderContentType, contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		r.logger.Error("failed to write response", "error", err)
	}
}
