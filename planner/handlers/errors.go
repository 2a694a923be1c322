package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

// StatusFor maps planner errors to HTTP status codes.
func StatusFor(err error) int {
	var (
		invalid    validator.ValidationErrors
		syntax     *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
		badRequest *requestError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case recurrence.IsConfiguration(err), storage.IsInvalidInput(err),
		errors.As(err, &invalid), errors.As(err, &syntax),
		errors.As(err, &typeErr), errors.As(err, &badRequest):
		return http.StatusBadRequest
	case recurrence.IsNotFound(err), storage.IsNotFound(err):
		return http.StatusNotFound
	case storage.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// requestError is a malformed query or body.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *requestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &requestError{msg: msg, err: err}
}

// writeError logs err and answers with its mapped status.
func (r *Router) writeError(w http.ResponseWriter, req *http.Request, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		r.logger.Error(op+" failed",
			"error", err,
			"path", req.URL.Path)
		http.Error(w, "Internal server error", status)
		return
	}
	r.logger.Info(op+" rejected",
		"error", err,
		"status", status,
		"path", req.URL.Path)
	http.Error(w, err.Error(), status)
}
