package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"container-dispatch/core/auth"
	"container-dispatch/core/dispatch"
	"container-dispatch/core/models"
	"container-dispatch/core/session"
	"container-dispatch/storage"
)

// errBadRequest marks malformed requests
var errBadRequest = errors.New("bad request")

// errUnauthenticated is returned when no actor is on the request
var errUnauthenticated = errors.New("not authenticated")

// ErrorBody is the error envelope
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ListBody is the envelope for every list response
type ListBody[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// errorMapping is checked in order; the first matching sentinel wins
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{errUnauthenticated, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},
	{dispatch.ErrForbidden, http.StatusForbidden, "forbidden"},
	{dispatch.ErrJobNotFound, http.StatusNotFound, "job_not_found"},
	{dispatch.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{dispatch.ErrAddressNotFound, http.StatusNotFound, "address_not_found"},
	{dispatch.ErrSafetyFormNotFound, http.StatusNotFound, "safety_form_not_found"},
	{dispatch.ErrJobAlreadyCompleted, http.StatusConflict, "job_already_completed"},
	{dispatch.ErrDuplicateJobNumber, http.StatusConflict, "duplicate_job_number"},
	{dispatch.ErrDuplicateUser, http.StatusConflict, "duplicate_user"},
	{dispatch.ErrUserInUse, http.StatusConflict, "user_in_use"},
	{dispatch.ErrInvalidStage, http.StatusBadRequest, "invalid_stage"},
	{dispatch.ErrOutOfOrderTransition, http.StatusBadRequest, "out_of_order_transition"},
	{dispatch.ErrInvalidTransition, http.StatusBadRequest, "invalid_transition"},
	{dispatch.ErrEmptyProof, http.StatusBadRequest, "empty_proof"},
	{dispatch.ErrInvalidAssignee, http.StatusBadRequest, "invalid_assignee"},
	{dispatch.ErrInvalidRange, http.StatusBadRequest, "invalid_range"},
	{dispatch.ErrInvalidJob, http.StatusBadRequest, "invalid_job"},
	{dispatch.ErrInvalidUser, http.StatusBadRequest, "invalid_user"},
	{dispatch.ErrInvalidAddress, http.StatusBadRequest, "invalid_address"},
	{dispatch.ErrInvalidSafetyForm, http.StatusBadRequest, "invalid_safety_form"},
	{storage.ErrInvalidUpload, http.StatusBadRequest, "invalid_upload"},
	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{dispatch.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and the error envelope.
// Server-side failures are logged and their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := http.StatusInternalServerError, "internal_error", "internal server error"
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			status, code, message = m.status, m.code, err.Error()
			break
		}
	}
	if status >= http.StatusInternalServerError {
		logRequestError(r, "request failed", err)
		if status == http.StatusServiceUnavailable {
			message = dispatch.ErrStorageUnavailable.Error()
		}
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func logRequestError(r *http.Request, msg string, err error) {
	slog.ErrorContext(r.Context(), msg,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimw.GetReqID(r.Context()),
	)
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, ListBody[T]{Items: items, Count: len(items)})
}

// writeJobs drains a job sequence into the list envelope
func writeJobs(w http.ResponseWriter, r *http.Request, seq iter.Seq2[*models.Job, error]) {
	jobs := []*models.Job{}
	for job, err := range seq {
		if err != nil {
			writeError(w, r, err)
			return
		}
		jobs = append(jobs, job)
	}
	writeList(w, jobs)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

// actorFrom returns the authenticated caller
func actorFrom(r *http.Request) (session.Actor, error) {
	actor, ok := session.FromContext(r.Context())
	if !ok || actor.IsZero() {
		return session.Actor{}, errUnauthenticated
	}
	return actor, nil
}

// NotFound answers unmatched routes with the error envelope
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorBody{Error: ErrorDetail{Code: "not_found", Message: "no route for " + r.URL.Path}})
}

// MethodNotAllowed answers a known path requested with the wrong method
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorBody{Error: ErrorDetail{Code: "method_not_allowed", Message: r.Method + " is not allowed on " + r.URL.Path}})
}

// Health handles GET /api/health
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
