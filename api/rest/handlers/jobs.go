package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"container-dispatch/core/dispatch"
	"container-dispatch/core/models"
	"container-dispatch/core/spec"

	"github.com/gorilla/mux"
)

// maxManifestBytes bounds a bulk import body
const maxManifestBytes = 5 << 20

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	svc *dispatch.Service
}

// NewJobHandler creates a new job handler
func NewJobHandler(svc *dispatch.Service) *JobHandler {
	return &JobHandler{svc: svc}
}

// JobRequest is the body of job create and update.
// JobStart is a string so date-only values from a date input are accepted.
type JobRequest struct {
	models.JobDetails
	JobStart string `json:"jobStart"`
}

// details resolves JobStart in loc
func (req JobRequest) details(loc *time.Location) (models.JobDetails, error) {
	d := req.JobDetails
	d.JobStart = nil
	if strings.TrimSpace(req.JobStart) == "" {
		return d, nil
	}
	start, err := spec.ParseJobStart(req.JobStart, loc)
	if err != nil {
		return d, fmt.Errorf("%w: %v", dispatch.ErrInvalidJob, err)
	}
	d.JobStart = &start
	return d, nil
}

// AssignRequest represents the request to assign a driver.
// UserID is accepted for clients that send the assignee as userId.
type AssignRequest struct {
	DriverID string `json:"driverId"`
	UserID   string `json:"userId"`
}

func (req AssignRequest) assignee() string {
	if req.DriverID != "" {
		return req.DriverID
	}
	return req.UserID
}

// StatusRequest represents the request to advance a job
type StatusRequest struct {
	Stage models.Stage `json:"stage"`
}

// ProofRequest represents the proof of delivery
type ProofRequest struct {
	Notes  string   `json:"notes"`
	Images []string `json:"images"`
}

// StatusHistoryResponse represents the status history of a job
type StatusHistoryResponse struct {
	JobID       string            `json:"jobId"`
	Stage       models.Stage      `json:"stage"`
	IsCompleted bool              `json:"isCompleted"`
	Events      []models.JobEvent `json:"events"`
}

// CreateJob handles POST /api/jobs
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	details, err := h.decodeJob(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	job, err := h.svc.CreateJob(r.Context(), actor, details)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *JobHandler) decodeJob(r *http.Request) (models.JobDetails, error) {
	var req JobRequest
	if err := decodeJSON(r, &req); err != nil {
		return models.JobDetails{}, err
	}
	return req.details(h.svc.Location())
}

// ImportJobs handles POST /api/jobs/import with a YAML manifest body
func (h *JobHandler) ImportJobs(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxManifestBytes))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	details, err := spec.ParseManifest(body, h.svc.Location())
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid manifest: %v", errBadRequest, err))
		return
	}

	result, err := h.svc.ImportJobs(r.Context(), actor, details)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// ListActiveJobs handles GET /api/jobs
func (h *JobHandler) ListActiveJobs(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJobs(w, r, h.svc.ListActiveJobs(r.Context(), actor))
}

// ListCompletedJobs handles GET /api/jobs/completed
func (h *JobHandler) ListCompletedJobs(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJobs(w, r, h.svc.ListCompletedJobs(r.Context(), actor))
}

// ListUnassigned handles GET /api/jobs/unassigned
func (h *JobHandler) ListUnassigned(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	seq, err := h.svc.ListUnassigned(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJobs(w, r, seq)
}

// ListDriverJobs handles GET /api/jobs/user/{userId}
func (h *JobHandler) ListDriverJobs(w http.ResponseWriter, r *http.Request) {
	h.listDriverJobs(w, r, false)
}

// ListDriverCompletedJobs handles GET /api/jobs/user/{userId}/completed
func (h *JobHandler) ListDriverCompletedJobs(w http.ResponseWriter, r *http.Request) {
	h.listDriverJobs(w, r, true)
}

func (h *JobHandler) listDriverJobs(w http.ResponseWriter, r *http.Request, completed bool) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	seq, err := h.svc.ListJobsForDriver(r.Context(), actor, mux.Vars(r)["userId"], completed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJobs(w, r, seq)
}

// GetJob handles GET /api/jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.svc.GetJob(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// UpdateJob handles PUT /api/jobs/{id}
func (h *JobHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	details, err := h.decodeJob(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.svc.UpdateJob(r.Context(), actor, mux.Vars(r)["id"], details)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// DeleteJob handles DELETE /api/jobs/{id}
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteJob(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignDriver handles PUT /api/jobs/{id}/assign
func (h *JobHandler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.svc.AssignDriver(r.Context(), actor, mux.Vars(r)["id"], req.assignee())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// UpdateStatus handles PUT /api/jobs/{id}/status
func (h *JobHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.svc.AdvanceStage(r.Context(), actor, mux.Vars(r)["id"], req.Stage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetStatusHistory handles GET /api/jobs/{id}/status
func (h *JobHandler) GetStatusHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jobID := mux.Vars(r)["id"]
	events, err := h.svc.StatusHistory(r.Context(), actor, jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := StatusHistoryResponse{JobID: jobID, Events: events}
	if n := len(events); n > 0 {
		resp.Stage = events[n-1].Stage
		resp.IsCompleted = resp.Stage == models.StageDone
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitProof handles PUT /api/jobs/{id}/proof
func (h *JobHandler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ProofRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.svc.SubmitProof(r.Context(), actor, mux.Vars(r)["id"], req.Notes, req.Images)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
