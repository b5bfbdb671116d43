package handlers

import (
	"net/http"

	"container-dispatch/core/dispatch"

	"github.com/gorilla/mux"
)

// SafetyFormHandler serves pre-start safety forms
type SafetyFormHandler struct {
	svc *dispatch.Service
}

// NewSafetyFormHandler creates a new safety form handler
func NewSafetyFormHandler(svc *dispatch.Service) *SafetyFormHandler {
	return &SafetyFormHandler{svc: svc}
}

// SubmitSafetyForm handles POST /api/safetyForms
func (h *SafetyFormHandler) SubmitSafetyForm(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dispatch.SafetyFormInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	form, err := h.svc.SubmitSafetyForm(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, form)
}

// ListSafetyForms handles GET /api/safetyForms
func (h *SafetyFormHandler) ListSafetyForms(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	forms, err := h.svc.ListSafetyForms(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, forms)
}

// GetSafetyForm handles GET /api/safetyForms/{id}
func (h *SafetyFormHandler) GetSafetyForm(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	form, err := h.svc.GetSafetyForm(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// ListJobSafetyForms handles GET /api/safetyForms/job/{jobNumber}
func (h *SafetyFormHandler) ListJobSafetyForms(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	forms, err := h.svc.SafetyFormsForJob(r.Context(), actor, mux.Vars(r)["jobNumber"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, forms)
}
