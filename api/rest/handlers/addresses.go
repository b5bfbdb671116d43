package handlers

import (
	"net/http"

	"container-dispatch/core/dispatch"

	"github.com/gorilla/mux"
)

// AddressHandler serves the address directory
type AddressHandler struct {
	addresses *dispatch.AddressService
}

// NewAddressHandler creates a new address handler
func NewAddressHandler(addresses *dispatch.AddressService) *AddressHandler {
	return &AddressHandler{addresses: addresses}
}

// CreateAddress handles POST /api/addresses
func (h *AddressHandler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dispatch.AddressInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	addr, err := h.addresses.CreateAddress(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, addr)
}

// ListAddresses handles GET /api/addresses
func (h *AddressHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.addresses.ListAddresses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, addrs)
}

// GetAddress handles GET /api/addresses/{id}
func (h *AddressHandler) GetAddress(w http.ResponseWriter, r *http.Request) {
	addr, err := h.addresses.GetAddress(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

// UpdateAddress handles PUT /api/addresses/{id}
func (h *AddressHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dispatch.AddressInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	addr, err := h.addresses.UpdateAddress(r.Context(), actor, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

// DeleteAddress handles DELETE /api/addresses/{id}
func (h *AddressHandler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.addresses.DeleteAddress(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
