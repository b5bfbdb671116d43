package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"container-dispatch/core/auth"
	"container-dispatch/core/dispatch"
	"container-dispatch/storage"
)

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"forbidden", fmt.Errorf("guard: %w", dispatch.ErrForbidden), http.StatusForbidden, "forbidden"},
		{"completed wins over invalid transition", fmt.Errorf("advance: %w", dispatch.ErrJobAlreadyCompleted), http.StatusConflict, "job_already_completed"},
		{"invalid transition", dispatch.ErrInvalidTransition, http.StatusBadRequest, "invalid_transition"},
		{"out of order", dispatch.ErrOutOfOrderTransition, http.StatusBadRequest, "out_of_order_transition"},
		{"duplicate job number", dispatch.ErrDuplicateJobNumber, http.StatusConflict, "duplicate_job_number"},
		{"missing job", dispatch.ErrJobNotFound, http.StatusNotFound, "job_not_found"},
		{"user in use", fmt.Errorf("%w: deactivate drv-1 instead", dispatch.ErrUserInUse), http.StatusConflict, "user_in_use"},
		{"safety form", dispatch.ErrInvalidSafetyForm, http.StatusBadRequest, "invalid_safety_form"},
		{"credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{"upload", storage.ErrInvalidUpload, http.StatusBadRequest, "invalid_upload"},
		{"storage", fmt.Errorf("failed to list jobs: %w: %w", dispatch.ErrStorageUnavailable, errors.New("connection refused")), http.StatusServiceUnavailable, "storage_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			if tt.status >= http.StatusInternalServerError {
				assert.NotContains(t, body.Error.Message, "connection refused")
				assert.NotContains(t, body.Error.Message, "boom")
			}
		})
	}
}

func TestWriteListNeverNull(t *testing.T) {
	rec := httptest.NewRecorder()
	writeList[string](rec, nil)
	assert.JSONEq(t, `{"items":[],"count":0}`, rec.Body.String())
}

func TestActorFromRequiresSession(t *testing.T) {
	_, err := actorFrom(httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	assert.ErrorIs(t, err, errUnauthenticated)
}
