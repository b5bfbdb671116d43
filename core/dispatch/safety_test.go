package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"container-dispatch/core/dispatch"
	"container-dispatch/core/models"
)

func safetyInput(jobID string) dispatch.SafetyFormInput {
	return dispatch.SafetyFormInput{
		JobID:       jobID,
		FirstName:   "Dave",
		Surname:     "Driver",
		AddressSite: "Port A",
		FitForDuty:  "yes",
		MealBreak:   "12:30",
		PPE:         "yes",
	}
}

func TestSubmitSafetyForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, "J-1")
	_, err := f.svc.AssignDriver(ctx, dispatcher, job.ID, driver1.UserID)
	require.NoError(t, err)

	_, err = f.svc.SubmitSafetyForm(ctx, driver2, safetyInput(job.ID))
	assert.ErrorIs(t, err, dispatch.ErrForbidden)
	assert.Equal(t, 1, f.metrics.rejected["safety_form/forbidden"])

	_, err = f.svc.SubmitSafetyForm(ctx, driver1, safetyInput("missing"))
	assert.ErrorIs(t, err, dispatch.ErrJobNotFound)

	incomplete := safetyInput(job.ID)
	incomplete.PPE = "  "
	_, err = f.svc.SubmitSafetyForm(ctx, driver1, incomplete)
	assert.ErrorIs(t, err, dispatch.ErrInvalidSafetyForm)

	form, err := f.svc.SubmitSafetyForm(ctx, driver1, safetyInput(job.ID))
	require.NoError(t, err)
	assert.Equal(t, "J-1", form.JobNumber)
	assert.Equal(t, driver1.UserID, form.UserID)
	assert.Equal(t, "yes", form.PPE)

	stored, err := f.svc.GetSafetyForm(ctx, admin, form.ID)
	require.NoError(t, err)
	assert.Equal(t, form.ID, stored.ID)
	assert.True(t, form.CreatedAt.Equal(stored.CreatedAt))
}

func TestSubmitSafetyForm_CompletedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, "J-1")
	_, err := f.svc.AssignDriver(ctx, dispatcher, job.ID, driver1.UserID)
	require.NoError(t, err)
	f.advanceTo(t, job.ID, models.StageDone)

	_, err = f.svc.SubmitSafetyForm(ctx, driver1, safetyInput(job.ID))
	assert.ErrorIs(t, err, dispatch.ErrJobAlreadyCompleted)
}

func TestSafetyFormQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, "J-1")
	_, err := f.svc.AssignDriver(ctx, dispatcher, job.ID, driver1.UserID)
	require.NoError(t, err)

	first, err := f.svc.SubmitSafetyForm(ctx, driver1, safetyInput(job.ID))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.svc.SubmitSafetyForm(ctx, dispatcher, safetyInput(job.ID))
	require.NoError(t, err)

	_, err = f.svc.ListSafetyForms(ctx, dispatcher)
	assert.ErrorIs(t, err, dispatch.ErrForbidden)
	_, err = f.svc.GetSafetyForm(ctx, driver1, first.ID)
	assert.ErrorIs(t, err, dispatch.ErrForbidden)
	_, err = f.svc.GetSafetyForm(ctx, admin, "missing")
	assert.ErrorIs(t, err, dispatch.ErrSafetyFormNotFound)

	all, err := f.svc.ListSafetyForms(ctx, admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	forJob, err := f.svc.SafetyFormsForJob(ctx, dispatcher, "J-1")
	require.NoError(t, err)
	assert.Len(t, forJob, 2)

	own, err := f.svc.SafetyFormsForJob(ctx, driver1, "J-1")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, first.ID, own[0].ID)

	none, err := f.svc.SafetyFormsForJob(ctx, driver2, "J-1")
	require.NoError(t, err)
	assert.Empty(t, none)

	// a filed form keeps its author on record
	err = f.users.DeleteUser(ctx, admin, driver1.UserID)
	assert.ErrorIs(t, err, dispatch.ErrUserInUse)
}
