package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"container-dispatch/core/models"
	"container-dispatch/core/repository"
)

func seedSafetyForm(t *testing.T, db *repository.DB, id, jobID, userID string, offset time.Duration) {
	t.Helper()
	err := repository.NewSafetyFormRepository(db).CreateSafetyForm(context.Background(), &models.SafetyForm{
		ID:         id,
		JobID:      jobID,
		JobNumber:  "J-100",
		UserID:     userID,
		FitForDuty: "yes",
		MealBreak:  "12:30",
		PPE:        "yes",
		CreatedAt:  baseTime.Add(offset),
	})
	require.NoError(t, err)
}

func TestSafetyFormRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewSafetyFormRepository(db)
	ctx := context.Background()
	seedUser(t, db, "drv-1", models.RoleDriver)
	seedUser(t, db, "drv-2", models.RoleDriver)
	seedJob(t, db, "job-1", "J-100", 0)

	seedSafetyForm(t, db, "sf-1", "job-1", "drv-1", time.Minute)
	seedSafetyForm(t, db, "sf-2", "job-1", "drv-2", 2*time.Minute)

	form, err := repo.GetSafetyForm(ctx, "sf-1")
	require.NoError(t, err)
	assert.Equal(t, "drv-1", form.UserID)
	assert.True(t, baseTime.Add(time.Minute).Equal(form.CreatedAt))

	_, err = repo.GetSafetyForm(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	all, err := repo.ListSafetyForms(ctx, repository.SafetyFormFilter{JobNumber: "J-100"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "sf-2", all[0].ID)

	own, err := repo.ListSafetyForms(ctx, repository.SafetyFormFilter{JobNumber: "J-100", UserID: "drv-1"})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "sf-1", own[0].ID)

	other, err := repo.ListSafetyForms(ctx, repository.SafetyFormFilter{JobNumber: "J-999"})
	require.NoError(t, err)
	assert.Empty(t, other)

	assert.ErrorIs(t, repository.NewUserRepository(db).DeleteUser(ctx, "drv-1"), repository.ErrInUse)

	require.NoError(t, repository.NewJobRepository(db).DeleteJob(ctx, "job-1"))
	all, err = repo.ListSafetyForms(ctx, repository.SafetyFormFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	// with the job and its forms gone the account can be removed
	assert.NoError(t, repository.NewUserRepository(db).DeleteUser(ctx, "drv-1"))
}
