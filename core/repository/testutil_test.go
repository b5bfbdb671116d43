// Package repository_test contains integration tests for the repositories.
//
// Every test database is built from SchemaSQL so tests and production share one schema.
package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"container-dispatch/core/models"
	"container-dispatch/core/repository"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *repository.DB {
	t.Helper()

	db, err := repository.NewDB(":memory:")
	require.NoError(t, err, "failed to open test db")
	require.NoError(t, db.Migrate(context.Background()), "failed to create schema")

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

var baseTime = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// seedUser inserts an active account and returns it.
func seedUser(t *testing.T, db *repository.DB, id string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		ID:           id,
		Username:     id,
		Email:        id + "@example.com",
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
	require.NoError(t, repository.NewUserRepository(db).CreateUser(context.Background(), user))
	return user
}

// seedJob inserts a job at accept, created offset after baseTime.
func seedJob(t *testing.T, db *repository.DB, id, number string, offset time.Duration) *models.Job {
	t.Helper()
	created := baseTime.Add(offset)
	job := &models.Job{
		ID:        id,
		JobNumber: number,
		Customer:  "Acme",
		Uplift:    "Port A",
		Offload:   "Depot B",
		Size:      "20",
		Status:    []models.StatusEvent{{Stage: models.StageAccept, Timestamp: created}},
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, repository.NewJobRepository(db).CreateJob(context.Background(), job))
	return job
}
