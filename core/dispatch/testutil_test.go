package dispatch_test

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"container-dispatch/core/auth"
	"container-dispatch/core/dispatch"
	"container-dispatch/core/models"
	"container-dispatch/core/repository"
	"container-dispatch/core/session"
)

var (
	admin      = session.Actor{UserID: "adm-1", Username: "alice", Role: models.RoleAdmin}
	dispatcher = session.Actor{UserID: "dsp-1", Username: "dora", Role: models.RoleDispatcher}
	driver1    = session.Actor{UserID: "drv-1", Username: "dave", Role: models.RoleDriver}
	driver2    = session.Actor{UserID: "drv-2", Username: "erin", Role: models.RoleDriver}
)

// testClock is a settable clock safe for concurrent reads
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db      *repository.DB
	svc     *dispatch.Service
	users   *dispatch.UserService
	clock   *testClock
	metrics *recordingMetrics
}

// setupTestDB creates an in-memory database with the authoritative schema
func setupTestDB(t *testing.T) *repository.DB {
	t.Helper()
	db, err := repository.NewDB(":memory:")
	require.NoError(t, err, "failed to open test db")
	require.NoError(t, db.Migrate(context.Background()), "failed to create schema")
	t.Cleanup(func() { db.Close() })
	return db
}

func newFixture(t *testing.T, opts ...dispatch.Option) *fixture {
	t.Helper()
	db := setupTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	metrics := &recordingMetrics{}

	opts = append([]dispatch.Option{dispatch.WithClock(clock.Now), dispatch.WithMetrics(metrics)}, opts...)
	f := &fixture{
		db:      db,
		svc:     dispatch.NewService(db, opts...),
		users:   dispatch.NewUserService(db, nil),
		clock:   clock,
		metrics: metrics,
	}

	for _, a := range []session.Actor{admin, dispatcher, driver1, driver2} {
		seedAccount(t, db, a, true)
	}
	return f
}

func seedAccount(t *testing.T, db *repository.DB, a session.Actor, active bool) {
	t.Helper()
	hash, err := auth.HashPassword("password-" + a.Username)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err = repository.NewUserRepository(db).CreateUser(context.Background(), &models.User{
		ID:           a.UserID,
		Username:     a.Username,
		Email:        a.Username + "@example.com",
		PasswordHash: hash,
		Role:         a.Role,
		IsActive:     active,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
}

// createJob creates a job through the service
func (f *fixture) createJob(t *testing.T, number string) *models.Job {
	t.Helper()
	job, err := f.svc.CreateJob(context.Background(), dispatcher, models.JobDetails{
		JobNumber: number,
		Customer:  "Acme",
		Uplift:    "Port A",
		Offload:   "Depot B",
		Size:      "20",
	})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return job
}

// advanceTo moves a job assigned to driver1 up to stage
func (f *fixture) advanceTo(t *testing.T, jobID string, stage models.Stage) {
	t.Helper()
	ctx := context.Background()
	for _, s := range models.Stages[1:] {
		_, err := f.svc.AdvanceStage(ctx, driver1, jobID, s)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
		if s == stage {
			return
		}
	}
}

// collect drains a job sequence
func collect(t *testing.T, seq iter.Seq2[*models.Job, error]) []*models.Job {
	t.Helper()
	var jobs []*models.Job
	for job, err := range seq {
		require.NoError(t, err)
		jobs = append(jobs, job)
	}
	return jobs
}

type recordingMetrics struct {
	mu          sync.Mutex
	created     int
	transitions map[string]int
	assignments int
	proofs      int
	rejected    map[string]int
}

func (m *recordingMetrics) RecordCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *recordingMetrics) RecordTransition(stage string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitions == nil {
		m.transitions = map[string]int{}
	}
	m.transitions[stage]++
}

func (m *recordingMetrics) RecordAssignment() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments++
}

func (m *recordingMetrics) RecordProof() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proofs++
}

func (m *recordingMetrics) RecordRejected(operation, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejected == nil {
		m.rejected = map[string]int{}
	}
	m.rejected[operation+"/"+reason]++
}

func sessionDriver(id, username string) session.Actor {
	return session.Actor{UserID: id, Username: username, Role: models.RoleDriver}
}
