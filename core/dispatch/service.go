// Package dispatch implements the job workflow: creation, driver assignment,
// stage advances, proof submission, safety forms and the job queries built on them.
//
// Every operation takes the caller as an explicit session.Actor. Rules live in
// core/lifecycle; this package loads state, evaluates the guards and applies
// the change with a conditional write so a concurrent writer can never slip
// past a guard.
package dispatch

import (
	"log/slog"
	"time"

	"container-dispatch/core/repository"
)

// Metrics receives workflow events. *monitoring.Collector satisfies it.
type Metrics interface {
	RecordCreated()
	RecordTransition(stage string, jobAge time.Duration)
	RecordAssignment()
	RecordProof()
	RecordRejected(operation, reason string)
}

type noopMetrics struct{}

func (noopMetrics) RecordCreated()                         {}
func (noopMetrics) RecordTransition(string, time.Duration) {}
func (noopMetrics) RecordAssignment()                      {}
func (noopMetrics) RecordProof()                           {}
func (noopMetrics) RecordRejected(string, string)          {}

// Service runs job operations against the store
type Service struct {
	jobs    *repository.JobRepository
	events  *repository.EventRepository
	users   *repository.UserRepository
	forms   *repository.SafetyFormRepository
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
	loc     *time.Location
}

// Option configures a Service
type Option func(*Service)

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone that defines report calendar days
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// NewService creates a job service
func NewService(db *repository.DB, opts ...Option) *Service {
	s := &Service{
		jobs:    repository.NewJobRepository(db),
		events:  repository.NewEventRepository(db),
		users:   repository.NewUserRepository(db),
		forms:   repository.NewSafetyFormRepository(db),
		metrics: noopMetrics{},
		logger:  slog.Default(),
		now:     time.Now,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp returns the current time at store precision
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
