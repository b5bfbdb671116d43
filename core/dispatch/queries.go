package dispatch

import (
	"context"
	"fmt"
	"iter"
	"time"

	"container-dispatch/core/lifecycle"
	"container-dispatch/core/models"
	"container-dispatch/core/repository"
	"container-dispatch/core/session"
)

// DateLayout is the calendar date format accepted by reports
const DateLayout = "2006-01-02"

// Summary holds job counts
type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Active    int `json:"active"`
}

// ListActiveJobs yields jobs that are not done, newest first.
// Drivers only see jobs assigned to them.
func (s *Service) ListActiveJobs(ctx context.Context, actor session.Actor) iter.Seq2[*models.Job, error] {
	return s.scoped(ctx, actor, repository.JobFilter{Completed: ptr(false)})
}

// ListCompletedJobs yields done jobs, newest first.
// Drivers only see jobs assigned to them.
func (s *Service) ListCompletedJobs(ctx context.Context, actor session.Actor) iter.Seq2[*models.Job, error] {
	return s.scoped(ctx, actor, repository.JobFilter{Completed: ptr(true)})
}

// ListUnassigned yields active jobs with no driver
func (s *Service) ListUnassigned(ctx context.Context, actor session.Actor) (iter.Seq2[*models.Job, error], error) {
	if err := lifecycle.CanManage(actor.Role).Error(); err != nil {
		return nil, err
	}
	return s.list(ctx, repository.JobFilter{Completed: ptr(false), Unassigned: true}), nil
}

// ListJobsForDriver yields jobs assigned to driverID with the given completion state
func (s *Service) ListJobsForDriver(ctx context.Context, actor session.Actor, driverID string, completed bool) (iter.Seq2[*models.Job, error], error) {
	if err := lifecycle.CanQueryDriver(actor.UserID, actor.Role, driverID).Error(); err != nil {
		return nil, err
	}
	return s.list(ctx, repository.JobFilter{AssignedTo: driverID, Completed: ptr(completed)}), nil
}

// ListCompletedInRange yields jobs completed between the start of from and the end of to,
// both calendar days in the report time zone.
func (s *Service) ListCompletedInRange(ctx context.Context, actor session.Actor, from, to time.Time) (iter.Seq2[*models.Job, error], error) {
	if err := lifecycle.CanManage(actor.Role).Error(); err != nil {
		return nil, err
	}
	start := s.startOfDay(from)
	end := s.startOfDay(to).AddDate(0, 0, 1).Add(-time.Nanosecond)
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, from.Format(DateLayout), to.Format(DateLayout))
	}
	return s.list(ctx, repository.JobFilter{Completed: ptr(true), UpdatedFrom: &start, UpdatedTo: &end}), nil
}

// ListCompletedOnDate yields jobs completed on one calendar day
func (s *Service) ListCompletedOnDate(ctx context.Context, actor session.Actor, day time.Time) (iter.Seq2[*models.Job, error], error) {
	return s.ListCompletedInRange(ctx, actor, day, day)
}

// JobsCreatedToday yields jobs created since midnight in the report time zone
func (s *Service) JobsCreatedToday(ctx context.Context, actor session.Actor) (iter.Seq2[*models.Job, error], error) {
	if err := lifecycle.CanManage(actor.Role).Error(); err != nil {
		return nil, err
	}
	start := s.startOfDay(s.now())
	return s.list(ctx, repository.JobFilter{CreatedFrom: &start}), nil
}

// Summary counts all jobs
func (s *Service) Summary(ctx context.Context, actor session.Actor) (Summary, error) {
	if err := lifecycle.CanManage(actor.Role).Error(); err != nil {
		return Summary{}, err
	}
	total, completed, err := s.jobs.CountJobs(ctx)
	if err != nil {
		return Summary{}, storageErr("count jobs", err)
	}
	return Summary{Total: total, Completed: completed, Active: total - completed}, nil
}

// ParseDate parses a report date in the report time zone
func (s *Service) ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidRange, value)
	}
	return t, nil
}

// Location is the report time zone
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) startOfDay(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

// scoped restricts a listing to the caller's own jobs unless the caller is a manager
func (s *Service) scoped(ctx context.Context, actor session.Actor, f repository.JobFilter) iter.Seq2[*models.Job, error] {
	if lifecycle.IsManager(actor.Role) {
		return s.list(ctx, f)
	}
	if actor.IsZero() {
		return func(func(*models.Job, error) bool) {}
	}
	f.AssignedTo = actor.UserID
	return s.list(ctx, f)
}

// list wraps the store iterator so failures surface as ErrStorageUnavailable
func (s *Service) list(ctx context.Context, f repository.JobFilter) iter.Seq2[*models.Job, error] {
	return func(yield func(*models.Job, error) bool) {
		for job, err := range s.jobs.Jobs(ctx, f) {
			if err != nil {
				yield(nil, storageErr("list jobs", err))
				return
			}
			if !yield(job, nil) {
				return
			}
		}
	}
}

func ptr[T any](v T) *T { return &v }
