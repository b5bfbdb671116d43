package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"container-dispatch/core/lifecycle"
	"container-dispatch/core/models"
	"container-dispatch/core/repository"
	"container-dispatch/core/session"
)

// CreateJob creates an unassigned job at accept
func (s *Service) CreateJob(ctx context.Context, actor session.Actor, d models.JobDetails) (*models.Job, error) {
	if err := lifecycle.CanManage(actor.Role).Error(); err != nil {
		return nil, err
	}
	d, err := normalizeDetails(d)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	job := &models.Job{
		ID:        uuid.New().String(),
		Status:    lifecycle.InitialStatus(now),
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.ApplyDetails(d)

	if err := s.jobs.CreateJob(ctx, job); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateJobNumber, d.JobNumber)
		}
		return nil, storageErr("create job", err)
	}

	s.metrics.RecordCreated()
	s.logger.Info("job created", "job_id", job.ID, "job_number", job.JobNumber, "actor", actor.Username)
	return job, nil
}

// ImportFailure describes one manifest entry that was not created
type ImportFailure struct {
	Index     int    `json:"index"`
	JobNumber string `json:"jobNumber"`
	Error     string `json:"error"`
}

// ImportResult is the outcome of a bulk import
type ImportResult struct {
	Created []*models.Job   `json:"created"`
	Failed  []ImportFailure `json:"failed"`
}

// ImportJobs creates each entry independently. Invalid or duplicate entries are
// reported and skipped; a storage failure stops the import.
func (s *Service) ImportJobs(ctx context.Context, actor session.Actor, entries []models.JobDetails) (*ImportResult, error) {
	if err := lifecycle.CanManage(actor.Role).Error(); err != nil {
		return nil, err
	}

	result := &ImportResult{Created: []*models.Job{}, Failed: []ImportFailure{}}
	for i, d := range entries {
		job, err := s.CreateJob(ctx, actor, d)
		switch {
		case err == nil:
			result.Created = append(result.Created, job)
		case errors.Is(err, ErrInvalidJob), errors.Is(err, ErrDuplicateJobNumber):
			result.Failed = append(result.Failed, ImportFailure{Index: i, JobNumber: d.JobNumber, Error: err.Error()})
		default:
			return result, err
		}
	}
	return result, nil
}

// GetJob returns a job visible to actor
func (s *Service) GetJob(ctx context.Context, actor session.Actor, id string) (*models.Job, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanViewJob(actor.UserID, actor.Role, job).Error(); err != nil {
		return nil, err
	}
	return job, nil
}

// StatusHistory returns the persisted transitions of a job visible to actor
func (s *Service) StatusHistory(ctx context.Context, actor session.Actor, id string) ([]models.JobEvent, error) {
	if _, err := s.GetJob(ctx, actor, id); err != nil {
		return nil, err
	}
	events, err := s.events.GetJobEvents(ctx, id)
	if err != nil {
		return nil, storageErr("load status history", err)
	}
	return events, nil
}

// UpdateJob replaces the descriptive fields of an active job.
// Status, completion, assignment and proof are never touched.
func (s *Service) UpdateJob(ctx context.Context, actor session.Actor, id string, d models.JobDetails) (*models.Job, error) {
	if err := lifecycle.CanManage(actor.Role).Error(); err != nil {
		return nil, err
	}
	d, err := normalizeDetails(d)
	if err != nil {
		return nil, err
	}

	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.IsCompleted {
		return nil, fmt.Errorf("%w: job %s can no longer be edited", ErrJobAlreadyCompleted, id)
	}

	err = s.jobs.UpdateDetails(ctx, id, d, s.timestamp())
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJobNumber, d.JobNumber)
	case errors.Is(err, repository.ErrStaleWrite):
		return nil, s.classifyStale(ctx, id, "")
	case err != nil:
		return nil, storageErr("update job", err)
	}

	s.logger.Info("job updated", "job_id", id, "actor", actor.Username)
	return s.load(ctx, id)
}

// DeleteJob removes a job and its history
func (s *Service) DeleteJob(ctx context.Context, actor session.Actor, id string) error {
	if err := lifecycle.CanAdminister(actor.Role).Error(); err != nil {
		return err
	}
	err := s.jobs.DeleteJob(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return storageErr("delete job", err)
	}
	s.logger.Info("job deleted", "job_id", id, "actor", actor.Username)
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, storageErr("load job", err)
	}
	return job, nil
}

func normalizeDetails(d models.JobDetails) (models.JobDetails, error) {
	d.JobNumber = strings.TrimSpace(d.JobNumber)
	if d.JobNumber == "" {
		return d, fmt.Errorf("%w: job number is required", ErrInvalidJob)
	}
	d.Customer = strings.TrimSpace(d.Customer)
	d.Uplift = strings.TrimSpace(d.Uplift)
	d.Offload = strings.TrimSpace(d.Offload)
	if d.JobStart != nil {
		t := d.JobStart.UTC()
		d.JobStart = &t
	}
	return d, nil
}
