package dispatch

import (
	"context"
	"errors"
	"fmt"

	"container-dispatch/core/lifecycle"
	"container-dispatch/core/models"
	"container-dispatch/core/repository"
	"container-dispatch/core/session"
)

// AssignDriver binds an active job to a driver. Reassignment is allowed until the job is done.
func (s *Service) AssignDriver(ctx context.Context, actor session.Actor, jobID, driverID string) (*models.Job, error) {
	if err := lifecycle.CanManage(actor.Role).Error(); err != nil {
		return nil, err
	}

	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	guard := lifecycle.AssignContext{
		JobID:     jobID,
		Completed: job.IsCompleted,
		ActorRole: actor.Role,
		DriverID:  driverID,
	}
	driver, err := s.users.GetUser(ctx, driverID)
	switch {
	case err == nil:
		guard.DriverExists = true
		guard.DriverRole = driver.Role
		guard.DriverIsActive = driver.IsActive
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storageErr("load driver", err)
	}

	if result := lifecycle.CanAssign(guard); !result.Allowed {
		s.reject("assign", result.Err)
		return nil, result.Error()
	}

	err = s.jobs.AssignDriver(ctx, jobID, driverID, s.timestamp())
	if errors.Is(err, repository.ErrStaleWrite) {
		err = s.classifyStale(ctx, jobID, "")
		s.reject("assign", err)
		return nil, err
	}
	if err != nil {
		return nil, storageErr("assign driver", err)
	}

	s.metrics.RecordAssignment()
	s.logger.Info("job assigned", "job_id", jobID, "driver", driver.Username, "actor", actor.Username)
	return s.load(ctx, jobID)
}

// AdvanceStage moves a job to the immediate successor of its current stage.
// Reaching done completes the job.
func (s *Service) AdvanceStage(ctx context.Context, actor session.Actor, jobID string, stage models.Stage) (*models.Job, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}

	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	current := job.CurrentStage()
	guard := lifecycle.AdvanceContext{
		JobID:     jobID,
		Current:   current,
		Completed: job.IsCompleted,
		Requested: stage,
		ActorID:   actor.UserID,
		ActorRole: actor.Role,
	}
	if job.AssignedTo != nil {
		guard.AssignedTo = *job.AssignedTo
	}
	if result := lifecycle.CanAdvance(guard); !result.Allowed {
		s.reject("advance", result.Err)
		return nil, result.Error()
	}

	res := lifecycle.ApplyAdvance(stage, s.timestamp())
	err = s.jobs.AppendStage(ctx, jobID, current, res.Event, res.Completed, actor.UserID)
	if errors.Is(err, repository.ErrStaleWrite) {
		err = s.classifyStale(ctx, jobID, stage)
		s.reject("advance", err)
		return nil, err
	}
	if err != nil {
		return nil, storageErr("advance stage", err)
	}

	job.Status = append(job.Status, res.Event)
	job.IsCompleted = res.Completed
	job.UpdatedAt = res.Event.Timestamp

	s.metrics.RecordTransition(string(stage), res.Event.Timestamp.Sub(job.CreatedAt))
	s.logger.Info("job stage advanced", "job_id", jobID, "from", current, "stage", stage, "actor", actor.Username)
	return job, nil
}

// SubmitProof stores proof and completes a job at offload in one write
func (s *Service) SubmitProof(ctx context.Context, actor session.Actor, jobID, notes string, images []string) (*models.Job, error) {
	notes, images = lifecycle.NormalizeProof(notes, images)

	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	guard := lifecycle.ProofContext{
		JobID:     jobID,
		Current:   job.CurrentStage(),
		Completed: job.IsCompleted,
		ActorID:   actor.UserID,
		Notes:     notes,
		Images:    images,
	}
	if job.AssignedTo != nil {
		guard.AssignedTo = *job.AssignedTo
	}
	if result := lifecycle.CanSubmitProof(guard); !result.Allowed {
		s.reject("proof", result.Err)
		return nil, result.Error()
	}

	now := s.timestamp()
	proof := models.Proof{Notes: notes, Images: images, SubmittedAt: now}
	res := lifecycle.ApplyAdvance(models.StageDone, now)

	err = s.jobs.CompleteWithProof(ctx, jobID, models.StageOffload, proof, res.Event, actor.UserID)
	if errors.Is(err, repository.ErrStaleWrite) {
		err = s.classifyStale(ctx, jobID, models.StageDone)
		s.reject("proof", err)
		return nil, err
	}
	if err != nil {
		return nil, storageErr("submit proof", err)
	}

	job.Status = append(job.Status, res.Event)
	job.IsCompleted = true
	job.Proof = &proof
	job.UpdatedAt = now

	s.metrics.RecordProof()
	s.metrics.RecordTransition(string(models.StageDone), now.Sub(job.CreatedAt))
	s.logger.Info("job completed with proof", "job_id", jobID, "images", len(images), "actor", actor.Username)
	return job, nil
}

// classifyStale explains why a conditional write matched no row by re-reading the job
func (s *Service) classifyStale(ctx context.Context, jobID string, requested models.Stage) error {
	job, err := s.load(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsCompleted {
		return fmt.Errorf("%w: job %s was completed concurrently", ErrJobAlreadyCompleted, jobID)
	}
	if requested == models.StageDone && job.CurrentStage() != models.StageOffload {
		return fmt.Errorf("%w: job %s is at %s", ErrInvalidTransition, jobID, job.CurrentStage())
	}
	return fmt.Errorf("%w: job %s moved to %s concurrently", ErrOutOfOrderTransition, jobID, job.CurrentStage())
}

func (s *Service) reject(operation string, err error) {
	s.metrics.RecordRejected(operation, reasonLabel(err))
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrJobAlreadyCompleted):
		return "completed"
	case errors.Is(err, ErrOutOfOrderTransition):
		return "out_of_order"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidAssignee):
		return "invalid_assignee"
	case errors.Is(err, ErrEmptyProof):
		return "empty_proof"
	case errors.Is(err, ErrInvalidStage):
		return "invalid_stage"
	case errors.Is(err, ErrJobNotFound):
		return "not_found"
	}
	return "other"
}
