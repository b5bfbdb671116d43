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

// SafetyFormInput is what a driver fills in before starting a job
type SafetyFormInput struct {
	JobID       string `json:"jobId"`
	FirstName   string `json:"firstName"`
	Surname     string `json:"surname"`
	AddressSite string `json:"addressSite"`
	FitForDuty  string `json:"fitForDuty"`
	MealBreak   string `json:"mealBreak"`
	PPE         string `json:"PPE"`
	Message     string `json:"message"`
}

func (in SafetyFormInput) normalize() (SafetyFormInput, error) {
	for _, v := range []*string{&in.JobID, &in.FirstName, &in.Surname, &in.AddressSite, &in.FitForDuty, &in.MealBreak, &in.PPE, &in.Message} {
		*v = strings.TrimSpace(*v)
	}
	if in.JobID == "" {
		return in, fmt.Errorf("%w: jobId is required", ErrInvalidSafetyForm)
	}
	if in.FitForDuty == "" || in.MealBreak == "" || in.PPE == "" {
		return in, fmt.Errorf("%w: fitForDuty, mealBreak and PPE are required", ErrInvalidSafetyForm)
	}
	return in, nil
}

// SubmitSafetyForm files a safety form for a job the actor can see.
// The job number and the author are taken from the job and the session, never the body.
func (s *Service) SubmitSafetyForm(ctx context.Context, actor session.Actor, in SafetyFormInput) (*models.SafetyForm, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	job, err := s.load(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanViewJob(actor.UserID, actor.Role, job).Error(); err != nil {
		s.reject("safety_form", err)
		return nil, err
	}
	if job.IsCompleted {
		err := fmt.Errorf("%w: job %s", ErrJobAlreadyCompleted, job.ID)
		s.reject("safety_form", err)
		return nil, err
	}

	form := &models.SafetyForm{
		ID:          uuid.New().String(),
		JobID:       job.ID,
		JobNumber:   job.JobNumber,
		UserID:      actor.UserID,
		FirstName:   in.FirstName,
		Surname:     in.Surname,
		AddressSite: in.AddressSite,
		FitForDuty:  in.FitForDuty,
		MealBreak:   in.MealBreak,
		PPE:         in.PPE,
		Message:     in.Message,
		CreatedAt:   s.timestamp(),
	}
	if err := s.forms.CreateSafetyForm(ctx, form); err != nil {
		return nil, storageErr("create safety form", err)
	}

	s.logger.Info("safety form submitted", "form_id", form.ID, "job_id", job.ID, "actor", actor.Username)
	return form, nil
}

// ListSafetyForms returns every form, newest first
func (s *Service) ListSafetyForms(ctx context.Context, actor session.Actor) ([]*models.SafetyForm, error) {
	if err := lifecycle.CanAdminister(actor.Role).Error(); err != nil {
		return nil, err
	}
	forms, err := s.forms.ListSafetyForms(ctx, repository.SafetyFormFilter{})
	if err != nil {
		return nil, storageErr("list safety forms", err)
	}
	return forms, nil
}

// GetSafetyForm returns one form
func (s *Service) GetSafetyForm(ctx context.Context, actor session.Actor, id string) (*models.SafetyForm, error) {
	if err := lifecycle.CanAdminister(actor.Role).Error(); err != nil {
		return nil, err
	}
	form, err := s.forms.GetSafetyForm(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSafetyFormNotFound, id)
	}
	if err != nil {
		return nil, storageErr("load safety form", err)
	}
	return form, nil
}

// SafetyFormsForJob lists the forms filed under a job number.
// Drivers only get the forms they filed themselves.
func (s *Service) SafetyFormsForJob(ctx context.Context, actor session.Actor, jobNumber string) ([]*models.SafetyForm, error) {
	filter := repository.SafetyFormFilter{JobNumber: strings.TrimSpace(jobNumber)}
	if !lifecycle.IsManager(actor.Role) {
		filter.UserID = actor.UserID
	}
	forms, err := s.forms.ListSafetyForms(ctx, filter)
	if err != nil {
		return nil, storageErr("list safety forms", err)
	}
	return forms, nil
}
