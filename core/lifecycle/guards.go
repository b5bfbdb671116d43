package lifecycle

import (
	"fmt"
	"strings"

	"container-dispatch/core/models"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	Err     error // sentinel describing the violation
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", r.Err, r.Reason)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(err error, format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Err: err, Reason: fmt.Sprintf(format, args...)}
}

// AdvanceContext provides context for stage advance guards.
type AdvanceContext struct {
	JobID      string
	Current    models.Stage
	Completed  bool
	AssignedTo string // empty when unassigned
	Requested  models.Stage
	ActorID    string
	ActorRole  models.Role
}

// CanAdvance evaluates whether a job may move to the requested stage.
// Rules:
// - requested stage must be one of the four lifecycle stages
// - caller must be the assigned driver or an admin
// - job must not be completed
// - requested stage must be the immediate successor of the current stage
func CanAdvance(ctx AdvanceContext) GuardResult {
	if !ctx.Requested.Valid() {
		return deny(ErrInvalidStage, "stage %q is not one of accept, uplift, offload, done", ctx.Requested)
	}

	if ctx.ActorRole != models.RoleAdmin && (ctx.AssignedTo == "" || ctx.AssignedTo != ctx.ActorID) {
		return deny(ErrForbidden, "job %s is not assigned to you", ctx.JobID)
	}

	if ctx.Completed || IsTerminal(ctx.Current) {
		return deny(ErrJobAlreadyCompleted, "job %s is already done", ctx.JobID)
	}

	next, ok := NextStage(ctx.Current)
	if !ok || next != ctx.Requested {
		return deny(ErrOutOfOrderTransition, "job %s is at %s, next stage is %s (requested %s)",
			ctx.JobID, ctx.Current, next, ctx.Requested)
	}

	return allow()
}

// AssignContext provides context for driver assignment guards.
type AssignContext struct {
	JobID          string
	Completed      bool
	ActorRole      models.Role
	DriverID       string
	DriverExists   bool
	DriverRole     models.Role
	DriverIsActive bool
}

// CanAssign evaluates whether a job may be bound to a driver.
// Rules:
// - caller must be admin or dispatcher
// - driver must exist, be active and have the driver role
// - job must not be completed
func CanAssign(ctx AssignContext) GuardResult {
	if ctx.ActorRole != models.RoleAdmin && ctx.ActorRole != models.RoleDispatcher {
		return deny(ErrForbidden, "only admins and dispatchers can assign jobs")
	}

	if !ctx.DriverExists {
		return deny(ErrInvalidAssignee, "user %s not found", ctx.DriverID)
	}
	if ctx.DriverRole != models.RoleDriver {
		return deny(ErrInvalidAssignee, "user %s is a %s, not a driver", ctx.DriverID, ctx.DriverRole)
	}
	if !ctx.DriverIsActive {
		return deny(ErrInvalidAssignee, "driver %s is deactivated", ctx.DriverID)
	}

	if ctx.Completed {
		return deny(ErrJobAlreadyCompleted, "job %s is already done and cannot be reassigned", ctx.JobID)
	}

	return allow()
}

// ProofContext provides context for proof submission guards.
type ProofContext struct {
	JobID      string
	Current    models.Stage
	Completed  bool
	AssignedTo string
	ActorID    string
	Notes      string
	Images     []string
}

// CanSubmitProof evaluates whether a proof may complete the job.
// Rules:
// - notes or images must be present (after NormalizeProof)
// - caller must be the assigned driver
// - job must not be completed
// - job must be at offload
func CanSubmitProof(ctx ProofContext) GuardResult {
	if ctx.Notes == "" && len(ctx.Images) == 0 {
		return deny(ErrEmptyProof, "proof needs notes or at least one image")
	}

	if ctx.AssignedTo == "" || ctx.AssignedTo != ctx.ActorID {
		return deny(ErrForbidden, "only the assigned driver can submit proof for job %s", ctx.JobID)
	}

	if ctx.Completed {
		return deny(ErrJobAlreadyCompleted, "job %s is already done", ctx.JobID)
	}

	if ctx.Current != models.StageOffload {
		return deny(ErrInvalidTransition, "proof completes a job from offload, job %s is at %s", ctx.JobID, ctx.Current)
	}

	return allow()
}

// NormalizeProof trims notes and drops blank image references.
func NormalizeProof(notes string, images []string) (string, []string) {
	refs := make([]string, 0, len(images))
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			refs = append(refs, img)
		}
	}
	return strings.TrimSpace(notes), refs
}
