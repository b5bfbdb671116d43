package dispatch

import (
	"errors"
	"fmt"

	"container-dispatch/core/lifecycle"
)

// Lifecycle errors, shared with the pure guards.
var (
	ErrInvalidStage         = lifecycle.ErrInvalidStage
	ErrInvalidTransition    = lifecycle.ErrInvalidTransition
	ErrOutOfOrderTransition = lifecycle.ErrOutOfOrderTransition
	ErrEmptyProof           = lifecycle.ErrEmptyProof
	ErrInvalidAssignee      = lifecycle.ErrInvalidAssignee
	ErrForbidden            = lifecycle.ErrForbidden
	ErrJobAlreadyCompleted  = lifecycle.ErrJobAlreadyCompleted
)

var (
	ErrInvalidRange       = errors.New("invalid date range")
	ErrInvalidJob         = errors.New("invalid job")
	ErrDuplicateJobNumber = errors.New("duplicate job number")
	ErrJobNotFound        = errors.New("job not found")
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrInvalidUser     = errors.New("invalid user")
	ErrDuplicateUser   = errors.New("username or email already taken")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserInUse       = errors.New("user is referenced by completed jobs or safety forms")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrAddressNotFound = errors.New("address not found")

	ErrInvalidSafetyForm  = errors.New("invalid safety form")
	ErrSafetyFormNotFound = errors.New("safety form not found")
)

// storageErr marks an unexpected store failure
func storageErr(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrStorageUnavailable, err)
}
