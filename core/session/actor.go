// Package session carries the authenticated caller through a request.
// This package has no internal dependencies beyond models to avoid import cycles.
package session

import (
	"context"

	"container-dispatch/core/models"
)

// Actor is the authenticated caller of a core operation.
type Actor struct {
	UserID   string
	Username string
	Role     models.Role
}

// System is the actor used by CLI bootstrap commands.
var System = Actor{UserID: "system", Username: "system", Role: models.RoleAdmin}

// IsZero reports whether no caller has been resolved
func (a Actor) IsZero() bool {
	return a.UserID == ""
}

type actorKey struct{}

// WithActor returns a context with the actor embedded.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// FromContext returns the actor from context, or false if not set.
func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
