package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthenticated is returned when no actor is attached to the request.
var ErrUnauthenticated = errors.New("unauthenticated")

// Actor is the authenticated principal submitting a request. Every actor
// operates on behalf of exactly one company.
type Actor struct {
	UserID    string
	CompanyID string
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying the actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// FromContext extracts the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, error) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || a.CompanyID == "" {
		return Actor{}, ErrUnauthenticated
	}
	return a, nil
}
