package auth

import (
	"context"

	"github.com/dukerupert/preppr/internal/apperr"
)

type contextKey struct{}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID int64
	Role   Role
}

// State tags the outcome of the authentication gate.
type State uint8

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	default:
		return "anonymous"
	}
}

// Result is what the gate decided for a request. Principal is only meaningful
// when State is StateAuthenticated; Reason only when StateRejected.
type Result struct {
	State     State
	Principal Principal
	Reason    error
}

func Authenticated(p Principal) Result {
	return Result{State: StateAuthenticated, Principal: p}
}

func Anonymous() Result {
	return Result{State: StateAnonymous}
}

func Rejected(reason error) Result {
	return Result{State: StateRejected, Reason: reason}
}

func WithResult(ctx context.Context, r Result) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

// WithPrincipal is shorthand for storing an authenticated result.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return WithResult(ctx, Authenticated(p))
}

// FromContext returns the gate result. A context the gate never saw is
// anonymous.
func FromContext(ctx context.Context) Result {
	r, ok := ctx.Value(contextKey{}).(Result)
	if !ok {
		return Anonymous()
	}
	return r
}

// Require returns the principal or an Unauthenticated error. Every protected
// handler goes through here because the gate itself lets requests through.
func Require(ctx context.Context) (Principal, error) {
	r := FromContext(ctx)
	switch r.State {
	case StateAuthenticated:
		return r.Principal, nil
	case StateRejected:
		return Principal{}, apperr.Unauthenticated("session is invalid or expired")
	default:
		return Principal{}, apperr.Unauthenticated("authentication required")
	}
}

// RequireCapability is Require plus a role check.
func RequireCapability(ctx context.Context, c Capability) (Principal, error) {
	p, err := Require(ctx)
	if err != nil {
		return Principal{}, err
	}
	if !p.Role.Can(c) {
		return Principal{}, apperr.Forbidden("insufficient role")
	}
	return p, nil
}
