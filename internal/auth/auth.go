package auth

import (
	"context"
	"fmt"

	"github.com/commitlabs/commitment-service/internal/types"
)

// Provider authorizes the ambient caller as a given principal. Every
// mutating operation in the ledger, registry and compliance components
// runs its authorization checks through a Provider before touching state.
type Provider interface {
	RequireAuth(ctx context.Context, principal string) error
}

type callerKey struct{}

// WithCaller attaches the authenticated caller identity to the context.
// The API layer resolves the identity; domain components only ever read it.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller identity attached to ctx, if any.
func CallerFrom(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(callerKey{}).(string)
	return caller, ok
}

// CallerProvider authorizes a principal iff the ambient caller identity
// matches it exactly.
type CallerProvider struct{}

func NewCallerProvider() *CallerProvider {
	return &CallerProvider{}
}

func (p *CallerProvider) RequireAuth(ctx context.Context, principal string) error {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return fmt.Errorf("%w: no caller identity", types.ErrUnauthorized)
	}
	if caller != principal {
		return fmt.Errorf("%w: caller %q is not %q", types.ErrUnauthorized, caller, principal)
	}
	return nil
}
