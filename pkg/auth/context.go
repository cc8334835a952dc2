package auth

import (
	"context"

	"github.com/hatchmark/hatchmark/pkg/ledger"
)

// Context keys for authentication data
type contextKey string

const (
	// ContextKeyActor is the context key for the authenticated actor address
	ContextKeyActor contextKey = "actor"
)

// WithActor adds the actor address to the context
func WithActor(ctx context.Context, addr ledger.Address) context.Context {
	return context.WithValue(ctx, ContextKeyActor, addr)
}

// ActorFromContext retrieves the actor address from the context
func ActorFromContext(ctx context.Context) (ledger.Address, bool) {
	addr, ok := ctx.Value(ContextKeyActor).(ledger.Address)
	return addr, ok
}
