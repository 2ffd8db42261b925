package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

type identityKey struct{}

// Identity is the authenticated caller resolved by Auth.
type Identity struct {
	UserID uuid.UUID
	Role   enums.UserRole
	Email  string
}

func (i Identity) valid() bool { return i.UserID != uuid.Nil && i.Role.IsValid() }

// WithIdentity stores the caller for downstream handlers.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the caller seeded by Auth. ok is false when
// the context carries no usable identity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || !identity.valid() {
		return Identity{}, false
	}
	return identity, true
}

// RequireIdentity is IdentityFromContext for handlers: a missing caller is
// an UNAUTHORIZED error.
func RequireIdentity(ctx context.Context) (Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return identity, nil
}

// callerKey scopes per-caller redis keys; empty for anonymous requests.
func callerKey(ctx context.Context) string {
	if identity, ok := IdentityFromContext(ctx); ok {
		return identity.UserID.String()
	}
	return ""
}
