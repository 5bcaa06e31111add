package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/emerald-details/internal/user"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID uuid.UUID
	Role   user.Role
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
