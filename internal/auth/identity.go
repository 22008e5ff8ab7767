package auth

import (
	"context"
	"time"

	"civilregistry/internal/models"
)

// Identity is the resolved acting user for one request.
type Identity struct {
	UserID    int64
	Username  string
	IsAdmin   bool
	IsActive  bool
	TokenID   string
	ExpiresAt time.Time
}

func NewIdentity(user models.User, claims *Claims) Identity {
	id := Identity{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		IsActive: user.IsActive,
	}
	if claims != nil {
		id.TokenID = claims.ID
		if claims.ExpiresAt != nil {
			id.ExpiresAt = claims.ExpiresAt.Time
		}
	}
	return id
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
