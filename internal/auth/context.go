package auth

import (
	"context"

	"storefront/internal/models"
)

type contextKey struct{}

var userKey contextKey

// withUser attaches the authenticated identity to the request context.
// The identity lives no longer than the request.
func withUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the identity attached by RequireAuth.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok
}
