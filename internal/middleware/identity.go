package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const identityLocalsKey = "identity"

type identityContextKey struct{}

// WithIdentity attaches a verified identity to ctx.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the identity attached by the token guard.
func IdentityFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	identity, ok := ctx.Value(identityContextKey{}).(string)
	return identity, ok && identity != ""
}

// IdentityFrom reads the identity the token guard stored on the request.
func IdentityFrom(c *fiber.Ctx) (string, bool) {
	identity, ok := c.Locals(identityLocalsKey).(string)
	return identity, ok && identity != ""
}
