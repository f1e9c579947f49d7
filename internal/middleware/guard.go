package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokengate/internal/credential"
	"github.com/congo-pay/tokengate/internal/logging"
	"github.com/congo-pay/tokengate/internal/token"
)

// GuardState is a step of the token guard pipeline. A request moves
// Unverified -> SignatureChecked -> IdentityConfirmed -> Authorized, or stops
// in one of the two rejected states.
type GuardState int

const (
	StateUnverified GuardState = iota
	StateSignatureChecked
	StateIdentityConfirmed
	StateAuthorized
	StateSignatureRejected
	StateIdentityRejected
)

func (s GuardState) String() string {
	switch s {
	case StateUnverified:
		return "unverified"
	case StateSignatureChecked:
		return "signature_checked"
	case StateIdentityConfirmed:
		return "identity_confirmed"
	case StateAuthorized:
		return "authorized"
	case StateSignatureRejected:
		return "signature_rejected"
	case StateIdentityRejected:
		return "identity_rejected"
	default:
		return "unknown"
	}
}

// Status is the HTTP status a terminal state answers with.
func (s GuardState) Status() int {
	switch s {
	case StateAuthorized:
		return http.StatusOK
	case StateIdentityRejected:
		return http.StatusBadRequest
	default:
		return http.StatusUnauthorized
	}
}

// IdentityLookup is the read side of the credential store.
type IdentityLookup interface {
	FindByIdentity(ctx context.Context, identity string) (credential.Credential, error)
}

// TokenGuard validates bearer tokens and re-confirms on every request that
// the identity they carry still exists.
type TokenGuard struct {
	codec  *token.Codec
	store  IdentityLookup
	prefix string
	logger *slog.Logger
}

// NewTokenGuard builds a guard. An empty prefix selects "Bearer ".
func NewTokenGuard(codec *token.Codec, store IdentityLookup, prefix string, logger *slog.Logger) *TokenGuard {
	if prefix == "" {
		prefix = "Bearer "
	}
	return &TokenGuard{codec: codec, store: store, prefix: prefix, logger: logging.Component(logger, "guard")}
}

// Evaluate runs both stages against a raw Authorization header value and
// returns the terminal state plus the decoded identity, if any.
func (g *TokenGuard) Evaluate(ctx context.Context, header string) (GuardState, string) {
	raw, ok := bearerToken(header, g.prefix)
	if !ok {
		g.logger.DebugContext(ctx, "token rejected", slog.String("reason", "missing bearer token"))
		return StateSignatureRejected, ""
	}
	claims, err := g.codec.Verify(raw)
	if err != nil {
		g.logger.DebugContext(ctx, "token rejected", slog.Any("error", err))
		return StateSignatureRejected, ""
	}

	// StateSignatureChecked: the identity claim is now trusted as issued by us.
	identity := claims.Identity
	if _, err := g.store.FindByIdentity(ctx, identity); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			g.logger.WarnContext(ctx, "token names unknown identity", slog.String("identity", identity))
		} else {
			g.logger.ErrorContext(ctx, "identity lookup failed", slog.String("identity", identity), slog.Any("error", err))
		}
		return StateIdentityRejected, identity
	}

	// StateIdentityConfirmed has no further checks.
	return StateAuthorized, identity
}

// Handler is the fiber middleware protecting a route or group.
func (g *TokenGuard) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		state, identity := g.Evaluate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if state != StateAuthorized {
			return fiber.NewError(state.Status())
		}
		c.Locals(identityLocalsKey, identity)
		c.SetUserContext(WithIdentity(c.UserContext(), identity))
		return c.Next()
	}
}

func bearerToken(header, prefix string) (string, bool) {
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	if raw == "" {
		return "", false
	}
	return raw, true
}
