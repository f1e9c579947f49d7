package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/congo-pay/tokengate/internal/credential"
	"github.com/congo-pay/tokengate/internal/logging"
	"github.com/congo-pay/tokengate/internal/token"
)

// Gateway registers credentials and issues tokens. It holds no per-request
// state; signing is a pure computation over the shared codec.
type Gateway struct {
	store  credential.Store
	codec  *token.Codec
	logger *slog.Logger
}

// NewGateway wires a Gateway to its credential store and codec.
func NewGateway(store credential.Store, codec *token.Codec, logger *slog.Logger) *Gateway {
	return &Gateway{store: store, codec: codec, logger: logging.Component(logger, "auth")}
}

// Register creates a credential for identity.
func (g *Gateway) Register(ctx context.Context, identity, secret string) error {
	if identity == "" || secret == "" {
		return fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if err := g.store.Create(ctx, identity, secret); err != nil {
		if errors.Is(err, credential.ErrDuplicate) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("create credential: %w", err)
	}
	g.logger.InfoContext(ctx, "credential registered", slog.String("identity", identity))
	return nil
}

// Login verifies the secret and issues a token embedding only the identity.
func (g *Gateway) Login(ctx context.Context, identity, secret string) (string, error) {
	if identity == "" || secret == "" {
		return "", fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	ok, err := g.store.VerifySecret(ctx, identity, secret)
	if err != nil {
		return "", fmt.Errorf("verify secret: %w", err)
	}
	if !ok {
		g.logger.WarnContext(ctx, "login rejected", slog.String("identity", identity))
		return "", ErrAuthentication
	}
	return g.codec.Sign(identity)
}

// Refresh issues a token with a fresh expiry for an identity the guard has
// already confirmed. The secret is not re-checked; the still-valid token is
// the proof of possession.
func (g *Gateway) Refresh(identity string) (string, error) {
	if identity == "" {
		return "", ErrIdentityNotFound
	}
	return g.codec.Sign(identity)
}
