package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/tokengate/internal/credential"
	"github.com/congo-pay/tokengate/internal/logging"
	"github.com/congo-pay/tokengate/internal/token"
)

func newTestGateway(t *testing.T, now *time.Time) (*Gateway, *token.Codec) {
	t.Helper()
	store, err := credential.NewService(credential.NewMemoryRepository(), bcrypt.MinCost)
	require.NoError(t, err)
	codec, err := token.NewCodec("shhh", token.WithClock(func() time.Time { return *now }))
	require.NoError(t, err)
	return NewGateway(store, codec, logging.Discard()), codec
}

func TestRegisterTwice(t *testing.T) {
	now := time.Now()
	gw, _ := newTestGateway(t, &now)
	ctx := context.Background()

	require.NoError(t, gw.Register(ctx, "alice", "pw"))
	err := gw.Register(ctx, "alice", "pw")
	require.ErrorIs(t, err, ErrDuplicateIdentity)
	require.Equal(t, http.StatusBadRequest, StatusFor(err))
}

func TestRegisterMissingFields(t *testing.T) {
	now := time.Now()
	gw, _ := newTestGateway(t, &now)

	for _, tc := range []struct{ identity, secret string }{{"", "pw"}, {"alice", ""}, {"", ""}} {
		err := gw.Register(context.Background(), tc.identity, tc.secret)
		require.ErrorIs(t, err, ErrValidation)
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	gw, codec := newTestGateway(t, &now)
	ctx := context.Background()
	require.NoError(t, gw.Register(ctx, "alice", "pw"))

	signed, err := gw.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	claims, err := codec.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Identity)
	assert.Equal(t, now.Add(token.DefaultTTL).Unix(), claims.Expiry().Unix())

	wrong, err := token.NewCodec("not-shhh", token.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	_, err = wrong.Verify(signed)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestLoginFailures(t *testing.T) {
	now := time.Now()
	gw, _ := newTestGateway(t, &now)
	ctx := context.Background()
	require.NoError(t, gw.Register(ctx, "alice", "pw"))

	_, err := gw.Login(ctx, "alice", "bad")
	require.ErrorIs(t, err, ErrAuthentication)
	require.Equal(t, http.StatusUnauthorized, StatusFor(err))

	_, err = gw.Login(ctx, "foo", "bar")
	require.ErrorIs(t, err, ErrAuthentication)

	_, err = gw.Login(ctx, "", "")
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, http.StatusBadRequest, StatusFor(err))
}

func TestRefreshExtendsExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	gw, codec := newTestGateway(t, &now)
	ctx := context.Background()
	require.NoError(t, gw.Register(ctx, "alice", "pw"))

	first, err := gw.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	now = now.Add(time.Second)
	second, err := gw.Refresh("alice")
	require.NoError(t, err)

	c1, err := codec.Verify(first)
	require.NoError(t, err)
	c2, err := codec.Verify(second)
	require.NoError(t, err)
	assert.Equal(t, c1.Identity, c2.Identity)
	assert.True(t, c2.Expiry().After(c1.Expiry()))

	_, err = gw.Refresh("")
	require.ErrorIs(t, err, ErrIdentityNotFound)
}

type unavailableStore struct{ credential.Store }

func (unavailableStore) Create(context.Context, string, string) error {
	return errors.New("dial tcp: connection refused")
}

func (unavailableStore) VerifySecret(context.Context, string, string) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}

func TestStoreFailuresAreInternal(t *testing.T) {
	codec, err := token.NewCodec("shhh")
	require.NoError(t, err)
	gw := NewGateway(unavailableStore{}, codec, nil)

	err = gw.Register(context.Background(), "alice", "pw")
	require.Equal(t, http.StatusInternalServerError, StatusFor(err))

	_, err = gw.Login(context.Background(), "alice", "pw")
	require.Equal(t, http.StatusInternalServerError, StatusFor(err))
}
