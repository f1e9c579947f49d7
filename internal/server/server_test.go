package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/tokengate/internal/config"
	"github.com/congo-pay/tokengate/internal/credential"
	"github.com/congo-pay/tokengate/internal/logging"
	"github.com/congo-pay/tokengate/internal/routes"
	"github.com/congo-pay/tokengate/internal/token"
)

const testSecret = "shhh"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	app   *fiber.App
	repo  *credential.MemoryRepository
	clock *clock
	codec *token.Codec
}

func testConfig() config.Config {
	return config.Config{
		AppName:        "tokengate-test",
		Env:            "test",
		JWTSecret:      testSecret,
		TokenTTL:       token.DefaultTTL,
		RegisterPath:   "/auth/register",
		LoginPath:      "/auth/login",
		RefreshPath:    "/auth/refresh",
		BearerPrefix:   "Bearer ",
		LoginRateLimit: 100,
		IdempotencyTTL: time.Hour,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	h := &harness{
		repo:  credential.NewMemoryRepository(),
		clock: &clock{t: time.Unix(1_700_000_000, 0)},
	}
	srv, err := NewWithDeps(routes.Deps{
		Cfg:         testConfig(),
		Cache:       cache,
		Logger:      logging.Discard(),
		Credentials: h.repo,
		BcryptCost:  bcrypt.MinCost,
		Clock:       h.clock.Now,
	})
	require.NoError(t, err)
	h.app = srv.App()

	h.codec, err = token.NewCodec(testSecret, token.WithClock(h.clock.Now))
	require.NoError(t, err)
	return h
}

func (h *harness) do(t *testing.T, method, path, body, bearer string) (int, string) {
	t.Helper()
	return h.doWithHeaders(t, method, path, body, bearer, nil)
}

func (h *harness) doWithHeaders(t *testing.T, method, path, body, bearer string, headers map[string]string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(payload)
}

func (h *harness) verify(t *testing.T, signed string) token.Claims {
	t.Helper()
	claims, err := h.codec.Verify(signed)
	require.NoError(t, err)
	return claims
}

func TestAliceScenario(t *testing.T) {
	h := newHarness(t)
	creds := `{"username":"alice","password":"pw"}`

	status, body := h.do(t, fiber.MethodPost, "/auth/register", creds, "")
	require.Equal(t, fiber.StatusOK, status)
	require.Empty(t, body)

	status, t1 := h.do(t, fiber.MethodPost, "/auth/login", creds, "")
	require.Equal(t, fiber.StatusOK, status)
	c1 := h.verify(t, t1)
	require.Equal(t, "alice", c1.Identity)

	h.clock.Advance(time.Second)

	status, t2 := h.do(t, fiber.MethodPost, "/auth/refresh", "", t1)
	require.Equal(t, fiber.StatusOK, status)
	c2 := h.verify(t, t2)
	require.Equal(t, "alice", c2.Identity)
	require.True(t, c2.Expiry().After(c1.Expiry()))

	status, body = h.do(t, fiber.MethodGet, "/me", "", t2)
	require.Equal(t, fiber.StatusOK, status)
	var me map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &me))
	require.Equal(t, "alice", me["username"])

	forger, err := token.NewCodec("bar", token.WithClock(h.clock.Now))
	require.NoError(t, err)
	forged, err := forger.Sign("alice")
	require.NoError(t, err)
	status, _ = h.do(t, fiber.MethodGet, "/me", "", forged)
	require.Equal(t, fiber.StatusUnauthorized, status)
}

func TestRegistration(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, fiber.MethodPost, "/auth/register", `{}`, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = h.do(t, fiber.MethodPost, "/auth/register", "", "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = h.do(t, fiber.MethodPost, "/auth/register", `{"username":"login","password":"pass"}`, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, body := h.do(t, fiber.MethodPost, "/auth/register", `{"username":"login","password":"pass"}`, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Bad Request", body)
}

func TestRegisterReplayIsBoundToTheBody(t *testing.T) {
	h := newHarness(t)
	key := map[string]string{"Idempotency-Key": "k1"}

	status, _ := h.doWithHeaders(t, fiber.MethodPost, "/auth/register", `{"username":"alice","password":"pw"}`, "", key)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = h.doWithHeaders(t, fiber.MethodPost, "/auth/register", `{"username":"bob","password":"pw"}`, "", key)
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	_, err := h.repo.FindByIdentity(context.Background(), "bob")
	require.ErrorIs(t, err, credential.ErrNotFound)

	status, _ = h.doWithHeaders(t, fiber.MethodPost, "/auth/register", `{"username":"alice","password":"pw"}`, "", key)
	require.Equal(t, fiber.StatusOK, status)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	status, _ := h.do(t, fiber.MethodPost, "/auth/register", `{"username":"login","password":"pass"}`, "")
	require.Equal(t, fiber.StatusOK, status)

	status, _ = h.do(t, fiber.MethodPost, "/auth/login", `{"username":"foo","password":"bar"}`, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = h.do(t, fiber.MethodPost, "/auth/login", `{"username":"login","password":"wrong"}`, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = h.do(t, fiber.MethodPost, "/auth/login", `{}`, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = h.do(t, fiber.MethodPost, "/auth/login", `{"username":`, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestRefreshRejectsUnknownIdentity(t *testing.T) {
	h := newHarness(t)

	ghost, err := h.codec.Sign("foo")
	require.NoError(t, err)
	status, _ := h.do(t, fiber.MethodPost, "/auth/refresh", "", ghost)
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = h.do(t, fiber.MethodPost, "/auth/refresh", "", "garbage")
	require.Equal(t, fiber.StatusUnauthorized, status)
}

func TestRefreshAfterAccountRemoval(t *testing.T) {
	h := newHarness(t)
	creds := `{"username":"alice","password":"pw"}`
	status, _ := h.do(t, fiber.MethodPost, "/auth/register", creds, "")
	require.Equal(t, fiber.StatusOK, status)
	status, signed := h.do(t, fiber.MethodPost, "/auth/login", creds, "")
	require.Equal(t, fiber.StatusOK, status)

	require.NoError(t, h.repo.Delete(context.Background(), "alice"))

	status, _ = h.do(t, fiber.MethodPost, "/auth/refresh", "", signed)
	require.Equal(t, fiber.StatusBadRequest, status)
	status, _ = h.do(t, fiber.MethodGet, "/me", "", signed)
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestProtectedRejectsEmptyIdentity(t *testing.T) {
	h := newHarness(t)

	empty, err := h.codec.Sign("")
	require.NoError(t, err)
	status, _ := h.do(t, fiber.MethodGet, "/me", "", empty)
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = h.do(t, fiber.MethodGet, "/me", "", "")
	require.Equal(t, fiber.StatusUnauthorized, status)
}

func TestExpiredTokenRejected(t *testing.T) {
	h := newHarness(t)
	creds := `{"username":"alice","password":"pw"}`
	h.do(t, fiber.MethodPost, "/auth/register", creds, "")
	_, signed := h.do(t, fiber.MethodPost, "/auth/login", creds, "")

	h.clock.Advance(token.DefaultTTL + time.Second)
	status, _ := h.do(t, fiber.MethodPost, "/auth/refresh", "", signed)
	require.Equal(t, fiber.StatusUnauthorized, status)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, fiber.MethodGet, "/healthz", "", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Contains(t, body, `"redis":"ok"`)
	require.Contains(t, body, `"postgres":"disabled"`)
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"

	_, err := NewWithDeps(routes.Deps{Cfg: cfg})
	require.Error(t, err)
}
