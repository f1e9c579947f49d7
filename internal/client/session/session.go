// Package session is the client's view of one logged-in user: it talks to the
// auth endpoints and keeps the issued token in the token store.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/congo-pay/tokengate/internal/client/authorizer"
	"github.com/congo-pay/tokengate/internal/client/config"
	"github.com/congo-pay/tokengate/internal/client/tokenstore"
	"github.com/congo-pay/tokengate/internal/logging"
)

// StatusError reports a non-200 answer, whether it came from the server or was
// synthesized locally by the authorizer.
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

// Session owns the token store for a single user. It is not meant to be shared
// between goroutines that log in as different users.
type Session struct {
	cfg    config.Config
	store  *tokenstore.Store
	client *http.Client
	logger *slog.Logger
}

// New builds a Session. base is the transport below the authorizer; nil uses
// http.DefaultTransport.
func New(cfg config.Config, store *tokenstore.Store, base http.RoundTripper, logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Session{
		cfg:   cfg,
		store: store,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &authorizer.Transport{
				Base:         base,
				Interceptors: []authorizer.Interceptor{authorizer.NewBearer(store, cfg.BearerPrefix)},
			},
		},
		logger: logging.Component(logger, "session"),
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates the account. It does not log in.
func (s *Session) Register(ctx context.Context, username, password string) error {
	_, err := s.postCredentials(ctx, "register", s.cfg.RegisterPath, username, password)
	return err
}

// LogIn exchanges credentials for a token and stores it.
func (s *Session) LogIn(ctx context.Context, username, password string) error {
	tok, err := s.postCredentials(ctx, "login", s.cfg.LoginPath, username, password)
	if err != nil {
		return err
	}
	if err := s.store.Set(tok); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	s.logger.Debug("logged in", slog.String("username", username))
	return nil
}

// Refresh trades the stored token for a fresh one. Without a usable token the
// request never leaves the process and a 401 StatusError is returned.
func (s *Session) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(authorizer.WithBearer(ctx), http.MethodPost, s.url(s.cfg.RefreshPath), http.NoBody)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	tok, err := s.roundTrip("refresh", req)
	if err != nil {
		return err
	}
	if err := s.store.Set(tok); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// LogOut forgets the stored token. The server keeps no session state.
func (s *Session) LogOut() error {
	return s.store.Remove()
}

func (s *Session) IsLoggedIn() bool {
	return s.store.IsValid()
}

func (s *Session) Token() (string, bool) {
	return s.store.Get()
}

// Do sends req through the authorizer chain. Mark the request with
// authorizer.MarkBearer to have the token attached.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	return s.client.Do(req)
}

// Get fetches path relative to the base URL and returns the body of a 200.
func (s *Session) Get(ctx context.Context, path string, authorized bool) ([]byte, error) {
	if authorized {
		ctx = authorizer.WithBearer(ctx)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url(path), nil)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	body, err := s.roundTrip("get "+path, req)
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (s *Session) postCredentials(ctx context.Context, op, path, username, password string) (string, error) {
	payload, err := json.Marshal(credentials{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url(path), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.roundTrip(op, req)
}

func (s *Session) roundTrip(op string, req *http.Request) (string, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		s.logger.Debug("request rejected", slog.String("op", op), slog.Int("status", resp.StatusCode))
		return "", &StatusError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return string(body), nil
}

func (s *Session) url(path string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + path
}
