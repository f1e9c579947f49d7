// Package tokenstore owns the client's single persisted token.
package tokenstore

import (
	"time"

	"github.com/congo-pay/tokengate/internal/token"
)

const (
	// DefaultKey is the slot name the token lives under.
	DefaultKey = "jsonwebtoken"
	// DefaultSafetyMargin keeps a token from being used when it would likely
	// expire before the server checks it.
	DefaultSafetyMargin = 60 * time.Second
)

// Store reads and writes the token slot. It makes no network calls.
type Store struct {
	slot   Slot
	key    string
	margin time.Duration
	now    func() time.Time
}

// Option customises a Store.
type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

func WithSafetyMargin(margin time.Duration) Option {
	return func(s *Store) { s.margin = margin }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store over slot.
func New(slot Slot, opts ...Option) *Store {
	s := &Store{slot: slot, key: DefaultKey, margin: DefaultSafetyMargin, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the stored token. A slot read error is reported as no token.
func (s *Store) Get() (string, bool) {
	v, ok, err := s.slot.Load(s.key)
	if err != nil || !ok || v == "" {
		return "", false
	}
	return v, true
}

func (s *Store) Set(tok string) error {
	return s.slot.Save(s.key, tok)
}

func (s *Store) Remove() error {
	return s.slot.Delete(s.key)
}

// Expiry decodes the exp claim of the stored token without verifying it.
func (s *Store) Expiry() (time.Time, bool) {
	tok, ok := s.Get()
	if !ok {
		return time.Time{}, false
	}
	claims, err := token.DecodeUnverified(tok)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.Expiry(), true
}

// IsValid reports whether a token is stored and expires more than the safety
// margin from now. It fails closed on any decode problem.
func (s *Store) IsValid() bool {
	exp, ok := s.Expiry()
	if !ok {
		return false
	}
	return exp.Sub(s.now()) > s.margin
}
