package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Store is what the auth gateway and guard need from credential storage.
type Store interface {
	FindByIdentity(ctx context.Context, identity string) (Credential, error)
	Create(ctx context.Context, identity, secret string) error
	VerifySecret(ctx context.Context, identity, secret string) (bool, error)
}

// Service hashes secrets with bcrypt on top of a Repository.
type Service struct {
	repo      Repository
	cost      int
	dummyHash []byte
	now       func() time.Time
}

// NewService creates a credential service. A cost of 0 selects bcrypt.DefaultCost.
func NewService(repo Repository, cost int) (*Service, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("tokengate-dummy-secret"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Service{repo: repo, cost: cost, dummyHash: dummy, now: time.Now}, nil
}

// FindByIdentity returns the stored credential or ErrNotFound.
func (s *Service) FindByIdentity(ctx context.Context, identity string) (Credential, error) {
	if identity == "" {
		return Credential{}, ErrNotFound
	}
	return s.repo.FindByIdentity(ctx, identity)
}

// Create hashes secret and stores a new credential.
func (s *Service) Create(ctx context.Context, identity, secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}
	cred := Credential{
		ID:         uuid.New().String(),
		Identity:   identity,
		SecretHash: hash,
		CreatedAt:  s.now().UTC(),
	}
	return s.repo.Create(ctx, cred)
}

// VerifySecret reports whether secret matches the stored hash. Unknown
// identities still pay for a bcrypt comparison so that timing does not reveal
// which identities exist.
func (s *Service) VerifySecret(ctx context.Context, identity, secret string) (bool, error) {
	cred, err := s.FindByIdentity(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(secret))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := bcrypt.CompareHashAndPassword(cred.SecretHash, []byte(secret)); err != nil {
		return false, nil
	}
	return true, nil
}
