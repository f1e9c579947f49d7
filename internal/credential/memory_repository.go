package credential

import (
	"context"
	"sync"
)

// MemoryRepository is an in-process Repository used in development and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewMemoryRepository builds an empty in-memory credential store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{creds: make(map[string]Credential)}
}

func (r *MemoryRepository) Create(_ context.Context, cred Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.creds[cred.Identity]; exists {
		return ErrDuplicate
	}
	r.creds[cred.Identity] = cred
	return nil
}

func (r *MemoryRepository) FindByIdentity(_ context.Context, identity string) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.creds[identity]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

// Delete removes an identity. Account removal happens outside the auth flow;
// the method exists so operators and tests can simulate it.
func (r *MemoryRepository) Delete(_ context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.creds[identity]; !ok {
		return ErrNotFound
	}
	delete(r.creds, identity)
	return nil
}
