package credential

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no credential exists for an identity.
	ErrNotFound = errors.New("credential not found")
	// ErrDuplicate is returned by Create when the identity is already taken.
	ErrDuplicate = errors.New("identity already exists")
)

// Credential is a registered identity with its hashed secret. It is never
// mutated after creation.
type Credential struct {
	ID         string
	Identity   string
	SecretHash []byte
	CreatedAt  time.Time
}
