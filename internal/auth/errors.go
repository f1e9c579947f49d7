package auth

import (
	"errors"
	"net/http"
)

// Request failures are terminal; the caller only ever sees the status code.
var (
	// ErrValidation covers missing or malformed input.
	ErrValidation = errors.New("invalid request")
	// ErrAuthentication covers bad credentials and bad token signatures.
	ErrAuthentication = errors.New("authentication failed")
	// ErrIdentityNotFound means a correctly signed token names an unknown identity.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrDuplicateIdentity is a registration conflict.
	ErrDuplicateIdentity = errors.New("identity already registered")
)

// StatusFor maps an error from this package to its HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrIdentityNotFound),
		errors.Is(err, ErrDuplicateIdentity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
