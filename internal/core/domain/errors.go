package domain

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInput marks a malformed or empty required field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks an unknown or tombstoned resource id.
	ErrNotFound = errors.New("resource not found")
	// ErrVersionConflict marks a stale expected_version; the client must
	// re-read and retry.
	ErrVersionConflict = errors.New("version conflict")
	// ErrHostRejected marks a declared host outside the allowlist.
	ErrHostRejected = errors.New("host rejected")
)

// ValidateTitle enforces the non-empty title rule shared by every store
// backend.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrInvalidInput
	}
	return nil
}
