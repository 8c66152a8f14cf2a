package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAPIKeyNotFound = errors.New("API key not found")
	ErrAPIKeyExpired  = errors.New("API key has expired")
	ErrAPIKeyRevoked  = errors.New("API key has been revoked")
	ErrEmptyKeyName   = errors.New("key name cannot be empty")
	ErrShortKeySecret = errors.New("HMAC secret must be at least 32 bytes")
)

const maxKeyNameLength = 100

func validateCreateKeyInput(name, role string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyKeyName
	}
	if len(name) > maxKeyNameLength {
		return fmt.Errorf("key name longer than %d characters", maxKeyNameLength)
	}
	if roleRank[role] == 0 {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return nil
}
