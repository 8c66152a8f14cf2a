package auth

import (
	"context"
	"errors"
	"strings"
)

// TokenValidator validates a bearer token and returns its claims
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
	// Name identifies the validator in logs
	Name() string
}

// ErrNoValidatorMatched is returned when no validator accepts the token
var ErrNoValidatorMatched = errors.New("no validator could validate the token")

// CompositeTokenValidator routes API keys to the key store and tries every
// other token against each remaining validator in order
type CompositeTokenValidator struct {
	keys       TokenValidator
	validators []TokenValidator
}

// NewCompositeTokenValidator combines validators. keys may be nil.
func NewCompositeTokenValidator(keys TokenValidator, validators ...TokenValidator) *CompositeTokenValidator {
	return &CompositeTokenValidator{keys: keys, validators: validators}
}

// ValidateToken returns the first successful result, or the last error
func (c *CompositeTokenValidator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if strings.HasPrefix(token, KeyPrefix) {
		if c.keys == nil {
			return nil, ErrInvalidToken
		}
		return c.keys.ValidateToken(ctx, token)
	}

	lastErr := ErrNoValidatorMatched
	for _, v := range c.validators {
		claims, err := v.ValidateToken(ctx, token)
		if err == nil {
			return claims, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Name returns "composite"
func (c *CompositeTokenValidator) Name() string {
	return "composite"
}
