package auth

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// APIKey is the metadata of a long-lived key for machine clients. The key
// itself is shown once at creation and only its hash is kept.
type APIKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	LastUsed  time.Time `json:"lastUsed,omitzero"`
	Revoked   bool      `json:"revoked"`
	keyHash   string
}

// APIKeyStore holds API keys in memory. It implements the same
// ValidateToken method as JWTManager.
type APIKeyStore struct {
	mu         sync.RWMutex
	keys       map[string]*APIKey // id -> key
	hashToKey  map[string]string  // hash -> id
	hmacSecret []byte
	now        func() time.Time
}

// NewAPIKeyStore creates a store. Keys only survive a restart if the same
// secret is used again.
func NewAPIKeyStore(secret []byte) (*APIKeyStore, error) {
	if len(secret) < 32 {
		return nil, ErrShortKeySecret
	}
	return &APIKeyStore{
		keys:       make(map[string]*APIKey),
		hashToKey:  make(map[string]string),
		hmacSecret: secret,
		now:        time.Now,
	}, nil
}

// CreateKey issues a key with the given role. expiresIn of zero never
// expires. The returned string is the only copy of the key.
func (s *APIKeyStore) CreateKey(name, role string, expiresIn time.Duration) (APIKey, string, error) {
	if err := validateCreateKeyInput(name, role); err != nil {
		return APIKey{}, "", err
	}
	key, err := generateAPIKey()
	if err != nil {
		return APIKey{}, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	k := &APIKey{
		ID:        "key_" + uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Role:      role,
		CreatedAt: now,
		keyHash:   s.hashAPIKey(key),
	}
	if expiresIn > 0 {
		k.ExpiresAt = now.Add(expiresIn)
	}
	s.keys[k.ID] = k
	s.hashToKey[k.keyHash] = k.ID
	return *k, key, nil
}

// List returns every key, oldest first
func (s *APIKeyStore) List() []APIKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]APIKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, *k)
	}
	slices.SortFunc(out, func(a, b APIKey) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Get returns the key with id
func (s *APIKeyStore) Get(id string) (APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[id]
	if !ok {
		return APIKey{}, ErrAPIKeyNotFound
	}
	return *k, nil
}

// Revoke disables a key. Revoked keys stay listed.
func (s *APIKeyStore) Revoke(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return ErrAPIKeyNotFound
	}
	k.Revoked = true
	return nil
}

// ValidateKey checks key and records its use
func (s *APIKeyStore) ValidateKey(key string) (APIKey, error) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return APIKey{}, ErrInvalidToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.hashToKey[s.hashAPIKey(key)]
	if !ok {
		return APIKey{}, ErrAPIKeyNotFound
	}
	k := s.keys[id]
	if !s.compareKeyHash(key, k.keyHash) {
		return APIKey{}, ErrAPIKeyNotFound
	}
	if k.Revoked {
		return APIKey{}, ErrAPIKeyRevoked
	}
	now := s.now()
	if !k.ExpiresAt.IsZero() && now.After(k.ExpiresAt) {
		return APIKey{}, ErrAPIKeyExpired
	}
	k.LastUsed = now
	return *k, nil
}

// ValidateToken validates an API key presented as a bearer token
func (s *APIKeyStore) ValidateToken(_ context.Context, token string) (*Claims, error) {
	k, err := s.ValidateKey(token)
	if err != nil {
		return nil, err
	}
	return &Claims{
		Role: k.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:  Issuer,
			Subject: "apikey:" + k.Name,
			ID:      k.ID,
		},
	}, nil
}

// Name identifies the validator in logs
func (s *APIKeyStore) Name() string { return "apikey" }
