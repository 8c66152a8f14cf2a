package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

const (
	// KeyPrefix marks API keys so they can be told apart from JWTs
	KeyPrefix       = "btk_"
	keyRandomLength = 32
)

// generateAPIKey returns a new random key string
func generateAPIKey() (string, error) {
	b := make([]byte, keyRandomLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// hashAPIKey is HMAC-SHA256 under the store secret
func (s *APIKeyStore) hashAPIKey(key string) string {
	mac := hmac.New(sha256.New, s.hmacSecret)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *APIKeyStore) compareKeyHash(key, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(s.hashAPIKey(key)), []byte(storedHash)) == 1
}
