package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the amount of randomness in a session token.
const TokenBytes = 32

// NewToken returns an opaque bearer token: 32 random bytes as 64 lowercase
// hex characters. Tokens carry no claims and never expire; the server maps
// them to users through the tokens table.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IsTokenFormat reports whether s looks like a token produced by NewToken.
// It lets the auth middleware reject garbage without a database round trip.
func IsTokenFormat(s string) bool {
	if len(s) != 2*TokenBytes {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// SecretEqual compares two shared secrets in constant time.
func SecretEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
