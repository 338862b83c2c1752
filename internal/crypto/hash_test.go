package crypto

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword() unexpected error: %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("HashPassword() expected 6 parts, got %d: %q", len(parts), hash)
	}
	if parts[1] != "argon2id" {
		t.Errorf("algorithm = %q, want argon2id", parts[1])
	}
	if parts[2] != "v=19" {
		t.Errorf("version = %q, want v=19", parts[2])
	}
	if parts[3] != "m=65536,t=3,p=2" {
		t.Errorf("params = %q, want m=65536,t=3,p=2", parts[3])
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword() unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"correct", "secret1", true},
		{"wrong", "secret2", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyPassword(tt.password, hash)
			if err != nil {
				t.Fatalf("VerifyPassword() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyPasswordUsesStoredParams(t *testing.T) {
	saved := DefaultHashParams
	DefaultHashParams = HashParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}
	hash, err := HashPassword("pw")
	DefaultHashParams = saved
	if err != nil {
		t.Fatalf("HashPassword() unexpected error: %v", err)
	}

	ok, err := VerifyPassword("pw", hash)
	if err != nil || !ok {
		t.Fatalf("VerifyPassword() = %v, %v; want true, nil", ok, err)
	}
}

func TestHashPasswordSalted(t *testing.T) {
	h1, _ := HashPassword("same-password")
	h2, _ := HashPassword("same-password")
	if h1 == h2 {
		t.Error("HashPassword() produced identical hashes for the same password")
	}
}

func TestVerifyPasswordInvalidHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
		want error
	}{
		{"garbage", "invalid-hash-format", ErrInvalidHashFormat},
		{"wrong algorithm", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", ErrInvalidHashFormat},
		{"wrong version", "$argon2id$v=16$m=1,t=1,p=1$c2FsdA$aGFzaA", ErrIncompatibleVersion},
		{"bad params", "$argon2id$v=19$m=x$c2FsdA$aGFzaA", ErrInvalidHashFormat},
		{"bad salt", "$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA", ErrInvalidHashFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyPassword("password", tt.hash)
			if err != tt.want {
				t.Errorf("VerifyPassword() error = %v, want %v", err, tt.want)
			}
		})
	}
}
