package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasherBcrypt(t *testing.T) {
	h, err := NewHasher(WithBcryptCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	digest, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(digest, "$2a$") || !LooksHashed(digest) {
		t.Fatalf("unexpected digest %q", digest)
	}
	if !h.Verify("secret123", digest) {
		t.Fatalf("expected password to verify")
	}
	if h.Verify("wrong", digest) {
		t.Fatalf("wrong password verified")
	}
	if h.Verify("secret123", "secret123") {
		t.Fatalf("plaintext stored value must not verify as a digest")
	}
}

func TestHasherArgon2id(t *testing.T) {
	h, err := NewHasher(WithAlgorithm(AlgorithmArgon2id))
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	digest, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=19$") || !LooksHashed(digest) {
		t.Fatalf("unexpected digest %q", digest)
	}
	if !h.Verify("secret123", digest) || h.Verify("secret124", digest) {
		t.Fatalf("argon2id verification mismatch")
	}

	bcryptHasher, _ := NewHasher(WithBcryptCost(bcrypt.MinCost))
	if !bcryptHasher.Verify("secret123", digest) {
		t.Fatalf("bcrypt-configured hasher should still verify argon2id digests")
	}
	if h.Verify("secret123", "$argon2id$v=19$broken") {
		t.Fatalf("malformed digest verified")
	}
}

func TestHasherLongPasswordUsesArgon2id(t *testing.T) {
	h, err := NewHasher(WithBcryptCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	long := strings.Repeat("p", 100)
	digest, err := h.Hash(long)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Fatalf("expected argon2id digest, got %q", digest)
	}
	if !h.Verify(long, digest) || h.Verify(long[:72], digest) {
		t.Fatalf("long password verification mismatch")
	}
}

func TestHasherOptionsValidate(t *testing.T) {
	if _, err := NewHasher(WithBcryptCost(100)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for cost, got %v", err)
	}
	if _, err := NewHasher(WithAlgorithm("md5")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for algorithm, got %v", err)
	}
}

func TestLooksHashed(t *testing.T) {
	cases := map[string]bool{
		"$2a$10$abc":        true,
		"$2b$12$abc":        true,
		"$2y$10$abc":        true,
		"$argon2id$v=19$x":  true,
		"admin123":          false,
		"":                  false,
		"$argon2i$v=19$m=1": false,
	}
	for in, want := range cases {
		if got := LooksHashed(in); got != want {
			t.Errorf("LooksHashed(%q) = %v, want %v", in, got, want)
		}
	}
}
