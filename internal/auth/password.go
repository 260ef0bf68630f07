package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the one-way hashing port used by the credential service.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

const (
	argonMemory      = 64 * 1024
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLength   = 32
	argonSaltLength  = 16

	bcryptMaxInput = 72
)

var hashPrefixes = []string{"$2a$", "$2b$", "$2y$", "$argon2id$"}

// LooksHashed reports whether a stored password value has the shape of a
// digest this package produces or accepts.
func LooksHashed(stored string) bool {
	for _, prefix := range hashPrefixes {
		if strings.HasPrefix(stored, prefix) {
			return true
		}
	}
	return false
}

// Hasher hashes with bcrypt or argon2id and verifies digests of either kind.
type Hasher struct {
	algorithm string
	cost      int
}

type HasherOption func(*Hasher) error

// WithBcryptCost sets the bcrypt work factor.
func WithBcryptCost(cost int) HasherOption {
	return func(h *Hasher) error {
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return fmt.Errorf("%w: bcrypt cost %d out of range", ErrInvalidInput, cost)
		}
		h.cost = cost
		return nil
	}
}

// WithAlgorithm selects the algorithm used for new digests.
func WithAlgorithm(name string) HasherOption {
	return func(h *Hasher) error {
		switch name {
		case AlgorithmBcrypt, AlgorithmArgon2id:
			h.algorithm = name
			return nil
		default:
			return fmt.Errorf("%w: unknown password algorithm %q", ErrInvalidInput, name)
		}
	}
}

func NewHasher(opts ...HasherOption) (*Hasher, error) {
	h := &Hasher{algorithm: AlgorithmBcrypt, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("password is empty")
	}
	// bcrypt only reads 72 bytes; longer secrets get argon2id.
	if h.algorithm == AlgorithmArgon2id || len(plaintext) > bcryptMaxInput {
		return hashArgon2id(plaintext)
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

func (h *Hasher) Verify(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	if strings.HasPrefix(digest, "$argon2id$") {
		return verifyArgon2id(plaintext, digest)
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

func hashArgon2id(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory,
		argonIterations,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyArgon2id checks a "$argon2id$v=19$m=..,t=..,p=..$salt$hash" digest.
func verifyArgon2id(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var (
		memory, iterations uint32
		parallelism        uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
