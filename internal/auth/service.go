package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/brunoSandoval210/authorization-service/internal/obs"
)

// Login outcomes reported to a LoginObserver. Callers only ever see
// ErrBadCredentials or ErrAccountDisabled.
const (
	OutcomeSuccess     = "success"
	OutcomeUnknownUser = "unknown_user"
	OutcomeNoPassword  = "no_password"
	OutcomeBadPassword = "bad_password"
	OutcomeDisabled    = "disabled"
	OutcomeError       = "error"
)

// LoginObserver receives login outcomes and credential migrations.
type LoginObserver interface {
	LoginAttempt(outcome string)
	PasswordMigrated()
}

type nopObserver struct{}

func (nopObserver) LoginAttempt(string) {}
func (nopObserver) PasswordMigrated()   {}

// CredentialService verifies logins and hands verified users to the
// token issuer.
type CredentialService struct {
	users    UserStore
	hasher   PasswordHasher
	issuer   *TokenIssuer
	logger   *zap.Logger
	observer LoginObserver
}

type CredentialOption func(*CredentialService)

func WithLogger(logger *zap.Logger) CredentialOption {
	return func(s *CredentialService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithLoginObserver(o LoginObserver) CredentialOption {
	return func(s *CredentialService) {
		if o != nil {
			s.observer = o
		}
	}
}

func NewCredentialService(users UserStore, hasher PasswordHasher, issuer *TokenIssuer, opts ...CredentialOption) (*CredentialService, error) {
	if users == nil || hasher == nil || issuer == nil {
		return nil, errors.New("credential service requires a user store, a hasher and a token issuer")
	}
	s := &CredentialService{
		users:    users,
		hasher:   hasher,
		issuer:   issuer,
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login verifies email and password and returns a signed token.
//
// A stored value that is not hash-shaped and equals the submitted
// plaintext exactly is a legacy credential: it is hashed and written back
// once, and the attempt counts as verified.
func (s *CredentialService) Login(ctx context.Context, email, password string) (SignedToken, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return s.reject(OutcomeUnknownUser, email, ErrBadCredentials)
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return s.reject(OutcomeUnknownUser, email, ErrBadCredentials)
	}
	if err != nil {
		s.observer.LoginAttempt(OutcomeError)
		return SignedToken{}, fmt.Errorf("load user: %w", err)
	}

	stored, ok := user.Password()
	if !ok {
		return s.reject(OutcomeNoPassword, email, ErrBadCredentials)
	}

	verified := s.hasher.Verify(password, stored)
	if !verified && isLegacyPlaintext(stored, password) {
		user, verified, err = s.migrate(ctx, user, stored, password)
		if err != nil {
			s.observer.LoginAttempt(OutcomeError)
			return SignedToken{}, err
		}
	}
	if !verified {
		return s.reject(OutcomeBadPassword, email, ErrBadCredentials)
	}
	if !user.IsEnabled() {
		return s.reject(OutcomeDisabled, email, ErrAccountDisabled)
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		s.observer.LoginAttempt(OutcomeError)
		return SignedToken{}, fmt.Errorf("issue token: %w", err)
	}
	s.observer.LoginAttempt(OutcomeSuccess)
	s.logger.Info("login succeeded",
		zap.String("user_id", user.ID().String()),
		zap.String("email", obs.MaskEmail(email)),
	)
	return token, nil
}

// migrate replaces a legacy plaintext password with a digest. The swap is
// conditional on the stored value, so concurrent first logins hash it once;
// a login that loses the race re-verifies against the winner's digest.
func (s *CredentialService) migrate(ctx context.Context, user *User, stored, password string) (*User, bool, error) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, false, fmt.Errorf("migrate password: %w", err)
	}
	err = s.users.ReplacePassword(ctx, user.ID(), stored, digest)
	switch {
	case err == nil:
		if err := user.ChangePassword(digest); err != nil {
			return nil, false, err
		}
		s.observer.PasswordMigrated()
		s.logger.Info("legacy password migrated", zap.String("user_id", user.ID().String()))
		return user, true, nil
	case errors.Is(err, ErrStalePassword):
		fresh, err := s.users.FindUserByID(ctx, user.ID())
		if err != nil {
			return nil, false, fmt.Errorf("reload user: %w", err)
		}
		current, ok := fresh.Password()
		return fresh, ok && s.hasher.Verify(password, current), nil
	default:
		return nil, false, fmt.Errorf("migrate password: %w", err)
	}
}

func (s *CredentialService) reject(outcome, email string, err error) (SignedToken, error) {
	s.observer.LoginAttempt(outcome)
	s.logger.Warn("login rejected",
		zap.String("reason", outcome),
		zap.String("email", obs.MaskEmail(email)),
	)
	return SignedToken{}, err
}

func isLegacyPlaintext(stored, submitted string) bool {
	if LooksHashed(stored) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}
