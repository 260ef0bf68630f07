package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTokenTTL   = time.Hour
	MinSigningKeySize = 32
	clockSkew         = 5 * time.Second
)

var (
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrWeakSigningKey = fmt.Errorf("%w: signing key must be at least %d bytes", ErrInvalidInput, MinSigningKeySize)
)

// Claims is the token payload: the registered claims plus role and
// permission names, the user id and the email.
type Claims struct {
	Roles       ClaimList   `json:"roles"`
	Permissions ClaimList   `json:"permissions"`
	UserID      ClaimString `json:"userId,omitempty"`
	Email       ClaimString `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ClaimList decodes a JSON array of names. Missing, null or wrong-shaped
// values decode to an empty list instead of failing the whole token.
type ClaimList []string

func (l *ClaimList) UnmarshalJSON(data []byte) error {
	*l = nil
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make(ClaimList, 0, len(items))
	for _, item := range items {
		if s, ok := scalarString(item); ok && s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// ClaimString decodes an optional scalar claim. Non-scalar values decode
// to the empty string.
type ClaimString string

func (s *ClaimString) UnmarshalJSON(data []byte) error {
	*s = ""
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	if v, ok := scalarString(raw); ok {
		*s = ClaimString(v)
	}
	return nil
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// TokenCodec signs claims and parses them back, verifying signature and
// expiry.
type TokenCodec interface {
	Sign(claims *Claims) (string, error)
	Parse(token string) (*Claims, error)
}

// HMACCodec is an HS256 TokenCodec. The key is read-only after construction.
type HMACCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

type CodecOption func(*HMACCodec)

// WithCodecIssuer stamps iss on signed tokens and requires it on parse.
func WithCodecIssuer(issuer string) CodecOption {
	return func(c *HMACCodec) { c.issuer = strings.TrimSpace(issuer) }
}

func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *HMACCodec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewHMACCodec(secret []byte, opts ...CodecOption) (*HMACCodec, error) {
	if len(secret) < MinSigningKeySize {
		return nil, ErrWeakSigningKey
	}
	c := &HMACCodec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *HMACCodec) Sign(claims *Claims) (string, error) {
	if claims == nil {
		return "", nullValue("claims")
	}
	if c.issuer != "" && claims.Issuer == "" {
		claims.Issuer = c.issuer
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (c *HMACCodec) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignedToken is the result of a successful login.
type SignedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenIssuer turns a verified user into a signed, time-bounded token.
// No server-side state is kept.
type TokenIssuer struct {
	codec TokenCodec
	ttl   time.Duration
	now   func() time.Time
}

type IssuerOption func(*TokenIssuer) error

func WithTokenTTL(ttl time.Duration) IssuerOption {
	return func(i *TokenIssuer) error {
		if ttl <= 0 {
			return fmt.Errorf("%w: token ttl must be positive", ErrInvalidInput)
		}
		i.ttl = ttl
		return nil
	}
}

func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *TokenIssuer) error {
		if now == nil {
			return errors.New("clock function cannot be nil")
		}
		i.now = now
		return nil
	}
}

func NewTokenIssuer(codec TokenCodec, opts ...IssuerOption) (*TokenIssuer, error) {
	if codec == nil {
		return nil, errors.New("token codec is required")
	}
	i := &TokenIssuer{codec: codec, ttl: DefaultTokenTTL, now: time.Now}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for u. Subject is the email; roles and distinct
// permission names are derived from the user's role set.
func (i *TokenIssuer) Issue(u *User) (SignedToken, error) {
	if u == nil {
		return SignedToken{}, nullValue("user")
	}
	now := i.now().UTC()
	exp := jwt.NewNumericDate(now.Add(i.ttl))
	email := u.Email().String()
	claims := &Claims{
		Roles:       ClaimList(u.RoleNames()),
		Permissions: ClaimList(u.PermissionNames()),
		UserID:      ClaimString(u.ID().String()),
		Email:       ClaimString(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}
	if claims.Roles == nil {
		claims.Roles = ClaimList{}
	}
	if claims.Permissions == nil {
		claims.Permissions = ClaimList{}
	}
	token, err := i.codec.Sign(claims)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: token, ExpiresAt: exp.Time}, nil
}
