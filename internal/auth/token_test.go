package auth

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newTestCodec(t *testing.T, now time.Time, opts ...CodecOption) *HMACCodec {
	t.Helper()
	codec, err := NewHMACCodec(testSecret, append([]CodecOption{WithCodecClock(fixedClock(now))}, opts...)...)
	if err != nil {
		t.Fatalf("NewHMACCodec: %v", err)
	}
	return codec
}

func userWithAuthorities(t *testing.T) *User {
	t.Helper()
	read := mustPermission(t, "READ")
	admin := mustRole(t, "ADMIN", read)
	user := mustUser(t, "john@x.com", "digest")
	if err := user.AddRole(admin); err != nil {
		t.Fatal(err)
	}
	return user
}

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, now, WithCodecIssuer("authorization-service"))
	issuer, err := NewTokenIssuer(codec, WithTokenTTL(30*time.Minute), WithIssuerClock(fixedClock(now)))
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	user := userWithAuthorities(t)

	signed, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !signed.ExpiresAt.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", signed.ExpiresAt)
	}
	if strings.ContainsAny(signed.Token, "+/= ") {
		t.Fatalf("token is not URL safe: %s", signed.Token)
	}

	claims, err := codec.Parse(signed.Token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "john@x.com" || string(claims.Email) != "john@x.com" {
		t.Fatalf("unexpected subject/email: %s/%s", claims.Subject, claims.Email)
	}
	if string(claims.UserID) != user.ID().String() {
		t.Fatalf("unexpected user id %s", claims.UserID)
	}
	if claims.Issuer != "authorization-service" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if !reflect.DeepEqual([]string(claims.Roles), []string{"ADMIN"}) ||
		!reflect.DeepEqual([]string(claims.Permissions), []string{"READ"}) {
		t.Fatalf("unexpected authorities roles=%v permissions=%v", claims.Roles, claims.Permissions)
	}
	if !claims.IssuedAt.Time.Equal(now) {
		t.Fatalf("unexpected iat %v", claims.IssuedAt)
	}
}

func TestIssueWithoutRolesEmitsEmptyLists(t *testing.T) {
	now := time.Now()
	codec := newTestCodec(t, now)
	issuer, _ := NewTokenIssuer(codec, WithIssuerClock(fixedClock(now)))

	signed, err := issuer.Issue(mustUser(t, "jane@x.com", "digest"))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := codec.Parse(signed.Token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(claims.Roles) != 0 || len(claims.Permissions) != 0 {
		t.Fatalf("expected empty authorities, got %v %v", claims.Roles, claims.Permissions)
	}
	if issuer.TTL() != DefaultTokenTTL {
		t.Fatalf("unexpected default ttl %v", issuer.TTL())
	}
}

func TestCodecRejectsWeakKey(t *testing.T) {
	if _, err := NewHMACCodec([]byte("short")); !errors.Is(err, ErrWeakSigningKey) {
		t.Fatalf("expected ErrWeakSigningKey, got %v", err)
	}
}

func TestValidatorAcceptsValidToken(t *testing.T) {
	now := time.Now()
	codec := newTestCodec(t, now)
	issuer, _ := NewTokenIssuer(codec, WithIssuerClock(fixedClock(now)))
	user := userWithAuthorities(t)
	signed, _ := issuer.Issue(user)

	ac, ok := NewTokenValidator(codec, nil).Authenticate(signed.Token)
	if !ok {
		t.Fatalf("expected authenticated context")
	}
	if ac.Principal().Username != "john@x.com" || ac.Principal().UserID != user.ID().String() {
		t.Fatalf("unexpected principal %+v", ac.Principal())
	}
	if !reflect.DeepEqual(ac.Authorities(), []string{"ROLE_ADMIN", "PERM_READ"}) {
		t.Fatalf("unexpected authorities %v", ac.Authorities())
	}
	if !ac.HasRole("ADMIN") || !ac.HasPermission("READ") || ac.HasRole("READ") {
		t.Fatalf("authority checks failed for %v", ac.Authorities())
	}
}

func TestValidatorRejectsBadTokens(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, now)
	issuer, _ := NewTokenIssuer(codec, WithTokenTTL(time.Minute), WithIssuerClock(fixedClock(now)))
	signed, _ := issuer.Issue(userWithAuthorities(t))

	expiredCodec := newTestCodec(t, now.Add(2*time.Minute))

	otherKey, _ := NewHMACCodec([]byte("ffffffffffffffffffffffffffffffff"), WithCodecClock(fixedClock(now)))

	parts := strings.Split(signed.Token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "john@x.com", "iat": now.Unix(), "exp": now.Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"roles": []string{"ADMIN"}, "iat": now.Unix(), "exp": now.Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "john@x.com", "roles": []string{"ADMIN"},
	}).SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name  string
		codec TokenCodec
		token string
	}{
		{"expired", expiredCodec, signed.Token},
		{"wrong key", otherKey, signed.Token},
		{"tampered signature", codec, tampered},
		{"unexpected algorithm", codec, hs512},
		{"missing subject", codec, noSubject},
		{"missing expiry", codec, noExpiry},
		{"malformed", codec, "not.a.token"},
		{"empty", codec, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ac, ok := NewTokenValidator(tc.codec, nil).Authenticate(tc.token)
			if ok {
				t.Fatalf("expected no context, got %+v", ac)
			}
			if len(ac.Authorities()) != 0 || ac.Principal() != (Principal{}) {
				t.Fatalf("rejected token leaked a partial context: %+v", ac)
			}
		})
	}
}

func TestValidatorToleratesWrongShapedClaims(t *testing.T) {
	now := time.Now()
	codec := newTestCodec(t, now)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         "john@x.com",
		"iat":         now.Unix(),
		"exp":         now.Add(time.Hour).Unix(),
		"roles":       "ADMIN",
		"permissions": []any{"READ", nil, 7, "PERM_READ", map[string]any{"x": 1}},
		"userId":      42,
	}).SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}

	ac, ok := NewTokenValidator(codec, nil).Authenticate(token)
	if !ok {
		t.Fatalf("expected context despite odd claims")
	}
	if !reflect.DeepEqual(ac.Authorities(), []string{"PERM_READ", "PERM_7"}) {
		t.Fatalf("unexpected authorities %v", ac.Authorities())
	}
	if ac.Principal().UserID != "42" {
		t.Fatalf("unexpected user id %q", ac.Principal().UserID)
	}
}

func TestAuthorityPrefixesAreIdempotent(t *testing.T) {
	ac := NewAuthorizationContext(Principal{Username: "u"}, []string{"ADMIN", "ROLE_ADMIN", " "}, []string{"READ", "PERM_READ"})
	if !reflect.DeepEqual(ac.Authorities(), []string{"ROLE_ADMIN", "PERM_READ"}) {
		t.Fatalf("unexpected authorities %v", ac.Authorities())
	}
	if RoleAuthority("ROLE_X") != "ROLE_X" || PermissionAuthority("PERM_X") != "PERM_X" {
		t.Fatalf("prefix applied twice")
	}
}

func TestParseRequiresIssuerWhenConfigured(t *testing.T) {
	now := time.Now()
	plain := newTestCodec(t, now)
	issuer, _ := NewTokenIssuer(plain, WithIssuerClock(fixedClock(now)))
	signed, _ := issuer.Issue(mustUser(t, "jane@x.com", "digest"))

	strict := newTestCodec(t, now, WithCodecIssuer("authorization-service"))
	if _, err := strict.Parse(signed.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for missing issuer, got %v", err)
	}
}
