package auth

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	RolePrefix       = "ROLE_"
	PermissionPrefix = "PERM_"

	// SystemActor is recorded as the author of changes made without an
	// authenticated principal.
	SystemActor = "SYSTEM"
)

// RoleAuthority prefixes a role name with ROLE_ unless it already is.
func RoleAuthority(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, RolePrefix) {
		return name
	}
	return RolePrefix + name
}

// PermissionAuthority prefixes a permission name with PERM_ unless it already is.
func PermissionAuthority(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, PermissionPrefix) {
		return name
	}
	return PermissionPrefix + name
}

// Principal identifies the caller behind a validated token.
type Principal struct {
	Username string
	UserID   string
}

// AuthorizationContext is the per-request identity and authority set
// rebuilt from a validated token.
type AuthorizationContext struct {
	principal   Principal
	authorities []string
	index       map[string]struct{}
}

func NewAuthorizationContext(p Principal, roles, permissions []string) AuthorizationContext {
	ac := AuthorizationContext{principal: p, index: make(map[string]struct{})}
	add := func(a string) {
		if a == "" {
			return
		}
		if _, ok := ac.index[a]; ok {
			return
		}
		ac.index[a] = struct{}{}
		ac.authorities = append(ac.authorities, a)
	}
	for _, r := range roles {
		add(RoleAuthority(r))
	}
	for _, perm := range permissions {
		add(PermissionAuthority(perm))
	}
	return ac
}

func (ac AuthorizationContext) Principal() Principal { return ac.principal }

// Authorities returns the authority set in derivation order.
func (ac AuthorizationContext) Authorities() []string {
	return append([]string(nil), ac.authorities...)
}

// SortedAuthorities returns the authority set in lexical order.
func (ac AuthorizationContext) SortedAuthorities() []string {
	out := ac.Authorities()
	sort.Strings(out)
	return out
}

func (ac AuthorizationContext) HasAuthority(authority string) bool {
	_, ok := ac.index[authority]
	return ok
}

func (ac AuthorizationContext) HasAnyAuthority(authorities ...string) bool {
	for _, a := range authorities {
		if ac.HasAuthority(a) {
			return true
		}
	}
	return false
}

func (ac AuthorizationContext) HasRole(role string) bool {
	return ac.HasAuthority(RoleAuthority(role))
}

func (ac AuthorizationContext) HasPermission(permission string) bool {
	return ac.HasAuthority(PermissionAuthority(permission))
}

type authorizationContextKey struct{}

// ContextWithAuthorization attaches ac to ctx. A context that already
// carries an authorization context is returned unchanged.
func ContextWithAuthorization(ctx context.Context, ac AuthorizationContext) context.Context {
	if _, ok := AuthorizationFromContext(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, authorizationContextKey{}, &ac)
}

func AuthorizationFromContext(ctx context.Context) (AuthorizationContext, bool) {
	if ctx == nil {
		return AuthorizationContext{}, false
	}
	v, ok := ctx.Value(authorizationContextKey{}).(*AuthorizationContext)
	if !ok || v == nil {
		return AuthorizationContext{}, false
	}
	return *v, true
}

// ActorFromContext names the caller for audit columns.
func ActorFromContext(ctx context.Context) string {
	if ac, ok := AuthorizationFromContext(ctx); ok && ac.principal.Username != "" {
		return ac.principal.Username
	}
	return SystemActor
}

// TokenValidator rebuilds authorization contexts from bearer tokens. It
// never consults the store.
type TokenValidator struct {
	codec  TokenCodec
	logger *zap.Logger
}

func NewTokenValidator(codec TokenCodec, logger *zap.Logger) *TokenValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenValidator{codec: codec, logger: logger}
}

// Authenticate returns the authorization context carried by token. Any
// decoding or verification failure yields false rather than an error, so
// the caller proceeds anonymously.
func (v *TokenValidator) Authenticate(token string) (AuthorizationContext, bool) {
	if v == nil || v.codec == nil {
		return AuthorizationContext{}, false
	}
	claims, err := v.codec.Parse(token)
	if err != nil {
		v.logger.Debug("token rejected", zap.Error(err))
		return AuthorizationContext{}, false
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		v.logger.Debug("token without subject")
		return AuthorizationContext{}, false
	}
	p := Principal{Username: subject, UserID: string(claims.UserID)}
	return NewAuthorizationContext(p, claims.Roles, claims.Permissions), true
}
