package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/brunoSandoval210/authorization-service/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// authenticate installs the authorization context carried by a valid bearer
// token. Missing, malformed or rejected tokens leave the request anonymous;
// route guards decide what anonymous callers may reach.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || a.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ac, ok := a.tokens.Authenticate(token)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx := auth.ContextWithAuthorization(r.Context(), ac)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// require guards a route with auth.Authorize. With no authorities any
// authenticated caller passes.
func (a *API) require(authorities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := auth.Authorize(r.Context(), authorities...)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, auth.ErrUnauthorized):
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, r, http.StatusUnauthorized, "authentication required")
			default:
				writeError(w, r, http.StatusForbidden, "forbidden")
			}
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
