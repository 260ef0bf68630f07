package auth

import "context"

// Authorize checks that ctx carries an authorization context holding at
// least one of the given authorities. It returns ErrUnauthorized when
// there is no context at all and ErrForbidden when the authority is missing.
func Authorize(ctx context.Context, authorities ...string) error {
	ac, ok := AuthorizationFromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	if len(authorities) == 0 || ac.HasAnyAuthority(authorities...) {
		return nil
	}
	return ErrForbidden
}
