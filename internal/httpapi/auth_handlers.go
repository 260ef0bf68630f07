package httpapi

import (
	"errors"
	"net/http"

	"github.com/brunoSandoval210/authorization-service/internal/audit"
	"github.com/brunoSandoval210/authorization-service/internal/auth"
	"github.com/brunoSandoval210/authorization-service/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=1024"`
}

type meResponse struct {
	Username    string   `json:"username"`
	UserID      string   `json:"user_id,omitempty"`
	Authorities []string `json:"authorities"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	email := auth.NormalizeEmail(req.Email)
	entry := audit.Entry{
		UserID:    email,
		Module:    moduleAuth,
		Action:    "LOGIN",
		IPAddress: clientIP(r),
	}

	token, err := a.creds.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		entry.Status = audit.StatusFailure
		entry.Details = "login rejected for " + obs.MaskEmail(email)
		if !errors.Is(err, auth.ErrUnauthorized) {
			entry.Details = "login failed for " + obs.MaskEmail(email)
		}
		a.recorder.Record(r.Context(), entry)
		handleError(w, r, err)
		return
	}
	entry.Status = audit.StatusSuccess
	a.recorder.Record(r.Context(), entry)
	writeJSON(w, http.StatusOK, token)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.AuthorizationFromContext(r.Context())
	if !ok {
		handleError(w, r, auth.ErrUnauthorized)
		return
	}
	p := ac.Principal()
	writeJSON(w, http.StatusOK, meResponse{
		Username:    p.Username,
		UserID:      p.UserID,
		Authorities: ac.SortedAuthorities(),
	})
}
