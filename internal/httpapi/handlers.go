package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/brunoSandoval210/authorization-service/internal/audit"
	"github.com/brunoSandoval210/authorization-service/internal/auth"
	"github.com/brunoSandoval210/authorization-service/internal/obs"
	"github.com/brunoSandoval210/authorization-service/internal/stream"
)

const serviceName = "authorization-service"

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe reports readiness; a probe without a store is always ready.
type ReadyProbe struct {
	Store Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	RBAC        *auth.RBACService
	Credentials *auth.CredentialService
	Tokens      *auth.TokenValidator
	Audit       *audit.Recorder
	Feed        *stream.Hub[audit.Entry]
	Ready       ReadyProbe
	Version     string

	LoginRate   rate.Limit
	LoginBurst  int
	CORSOrigins []string
	// TrustedProxies are addresses or CIDR ranges allowed to set
	// X-Forwarded-For for rate limiting.
	TrustedProxies []string
}

// API is the HTTP layer.
type API struct {
	rbac     *auth.RBACService
	creds    *auth.CredentialService
	tokens   *auth.TokenValidator
	recorder *audit.Recorder
	feed     *stream.Hub[audit.Entry]
	ready    ReadyProbe
	version  string

	validate     *validator.Validate
	loginLimiter *ipLimiter
	proxies      trustedProxies
	corsOrigins  []string
	router       chi.Router
}

func New(d Deps) *API {
	if d.LoginRate <= 0 {
		d.LoginRate = 5
	}
	if d.LoginBurst <= 0 {
		d.LoginBurst = 10
	}
	a := &API{
		rbac:         d.RBAC,
		creds:        d.Credentials,
		tokens:       d.Tokens,
		recorder:     d.Audit,
		feed:         d.Feed,
		ready:        d.Ready,
		version:      d.Version,
		validate:     newValidator(),
		loginLimiter: newIPLimiter(d.LoginRate, d.LoginBurst),
		corsOrigins:  d.CORSOrigins,
	}
	proxies, err := parseTrustedProxies(d.TrustedProxies)
	if err != nil {
		obs.Logger().Warn("ignoring trusted proxies", zap.Error(err))
	}
	a.proxies = proxies
	a.router = a.routes()
	return a
}

// Handler returns the root handler wrapped with HTTP metrics.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		RequestID,
		AccessLog,
		middleware.Recoverer,
		SecurityHeaders,
		CORS(a.corsOrigins),
		a.authenticate,
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/info", a.Info)

		r.With(RateLimit(a.loginLimiter, a.proxies)).Post("/auth/login", a.handleLogin)
		r.With(a.require()).Get("/auth/me", a.handleMe)

		r.Route("/modules", func(r chi.Router) {
			a.mountResource(r, resource{
				create:     a.createModule,
				list:       a.listModules,
				search:     a.searchModules,
				get:        a.getModule,
				update:     a.updateModule,
				activate:   a.setModuleStatus(true),
				deactivate: a.setModuleStatus(false),
			})
		})
		r.Route("/permissions", func(r chi.Router) {
			a.mountResource(r, resource{
				create:     a.createPermission,
				list:       a.listPermissions,
				search:     a.searchPermissions,
				get:        a.getPermission,
				update:     a.updatePermission,
				activate:   a.setPermissionStatus(true),
				deactivate: a.setPermissionStatus(false),
			})
		})
		r.Route("/roles", func(r chi.Router) {
			a.mountResource(r, resource{
				create:     a.createRole,
				list:       a.listRoles,
				search:     a.searchRoles,
				get:        a.getRole,
				update:     a.updateRole,
				activate:   a.setRoleStatus(true),
				deactivate: a.setRoleStatus(false),
			})
			write := a.require(auth.WriteAuthorities...)
			r.With(write).Post("/{id}/permissions/{permissionId}", a.addRolePermission)
			r.With(write).Delete("/{id}/permissions/{permissionId}", a.removeRolePermission)
		})
		r.Route("/users", func(r chi.Router) {
			a.mountResource(r, resource{
				create:     a.createUser,
				list:       a.listUsers,
				search:     a.searchUsers,
				get:        a.getUser,
				update:     a.updateUser,
				activate:   a.setUserStatus(true),
				deactivate: a.setUserStatus(false),
			})
			write := a.require(auth.WriteAuthorities...)
			r.With(write).Post("/{id}/roles/{roleId}", a.assignUserRole)
			r.With(write).Delete("/{id}/roles/{roleId}", a.revokeUserRole)
		})

		admin := a.require(auth.AdminAuthorities...)
		r.With(admin).Get("/audit-logs", a.searchAuditLogs)
		r.With(admin).Get("/audit-logs/stream", a.streamAuditLogs)
	})

	return r
}

// resource is the handler set shared by every administered aggregate.
type resource struct {
	create, list, search, get, update, activate, deactivate http.HandlerFunc
}

func (a *API) mountResource(r chi.Router, res resource) {
	read := a.require(auth.ReadAuthorities...)
	write := a.require(auth.WriteAuthorities...)

	r.With(write).Post("/", res.create)
	r.With(read).Get("/", res.list)
	r.With(read).Get("/search", res.search)
	r.With(read).Get("/{id}", res.get)
	r.With(write).Put("/{id}", res.update)
	r.With(write).Patch("/{id}/activate", res.activate)
	r.With(write).Patch("/{id}/deactivate", res.deactivate)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
