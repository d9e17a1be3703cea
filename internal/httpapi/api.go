// Package httpapi is the HTTP surface: route wiring through the route
// registry, session and admin gates, and the JSON handlers.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jschappet/heron/internal/auth"
	"github.com/jschappet/heron/internal/host"
	"github.com/jschappet/heron/internal/obs"
	"github.com/jschappet/heron/internal/roles"
	"github.com/jschappet/heron/internal/routes"
	"github.com/jschappet/heron/internal/store/pg"
	"github.com/jschappet/heron/internal/token"
)

// Store is the persistence surface the handlers need; *pg.Store
// implements it, tests stub it.
type Store interface {
	Ping(ctx context.Context) error

	ListHosts(ctx context.Context) ([]host.Info, error)
	ActivateHost(ctx context.Context, id int64) error
	DeactivateHost(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, username, email, passwordHash string) (pg.User, error)
	FindUserByUsername(ctx context.Context, username string) (pg.User, error)
	FindUserByEmail(ctx context.Context, email string) (pg.User, error)
	FindUserByID(ctx context.Context, id int64) (pg.User, error)
	ListUsers(ctx context.Context) ([]pg.User, error)
	ActivateUser(ctx context.Context, id int64) error
	DeactivateUser(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	RequestEmailChange(ctx context.Context, userID int64, email string) error
	ConfirmEmailChange(ctx context.Context, userID int64) error

	ListMemberships(ctx context.Context, hostID int64) ([]pg.MembershipRow, error)
	CreateMembership(ctx context.Context, userID, hostID int64, role roles.Role) (int64, error)
	DeactivateMembership(ctx context.Context, id int64) error
}

var _ Store = (*pg.Store)(nil)

// Tokens issues and redeems single-use account tokens.
type Tokens interface {
	Issue(ctx context.Context, userID int64, purpose token.Purpose, ttl time.Duration) (string, error)
	Verify(ctx context.Context, secret string, purpose token.Purpose) (int64, error)
}

var _ Tokens = (*token.Service)(nil)

// Options carries the tunables the HTTP layer needs.
type Options struct {
	Version        string
	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration
	EmailTokenTTL  time.Duration
	MaxBodyBytes   int64
	RateLimitRPS   float64
	RateLimitBurst int
}

func (o *Options) fillDefaults() {
	if o.VerifyTokenTTL == 0 {
		o.VerifyTokenTTL = 48 * time.Hour
	}
	if o.ResetTokenTTL == 0 {
		o.ResetTokenTTL = 2 * time.Hour
	}
	if o.EmailTokenTTL == 0 {
		o.EmailTokenTTL = 24 * time.Hour
	}
	if o.MaxBodyBytes == 0 {
		o.MaxBodyBytes = 1 << 20
	}
	if o.RateLimitRPS == 0 {
		o.RateLimitRPS = 50
	}
	if o.RateLimitBurst == 0 {
		o.RateLimitBurst = 100
	}
}

// API is the HTTP layer.
type API struct {
	store    Store
	tokens   Tokens
	sessions *auth.Sessions
	authn    auth.ContextSource
	resolver *host.Resolver
	registry *routes.Registry
	router   chi.Router
	opts     Options
}

// New wires every route through the registry and freezes it, so the
// capability listing matches exactly what the router serves.
func New(store Store, tokens Tokens, sessions *auth.Sessions, authn auth.ContextSource, resolver *host.Resolver, opts Options) *API {
	opts.fillDefaults()
	a := &API{
		store:    store,
		tokens:   tokens,
		sessions: sessions,
		authn:    authn,
		resolver: resolver,
		registry: routes.NewRegistry(),
		router:   chi.NewRouter(),
		opts:     opts,
	}

	// Inside the router so the metrics path label can use the matched
	// chi route pattern instead of the raw URL.
	a.router.Use(obs.Instrument)

	// Operational endpoints stay outside the registry: they are not
	// part of the advertised application surface.
	a.router.Get("/healthz", a.healthz)
	a.router.Get("/readyz", a.readyz)
	a.router.Get("/v1/info", a.info)
	a.router.Method(http.MethodGet, "/metrics", obs.Handler())

	root := a.registry.Root(a.router)
	root.Group("/api", "api", roles.Public, func(api routes.Scope) {
		api.Group("/auth", "auth", roles.Public, func(s routes.Scope) {
			s.Handle("auth.register", http.MethodPost, "register", roles.Public, a.register)
			s.Handle("auth.verify", http.MethodGet, "token/{token}", roles.Public, a.verifyAccount)
			s.Handle("auth.login", http.MethodPost, "login", roles.Public, a.login)
			s.Handle("auth.logout", http.MethodPost, "logout", roles.Public, a.logout)
			s.Handle("auth.password.forgot", http.MethodPost, "password/forgot", roles.Public, a.forgotPassword)
			s.Handle("auth.password.reset", http.MethodPost, "password/reset", roles.Public, a.resetPassword)
		})
		api.Group("/config", "config", roles.Public, func(s routes.Scope) {
			s.Handle("config.index", http.MethodGet, "", roles.Public, a.configIndex)
			s.Handle("config.online", http.MethodGet, "online", roles.Public, a.online)
			s.Handle("config.ping", http.MethodGet, "ping", roles.Public, a.ping)
			s.Handle("config.capabilities", http.MethodGet, "capabilities", roles.Public, a.capabilities)
		})
		api.Group("/profile", "profile", roles.Member, func(s routes.Scope) {
			s.Handle("profile.show", http.MethodGet, "", roles.Public, a.profile)
			s.Handle("profile.email.request", http.MethodPost, "email", roles.Public, a.requestEmailChange)
			s.Handle("profile.email.confirm", http.MethodGet, "email/{token}", roles.Public, a.confirmEmailChange)
		})
		api.Group("/admin", "admin", roles.Admin, func(s routes.Scope) {
			s.Use(auth.RequireAdmin(a.authn))
			s.Handle("admin.hosts.list", http.MethodGet, "hosts", roles.Public, a.listHosts)
			s.Handle("admin.hosts.activate", http.MethodPost, "hosts/{id}/activate", roles.Public, a.activateHost)
			s.Handle("admin.hosts.deactivate", http.MethodPost, "hosts/{id}/deactivate", roles.Public, a.deactivateHost)
			s.Handle("admin.memberships.list", http.MethodGet, "memberships", roles.Public, a.listMemberships)
			s.Handle("admin.memberships.grant", http.MethodPost, "memberships", roles.Public, a.grantMembership)
			s.Handle("admin.memberships.deactivate", http.MethodDelete, "memberships/{id}", roles.Public, a.deactivateMembership)
			s.Handle("admin.users.list", http.MethodGet, "users", roles.Public, a.listUsers)
			s.Handle("admin.users.deactivate", http.MethodPost, "users/{id}/deactivate", roles.Public, a.deactivateUser)
		})
	})
	a.registry.Freeze()

	return a
}

// Registry exposes the frozen route registry.
func (a *API) Registry() *routes.Registry { return a.registry }

// Handler returns the full middleware chain around the router.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	if a.resolver != nil {
		h = host.Middleware(a.resolver)(h)
	}
	h = RateLimit(h, a.opts.RateLimitBurst, a.opts.RateLimitRPS)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return h
}
