package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/abraham-of-london/circlegate/internal/gate/service"
	"github.com/abraham-of-london/circlegate/internal/gate/store"
	"github.com/abraham-of-london/circlegate/pkg/cryptox"
	"github.com/abraham-of-london/circlegate/pkg/httpx"
	"github.com/abraham-of-london/circlegate/pkg/ratelimit"
	"github.com/abraham-of-london/circlegate/pkg/slogx"
)

// Policies groups the per-surface rate limit policies.
type Policies struct {
	Redeem   ratelimit.Policy
	Register ratelimit.Policy
	API      ratelimit.Policy
	Admin    ratelimit.Policy
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	limiter  *ratelimit.Limiter
	policies Policies

	adminKeyHash  string
	adminJWT      string
	secureCookies bool

	RedeemService  *service.RedeemService
	SessionService *service.SessionService
	RevokeService  *service.RevokeService
	MemberService  *service.MemberService
	Hasher         *cryptox.Hasher
}

func NewRouter(
	buildVersion string,
	st store.Store,
	limiter *ratelimit.Limiter,
	policies Policies,
	adminKeyHash, adminJWTSecret string,
	secureCookies bool,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		store:         st,
		limiter:       limiter,
		policies:      policies,
		adminKeyHash:  adminKeyHash,
		adminJWT:      adminJWTSecret,
		secureCookies: secureCookies,
		logger:        logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccess()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAccess() {
	redeemHandler := &RedeemHandler{
		RedeemService: r.RedeemService,
		SecureCookies: r.secureCookies,
	}

	// POST /access/redeem - the unlock path, strict limit by IP
	r.Mux.Handle("POST /v1/access/redeem",
		httpx.Chain(redeemHandler,
			RateLimit(r.limiter, r.policies.Redeem),
		),
	)

	// GET /access/session - hot path, general API limit
	sessionHandler := &SessionHandler{SessionService: r.SessionService}
	r.Mux.Handle("GET /v1/access/session",
		httpx.Chain(sessionHandler,
			RateLimit(r.limiter, r.policies.API),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{
		MemberService:  r.MemberService,
		RevokeService:  r.RevokeService,
		SessionService: r.SessionService,
		Hasher:         r.Hasher,
		Limiter:        r.limiter,
	}

	auth := AdminAuth(r.adminKeyHash, r.adminJWT)

	// POST /access/register - member creation with key issuance; its own
	// tighter policy since each call mints a credential
	r.Mux.Handle("POST /v1/access/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			auth,
			RateLimit(r.limiter, r.policies.Register),
		),
	)

	r.Mux.Handle("POST /v1/admin/revoke-key",
		httpx.Chain(http.HandlerFunc(h.HandleRevokeKey),
			auth,
			RateLimit(r.limiter, r.policies.Admin),
		),
	)
	r.Mux.Handle("POST /v1/admin/revoke-session",
		httpx.Chain(http.HandlerFunc(h.HandleRevokeSession),
			auth,
			RateLimit(r.limiter, r.policies.Admin),
		),
	)
	r.Mux.Handle("GET /v1/admin/export",
		httpx.Chain(http.HandlerFunc(h.HandleExport),
			auth,
			RateLimit(r.limiter, r.policies.Admin),
		),
	)
	r.Mux.Handle("POST /v1/admin/members/{id}/suspend",
		httpx.Chain(http.HandlerFunc(h.HandleSuspend),
			auth,
			RateLimit(r.limiter, r.policies.Admin),
		),
	)
	r.Mux.Handle("POST /v1/admin/ratelimit/unblock",
		httpx.Chain(http.HandlerFunc(h.HandleUnblock),
			auth,
			RateLimit(r.limiter, r.policies.Admin),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
