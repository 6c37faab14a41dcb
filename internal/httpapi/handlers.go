package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"atelier.dev/internal/auth"
	"atelier.dev/internal/obs"
)

const serviceName = "atelier-auth"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options tunes the HTTP layer.
type Options struct {
	Version            string
	Commit             string
	SecureCookies      bool
	CORSOrigins        []string
	LoginRateBurst     int
	LoginRatePerSecond float64
	MaxBodyBytes       int64
	AdminUserTypeID    int64
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe readinessChecker
	auth       *auth.Service
	opts       Options
	limiter    *RateLimiter
}

func New(rp readinessChecker, svc *auth.Service, opts Options) *API {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.LoginRateBurst <= 0 {
		opts.LoginRateBurst = 10
	}
	if opts.LoginRatePerSecond <= 0 {
		opts.LoginRatePerSecond = 5
	}
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		auth:       svc,
		opts:       opts,
		limiter:    NewRateLimiter(opts.LoginRateBurst, opts.LoginRatePerSecond),
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	// auth
	a.mux.Handle("POST /v1/auth/login", RateLimit(http.HandlerFunc(a.handleLogin), a.limiter))
	a.mux.HandleFunc("POST /v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("POST /v1/auth/logout", a.handleLogout)
	a.mux.Handle("POST /v1/auth/logout-all", a.requireAuth(http.HandlerFunc(a.handleLogoutAll)))
	a.mux.Handle("GET /v1/auth/sessions", a.requireAuth(http.HandlerFunc(a.handleSessions)))
	a.mux.Handle("POST /v1/admin/sessions/purge",
		a.requireAuth(RequireUserType(opts.AdminUserTypeID)(http.HandlerFunc(a.handlePurgeSessions))))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeAppError(w, r, auth.NewError("", http.StatusNotFound, "NOT_FOUND", "route not found"))
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = CORS(a.opts.CORSOrigins)(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
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
		"version": a.opts.Version,
		"commit":  a.opts.Commit,
	})
}
