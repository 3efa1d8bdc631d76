// Package httpapi is the JSON HTTP surface of bizdesk: routing, the
// middleware chain and the translation of service errors to statuses.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"net/netip"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/obs"
	"github.com/dmitrijs2005/bizdesk/internal/server/services"
)

// ReadyProbe pings the database for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Services are the domain services the handlers call.
type Services struct {
	Gate        *services.Gate
	Auth        *services.AuthService
	Entities    *services.EntityService
	Permissions *services.PermissionService
	Files       *services.FileService
	Activity    *services.ActivityService
	Export      *services.ExportService
}

// Options tune the middleware chain.
type Options struct {
	CORSOrigins        []string
	RateLimitPerSecond int
	RateLimitBurst     int
	MaxBodyBytes       int64
	MaxUploadBytes     int64
	TrustedProxies     []string
}

// multipartOverhead is allowed on top of the upload limit for the form
// envelope.
const multipartOverhead = 1 << 20

type API struct {
	mux         *http.ServeMux
	gate        *services.Gate
	auth        *services.AuthService
	entities    *services.EntityService
	permissions *services.PermissionService
	files       *services.FileService
	activity    *services.ActivityService
	export      *services.ExportService
	readyProbe  ReadyProbe
	metrics     *obs.Metrics
	limiter     *RateLimiter
	proxies     []netip.Prefix
	opts        Options
	log         logging.Logger
}

func New(svc Services, opts Options, rp ReadyProbe, metrics *obs.Metrics, log logging.Logger) *API {
	a := &API{
		mux:         http.NewServeMux(),
		gate:        svc.Gate,
		auth:        svc.Auth,
		entities:    svc.Entities,
		permissions: svc.Permissions,
		files:       svc.Files,
		activity:    svc.Activity,
		export:      svc.Export,
		readyProbe:  rp,
		metrics:     metrics,
		limiter:     NewRateLimiter(opts.RateLimitPerSecond, opts.RateLimitBurst),
		opts:        opts,
		log:         log.With("module", "httpapi"),
	}
	proxies, invalid := parseTrustedProxies(opts.TrustedProxies)
	if len(invalid) > 0 {
		a.log.Warn(context.Background(), "ignoring invalid trusted proxies", "entries", invalid)
	}
	a.proxies = proxies
	a.routes()
	return a
}

func (a *API) routes() {
	a.mux.HandleFunc("GET /{$}", a.welcome)
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.HandleFunc("GET /readyz", a.ready)
	if a.metrics != nil {
		a.mux.Handle("GET /metrics", a.metrics.Handler())
	}

	a.mux.HandleFunc("POST /register", a.register)
	a.mux.HandleFunc("POST /login", a.login)
	a.mux.HandleFunc("GET /activate", a.activate)
	a.mux.HandleFunc("POST /forgot_password", a.forgotPassword)
	a.mux.HandleFunc("POST /reset_password", a.resetPassword)

	a.mux.HandleFunc("GET /profile", a.session(a.me))
	a.mux.HandleFunc("POST /logout", a.session(a.logout))
	a.mux.HandleFunc("GET /profiles", a.session(a.directory))

	for _, k := range kinds.All() {
		if k.OnePerOwner {
			a.ownRoutes(k)
		} else {
			a.kindRoutes(k)
		}
	}
	a.mux.HandleFunc("PUT /statuses/reorder", a.session(a.reorder(kinds.Statuses)))

	a.mux.HandleFunc("GET /permissions", a.session(a.listPermissions))
	a.mux.HandleFunc("GET /permissions/global", a.session(a.listGlobalPermissions))
	a.mux.HandleFunc("GET /users/{user_id}/permissions", a.session(a.listUserPermissions))
	a.mux.HandleFunc("POST /permissions", a.session(a.grantPermission))
	a.mux.HandleFunc("DELETE /permissions/{id}", a.session(a.revokePermission))
	a.mux.HandleFunc("GET /permissions/{id}/history", a.session(a.permissionHistory))

	a.mux.HandleFunc("POST /files", a.session(a.uploadFile))
	a.mux.HandleFunc("GET /files/{id}", a.session(a.downloadFile))

	a.mux.HandleFunc("GET /activity", a.session(a.recentActivity))
}

// kindRoutes registers the generic CRUD and history routes of k.
func (a *API) kindRoutes(k *kinds.Kind) {
	base := "/" + k.Name
	a.mux.HandleFunc("GET "+base, a.session(a.listEntities(k)))
	a.mux.HandleFunc("POST "+base, a.session(a.createEntity(k)))
	a.mux.HandleFunc("GET "+base+"/{id}", a.session(a.getEntity(k)))
	a.mux.HandleFunc("PUT "+base+"/{id}", a.session(a.updateEntity(k)))
	a.mux.HandleFunc("DELETE "+base+"/{id}", a.session(a.deleteEntity(k)))
	if k.HasHistory() {
		a.mux.HandleFunc("GET "+base+"/{id}/history", a.session(a.entityHistory(k)))
		a.mux.HandleFunc("GET "+base+"/{id}/history.xlsx", a.session(a.entityHistoryWorkbook(k)))
	}
}

// ownRoutes registers a one-per-user kind: the bare path addresses the
// caller's own row, the list moves to /list.
func (a *API) ownRoutes(k *kinds.Kind) {
	base := "/" + k.Name
	a.mux.HandleFunc("GET "+base, a.session(a.mine(k)))
	a.mux.HandleFunc("PUT "+base, a.session(a.updateMine(k)))
	a.mux.HandleFunc("DELETE "+base, a.session(a.deleteMine(k)))
	a.mux.HandleFunc("POST "+base, a.session(a.createMine(k)))
	a.mux.HandleFunc("GET "+base+"/list", a.session(a.listEntities(k)))
	a.mux.HandleFunc("GET "+base+"/{id}", a.session(a.getEntity(k)))
	a.mux.HandleFunc("PUT "+base+"/{id}", a.session(a.updateEntity(k)))
	a.mux.HandleFunc("DELETE "+base+"/{id}", a.session(a.deleteEntity(k)))
	a.mux.HandleFunc("GET "+base+"/{id}/history", a.session(a.entityHistory(k)))
	a.mux.HandleFunc("GET "+base+"/{id}/history.xlsx", a.session(a.entityHistoryWorkbook(k)))
}

func (a *API) bodyLimit(r *http.Request) int64 {
	if r.Method == http.MethodPost && r.URL.Path == "/files" {
		return a.opts.MaxUploadBytes + multipartOverhead
	}
	return a.opts.MaxBodyBytes
}

// Handler returns the mux wrapped in the middleware chain. Metrics sit
// closest to the mux so they see the matched route pattern.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.metrics.Instrument(h)
	h = a.activityLog(h)
	h = MaxBodyBytes(h, a.bodyLimit)
	h = a.limiter.Middleware(h, a.clientIP)
	h = CORS(h, a.opts.CORSOrigins)
	h = Recover(h, a.log)
	h = RequestLog(h, a.log)
	return h
}

func (a *API) welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "bizdesk",
		"message": "Bienvenido a la API de bizdesk",
	})
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.readyProbe.Check(ctx); err != nil {
		a.log.Warn(ctx, "readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
