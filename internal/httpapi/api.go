// Package httpapi exposes the MamaCare REST surface, the notification stream
// and the gRPC health service.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mamacare.app/internal/audit"
	"mamacare.app/internal/auth"
	"mamacare.app/internal/care"
	"mamacare.app/internal/obs"
	"mamacare.app/internal/permission"
	"mamacare.app/internal/relay"
)

const serviceName = "mamacare-api"

// ReadyChecker reports whether backing services can take traffic.
type ReadyChecker interface {
	Check(ctx context.Context) error
}

// ReadyFunc adapts a function to ReadyChecker.
type ReadyFunc func(ctx context.Context) error

func (f ReadyFunc) Check(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}

// Deps are the services the API serves.
type Deps struct {
	Auth   *auth.Service
	Engine *permission.Engine
	Care   *care.Service
	Hub    *relay.Hub
	Audit  *audit.Logger
	Logger *zap.Logger
	Ready  ReadyChecker

	Version        string
	AllowedOrigins []string
	// LoginRate and LoginBurst throttle the login endpoints per client IP.
	// A zero rate disables throttling.
	LoginRate  float64
	LoginBurst int
}

// API is the HTTP layer.
type API struct {
	mux    *http.ServeMux
	auth   *auth.Service
	engine *permission.Engine
	care   *care.Service
	hub    *relay.Hub
	audit  *audit.Logger
	logger *zap.Logger
	ready  ReadyChecker

	version        string
	allowedOrigins []string
	loginRate      float64
	loginBurst     int
}

// New builds the API and registers every route.
func New(d Deps) *API {
	a := &API{
		mux:            http.NewServeMux(),
		auth:           d.Auth,
		engine:         d.Engine,
		care:           d.Care,
		hub:            d.Hub,
		audit:          d.Audit,
		logger:         d.Logger,
		ready:          d.Ready,
		version:        d.Version,
		allowedOrigins: d.AllowedOrigins,
		loginRate:      d.LoginRate,
		loginBurst:     d.LoginBurst,
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.audit == nil {
		a.audit = audit.New(a.logger)
	}
	if a.ready == nil {
		a.ready = ReadyFunc(nil)
	}
	if a.loginBurst < 1 {
		a.loginBurst = 1
	}
	a.routes()
	return a
}

// elevatedRoutePrefixes are the role path segments of the permission routes.
// mom is routed so that it answers with an invalid role error rather than 404.
var elevatedRoutePrefixes = []auth.Role{auth.RoleMom, auth.RoleDoctor, auth.RoleMidwife, auth.RoleServiceProvider}

func (a *API) routes() {
	m := a.mux

	m.HandleFunc("GET /healthz", a.Healthz)
	m.HandleFunc("GET /readyz", a.Ready)
	m.HandleFunc("GET /api/info", a.Info)
	m.Handle("GET /metrics", obs.Handler())

	m.Handle("POST /api/auth/register", http.HandlerFunc(a.register))
	m.Handle("POST /api/auth/login", a.throttle(http.HandlerFunc(a.login)))
	m.Handle("POST /api/auth/logout", a.requireAccount(a.logout))
	m.Handle("GET /api/auth/me", a.requireAccount(a.me))
	m.Handle("PUT /api/auth/profile", a.requireAccount(a.updateProfile))
	m.Handle("PUT /api/auth/password", a.requireAccount(a.changePassword))

	for _, role := range elevatedRoutePrefixes {
		base := "/api/" + string(role)
		m.Handle("POST "+base+"/permission-request", a.requireAccount(a.submitPermissionRequest(role)))
		m.Handle("GET "+base+"/permission-requests", a.requireAccount(a.listOwnPermissionRequests(role)))
		m.Handle("GET "+base+"/permission-request/{id}", a.requireAccount(a.getOwnPermissionRequest(role)))
		m.Handle("PUT "+base+"/permission-request/{id}", a.requireAccount(a.updatePermissionRequest(role)))
		m.Handle("DELETE "+base+"/permission-request/{id}", a.requireAccount(a.cancelPermissionRequest(role)))
	}

	m.Handle("POST /api/admin/login", a.throttle(http.HandlerFunc(a.adminLogin)))
	m.Handle("POST /api/admin/logout", a.requireAdmin(a.logout))
	m.Handle("POST /api/admin/register", a.requireAdmin(a.requireSuperAdmin(a.registerAdmin)))
	m.Handle("GET /api/admin/me", a.requireAdmin(a.adminMe))
	m.Handle("PUT /api/admin/password", a.requireAdmin(a.changeAdminPassword))

	m.Handle("GET /api/admin/permission-requests", a.requireAdmin(a.listPermissionRequests))
	m.Handle("GET /api/admin/permission-requests/stats", a.requireAdmin(a.permissionRequestStats))
	m.Handle("PUT /api/admin/permission-requests/bulk-update", a.requireAdmin(a.bulkUpdatePermissionRequests))
	m.Handle("GET /api/admin/permission-request/{id}", a.requireAdmin(a.getPermissionRequest))
	m.Handle("PUT /api/admin/permission-request/{id}/status", a.requireAdmin(a.setPermissionRequestStatus))
	m.Handle("POST /api/admin/permission-request/{id}/notes", a.requireAdmin(a.addPermissionRequestNote))

	m.Handle("GET /api/admin/users", a.requireAdmin(a.requireAdminPermission(auth.PermUserManagement, a.listUsers)))
	m.Handle("PUT /api/admin/users/{id}/status", a.requireAdmin(a.requireAdminPermission(auth.PermUserManagement, a.setUserStatus)))
	m.Handle("DELETE /api/admin/users/{id}", a.requireAdmin(a.requireAdminPermission(auth.PermUserManagement, a.deleteUser)))

	m.Handle("GET /api/appointments", a.requireAccount(a.listAppointments))
	m.Handle("POST /api/appointments", a.requireAccount(a.createAppointment))
	m.Handle("PUT /api/appointments/{id}", a.requireAccount(a.updateAppointment))
	m.Handle("DELETE /api/appointments/{id}", a.requireAccount(a.deleteAppointment))

	m.Handle("POST /api/messages/send", a.requireAccount(a.sendMessage))
	m.Handle("POST /api/messages/read", a.requireAccount(a.markMessagesRead))
	m.Handle("GET /api/messages/{otherUserId}", a.requireAccount(a.conversation))

	m.HandleFunc("GET /api/notifications/stream", a.Stream)

	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Route "+r.URL.Path+" not found")
	})
}

// Handler returns the fully wrapped handler for the HTTP server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = CORS(h, a.allowedOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h, a.logger)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) throttle(next http.Handler) http.Handler {
	if a.loginRate <= 0 {
		return next
	}
	return RateLimit(next, a.loginBurst, a.loginRate)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		a.logger.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
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

func (a *API) record(ctx context.Context, event string, fields map[string]any) {
	if err := a.audit.Record(ctx, event, fields); err != nil {
		a.logger.Warn("audit record failed", zap.String("event", event), zap.Error(err))
	}
}
