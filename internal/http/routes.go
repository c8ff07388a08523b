package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/target/jobmatch/internal/domain/auth"
	"github.com/target/jobmatch/internal/ports"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Intake   IntakeServiceInterface
	Progress ProgressServiceInterface
	Keys     KeyServiceInterface
	// Auth is optional; without it only the anonymous routes are served.
	Auth AuthServiceInterface
	// UploadLimiter throttles submissions per client. Nil disables throttling.
	UploadLimiter ports.RateLimiter
	CookieDomain  string
	// HealthChecks back /healthz. Empty means the endpoint only reports liveness.
	HealthChecks map[string]HealthCheck
	Logger       *slog.Logger
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	pipeline := &PipelineHandlers{
		Intake:       services.Intake,
		Progress:     services.Progress,
		CookieDomain: services.CookieDomain,
		Logger:       services.Logger,
	}

	registerPipelineRoutes(mux, pipeline, services)
	health := &HealthHandler{Checks: services.HealthChecks}
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	if services.Auth != nil {
		registerAuthRoutes(mux, &AuthHandlers{
			Svc:          services.Auth,
			CookieDomain: services.CookieDomain,
			Logger:       services.Logger,
		})
		registerProtectedRoutes(mux, pipeline, services)
	}

	return mux
}

func registerPipelineRoutes(mux *http.ServeMux, h *PipelineHandlers, services RouterServices) {
	var upload http.Handler = http.HandlerFunc(h.Upload)
	upload = RateLimit(services.UploadLimiter, services.Logger)(upload)
	if services.Auth != nil {
		upload = OptionalAuth(services.Auth)(upload)
	}
	mux.Handle("POST /upload", upload)
	mux.HandleFunc("GET /task/{id}/status", h.Status)
	mux.HandleFunc("GET /task/{id}/results", h.Results)
}

func registerProtectedRoutes(mux *http.ServeMux, h *PipelineHandlers, services RouterServices) {
	authed := RequireAuth(services.Auth)
	admin := RequireRole(services.Auth, domainauth.RoleAdmin)

	mux.Handle("GET /job/{id}", authed(http.HandlerFunc(h.Download)))
	if services.Keys != nil {
		keys := &KeyHandlers{Svc: services.Keys, Logger: services.Logger}
		mux.Handle("POST /api/keys/scoring", authed(http.HandlerFunc(keys.SaveScoringKey)))
	}
	stats := &AdminHandlers{Progress: services.Progress, Logger: services.Logger}
	mux.Handle("GET /api/admin/stats", admin(http.HandlerFunc(stats.Stats)))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/me", h.Me)
}
