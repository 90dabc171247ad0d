package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/http/handler"
	"github.com/workbridge/workbridge-auth/internal/http/middleware"
	"github.com/workbridge/workbridge-auth/internal/http/response"
	"github.com/workbridge/workbridge-auth/internal/security"
	"github.com/workbridge/workbridge-auth/internal/service"
)

type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	MeHandler       *handler.MeHandler
	AdminHandler    *handler.AdminHandler
	ChatHandler     *handler.ChatHandler
	JWTManager      *security.JWTManager
	Resolver        *service.PrincipalResolver
	CORSOrigins     []string
	APIRateLimitRPM int
	AuthRateLimiter func(http.Handler) http.Handler
	ReadyCheck      func() error
	EnableOTelHTTP  bool
}

// NewRouter wires the HTTP surface. The auth endpoints are registered
// without the gate; everything under /me, /sessions and /admin sits behind
// it. Whitelisting is a property of registration, not of a path list inside
// the gate.
func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = func(next http.Handler) http.Handler { return next }
	}
	gate := middleware.AuthMiddleware(dep.JWTManager, dep.Resolver)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.ReadyCheck != nil {
			if err := dep.ReadyCheck(); err != nil {
				response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", nil)
				return
			}
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
			r.With(authLimiter).Post("/verify", dep.AuthHandler.Verify)
			r.With(authLimiter).Post("/resend-verification/{email}", dep.AuthHandler.ResendVerification)
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.With(authLimiter).Post("/refresh-token", dep.AuthHandler.Refresh)
			r.Post("/logout", dep.AuthHandler.Logout)
			r.With(gate).Post("/logout/{tokenID}", dep.AuthHandler.RemoteLogout)
			r.With(gate).Get("/sessions", dep.AuthHandler.Sessions)
		})

		r.With(gate).Get("/me", dep.MeHandler.Me)

		r.Route("/admin", func(r chi.Router) {
			r.Use(gate)
			r.Use(middleware.RequireRole(domain.RoleAdmin))
			r.Get("/accounts", dep.AdminHandler.ListAccounts)
			r.Post("/accounts/{id}/enable", dep.AdminHandler.EnableAccount)
			r.Post("/accounts/{id}/disable", dep.AdminHandler.DisableAccount)
		})
	})

	if dep.ChatHandler != nil {
		r.Get("/ws/chat", dep.ChatHandler.Handshake)
	}

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
