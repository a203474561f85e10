package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"hybrid-auth-service/internal/metrics"
	"hybrid-auth-service/internal/service"
	"hybrid-auth-service/internal/util"
)

const staffAuthOperation = "staff_auth"

// HealthChecker reports the state of every backing dependency by name.
type HealthChecker func(ctx context.Context) map[string]error

type RouterConfig struct {
	Auth    *AuthHandler
	Audit   *AuditHandler
	Manager *service.HybridAuthManager
	// Limiter guards POST /staff/auth per client IP; nil disables it.
	Limiter IPLimiter
	Metrics *metrics.Metrics
	Health  HealthChecker

	RequireHTTPS   bool
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	router := chi.NewRouter()

	if cfg.RequireHTTPS {
		router.Use(requireHTTPS)
	}

	// Middleware stack
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware)
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", StaffTokenHeader},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", healthHandler(cfg.Health))
	if cfg.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/admin/sessions", func(r chi.Router) {
			r.Post("/", cfg.Auth.CreateAdminSession)
			r.Get("/validate", cfg.Auth.ValidateAdminSession)
			r.Delete("/", cfg.Auth.InvalidateAdminSession)
		})

		// staff-token routes
		r.Get("/staff/sessions/validate", cfg.Auth.ValidateStaffSession)
		r.With(RequireStaff(cfg.Manager, logger)).Delete("/staff/sessions", cfg.Auth.InvalidateStaffSession)
		r.With(RequireStaff(cfg.Manager, logger)).Post("/staff/authorize", cfg.Auth.AuthorizeStaffAction)

		// admin routes
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(cfg.Manager, logger))

			r.Post("/admins", cfg.Auth.CreateAdmin)
			r.Post("/shifts", cfg.Auth.StartShift)
			r.Get("/shifts/status", cfg.Auth.GetShiftStatus)
			r.Post("/shifts/{shiftID}/end", cfg.Auth.EndShift)
			r.Get("/sessions/active", cfg.Auth.GetActiveSessions)

			r.Post("/staff", cfg.Auth.CreateStaff)
			r.Get("/staff/{staffID}/contact", cfg.Auth.GetStaffContact)
			if cfg.Limiter != nil {
				r.With(RateLimitIP(cfg.Limiter, staffAuthOperation, logger)).Post("/staff/auth", cfg.Auth.AuthenticateStaff)
			} else {
				r.Post("/staff/auth", cfg.Auth.AuthenticateStaff)
			}

			if cfg.Audit != nil {
				r.Get("/audit/events", cfg.Audit.ListEvents)
				r.Get("/audit/summary", cfg.Audit.Summary)
				r.Get("/audit/search", cfg.Audit.Search)
				r.Get("/audit/timeline", cfg.Audit.Timeline)
			}
		})
	})

	// 404 handler
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	// Method not allowed handler
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"error":"method not allowed"}`))
	})

	return router
}

func healthHandler(check HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps := map[string]string{}
		healthy := true
		if check != nil {
			for name, err := range check(r.Context()) {
				if err != nil {
					healthy = false
					deps[name] = err.Error()
					util.Warn("Dependency unhealthy", util.String("dependency", name), util.ErrorField(err))
					continue
				}
				deps[name] = "ok"
			}
		}

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		respondWithJSON(w, code, map[string]interface{}{
			"status":       status,
			"service":      "hybrid-auth-service",
			"dependencies": deps,
		})
	}
}
