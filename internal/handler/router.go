package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"booking-service/internal/config"
)

// HealthChecker reports per-dependency failures. An empty map means ready.
type HealthChecker interface {
	HealthCheck(ctx context.Context) map[string]error
}

// Handlers groups the resource handlers mounted under /api/v1.
type Handlers struct {
	Auth          *AuthHandler
	Directory     *DirectoryHandler
	Appointments  *AppointmentHandler
	Payments      *PaymentHandler
	Goals         *GoalHandler
	Authenticator Authenticator
}

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(h Handlers, health HealthChecker, cfg *config.Config, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if cfg.Server.EnableTLS {
		router.Use(requireHTTPS)
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(ClientIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(logger, w, http.StatusOK, map[string]string{"status": "healthy", "service": "booking-service"})
	})

	router.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if health == nil {
			respondWithJSON(logger, w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		failures := health.HealthCheck(ctx)
		if len(failures) == 0 {
			respondWithJSON(logger, w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		details := make(map[string]string, len(failures))
		for name, err := range failures {
			details[name] = err.Error()
		}
		logger.Warn("Readiness check failed", zap.Int("failing", len(details)))
		respondWithJSON(logger, w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":       "unavailable",
			"dependencies": details,
		})
	})

	router.Route("/api/v1", func(r chi.Router) {
		if h.Auth != nil {
			h.Auth.RegisterPublic(r)
		}
		if h.Directory != nil {
			h.Directory.RegisterPublic(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(h.Authenticator, logger))
			if h.Auth != nil {
				h.Auth.RegisterProtected(r)
			}
			if h.Appointments != nil {
				h.Appointments.RegisterProtected(r)
			}
			if h.Payments != nil {
				h.Payments.RegisterProtected(r)
			}
			if h.Goals != nil {
				h.Goals.RegisterProtected(r)
			}
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(logger, w, http.StatusNotFound, Response{Error: "endpoint not found", Code: "NOT_FOUND"})
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(logger, w, http.StatusMethodNotAllowed, Response{Error: "method not allowed"})
	})

	return router
}
