package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/interfaces/http/rest/handlers"
	"lms-dashboard/interfaces/http/rest/middleware"
	"lms-dashboard/pkg/auth"
	"lms-dashboard/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// ReadinessChecker reports whether a dependency can serve traffic
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds the optional parts of the router
type RouterConfig struct {
	EnableCORS     bool
	AllowedOrigins []string
	// ReadyTimeout bounds each readiness check
	ReadyTimeout time.Duration
}

// Router creates and configures the HTTP router
type Router struct {
	dashboard     *handlers.DashboardHandler
	enrollments   *handlers.EnrollmentHandler
	users         *handlers.UserHandler
	admin         *handlers.AdminHandler
	authenticator middleware.ViewerAuthenticator
	adminLimiter  auth.RateLimiter
	collector     *observability.Collector
	readiness     map[string]ReadinessChecker
	config        RouterConfig
	logger        *zap.Logger
}

// NewRouter creates a new router instance. collector may be nil when
// metrics are disabled.
func NewRouter(
	dashboard *handlers.DashboardHandler,
	enrollments *handlers.EnrollmentHandler,
	users *handlers.UserHandler,
	admin *handlers.AdminHandler,
	authenticator middleware.ViewerAuthenticator,
	adminLimiter auth.RateLimiter,
	collector *observability.Collector,
	readiness map[string]ReadinessChecker,
	config RouterConfig,
	logger *zap.Logger,
) *Router {
	if config.ReadyTimeout == 0 {
		config.ReadyTimeout = 2 * time.Second
	}
	return &Router{
		dashboard:     dashboard,
		enrollments:   enrollments,
		users:         users,
		admin:         admin,
		authenticator: authenticator,
		adminLimiter:  adminLimiter,
		collector:     collector,
		readiness:     readiness,
		config:        config,
		logger:        logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.collector != nil {
		router.Use(rt.collector.Middleware)
	}

	if rt.config.EnableCORS {
		origins := rt.config.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.collector != nil {
		router.Method(http.MethodGet, "/metrics", rt.collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.authenticator, rt.logger))

		r.Route("/dashboard", func(r chi.Router) {
			r.With(middleware.RequireRole(valueobjects.RoleGlobalAdmin)).
				Get("/global", rt.dashboard.GetGlobalStats)
			r.Get("/branches/{branchID}", rt.dashboard.GetBranchStats)
			r.Get("/instructors/{userID}", rt.dashboard.GetInstructorStats)
			r.Get("/progress", rt.dashboard.GetProgressData)
			r.Get("/activity", rt.dashboard.GetActivityData)
			r.Get("/recent-activities", rt.dashboard.GetRecentActivities)
		})

		r.Route("/enrollments", func(r chi.Router) {
			r.Use(middleware.RequireRole(
				valueobjects.RoleGlobalAdmin,
				valueobjects.RoleSuperAdmin,
				valueobjects.RoleAdmin,
				valueobjects.RoleInstructor,
			))
			r.Post("/", rt.enrollments.CreateEnrollment)
			r.Put("/{enrollmentID}", rt.enrollments.UpdateEnrollment)
			r.Delete("/{enrollmentID}", rt.enrollments.DeleteEnrollment)
		})

		r.Post("/users/{userID}/login", rt.users.RecordLogin)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(valueobjects.RoleGlobalAdmin, valueobjects.RoleSuperAdmin, valueobjects.RoleAdmin))
			r.Post("/users", rt.users.CreateUser)
			r.Patch("/users/{userID}", rt.users.UpdateUser)
		})

		r.Route("/admin/cache", func(r chi.Router) {
			r.Use(middleware.RequireRole(valueobjects.RoleGlobalAdmin))
			if rt.adminLimiter != nil {
				r.With(middleware.RateLimit(rt.adminLimiter, rt.logger)).Post("/clear", rt.admin.ClearCache)
			} else {
				r.Post("/clear", rt.admin.ClearCache)
			}
			r.Get("/stats", rt.admin.CacheStats)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck pings every registered dependency
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	checks := make(map[string]string, len(rt.readiness))
	status := http.StatusOK

	for name, checker := range rt.readiness {
		ctx, cancel := context.WithTimeout(req.Context(), rt.config.ReadyTimeout)
		err := checker.Ping(ctx)
		cancel()
		if err != nil {
			rt.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{"status": "ready", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
