package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/adamanr/hr_console/internal/entity"
	"github.com/adamanr/hr_console/internal/session"
	logging "github.com/adamanr/hr_console/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AttendanceRoles may use the attendance routes.
	AttendanceRoles = []string{entity.RoleEmployee, entity.RoleAdmin, entity.RoleSuperAdmin, entity.RoleHR}
	// EmployeeRoles may manage employees.
	EmployeeRoles = []string{entity.RoleAdmin, entity.RoleSuperAdmin, entity.RoleHR}
)

// RequireRoles admits authenticated identities holding one of roles. An
// empty roles list admits every authenticated identity.
func (s Server) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.deps.Session.State() != session.StateAuthenticated {
				s.httpResponse(w, http.StatusUnauthorized, "Unauthorized", "error")
				return
			}

			if !s.deps.Session.Identity().HasAnyRole(roles...) {
				s.deps.Logger.Warn("Access denied",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("path", r.URL.Path),
				)
				s.httpResponse(w, http.StatusForbidden, "Forbidden", "error")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Metrics counts requests by route pattern.
type Metrics struct {
	requests *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
	}
	reg.MustRegister(m.requests)

	return m
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		m.requests.WithLabelValues(path, r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}

// NewRouter assembles the gateway: request ids, logging, CORS, metrics and
// the role-gated API routes.
func NewRouter(s *Server, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logging.Middleware(s.deps.Logger))

	var origins []string
	if s.deps.Config != nil {
		origins = s.deps.Config.Gateway.AllowedOrigins
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if reg != nil {
		r.Use(NewMetrics(reg).Middleware)
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return HandlerWithOptions(s, ChiServerOptions{
		BaseRouter: r,
		Middlewares: map[string][]func(http.Handler) http.Handler{
			"attendance": {s.RequireRoles(AttendanceRoles...)},
			"employees":  {s.RequireRoles(EmployeeRoles...)},
		},
		ErrorHandlerFunc: s.paramError,
	})
}
