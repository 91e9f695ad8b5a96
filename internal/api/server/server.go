package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xela07ax/orbit-auth/internal/api/handler"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra"
	"github.com/xela07ax/orbit-auth/internal/infra/auth"
	"go.uber.org/zap"
)

// Handlers: обработчики бизнес-доменов
type Handlers struct {
	Auth      *handler.AuthHandler      // /api/authenticate, /api/signup, /api/token/*
	User      *handler.UserHandler      // /api/user, /api/users, /api/bio, /api/user-role
	Inventory *handler.InventoryHandler // /api/inventory
	Dashboard *handler.DashboardHandler // /api/dashboard-data
	GraphQL   http.Handler              // /graphql
}

type Options struct {
	Logger        *zap.Logger
	Metrics       *infra.Metrics
	Gatherer      prometheus.Gatherer // nil: /metrics не публикуется
	Authenticator *auth.Authenticator
	// JWKS публикуется только при RS256
	JWKS *auth.JWKSet
	// Health проверяет хранилища (nil: всегда ок)
	Health func(ctx context.Context) error
	// Адреса прокси, чьим X-Forwarded-For / X-Real-IP можно верить. Пусто: не верим никому
	TrustedProxies []netip.Prefix
}

type Server struct {
	router *chi.Mux
	logger *zap.Logger
	opts   Options
	h      Handlers
}

// Правила доступа маршрутов: роли для локальных режимов, scope для внешнего IdP.
var (
	anyUser = []domain.Role{domain.RoleUser, domain.RoleAdmin}
	admin   = []domain.Role{domain.RoleAdmin}

	ruleDashboard       = auth.Rule{Roles: anyUser, Scopes: []string{"read:dashboard"}}
	ruleEditRole        = auth.Rule{Roles: admin, Scopes: []string{"edit:user"}}
	ruleReadUser        = auth.Rule{Roles: anyUser, Scopes: []string{"read:user"}}
	ruleEditUser        = auth.Rule{Roles: anyUser, Scopes: []string{"edit:user"}}
	ruleReadUsers       = auth.Rule{Roles: anyUser, Scopes: []string{"read:users"}}
	ruleReadInventory   = auth.Rule{Roles: admin, Scopes: []string{"read:inventory"}}
	ruleWriteInventory  = auth.Rule{Roles: admin, Scopes: []string{"write:inventory"}}
	ruleDeleteInventory = auth.Rule{Roles: admin, Scopes: []string{"delete:inventory"}}
)

// New инициализирует API Orbit со всеми зависимостями
func New(h Handlers, opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = infra.NewMetrics(nil)
	}
	s := &Server{
		router: chi.NewRouter(),
		logger: opts.Logger.Named("orbit-api"),
		opts:   opts,
		h:      h,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	a := s.opts.Authenticator

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(realIP(s.opts.TrustedProxies))
	r.Use(requestLogger(s.logger))
	r.Use(instrument(s.opts.Metrics))
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		r.Get("/health", s.health)
		if s.opts.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
		}
		if s.opts.JWKS != nil {
			r.Get("/.well-known/jwks.json", s.jwks)
		}

		// лимит попыток считает AuthService: он общий с GraphQL
		r.Post("/api/authenticate", s.h.Auth.Login)
		r.Post("/api/signup", s.h.Auth.Signup)
		r.Get("/api/token/refresh", s.h.Auth.Refresh)
		r.Delete("/api/token/invalidate", s.h.Auth.Invalidate)
		r.Delete("/api/logout", s.h.Auth.Logout)
		r.Post("/api/logout", s.h.Auth.Logout)

		// GraphQL сам проверяет роли на уровне полей
		if s.h.GraphQL != nil {
			r.With(a.Optional).Handle("/graphql", s.h.GraphQL)
		}
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР ---
	r.Group(func(r chi.Router) {
		r.Use(a.Middleware)

		r.With(a.Require(ruleDashboard)).Get("/api/dashboard-data", s.h.Dashboard.Get)

		r.With(a.Require(ruleReadUser)).Get("/api/user", s.h.User.Me)
		r.With(a.Require(ruleReadUsers)).Get("/api/users", s.h.User.List)
		r.With(a.Require(ruleReadUser)).Get("/api/bio", s.h.User.GetBio)
		r.With(a.Require(ruleEditUser)).Patch("/api/bio", s.h.User.UpdateBio)
		r.With(a.Require(ruleEditRole)).Patch("/api/user-role", s.h.User.UpdateRole)

		r.Route("/api/inventory", func(r chi.Router) {
			r.With(a.Require(ruleReadInventory)).Get("/", s.h.Inventory.List)
			r.With(a.Require(ruleWriteInventory)).Post("/", s.h.Inventory.Create)
			r.With(a.Require(ruleDeleteInventory)).Delete("/{id}", s.h.Inventory.Delete)
		})
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		if err := s.opts.Health(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) jwks(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, s.opts.JWKS)
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
