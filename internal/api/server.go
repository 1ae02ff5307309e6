package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/subadmin/internal/api/handler"
	mw "github.com/edvin/subadmin/internal/api/middleware"
	"github.com/edvin/subadmin/internal/config"
	"github.com/edvin/subadmin/internal/core"
	"github.com/edvin/subadmin/internal/mcpserver"
)

// Version is reported by the MCP endpoint.
const Version = "1.0.0"

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	cfg      *config.Config
}

func NewServer(logger zerolog.Logger, services *core.Services, cfg *config.Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		cfg:      cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(chimw.Recoverer)
	s.router.Use(mw.Metrics)
	s.router.Use(mw.CORS(s.cfg.CORSOrigins))
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	auth := handler.NewAuth(s.services.Identity)
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/login", auth.Login)
		r.Post("/logout", auth.Logout)
		r.Get("/me", auth.Me)
		r.With(mw.RequireIdentity(s.services.Identity)).
			Get("/events", handler.NewEvents(s.services.Identity, originHosts(s.cfg.CORSOrigins)).Stream)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(mw.RequireIdentity(s.services.Identity))

		r.Route("/api/v1", func(r chi.Router) {
			subscription := handler.NewSubscription(s.services.ReadModel, s.services.Editor, s.services.Creator, s.cfg.DefaultAgentID)
			r.Get("/subscriptions", subscription.List)
			r.Post("/subscriptions", subscription.Create)
			r.Patch("/subscriptions/{id}", subscription.Update)
			r.Patch("/agents/{agentID}/users/{userID}/subscription", subscription.UpdateByUser)

			directory := handler.NewDirectory(s.services.Directory)
			r.Get("/users", directory.ListUsers)
			r.Get("/agent-users", directory.ListAgentUsers)
			r.Patch("/agents/{agentID}/users/{userID}", directory.UpdateAgentUser)
			r.Get("/agent-steps", directory.ListAgentSteps)
		})

		tools := mcpserver.New(s.services, s.cfg.DefaultAgentID, Version, s.logger.With().Str("component", "mcp").Logger())
		r.Mount("/mcp", tools.Handler())
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := s.services.Directory.TestConnection(ctx)
	if healthy {
		checks["gateway"] = "ok"
	} else {
		checks["gateway"] = "unreachable"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// originHosts turns CORS origins into the host patterns websocket.Accept matches.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
