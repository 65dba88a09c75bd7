// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api is the composition root for HTTP: it builds the chi router, the
global middleware chain and the [http.Server] that serves them.

Route layout:

	GET  /health, /ready, /metrics    probes, unauthenticated
	     /api/v1/auth/...             login, register, refresh, session
	     /api/v1/entitlements         live entitlement check
	     /api/v1/admin/...            operator actions
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/extcontrol/internal/auth"
	"github.com/taibuivan/extcontrol/internal/platform/config"
	"github.com/taibuivan/extcontrol/internal/platform/constants"
	"github.com/taibuivan/extcontrol/internal/platform/middleware"
)

// Handlers are the endpoint sets the server mounts. Metrics may be nil.
type Handlers struct {
	Liveness  http.HandlerFunc
	Readiness http.HandlerFunc
	Metrics   http.Handler
	Auth      *auth.Handler
}

// Server owns the router and the listening [http.Server].
type Server struct {
	httpServer *http.Server
	router     chi.Router
	log        *slog.Logger
}

// NewServer assembles the router. Middleware order matters: the request id
// and client address must exist before the logger and throttle read them, and
// panics are recovered inside the logger so the 500 is still logged and counted.
func NewServer(cfg *config.Config, log *slog.Logger, trust *middleware.ProxyTrust, throttle *middleware.Throttle, handlers Handlers) *Server {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID(),
		middleware.ClientIP(trust),
		middleware.StructuredLogger(log),
		middleware.Metrics(),
		chimw.Timeout(constants.GlobalRequestTimeout),
		middleware.RateLimit(throttle),
		middleware.PanicRecovery(log),
		middleware.CORS(cfg),
		chimw.CleanPath,
	)

	mountProbes(router, handlers)
	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Mount("/auth", handlers.Auth.Routes())
		v1.Mount("/entitlements", handlers.Auth.EntitlementRoutes())
		v1.Mount("/admin", handlers.Auth.AdminRoutes())
	})

	return &Server{
		router: router,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           router,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
		},
	}
}

func mountProbes(router chi.Router, handlers Handlers) {
	router.Get("/health", handlers.Liveness)
	router.Get("/ready", handlers.Readiness)
	if handlers.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", handlers.Metrics)
	}
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks until the server stops. After [Server.Shutdown] it
// returns [http.ErrServerClosed].
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits up to timeout for
// in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
