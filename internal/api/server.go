package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pixelfly/pixeltrack/internal/config"
	"github.com/pixelfly/pixeltrack/internal/dedup"
	"github.com/pixelfly/pixeltrack/internal/dispatch"
)

type Server struct {
	cfg        config.ServerConfig
	dispatcher *dispatch.Dispatcher
	guard      *dedup.Guard
	router     *chi.Mux
	log        zerolog.Logger
	http       *http.Server
}

func NewServer(cfg config.ServerConfig, dispatcher *dispatch.Dispatcher, guard *dedup.Guard, log zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		guard:      guard,
		log:        log,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))

	webhookHandler := NewWebhookHandler(s.dispatcher)
	eventHandler := NewEventHandler(s.dispatcher)
	trackHandler := NewTrackHandler(s.guard, s.dispatcher)

	// Health and metrics — no auth
	r.Get("/health", eventHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Inbound commerce platform webhooks — HMAC verified
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(WebhookVerifyMiddleware(s.cfg.WebhookSecret))
		r.Use(SeenMiddleware)

		r.Post("/orders/created", webhookHandler.OrderCreated)
		r.Post("/orders/status", webhookHandler.OrderStatusChanged)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Client-side purchase push — public, guarded by dedup
		r.Post("/track/purchase", trackHandler.Purchase)

		// Operator endpoints
		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(s.cfg.AdminToken))
			r.Use(SeenMiddleware)

			r.Get("/events/pending", eventHandler.Pending)
			r.Get("/events/stats", eventHandler.Stats)
			r.Post("/events/{id}/fire", eventHandler.Fire)
			r.Post("/events/fire-all", eventHandler.FireAll)
			r.Delete("/events/{id}", eventHandler.Delete)
		})
	})

	return r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
