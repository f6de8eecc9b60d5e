package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/dancrook1/w2f-config/internal/configurator"
	"github.com/dancrook1/w2f-config/internal/domain"
	"github.com/dancrook1/w2f-config/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, svc *configurator.Service, engine *rules.Engine, version string) *Server {
	handler := NewHandler(repo, cache, svc, engine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Storefront configurator surface
	router.Route("/configurators/{id}", func(r chi.Router) {
		r.Get("/", handler.GetConfigurator)
		r.Post("/compatibility", handler.CheckCompatibility)
		r.Post("/price", handler.CalculatePrice)
		r.Post("/options", handler.FilterOptions)
		r.Post("/slots/{slotID}/options", handler.FilterSlotOptions)
		r.Post("/submit", handler.Submit)
		r.Post("/share", handler.ShareConfiguration)
		r.Post("/share/decode", handler.ResolveShared)
	})

	// Order retrieval
	router.Get("/orders/{id}", handler.GetOrder)

	// Rule management
	router.Get("/rules", handler.ListRules)
	router.Get("/rules/{id}", handler.GetRule)
	router.Post("/rules", handler.CreateRule)
	router.Delete("/rules/{id}", handler.DeleteRule)
	router.Post("/rules/reload", handler.ReloadRules)
	router.Post("/rules/preview", handler.PreviewRule)

	// Warranty pricing tables
	router.Get("/warranty", handler.GetWarranty)
	router.Put("/warranty", handler.UpdateWarranty)
	router.Post("/warranty/reload", handler.ReloadWarranty)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
