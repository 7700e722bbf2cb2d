// Package api serves stored binary models over HTTP.
//
// Routes under /api/v1 require an X-API-Key header. /metrics is left open
// for scraping.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ssargent/rbxdom/pkg/reflection"
)

const shutdownTimeout = 10 * time.Second

// Router builds the HTTP handler with all routes configured
func (s *Server) Router() http.Handler {
	metrics := s.metrics

	r := chi.NewRouter()

	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))

		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

		r.Post("/models", metrics.InstrumentHandler("POST", "/api/v1/models", s.handleUploadModel))
		r.Get("/models", metrics.InstrumentHandler("GET", "/api/v1/models", s.handleListModels))
		r.Get("/models/{id}", metrics.InstrumentHandler("GET", "/api/v1/models/{id}", s.handleGetModel))
		r.Delete("/models/{id}", metrics.InstrumentHandler("DELETE", "/api/v1/models/{id}", s.handleDeleteModel))
		r.Get("/models/{id}/view", metrics.InstrumentHandler("GET", "/api/v1/models/{id}/view", s.handleViewModel))
		r.Get("/models/{id}/chunks", metrics.InstrumentHandler("GET", "/api/v1/models/{id}/chunks", s.handleModelChunks))
		r.Post("/models/{id}/reencode", metrics.InstrumentHandler("POST", "/api/v1/models/{id}/reencode", s.handleReencodeModel))
	})

	return r
}

// StartServer serves the API until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, store IModelStore, db *reflection.Database, config ServerConfig, logger zerolog.Logger) error {
	server := NewServer(store, db, config, NewMetrics(), logger)
	server.refreshStoreStats()

	addr := net.JoinHostPort(config.Bind, fmt.Sprintf("%d", config.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("starting rbxdom API server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve API: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down rbxdom API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	return nil
}
