package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/fusion-batch/internal/metrics"
	"github.com/kozaktomas/fusion-batch/internal/web/handlers"
)

// requestTimeout bounds every endpoint except event streams.
const requestTimeout = 60 * time.Second

func (s *Server) setupRoutes() {
	// Create handlers
	batchesHandler := handlers.NewBatchesHandler(s.jobManager, s.executor, s.logger)
	presetsHandler := handlers.NewPresetsHandler(s.executor.Catalog())
	historyHandler := handlers.NewHistoryHandler(s.history, s.logger)

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		// Streams stay open until the batch finishes.
		r.Get("/batches/{jobId}/events", batchesHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			// Batches
			r.Post("/batches", batchesHandler.Start)
			r.Get("/batches", batchesHandler.List)
			r.Get("/batches/{jobId}", batchesHandler.Status)
			r.Delete("/batches/{jobId}", batchesHandler.Cancel)

			// Presets
			r.Get("/presets", presetsHandler.List)

			// History
			r.Get("/history", historyHandler.List)
			r.Get("/history/{runId}", historyHandler.Get)
		})
	})
}
