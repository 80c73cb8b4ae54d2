package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/fusion-batch/internal/config"
	"github.com/kozaktomas/fusion-batch/internal/constants"
	"github.com/kozaktomas/fusion-batch/internal/database"
	"github.com/kozaktomas/fusion-batch/internal/web/handlers"
	"github.com/kozaktomas/fusion-batch/internal/web/middleware"
	"go.uber.org/zap"
)

// Server represents the batch web service
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	jobManager *handlers.JobManager
	executor   *handlers.Executor
	history    database.RunReader
	logger     *zap.Logger

	workerOnce sync.Once
	stopWorker context.CancelFunc
	workerDone chan struct{}
}

// NewServer creates a new web server. history may be nil when no database is configured.
func NewServer(cfg *config.Config, executor *handlers.Executor, history database.RunReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("web")
	r := chi.NewRouter()

	s := &Server{
		config:     cfg,
		router:     r,
		jobManager: handlers.NewJobManager(constants.BatchQueueSize),
		executor:   executor,
		history:    history,
		logger:     logger,
		workerDone: make(chan struct{}),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))

	// Set up routes
	s.setupRoutes()

	// WriteTimeout stays unset: event streams last as long as a batch.
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// StartWorker launches the goroutine executing queued batches one at a time.
// Start calls it; calling it again is a no-op.
func (s *Server) StartWorker() {
	s.workerOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopWorker = cancel
		go func() {
			defer close(s.workerDone)
			s.jobManager.Run(ctx, s.executor.Run)
		}()
	})
}

// Start starts the worker and the HTTP server
func (s *Server) Start() error {
	s.StartWorker()
	s.logger.Info("starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, cancels the running batch and waits for
// the worker to finish its cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	if s.stopWorker != nil {
		s.stopWorker()
		select {
		case <-s.workerDone:
		case <-ctx.Done():
			return fmt.Errorf("waiting for batch worker: %w", ctx.Err())
		}
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// JobManager returns the batch queue.
func (s *Server) JobManager() *handlers.JobManager {
	return s.jobManager
}
