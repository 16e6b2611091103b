package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/adapters/observatory"
	apihttp "github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/api/http"
	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/api/middleware"
	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/domain/events"
	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/execution"
	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/infrastructure/config"
	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/infrastructure/logging"
	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/infrastructure/monitoring"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router   *gin.Engine
	http     *http.Server
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	exporter *observatory.Exporter
}

// New creates a new server instance.
func New(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Initializing analytics hub",
		zap.String("port", cfg.Server.Port),
		zap.String("repo_name", cfg.Execution.RepoName),
	)

	metrics := monitoring.NewMetrics()

	var exporter *observatory.Exporter
	var onFinalized func(execution.Hierarchy)
	if cfg.Observatory.Enabled {
		exporter = observatory.New(observatory.Config{
			Endpoint:   cfg.Observatory.Endpoint,
			APIKey:     cfg.Observatory.APIKey,
			Timeout:    cfg.Observatory.Timeout(),
			BufferSize: cfg.Observatory.BufferSize,
		}, logger.Logger, metrics)
		onFinalized = exporter.Submit
		logger.Info("Observatory export enabled", zap.String("endpoint", cfg.Observatory.Endpoint))
	}

	validator, err := events.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event validator: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())

	// Metrics sit outside the execution middleware so they record the status
	// the client actually received, including invariant overrides. CORS and
	// rate limiting also run first: browser preflights carry no execution
	// headers and must never reach context enforcement, and a rate-limited
	// request never opens a graph.
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(execution.Middleware(execution.MiddlewareConfig{
		RepoName:    cfg.Execution.RepoName,
		Logger:      logger.Logger,
		Metrics:     metrics,
		OnFinalized: onFinalized,
	}))

	handlers := apihttp.NewHandlers(logger, validator)

	router.GET("/health", handlers.Health)
	router.GET("/ready", handlers.Ready)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.POST("/events/ingest", handlers.IngestEvents)

	router.POST("/analytics/anomalies", handlers.DetectAnomalies)
	router.POST("/analytics/correlation", handlers.Correlate)
	router.POST("/analytics/predict", handlers.Predict)
	router.POST("/analytics/summary", handlers.Summarize)

	router.GET("/pipelines/:id/metadata", handlers.PipelineMetadata)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		exporter: exporter,
	}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.http = &http.Server{Addr: addr, Handler: s.router}
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close gracefully shuts down the server and drains the exporter.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
	}

	if s.exporter != nil {
		if err := s.exporter.Close(); err != nil {
			return fmt.Errorf("failed to drain exporter: %w", err)
		}
	}

	return nil
}
