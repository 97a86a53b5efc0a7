package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/webharvest/internal/api/http"
	"github.com/GriffinCanCode/webharvest/internal/api/middleware"
	"github.com/GriffinCanCode/webharvest/internal/api/ws"
	"github.com/GriffinCanCode/webharvest/internal/domain/container"
	"github.com/GriffinCanCode/webharvest/internal/domain/matcher"
	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
	"github.com/GriffinCanCode/webharvest/internal/domain/session"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/config"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webharvest/internal/providers/browser"
	"github.com/GriffinCanCode/webharvest/internal/providers/operations"
	"github.com/GriffinCanCode/webharvest/internal/providers/webhook"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	sessions *session.Manager
	browser  *browser.Manager
	sink     *webhook.Sink
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing webharvest server",
		zap.String("port", cfg.Server.Port),
		zap.String("catalogs", cfg.Catalog.Dir),
		zap.Bool("browser", cfg.Browser.Enabled),
	)

	// Metrics first, every component records into them
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	catalogs := container.NewRegistry(logger.Component("catalog"))
	if err := container.LoadInto(ctx, catalogs, cfg.Catalog.Dir); err != nil {
		return nil, fmt.Errorf("failed to load catalogs: %w", err)
	}
	logger.Info("Catalogs loaded", zap.Strings("sites", catalogs.Sites()))

	ops := operation.NewRegistry()
	if err := operations.Register(ops); err != nil {
		return nil, fmt.Errorf("failed to register operations: %w", err)
	}

	opts := session.Options{
		Containers: catalogs,
		Operations: ops,
		Match: matcher.Options{
			MaxDepth:    cfg.Runtime.MaxDepth,
			MaxChildren: cfg.Runtime.MaxChildren,
		},
		OperationTimeout: cfg.Runtime.OperationTimeout,
		BatchConcurrency: cfg.Runtime.BatchConcurrency,
		HistoryLimit:     cfg.Runtime.HistoryLimit,
		ScriptTimeout:    cfg.Runtime.ScriptTimeout,
		PollInterval:     cfg.Runtime.PollInterval,
		Logger:           logger.Component("session"),
		Metrics:          metrics,
	}

	var browserManager *browser.Manager
	if cfg.Browser.Enabled {
		browserManager = browser.NewManager(browser.Config{
			ControlURL:        cfg.Browser.ControlURL,
			Headless:          cfg.Browser.Headless,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			Logger:            logger.Component("browser"),
		})
		opts.Pages = browserManager
		logger.Info("Browser control enabled", zap.Bool("remote", cfg.Browser.ControlURL != ""))
	}

	var sink *webhook.Sink
	if cfg.Webhook.URL != "" {
		sink = webhook.NewSink(webhook.Options{
			URL:     cfg.Webhook.URL,
			Pattern: cfg.Webhook.Pattern,
			Client: webhook.ClientOptions{
				Timeout:    cfg.Webhook.Timeout,
				MaxRetries: cfg.Webhook.MaxRetries,
				RPS:        cfg.Webhook.RPS,
			},
			Logger: logger.Component("webhook"),
		})
		opts.Sinks = append(opts.Sinks, sink)
		logger.Info("Webhook sink enabled", zap.String("pattern", cfg.Webhook.Pattern))
	}

	sessions := session.NewManager(opts)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Component("http")))
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

	// Register routes
	apihttp.NewHandlers(apihttp.Options{
		Sessions:   sessions,
		Operations: ops,
		Catalogs:   catalogs,
		Metrics:    metrics,
		Gatherer:   registry,
		Logger:     logger.Component("api"),
	}).Register(router)
	ws.NewHandler(ws.Options{
		Sessions: sessions,
		Metrics:  metrics,
		Logger:   logger.Component("ws"),
	}).Register(router)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		sessions: sessions,
		browser:  browserManager,
		sink:     sink,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP until Shutdown is called
func (s *Server) Run() error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// the runtime
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := s.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close tears down sessions and the collaborators they use
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.sessions.CloseAll()
	s.logger.Info("Closed sessions")

	var errs []error
	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			s.logger.Error("Failed to close webhook sink", zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to close webhook sink: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.logger.Error("Failed to close browser", zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
