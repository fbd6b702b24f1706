package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/ferxalbs/termmux/internal/api/http"
	"github.com/ferxalbs/termmux/internal/api/middleware"
	"github.com/ferxalbs/termmux/internal/api/ws"
	"github.com/ferxalbs/termmux/internal/host/local"
	"github.com/ferxalbs/termmux/internal/host/remote"
	"github.com/ferxalbs/termmux/internal/infrastructure/config"
	"github.com/ferxalbs/termmux/internal/infrastructure/logging"
	"github.com/ferxalbs/termmux/internal/infrastructure/monitoring"
	"github.com/ferxalbs/termmux/internal/infrastructure/tracing"
	"github.com/ferxalbs/termmux/internal/mux"
)

const dialTimeout = 10 * time.Second

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *monitoring.Metrics
	svc     *mux.Service
	host    io.Closer
	httpSrv *http.Server
}

// New builds the full server from configuration.
func New(cfg *config.Config, log *logging.Logger) (*Server, error) {
	metrics := monitoring.NewMetrics()

	host, closer, err := buildHost(cfg, log, metrics)
	if err != nil {
		return nil, err
	}

	svc := mux.NewService(host, log.Named("mux"), mux.Options{
		WriteDelay:     time.Duration(cfg.Mux.WriteDelayMs) * time.Millisecond,
		ResizeDelay:    time.Duration(cfg.Mux.ResizeDelayMs) * time.Millisecond,
		CreateAttempts: cfg.Mux.CreateAttempts,
		CreateBackoff:  time.Duration(cfg.Mux.CreateBackoffMs) * time.Millisecond,
	}).WithMetrics(metrics)

	if err := svc.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize multiplexer: %w", err)
	}

	router := buildRouter(cfg, log, metrics, svc)

	return &Server{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		svc:     svc,
		host:    closer,
		httpSrv: &http.Server{
			Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
			Handler: router,
		},
	}, nil
}

// buildHost selects the process host backend from configuration.
func buildHost(cfg *config.Config, log *logging.Logger, metrics *monitoring.Metrics) (mux.Host, io.Closer, error) {
	switch cfg.Host.Mode {
	case "local":
		h := local.New(log.Named("host"))
		return h, h, nil
	case "remote":
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		c, err := remote.Dial(ctx, cfg.Host.Address, log.Named("host"))
		if err != nil {
			return nil, nil, err
		}
		return c.WithMetrics(metrics), c, nil
	default:
		return nil, nil, fmt.Errorf("unknown host mode %q (want local or remote)", cfg.Host.Mode)
	}
}

func buildRouter(cfg *config.Config, log *logging.Logger, metrics *monitoring.Metrics, svc *mux.Service) *gin.Engine {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracing.New("termmux", log.Logger)))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(svc)
	wsHandler := ws.NewHandler(svc, log.Named("ws")).WithMetrics(metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.KillSession)
	router.POST("/sessions/:id/write", handlers.WriteSession)
	router.POST("/sessions/:id/resize", handlers.ResizeSession)
	router.POST("/sessions/:id/cd", handlers.ChangeDirectory)

	router.GET("/profiles", handlers.ListProfiles)
	router.POST("/profiles/init", handlers.InitProfiles)

	router.GET("/stream", wsHandler.HandleConnection)

	return router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	s.log.Info("Starting termmux server",
		zap.String("addr", s.httpSrv.Addr),
		zap.String("host_mode", s.cfg.Host.Mode),
	)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server, tears down the multiplexer (which
// flushes pending writes), and closes the process host.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down termmux server")

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.log.Warn("HTTP server shutdown failed", zap.Error(err))
	}

	s.svc.Destroy()

	if s.host != nil {
		if err := s.host.Close(); err != nil {
			s.log.Warn("Process host close failed", zap.Error(err))
			return err
		}
	}
	return nil
}
