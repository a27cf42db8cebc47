package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"ollama-bridge/internal/config"
	"ollama-bridge/internal/metrics"
	"ollama-bridge/internal/ollama"
)

// Upstream is the subset of the Ollama client used by the handlers.
type Upstream interface {
	Tags(ctx context.Context) (*ollama.TagsResponse, error)
	Version(ctx context.Context) (*ollama.VersionResponse, error)
	Generate(ctx context.Context, req ollama.GenerateRequest) (*ollama.GenerateResponse, error)
	GenerateStream(ctx context.Context, req ollama.GenerateRequest) (io.ReadCloser, error)
}

type Server struct {
	cfg      config.Config
	upstream Upstream
	log      *zap.Logger
	app      *echo.Echo
	version  string
	now      func() time.Time
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, upstream Upstream, log *zap.Logger, version string) (*Server, error) {
	if upstream == nil {
		return nil, errors.New("upstream must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		cfg:      cfg,
		upstream: upstream,
		log:      log,
		app:      e,
		version:  version,
		now:      time.Now,
	}
	e.HTTPErrorHandler = srv.handleError

	e.Pre(middleware.RemoveTrailingSlash())
	if cfg.Metrics.Enabled {
		e.Use(metrics.Middleware())
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:  true,
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Int64("latency_ms", v.Latency.Milliseconds()),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))
	if cfg.CORS.Enabled {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORS.AllowOrigins,
			AllowHeaders: cfg.CORS.AllowHeaders,
		}))
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	address := s.cfg.Server.Address()
	printStartupBanner(s.cfg)
	s.log.Info("starting server",
		zap.String("addr", address),
		zap.String("upstream", s.cfg.Upstream.BaseURL),
		zap.String("version", s.version),
	)

	// No WriteTimeout: SSE responses stay open for as long as the model generates.
	httpServer := &http.Server{
		Addr:        address,
		Handler:     s.app,
		ReadTimeout: s.cfg.Server.ReadTimeout,
		IdleTimeout: s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.log.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/", s.handleRoot)
	s.app.GET("/health", s.handleHealth)

	for _, prefix := range []string{"", "/v1"} {
		s.app.GET(prefix+"/models", s.handleModels)
		s.app.POST(prefix+"/chat/completions", s.handleChatCompletions)
		s.app.POST(prefix+"/completions", s.handleCompletions)
	}

	if s.cfg.Metrics.Enabled {
		s.app.GET(s.cfg.Metrics.Path, echo.WrapHandler(metrics.Handler()))
	}
}

func printStartupBanner(cfg config.Config) {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	port := cfg.Server.Port
	fmt.Println()
	fmt.Println("ollama-bridge ready")
	fmt.Printf("Listening on http://%s:%d, proxying %s\n", host, port, cfg.Upstream.BaseURL)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /v1/models")
	fmt.Println("  POST /v1/chat/completions")
	fmt.Println("  POST /v1/completions")
	if cfg.Metrics.Enabled {
		fmt.Printf("  GET  %s\n", cfg.Metrics.Path)
	}
	fmt.Println("The /v1 prefix is optional on every OpenAI route.")
	fmt.Printf("Example:\n  curl http://%s:%d/v1/chat/completions -H 'Content-Type: application/json' -d '{\"model\":\"llama3\",\"messages\":[{\"role\":\"user\",\"content\":\"hello\"}]}'\n\n", host, port)
}
