package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/target/jobmatch/config"
	httpx "github.com/target/jobmatch/internal/http"
	"github.com/target/jobmatch/internal/service"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// Errors receives the serve error if the listener dies after startup.
	Errors chan<- error
}

// StartHTTPServer binds the listener and serves in the background. A bind failure is
// returned directly so startup aborts before any runner is launched.
func StartHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	if cfg == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpCfg := config.HTTPConfig{}
	if cfg.Config != nil {
		httpCfg = cfg.Config.HTTP
	}
	httpCfg.Sanitize()

	server := &http.Server{
		Addr:              httpCfg.Addr,
		Handler:           buildHTTPHandler(logger, httpCfg, routerServices(cfg.Services, httpCfg, logger)),
		ReadTimeout:       httpCfg.ReadTimeout,
		ReadHeaderTimeout: httpCfg.ReadTimeout,
		WriteTimeout:      httpCfg.WriteTimeout,
		IdleTimeout:       httpCfg.IdleTimeout,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", server.Addr, err)
	}
	logger.Info("HTTP server listening", "addr", ln.Addr().String())

	go func() {
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", serveErr)
			if cfg.Errors != nil {
				select {
				case cfg.Errors <- fmt.Errorf("http server: %w", serveErr):
				default:
				}
			}
		}
	}()
	return server, nil
}

func routerServices(svc ServiceContainer, httpCfg config.HTTPConfig, logger *slog.Logger) httpx.RouterServices {
	rs := httpx.RouterServices{
		Intake:        svc.Intake,
		Progress:      svc.Progress,
		Keys:          svc.Keys,
		UploadLimiter: svc.UploadLimiter,
		HealthChecks:  svc.HealthChecks,
		CookieDomain:  httpCfg.CookieDomain,
		Logger:        logger,
	}
	// Leave Auth as a nil interface rather than a typed nil pointer.
	if svc.Auth != nil {
		rs.Auth = svc.Auth
	}
	return rs
}

// buildHTTPHandler wraps the router as Recover(Logging(Compression(router))) so the access
// log records compressed sizes and panics anywhere below are turned into 500s.
func buildHTTPHandler(logger *slog.Logger, httpCfg config.HTTPConfig, services httpx.RouterServices) http.Handler {
	h := httpx.NewRouter(services)
	if httpCfg.CompressionEnabled {
		if compress, err := httpx.Compression(httpx.CompressionConfig{Level: httpCfg.CompressionLevel}); err != nil {
			logger.Warn("HTTP compression disabled", "error", err)
		} else {
			logger.Info("HTTP compression enabled", "level", httpCfg.CompressionLevel)
			h = compress(h)
		}
	}
	return httpx.Recover(logger)(httpx.Logging(logger)(h))
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Queue   *service.TaskQueue
	Logger  *slog.Logger
}

// ShutdownHTTPServer wakes idle queue listeners, then drains in-flight requests until
// Context expires.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	logger.Info("shutting down HTTP server")
	if cfg.Queue != nil {
		cfg.Queue.StopAllListeners()
	}
	if err := cfg.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
