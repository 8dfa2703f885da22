package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/kvmap/internal/config"
	"github.com/MeKo-Tech/kvmap/internal/server"
	"github.com/MeKo-Tech/kvmap/internal/version"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP alignment API",
		Long: `Start an HTTP server that aligns templates onto documents.

The server provides the following endpoints:
  GET  /health         - Health check
  POST /automap        - Align a template using inline OCR payloads
  POST /batch/process  - Align one document read from server-side folders
  GET  /ws             - WebSocket variant of /automap
  GET  /metrics        - Prometheus metrics

Examples:
  kvmap serve
  kvmap serve --port 8080
  kvmap serve --host 0.0.0.0 --port 3000 --rate-limit-enabled
  kvmap serve --config kvmap.yaml --watch-config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}

	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origins")
	f.Int("max-upload-size", 50, "maximum request body size in MB")
	f.Int("timeout", 30, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Bool("watch-config", false, "reload alignment settings when the config file changes")
	f.Bool("rate-limit-enabled", false, "enable rate limiting")
	f.Int("requests-per-minute", 60, "maximum requests per minute per client")
	f.Int("requests-per-hour", 1000, "maximum requests per hour per client")
	f.Int("max-requests-per-day", 5000, "maximum requests per day per client")
	f.Int("max-data-per-day", 500, "maximum request data per day per client (MB)")

	for flag, key := range map[string]string{
		"host":                 "server.host",
		"port":                 "server.port",
		"cors-origin":          "server.cors_origin",
		"max-upload-size":      "server.max_upload_mb",
		"timeout":              "server.timeout_sec",
		"shutdown-timeout":     "server.shutdown_timeout",
		"watch-config":         "server.watch_config",
		"rate-limit-enabled":   "server.rate_limit_enabled",
		"requests-per-minute":  "server.requests_per_minute",
		"requests-per-hour":    "server.requests_per_hour",
		"max-requests-per-day": "server.max_requests_per_day",
		"max-data-per-day":     "server.max_data_per_day",
	} {
		bindConfigKey(f, flag, key)
	}
	return cmd
}

// serverConfigFrom maps the resolved configuration onto the server settings.
func serverConfigFrom(cfg *config.Config, logger *slog.Logger) server.Config {
	sc := server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		TimeoutSec:  cfg.Server.TimeoutSec,
		Version:     version.Version,
		Align:       cfg.Align,
		Colors:      cfg.Colors(),
		Logger:      logger,
	}
	if cfg.Server.RateLimitEnabled {
		sc.RateLimit = &server.RateLimitConfig{
			RequestsPerMinute: cfg.Server.RequestsPerMin,
			RequestsPerHour:   cfg.Server.RequestsPerHour,
			MaxRequestsPerDay: cfg.Server.MaxRequestsDay,
			MaxDataPerDay:     int64(cfg.Server.MaxDataPerDayMB) << 20,
		}
	}
	return sc
}

func (a *app) runServe(cmd *cobra.Command) error {
	cfg := a.cfg
	srv, err := server.NewServer(serverConfigFrom(cfg, a.logger))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.Server.WatchConfig {
		if used := a.loader.GetConfigFileUsed(); used != "" {
			a.loader.Watch(func(next *config.Config) {
				if err := srv.SetAlignConfig(next.Align); err != nil {
					a.logger.Error("rejected alignment settings", "error", err)
					return
				}
				a.logger.Info("reloaded alignment settings", "file", used)
			}, func(err error) {
				a.logger.Error("config reload failed", "error", err)
			})
		} else {
			a.logger.Warn("--watch-config has no effect without a config file")
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.Timeout(),
		WriteTimeout:      cfg.Server.Timeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting kvmap server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	a.logger.Info("starting graceful shutdown", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("graceful shutdown completed")
	return nil
}
