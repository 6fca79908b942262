package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/teemow/conflictfewer/internal/instrumentation"
	"github.com/teemow/conflictfewer/internal/preference"
	"github.com/teemow/conflictfewer/internal/server"
)

const defaultHTTPAddr = ":8080"

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode       bool
		httpAddr        string
		calendarID      string
		preferencesFile string
		rateLimitPerMin float64
		rateBurst       int
		rateLimitOff    bool
		metricsEnabled  bool
		metricsAddr     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scheduling API",
		Long: `Start the HTTP scheduling API.

The API exposes scheduling operations under /api:
  - POST /api/schedule/meeting     Schedule a meeting, detecting conflicts
  - POST /api/schedule/cancel      Cancel a scheduled meeting
  - POST /api/schedule/reschedule  Move a meeting to a new slot
  - GET  /api/availability         List free slots for a user
  - GET  /api/preferences/         Read a user's availability preferences
  - POST /api/preferences/set      Update a user's availability preferences
  - GET  /api/calendar/events      List upcoming calendar events
  - GET  /api/analytics            Weekly meeting load report

Google Calendar access requires a stored OAuth token; run
'conflictfewer auth' first. Requests arriving before a token exists
are answered with 503 so the API can start ahead of authorization.

Liveness and readiness probes are served on /healthz and /readyz.
Prometheus metrics are served on a dedicated port (default :9090).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rlConfig := server.DefaultRateLimiterConfig()
			if rateLimitPerMin > 0 {
				rlConfig.Rate = rate.Limit(rateLimitPerMin / 60.0)
			}
			if rateBurst > 0 {
				rlConfig.Burst = rateBurst
			}

			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}

			return runServe(debugMode, httpAddr, calendarID, preferencesFile, rlConfig, rateLimitOff, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&httpAddr, "http-addr", defaultHTTPAddr, "HTTP server address. Can also use HTTP_ADDR env var.")
	cmd.Flags().StringVar(&calendarID, "calendar-id", "primary", "Google Calendar ID to schedule against. Can also use CALENDAR_ID env var.")
	cmd.Flags().StringVar(&preferencesFile, "preferences-file", "", "Path to the preferences file. Can also use PREFERENCES_FILE env var. Default: <user config dir>/conflictfewer/preferences.json")
	cmd.Flags().Float64Var(&rateLimitPerMin, "rate-limit", 0, "Sustained requests per minute per client (default: 120)")
	cmd.Flags().IntVar(&rateBurst, "rate-burst", 0, "Burst size per client (default: 120)")
	cmd.Flags().BoolVar(&rateLimitOff, "no-rate-limit", false, "Disable per-client rate limiting")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(debugMode bool, httpAddr, calendarID, preferencesFile string, rlConfig server.RateLimiterConfig, rateLimitOff bool, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load config from environment variables if not set via flags
	if httpAddr == "" || httpAddr == defaultHTTPAddr {
		if addr := os.Getenv("HTTP_ADDR"); addr != "" {
			httpAddr = addr
		}
	}
	if calendarID == "" || calendarID == "primary" {
		if id := os.Getenv("CALENDAR_ID"); id != "" {
			calendarID = id
		}
	}
	if !metricsConfig.Enabled {
		if os.Getenv("METRICS_ENABLED") == "true" {
			metricsConfig.Enabled = true
		}
	}
	if metricsConfig.Addr == "" || metricsConfig.Addr == server.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			metricsConfig.Addr = addr
		}
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during instrumentation shutdown", "error", err)
		}
	}()

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		// Wait for metrics server to be ready or fail
		select {
		case <-metricsReady:
			logger.Info("metrics server started", "addr", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	store, err := newPreferenceStore(resolvePreferencesPath(preferencesFile), logger)
	if err != nil {
		return fmt.Errorf("failed to create preference store: %w", err)
	}

	audit := instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)

	serverContext, err := server.NewServerContext(shutdownCtx, server.ServerContextConfig{
		Preferences:     store,
		CalendarID:      calendarID,
		Instrumentation: provider,
		Audit:           audit,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}

	health := server.NewHealthChecker(serverContext)

	var limiter *server.RateLimiter
	if !rateLimitOff {
		limiter = server.NewRateLimiter(rlConfig)
		defer limiter.Stop()
	}

	router := server.NewContextRouter(serverContext, server.RouterConfig{
		Logger:      logger,
		Metrics:     serverContext.Metrics(),
		RateLimiter: limiter,
		Health:      health,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		defer close(serverErr)
		logger.Info("starting scheduling API", "addr", httpAddr, "calendar_id", calendarID)
		health.SetReady(true)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server stopped: %w", err)
		}
	case <-shutdownCtx.Done():
	}

	health.SetReady(false)
	logger.Info("shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := httpServer.Shutdown(stopCtx); err != nil {
		logger.Error("error during http server shutdown", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(stopCtx); err != nil {
			logger.Error("error during metrics server shutdown", "error", err)
		}
	}
	if err := serverContext.Shutdown(); err != nil {
		logger.Error("error during server context shutdown", "error", err)
	}

	return nil
}

// resolvePreferencesPath picks the preferences file path: flag, then
// PREFERENCES_FILE env var, then the per-user default.
func resolvePreferencesPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("PREFERENCES_FILE"); env != "" {
		return env
	}
	return defaultPreferencesPath()
}

func defaultPreferencesPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "conflictfewer", "preferences.json")
}

func newPreferenceStore(path string, logger *slog.Logger) (*preference.Store, error) {
	return preference.NewStore(
		preference.WithPersistence(path),
		preference.WithLogger(logger),
	)
}
