package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/conflictfewer/internal/instrumentation"
	"github.com/teemow/conflictfewer/internal/server"
	"github.com/teemow/conflictfewer/internal/tools/schedule_tools"
)

func newMCPCmd() *cobra.Command {
	var (
		calendarID      string
		preferencesFile string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server to provide scheduling
tools for AI assistants over standard input/output.

Available tools:
  - schedule_meeting:   Schedule a meeting, detecting conflicts
  - find_availability:  List free slots for a participant
  - cancel_meeting:     Cancel a scheduled meeting
  - reschedule_meeting: Move a meeting to a new slot
  - set_reminder:       Set reminders on a scheduled meeting
  - set_preferences:    Update availability preferences

Google Calendar access requires a stored OAuth token; run
'conflictfewer auth' first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(calendarID, preferencesFile)
		},
	}

	cmd.Flags().StringVar(&calendarID, "calendar-id", "primary", "Google Calendar ID to schedule against. Can also use CALENDAR_ID env var.")
	cmd.Flags().StringVar(&preferencesFile, "preferences-file", "", "Path to the preferences file. Can also use PREFERENCES_FILE env var. Default: <user config dir>/conflictfewer/preferences.json")

	return cmd
}

func runMCP(calendarID, preferencesFile string) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Stdio owns stdout, so logs go to stderr and stay quiet by default.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if calendarID == "" || calendarID == "primary" {
		if id := os.Getenv("CALENDAR_ID"); id != "" {
			calendarID = id
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
		_ = provider.Shutdown(shutdownCtx)
	}()

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
	defer func() {
		_ = serverContext.Shutdown()
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("conflictfewer", version,
		mcpserver.WithToolCapabilities(true),
	)

	if err := schedule_tools.RegisterScheduleTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register scheduling tools: %w", err)
	}

	return runStdioServer(mcpSrv)
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
