package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the conflictfewer application
var rootCmd = &cobra.Command{
	Use:   "conflictfewer",
	Short: "Schedules meetings in Google Calendar without creating conflicts",
	Long: `conflictfewer schedules meetings in Google Calendar and detects
conflicts before they happen. When a requested slot collides with an
existing event, it proposes the nearest free slot that respects the
participant's working hours, buffer times and blocked days.

It can run as:
  - An HTTP scheduling API (default)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "conflictfewer version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
