// Package cmd implements the command-line interface for conflictfewer.
//
// This package provides the following commands:
//   - serve: Start the HTTP scheduling API
//   - mcp: Start the MCP server to provide scheduling tools for AI assistants
//   - auth: Authorize access to a Google Calendar account
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The serve command is the default command when no subcommand is specified.
package cmd
