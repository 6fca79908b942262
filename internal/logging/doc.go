// Package logging provides structured logging utilities for the conflictfewer application.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (email anonymization)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "schedule.meeting")
//	logger.Info("meeting scheduled",
//	    logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("conflict detected",
//	    logging.UserHash(participant))
//
// # Security Considerations
//
// Scheduling requests carry participant and attendee email addresses. General
// logs hash those addresses so entries can still be correlated; tokens are
// never logged directly.
package logging
