// Package google provides OAuth2 authentication and token management for
// Google APIs.
//
// Tokens are stored per account in the user cache directory. The
// TokenProvider interface allows different token sources to be plugged in,
// keeping the calendar client testable without touching the filesystem.
package google
