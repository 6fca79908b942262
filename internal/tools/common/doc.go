// Package common provides shared helpers for MCP tool packages: account
// extraction from tool arguments and handler wrappers that record metrics
// and audit log entries around every tool invocation.
package common
