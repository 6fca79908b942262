// Package server provides the HTTP surface of the scheduling engine: the
// chi router and JSON handlers over the orchestrator, the shared server
// context managing per-account calendar clients, health probes, and a
// dedicated Prometheus metrics server.
//
// # Key Components
//
// ServerContext manages Google Calendar clients and scheduling
// orchestrators with lazy initialization and caching, one of each per
// account. The preference store and instrumentation are shared across
// accounts.
//
// API holds the request handlers. They are thin adapters: decode, delegate
// to the orchestrator, map the outcome onto HTTP. A conflict with a
// suggested alternative answers 409 with the slot; failed outcomes map per
// failure kind (validation 400, no availability 409, provider 502, a
// reschedule that lost its original booking 502 with a distinct code).
// Every error is a uniform {code, message, category, action} envelope.
//
// Middleware: request ID assignment, structured request logging, panic
// recovery, per-route metrics, and per-client token-bucket rate limiting.
package server
