// Package scheduling implements the conflict-resolution core: availability
// computation over preference rules and calendar events, conflict detection
// for requested slots, deterministic alternative-slot suggestion, and the
// orchestrator that drives a scheduling request to a terminal outcome.
//
// All interval arithmetic treats slots as half-open [start, end): two
// meetings may touch without conflicting. The calendar backend is abstracted
// behind the Provider interface so the core stays testable without network
// access.
package scheduling
