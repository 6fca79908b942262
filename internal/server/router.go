package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teemow/conflictfewer/internal/calendar"
	"github.com/teemow/conflictfewer/internal/instrumentation"
)

// RouterConfig carries the optional pieces of the middleware chain.
type RouterConfig struct {
	// Logger is the request logger. slog.Default when nil.
	Logger *slog.Logger

	// Metrics records per-route request metrics. Optional.
	Metrics *instrumentation.Metrics

	// RateLimiter bounds per-client request rates. Optional.
	RateLimiter *RateLimiter

	// Health serves the probe endpoints. Optional.
	Health *HealthChecker
}

// NewRouter assembles the API routes and middleware chain. Middleware
// order: request ID, logging, recovery, metrics, rate limit. Probe
// endpoints sit outside the rate limit so a throttled client cannot starve
// Kubernetes probes.
func NewRouter(api *API, config RouterConfig) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(RecoveryMiddleware(logger))
	if config.Metrics != nil {
		r.Use(MetricsMiddleware(config.Metrics))
	}

	if config.Health != nil {
		r.Handle("/healthz", config.Health.LivenessHandler())
		r.Handle("/readyz", config.Health.ReadinessHandler())
		r.Handle("/healthz/detailed", config.Health.DetailedHealthHandler())
	}

	r.Group(func(r chi.Router) {
		if config.RateLimiter != nil {
			r.Use(config.RateLimiter.Middleware())
		}

		r.Route("/api", func(r chi.Router) {
			r.Route("/schedule", func(r chi.Router) {
				r.Post("/meeting", api.ScheduleMeeting)
				r.Post("/cancel", api.CancelMeeting)
				r.Post("/reschedule", api.RescheduleMeeting)
			})

			r.Get("/availability", api.Availability)
			r.Post("/reminders/set", api.SetReminder)

			r.Route("/preferences", func(r chi.Router) {
				r.Get("/", api.GetPreferences)
				r.Post("/set", api.SetPreferences)
			})

			r.Get("/calendar/events", api.ListEvents)
			r.Get("/analytics", api.Analytics)
		})
	})

	return r
}

// NewContextRouter builds the production router over a server context.
func NewContextRouter(sc *ServerContext, config RouterConfig) http.Handler {
	if config.Logger == nil {
		config.Logger = sc.logger
	}
	if config.Metrics == nil {
		config.Metrics = sc.Metrics()
	}

	api := NewAPI(ContextResolver(sc), sc.Preferences(),
		WithAudit(sc.Audit()),
		WithAPIMetrics(sc.Metrics()),
		WithAPILogger(sc.logger),
	)
	return NewRouter(api, config)
}

// ContextResolver adapts the per-account orchestrator lookup of a
// ServerContext to the handler Resolver.
func ContextResolver(sc *ServerContext) Resolver {
	return func(account string) (Scheduler, EventLister, error) {
		orch := sc.OrchestratorForAccount(account)
		if orch == nil {
			return nil, nil, fmt.Errorf("no calendar credentials for account %s", account)
		}
		client := sc.CalendarClientForAccount(account)
		return orch, calendar.NewProvider(client, sc.calendarID), nil
	}
}
