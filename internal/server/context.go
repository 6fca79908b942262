package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teemow/conflictfewer/internal/calendar"
	"github.com/teemow/conflictfewer/internal/instrumentation"
	"github.com/teemow/conflictfewer/internal/preference"
	"github.com/teemow/conflictfewer/internal/scheduling"
)

// ServerContext holds the shared state of the scheduling server: Google
// Calendar clients per account, the preference store, and one orchestrator
// per account on top of them. Clients are created lazily on first use so the
// server starts even when no token has been stored yet.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	calendarClients map[string]*calendar.Client
	orchestrators   map[string]*scheduling.Orchestrator
	prefs           *preference.Store
	calendarID      string

	inst    *instrumentation.Provider
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// ServerContextConfig carries the dependencies for NewServerContext.
type ServerContextConfig struct {
	// Preferences is the availability preference store. Required.
	Preferences *preference.Store

	// CalendarID selects the calendar to schedule against; "primary" when
	// empty.
	CalendarID string

	// Instrumentation provides metrics and tracing. Optional.
	Instrumentation *instrumentation.Provider

	// Audit records scheduling decisions. Optional.
	Audit *instrumentation.AuditLogger

	// Logger is the base logger. slog.Default when nil.
	Logger *slog.Logger
}

// NewServerContext creates the server context. A default-account calendar
// client is attempted eagerly when a token exists; failures are logged and
// retried on first use.
func NewServerContext(ctx context.Context, config ServerContextConfig) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sc := &ServerContext{
		ctx:             shutdownCtx,
		cancel:          cancel,
		calendarClients: make(map[string]*calendar.Client),
		orchestrators:   make(map[string]*scheduling.Orchestrator),
		prefs:           config.Preferences,
		calendarID:      config.CalendarID,
		inst:            config.Instrumentation,
		audit:           config.Audit,
		logger:          logger,
	}
	if sc.inst != nil {
		sc.metrics = sc.inst.Metrics()
	}

	if calendar.HasToken() {
		client, err := calendar.NewClient(shutdownCtx)
		if err != nil {
			logger.Warn("calendar client for default account not ready", "error", err)
		} else {
			sc.calendarClients["default"] = client
		}
	}

	return sc, nil
}

// Context returns the server's shutdown context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Preferences returns the preference store.
func (sc *ServerContext) Preferences() *preference.Store {
	return sc.prefs
}

// Metrics returns the metrics recorder, or nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Audit returns the audit logger, or nil when auditing is off.
func (sc *ServerContext) Audit() *instrumentation.AuditLogger {
	return sc.audit
}

// CalendarClientForAccount returns the calendar client for an account,
// creating and caching it on first use. Returns nil when the account has no
// stored token.
func (sc *ServerContext) CalendarClientForAccount(account string) *calendar.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.calendarClients[account]; ok {
		return client
	}

	if !calendar.HasTokenForAccount(account) {
		return nil
	}

	client, err := calendar.NewClientForAccount(sc.ctx, account)
	if err != nil {
		sc.logger.Warn("calendar client creation failed", "account", account, "error", err)
		return nil
	}

	sc.calendarClients[account] = client
	return client
}

// CalendarClient returns the calendar client for the default account.
func (sc *ServerContext) CalendarClient() *calendar.Client {
	return sc.CalendarClientForAccount("default")
}

// SetCalendarClientForAccount sets the calendar client for an account.
// Used by tests and by the auth flow after a new token is stored.
func (sc *ServerContext) SetCalendarClientForAccount(account string, client *calendar.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.calendarClients[account] = client
	delete(sc.orchestrators, account)
}

// OrchestratorForAccount returns the scheduling orchestrator for an account,
// creating it on first use. Returns nil when the account has no calendar
// client.
func (sc *ServerContext) OrchestratorForAccount(account string) *scheduling.Orchestrator {
	sc.mu.RLock()
	orch, ok := sc.orchestrators[account]
	sc.mu.RUnlock()
	if ok {
		return orch
	}

	client := sc.CalendarClientForAccount(account)
	if client == nil {
		return nil
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if orch, ok := sc.orchestrators[account]; ok {
		return orch
	}

	provider := calendar.NewProvider(client, sc.calendarID)
	opts := []scheduling.Option{scheduling.WithLogger(sc.logger)}
	if sc.metrics != nil {
		metrics := sc.metrics
		ctx := sc.ctx
		opts = append(opts, scheduling.WithOutcomeHook(func(o scheduling.Outcome) {
			metrics.RecordSchedulingOutcome(ctx, string(o.State), string(o.Failure))
		}))
	}
	orch = scheduling.NewOrchestrator(provider, sc.prefs, opts...)
	sc.orchestrators[account] = orch
	return orch
}

// IsShutdown reports whether the server context has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. Safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
