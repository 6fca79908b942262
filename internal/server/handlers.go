package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/teemow/conflictfewer/internal/analytics"
	"github.com/teemow/conflictfewer/internal/instrumentation"
	"github.com/teemow/conflictfewer/internal/logging"
	"github.com/teemow/conflictfewer/internal/preference"
	"github.com/teemow/conflictfewer/internal/scheduling"
)

const (
	// defaultUser is the account and preference key when a request does not
	// name one.
	defaultUser = "default"

	// defaultAvailabilityWindow is how far ahead the availability endpoint
	// looks when the caller does not say.
	defaultAvailabilityWindow = 7 * 24 * time.Hour

	// defaultMinSlotMinutes is the minimum slot length reported by the
	// availability endpoint when the caller does not say.
	defaultMinSlotMinutes = 30
)

// Scheduler is the slice of the orchestrator the HTTP handlers need.
// *scheduling.Orchestrator satisfies it.
type Scheduler interface {
	Schedule(ctx context.Context, req scheduling.Request) scheduling.Outcome
	Cancel(ctx context.Context, userID, eventID string) error
	Reschedule(ctx context.Context, eventID string, req scheduling.Request) scheduling.Outcome
	Availability(ctx context.Context, userID string, from, to time.Time, minDuration time.Duration, timezone string) ([]scheduling.TimeSlot, error)
	SetReminder(ctx context.Context, userID, eventID string, minutes int) (*scheduling.Event, error)
}

// EventLister reads calendar events for the read-only endpoints.
type EventLister interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]scheduling.Event, error)
}

// Resolver returns the scheduler and event source for an account. It returns
// an error when the account has no usable calendar credentials.
type Resolver func(account string) (Scheduler, EventLister, error)

// API implements the HTTP handlers of the scheduling server.
type API struct {
	resolve Resolver
	prefs   *preference.Store
	audit   *instrumentation.AuditLogger
	metrics *instrumentation.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// APIOption configures an API.
type APIOption func(*API)

// WithAudit wires the audit logger recording scheduling decisions.
func WithAudit(audit *instrumentation.AuditLogger) APIOption {
	return func(a *API) {
		a.audit = audit
	}
}

// WithAPIMetrics wires the metrics recorder for decision-level metrics.
func WithAPIMetrics(metrics *instrumentation.Metrics) APIOption {
	return func(a *API) {
		a.metrics = metrics
	}
}

// WithAPILogger sets the handler logger.
func WithAPILogger(logger *slog.Logger) APIOption {
	return func(a *API) {
		a.logger = logger
	}
}

// WithClock overrides the clock. Tests pin it.
func WithClock(now func() time.Time) APIOption {
	return func(a *API) {
		a.now = now
	}
}

// NewAPI builds the handler set over an account resolver and the preference
// store.
func NewAPI(resolve Resolver, prefs *preference.Store, opts ...APIOption) *API {
	a := &API{
		resolve: resolve,
		prefs:   prefs,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.WithService(a.logger, "server")
	return a
}

// scheduleRequest is the body of POST /api/schedule/meeting and the intent
// half of POST /api/schedule/reschedule.
type scheduleRequest struct {
	User             string    `json:"user,omitempty"`
	Participant      string    `json:"participant"`
	Start            time.Time `json:"start"`
	DurationMinutes  int       `json:"durationMinutes"`
	Timezone         string    `json:"timezone"`
	Summary          string    `json:"summary,omitempty"`
	UseSuggestedSlot bool      `json:"useSuggestedSlot,omitempty"`
}

func (r scheduleRequest) user() string {
	if r.User == "" {
		return defaultUser
	}
	return r.User
}

func (r scheduleRequest) toRequest() scheduling.Request {
	return scheduling.Request{
		UserID: r.user(),
		Intent: scheduling.Intent{
			Participant:     r.Participant,
			RequestedStart:  r.Start,
			DurationMinutes: r.DurationMinutes,
			Timezone:        r.Timezone,
			Summary:         r.Summary,
		},
		UseSuggestedSlot: r.UseSuggestedSlot,
	}
}

// scheduledResponse is the success body of the scheduling endpoints.
type scheduledResponse struct {
	Message string            `json:"message"`
	Event   *scheduling.Event `json:"event"`
}

// conflictResponse is the 409 body offering an alternative slot.
type conflictResponse struct {
	Conflict      bool                 `json:"conflict"`
	Message       string               `json:"message"`
	SuggestedSlot *scheduling.TimeSlot `json:"suggestedSlot"`
}

// ScheduleMeeting handles POST /api/schedule/meeting.
func (a *API) ScheduleMeeting(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	scheduler, ok := a.schedulerFor(w, req.user())
	if !ok {
		return
	}

	ctx, span := instrumentation.StartSchedulingSpan(r.Context(), "schedule")
	defer span.End()

	outcome := scheduler.Schedule(ctx, req.toRequest())
	a.recordDecision(ctx, "schedule", req, outcome)
	a.writeOutcome(w, outcome)
}

// cancelRequest is the body of POST /api/schedule/cancel.
type cancelRequest struct {
	User    string `json:"user,omitempty"`
	EventID string `json:"eventId"`
}

// CancelMeeting handles POST /api/schedule/cancel. Canceling an event that
// is already gone succeeds.
func (a *API) CancelMeeting(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	user := req.User
	if user == "" {
		user = defaultUser
	}
	scheduler, ok := a.schedulerFor(w, user)
	if !ok {
		return
	}

	ctx, span := instrumentation.StartSchedulingSpan(r.Context(), "cancel")
	defer span.End()

	if err := scheduler.Cancel(ctx, user, req.EventID); err != nil {
		instrumentation.SetSpanError(span, err)
		writeServiceError(w, a.logger, err)
		return
	}
	instrumentation.SetSpanSuccess(span)

	if a.audit != nil {
		a.audit.LogSchedulingDecision(&instrumentation.SchedulingDecision{
			Operation: "cancel",
			UserEmail: user,
			Outcome:   "canceled",
			EventID:   req.EventID,
			TraceID:   instrumentation.GetTraceID(ctx),
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("event %s canceled", req.EventID),
	})
}

// rescheduleRequest is the body of POST /api/schedule/reschedule.
type rescheduleRequest struct {
	EventID string `json:"eventId"`
	scheduleRequest
}

// RescheduleMeeting handles POST /api/schedule/reschedule.
func (a *API) RescheduleMeeting(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	scheduler, ok := a.schedulerFor(w, req.user())
	if !ok {
		return
	}

	ctx, span := instrumentation.StartSchedulingSpan(r.Context(), "reschedule")
	defer span.End()

	outcome := scheduler.Reschedule(ctx, req.EventID, req.toRequest())
	a.recordDecision(ctx, "reschedule", req.scheduleRequest, outcome)
	a.writeOutcome(w, outcome)
}

// setReminderRequest is the body of POST /api/reminders/set.
type setReminderRequest struct {
	User            string `json:"user,omitempty"`
	EventID         string `json:"eventId"`
	ReminderMinutes int    `json:"reminderMinutes"`
}

// SetReminder handles POST /api/reminders/set. The event's reminders are
// replaced with notifications firing the given number of minutes before the
// start.
func (a *API) SetReminder(w http.ResponseWriter, r *http.Request) {
	var req setReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	user := req.User
	if user == "" {
		user = defaultUser
	}
	scheduler, ok := a.schedulerFor(w, user)
	if !ok {
		return
	}

	ctx, span := instrumentation.StartSchedulingSpan(r.Context(), "reminder")
	defer span.End()

	event, err := scheduler.SetReminder(ctx, user, req.EventID, req.ReminderMinutes)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		writeServiceError(w, a.logger, err)
		return
	}
	instrumentation.SetSpanSuccess(span)

	if a.audit != nil {
		a.audit.LogSchedulingDecision(&instrumentation.SchedulingDecision{
			Operation: "reminder",
			UserEmail: user,
			Outcome:   "reminder_set",
			EventID:   event.ID,
			TraceID:   instrumentation.GetTraceID(ctx),
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("reminder set %d minutes before %q", req.ReminderMinutes, event.Summary),
	})
}

// availabilityResponse is the body of GET /api/availability.
type availabilityResponse struct {
	TimeSlots []scheduling.TimeSlot `json:"timeSlots"`
}

// Availability handles GET /api/availability. Query parameters: user,
// timezone, durationMinutes, days.
func (a *API) Availability(w http.ResponseWriter, r *http.Request) {
	user := queryOrDefault(r, "user", defaultUser)

	minDuration := time.Duration(defaultMinSlotMinutes) * time.Minute
	if v := r.URL.Query().Get("durationMinutes"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			writeAPIError(w, http.StatusBadRequest, apiError{
				Code:     codeInvalidRequest,
				Message:  "durationMinutes must be a positive integer",
				Category: "validation",
				Action:   "pass durationMinutes as a positive integer",
			})
			return
		}
		minDuration = time.Duration(minutes) * time.Minute
	}

	window := defaultAvailabilityWindow
	if v := r.URL.Query().Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			writeAPIError(w, http.StatusBadRequest, apiError{
				Code:     codeInvalidRequest,
				Message:  "days must be a positive integer",
				Category: "validation",
				Action:   "pass days as a positive integer",
			})
			return
		}
		window = time.Duration(days) * 24 * time.Hour
	}

	scheduler, ok := a.schedulerFor(w, user)
	if !ok {
		return
	}

	from := a.now()
	slots, err := scheduler.Availability(r.Context(), user, from, from.Add(window), minDuration, r.URL.Query().Get("timezone"))
	if err != nil {
		writeServiceError(w, a.logger, err)
		return
	}
	if slots == nil {
		slots = []scheduling.TimeSlot{}
	}

	writeJSON(w, http.StatusOK, availabilityResponse{TimeSlots: slots})
}

// setPreferencesRequest is the body of POST /api/preferences/set. Absent
// fields keep their prior value.
type setPreferencesRequest struct {
	User string `json:"user,omitempty"`
	preference.Update
}

// SetPreferences handles POST /api/preferences/set.
func (a *API) SetPreferences(w http.ResponseWriter, r *http.Request) {
	var req setPreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	user := req.User
	if user == "" {
		user = defaultUser
	}

	pref, err := a.prefs.Set(user, req.Update)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, apiError{
			Code:     codeInvalidRequest,
			Message:  err.Error(),
			Category: "validation",
			Action:   "correct the preference values and retry",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "preferences updated",
		"preference": pref,
	})
}

// GetPreferences handles GET /api/preferences. Unset users get the default.
func (a *API) GetPreferences(w http.ResponseWriter, r *http.Request) {
	user := queryOrDefault(r, "user", defaultUser)
	writeJSON(w, http.StatusOK, a.prefs.Get(user))
}

// eventsResponse is the body of GET /api/calendar/events.
type eventsResponse struct {
	Events []scheduling.Event `json:"events"`
}

// ListEvents handles GET /api/calendar/events. Query parameters: user,
// timezone, days.
func (a *API) ListEvents(w http.ResponseWriter, r *http.Request) {
	user := queryOrDefault(r, "user", defaultUser)

	loc := time.UTC
	if tz := r.URL.Query().Get("timezone"); tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, apiError{
				Code:     codeInvalidRequest,
				Message:  fmt.Sprintf("unknown timezone %q", tz),
				Category: "validation",
				Action:   "pass an IANA timezone name",
			})
			return
		}
	}

	window := defaultAvailabilityWindow
	if v := r.URL.Query().Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			writeAPIError(w, http.StatusBadRequest, apiError{
				Code:     codeInvalidRequest,
				Message:  "days must be a positive integer",
				Category: "validation",
				Action:   "pass days as a positive integer",
			})
			return
		}
		window = time.Duration(days) * 24 * time.Hour
	}

	_, lister, err := a.resolve(user)
	if err != nil {
		a.writeNoCalendar(w, user)
		return
	}

	from := a.now()
	events, err := lister.ListEvents(r.Context(), from, from.Add(window))
	if err != nil {
		writeServiceError(w, a.logger, &scheduling.ProviderError{Op: "listEvents", Err: err})
		return
	}

	out := make([]scheduling.Event, 0, len(events))
	for _, e := range events {
		e.Start = e.Start.In(loc)
		e.End = e.End.In(loc)
		out = append(out, e)
	}

	writeJSON(w, http.StatusOK, eventsResponse{Events: out})
}

// Analytics handles GET /api/analytics. start_date selects the week
// (YYYY-MM-DD, any day of the wanted week); the current week when absent.
func (a *API) Analytics(w http.ResponseWriter, r *http.Request) {
	user := queryOrDefault(r, "user", defaultUser)

	anchor := a.now()
	if v := r.URL.Query().Get("start_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, apiError{
				Code:     codeInvalidRequest,
				Message:  "start_date must be formatted as YYYY-MM-DD",
				Category: "validation",
				Action:   "pass start_date as YYYY-MM-DD",
			})
			return
		}
		anchor = parsed
	}

	_, lister, err := a.resolve(user)
	if err != nil {
		a.writeNoCalendar(w, user)
		return
	}

	weekStart := analytics.WeekOf(anchor)
	events, err := lister.ListEvents(r.Context(), weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		writeServiceError(w, a.logger, &scheduling.ProviderError{Op: "listEvents", Err: err})
		return
	}

	writeJSON(w, http.StatusOK, analytics.Analyze(events, weekStart))
}

// writeOutcome renders a terminal scheduling outcome. A conflict with a
// suggestion is a 409 carrying the alternative; failures map per kind.
func (a *API) writeOutcome(w http.ResponseWriter, outcome scheduling.Outcome) {
	switch outcome.State {
	case scheduling.StateScheduled:
		writeJSON(w, http.StatusOK, scheduledResponse{
			Message: fmt.Sprintf("meeting scheduled from %s to %s",
				outcome.Event.Start.Format(time.RFC3339),
				outcome.Event.End.Format(time.RFC3339)),
			Event: outcome.Event,
		})
	case scheduling.StateSuggestionOffered:
		writeJSON(w, http.StatusConflict, conflictResponse{
			Conflict:      true,
			Message:       outcome.Reason,
			SuggestedSlot: outcome.Suggested,
		})
	case scheduling.StateFailed:
		status, envelope := failureEnvelope(outcome.Failure, outcome.Reason)
		writeAPIError(w, status, envelope)
	default:
		writeAPIError(w, http.StatusInternalServerError, apiError{
			Code:     codeInternalError,
			Message:  "unknown scheduling outcome",
			Category: "system",
			Action:   "retry later",
		})
	}
}

// schedulerFor resolves the account's scheduler, answering 503 when the
// account has no usable calendar credentials.
func (a *API) schedulerFor(w http.ResponseWriter, user string) (Scheduler, bool) {
	scheduler, _, err := a.resolve(user)
	if err != nil {
		a.writeNoCalendar(w, user)
		return nil, false
	}
	return scheduler, true
}

func (a *API) writeNoCalendar(w http.ResponseWriter, user string) {
	a.logger.Warn("no calendar client for account", logging.UserHash(user))
	writeAPIError(w, http.StatusServiceUnavailable, apiError{
		Code:     "NO_CALENDAR_CLIENT",
		Message:  "no calendar credentials are stored for this account",
		Category: "auth",
		Action:   "run the auth command for this account first",
	})
}

// recordDecision feeds the audit trail after a scheduling run.
func (a *API) recordDecision(ctx context.Context, operation string, req scheduleRequest, outcome scheduling.Outcome) {
	if a.metrics != nil && outcome.State == scheduling.StateSuggestionOffered && outcome.Suggested != nil {
		a.metrics.RecordSuggestionLead(ctx, outcome.Suggested.Start.Sub(req.Start))
	}

	eventID := ""
	if outcome.Event != nil {
		eventID = outcome.Event.ID
	}
	instrumentation.SetSpanSchedulingOutcome(ctx, string(outcome.State), string(outcome.Failure), eventID)

	if a.audit == nil {
		return
	}

	sd := &instrumentation.SchedulingDecision{
		Operation:      operation,
		UserEmail:      req.user(),
		RequestedStart: req.Start,
		Outcome:        string(outcome.State),
		FailureKind:    string(outcome.Failure),
		Reason:         outcome.Reason,
		TraceID:        instrumentation.GetTraceID(ctx),
	}
	if outcome.Event != nil {
		sd.EventID = outcome.Event.ID
	}
	if outcome.Suggested != nil {
		sd.SuggestedStart = outcome.Suggested.Start
	}
	a.audit.LogSchedulingDecision(sd)
}

func queryOrDefault(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}
