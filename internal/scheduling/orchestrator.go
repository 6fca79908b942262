package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teemow/conflictfewer/internal/logging"
	"github.com/teemow/conflictfewer/internal/preference"
)

// PreferenceSource supplies the availability rules the orchestrator enforces.
// *preference.Store satisfies it.
type PreferenceSource interface {
	Get(userID string) preference.Preference
}

// Request carries one scheduling attempt through the orchestrator.
type Request struct {
	// UserID identifies whose calendar and preferences apply.
	UserID string

	// Intent is the structured scheduling request.
	Intent Intent

	// UseSuggestedSlot marks the second leg of the conflict two-step: the
	// caller accepted a previously offered slot, so conflict checking is
	// skipped and the provider call is the source of truth.
	UseSuggestedSlot bool
}

// Orchestrator drives a scheduling request from intent to terminal outcome.
// It is stateless between calls: the conflict/suggestion two-step is a
// request/response contract, not server-side session state, so instances can
// be scaled horizontally. The only serialization is a per-user mutex around
// event creation, narrowing the read-then-create race window described in the
// concurrency notes (the provider remains the final authority).
type Orchestrator struct {
	provider Provider
	prefs    PreferenceSource
	logger   *slog.Logger
	horizon  time.Duration
	onOutcome func(Outcome)

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithSuggestionHorizon overrides the default 14-day suggestion horizon.
func WithSuggestionHorizon(horizon time.Duration) Option {
	return func(o *Orchestrator) {
		o.horizon = horizon
	}
}

// WithOutcomeHook registers a callback invoked with every terminal outcome.
// Used to feed metrics without coupling the core to the metrics stack.
func WithOutcomeHook(hook func(Outcome)) Option {
	return func(o *Orchestrator) {
		o.onOutcome = hook
	}
}

// NewOrchestrator creates a scheduling orchestrator over the given provider
// and preference source.
func NewOrchestrator(provider Provider, prefs PreferenceSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		prefs:    prefs,
		logger:   slog.Default(),
		horizon:  DefaultSuggestionHorizon,
		users:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.WithService(o.logger, "scheduling")
	return o
}

// Schedule runs one scheduling attempt to a terminal outcome.
//
// The run walks Received → Validated → AvailabilityChecked and ends in
// Scheduled, SuggestionOffered, or Failed. A conflicting request without
// pre-approval pauses at SuggestionOffered: the caller must resubmit with
// UseSuggestedSlot set and the exact slot to advance. A pre-approved request
// skips conflict checking entirely; the provider call remains the source of
// truth.
func (o *Orchestrator) Schedule(ctx context.Context, req Request) Outcome {
	logger := logging.WithOperation(o.logger, "schedule.meeting")

	// Received → Validated
	callerLoc, verr := o.validate(req.Intent)
	if verr != nil {
		logger.Warn("intent rejected", logging.Err(verr))
		return o.finish(Failed(FailureValidation, verr.Error()))
	}

	// A pinned preference timezone governs the work-hours arithmetic;
	// anything reported back keeps the caller's stated timezone.
	pref := o.prefs.Get(req.UserID)
	loc, err := pref.Location(callerLoc)
	if err != nil {
		return o.finish(Failed(FailureValidation, err.Error()))
	}
	slot := req.Intent.RequestedSlot(loc)

	// Pre-approved suggestion: go straight to creation.
	if req.UseSuggestedSlot {
		logger.Info("using approved slot, skipping conflict check",
			logging.UserHash(req.UserID))
		return o.finish(o.createEvent(ctx, req, slot))
	}

	// Validated → AvailabilityChecked. The snapshot spans from midnight of
	// the requested day (so buffered earlier events are seen) through the
	// suggestion horizon, fetched once for both the check and the suggester.
	events, err := o.provider.ListEvents(ctx, startOfDay(slot.Start), slot.Start.Add(o.horizon))
	if err != nil {
		perr := &ProviderError{Op: "listEvents", Err: err}
		logger.Error("event snapshot failed", logging.Err(perr))
		return o.finish(Failed(FailureProvider, perr.Error()))
	}

	// The conflict check only needs the part of the snapshot near the
	// requested slot, widened by the buffer on both sides.
	nearby := busyWithin(events, slot.Start.Add(-pref.Buffer()), slot.End.Add(pref.Buffer()))
	conflict := DetectConflict(pref, slot, nearby)
	if conflict == nil {
		return o.finish(o.createEvent(ctx, req, slot))
	}

	// Conflict: offer the nearest alternative and pause.
	suggested := Suggest(pref, events, slot.Start, req.Intent.Duration(), o.horizon)
	if suggested == nil {
		logger.Info("no alternative slot within horizon",
			logging.UserHash(req.UserID))
		return o.finish(Failed(FailureNoAvailability, ErrNoAvailability.Error()))
	}

	logger.Info("conflict detected, suggestion offered",
		logging.UserHash(req.UserID),
		slog.Time("suggested_start", suggested.Start))
	return o.finish(SuggestionOffered(suggested.In(callerLoc), conflict.Message(slot.In(callerLoc))))
}

// Cancel deletes an event through the provider. It is idempotent: canceling
// an unknown or already-canceled event is a no-op success.
func (o *Orchestrator) Cancel(ctx context.Context, userID, eventID string) error {
	logger := logging.WithOperation(o.logger, "schedule.cancel")

	if eventID == "" {
		return &ValidationError{Field: "eventId", Reason: "must not be empty"}
	}

	err := o.provider.DeleteEvent(ctx, eventID)
	if errors.Is(err, ErrEventNotFound) {
		logger.Info("event already gone", logging.EventID(eventID))
		return nil
	}
	if err != nil {
		return &ProviderError{Op: "deleteEvent", Err: err}
	}

	logger.Info("event canceled", logging.EventID(eventID), logging.UserHash(userID))
	return nil
}

// Reschedule cancels the event and runs a fresh scheduling attempt for the
// new intent. The two provider calls are not atomic: when the cancel
// succeeds and the subsequent creation fails, the original booking is lost,
// and the outcome carries FailureRescheduleLostOriginal so the caller can
// recover. The intent is validated before anything is canceled, so a
// malformed request never costs the original booking.
func (o *Orchestrator) Reschedule(ctx context.Context, eventID string, req Request) Outcome {
	logger := logging.WithOperation(o.logger, "schedule.reschedule")

	if eventID == "" {
		return o.finish(Failed(FailureValidation, "eventId must not be empty"))
	}
	if _, verr := o.validate(req.Intent); verr != nil {
		return o.finish(Failed(FailureValidation, verr.Error()))
	}

	if err := o.Cancel(ctx, req.UserID, eventID); err != nil {
		logger.Error("cancel leg failed, original kept", logging.EventID(eventID), logging.Err(err))
		return o.finish(Failed(FailureProvider, err.Error()))
	}

	outcome := o.Schedule(ctx, req)
	if outcome.State == StateFailed && outcome.Failure == FailureProvider {
		// The original is gone and the replacement did not book.
		logger.Error("reschedule lost original booking", logging.EventID(eventID))
		outcome.Failure = FailureRescheduleLostOriginal
		outcome.Reason = fmt.Sprintf("original event %s was canceled but the new booking failed: %s", eventID, outcome.Reason)
	}
	return outcome
}

// SetReminder replaces the event's reminders so the user is notified the
// given number of minutes before the start. The provider owns the reminder
// record; unknown events surface ErrEventNotFound untouched so callers can
// distinguish a missing event from a provider outage.
func (o *Orchestrator) SetReminder(ctx context.Context, userID, eventID string, minutes int) (*Event, error) {
	logger := logging.WithOperation(o.logger, "schedule.reminder")

	if eventID == "" {
		return nil, &ValidationError{Field: "eventId", Reason: "must not be empty"}
	}
	if minutes <= 0 {
		return nil, &ValidationError{Field: "reminderMinutes", Reason: "must be positive"}
	}

	event, err := o.provider.SetReminder(ctx, eventID, minutes)
	if errors.Is(err, ErrEventNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &ProviderError{Op: "setReminder", Err: err}
	}

	logger.Info("reminder set",
		logging.EventID(eventID),
		logging.UserHash(userID),
		slog.Int("minutes", minutes))
	return event, nil
}

// Availability computes the user's free slots over [from, to), dropping
// slots shorter than minDuration. Work-hours arithmetic runs in the pinned
// preference timezone when one exists; the returned slots carry the caller's
// stated timezone (the preference timezone when the caller stated none).
func (o *Orchestrator) Availability(ctx context.Context, userID string, from, to time.Time, minDuration time.Duration, timezone string) ([]TimeSlot, error) {
	callerLoc := time.UTC
	if timezone != "" {
		var err error
		callerLoc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, &ValidationError{Field: "timezone", Reason: fmt.Sprintf("unknown timezone %q", timezone)}
		}
	}

	pref := o.prefs.Get(userID)
	loc, err := pref.Location(callerLoc)
	if err != nil {
		return nil, err
	}
	reportLoc := callerLoc
	if timezone == "" {
		reportLoc = loc
	}

	events, err := o.provider.ListEvents(ctx, from, to)
	if err != nil {
		return nil, &ProviderError{Op: "listEvents", Err: err}
	}

	slots := FreeSlots(pref, events, from.In(loc), to.In(loc), minDuration)
	for i := range slots {
		slots[i] = slots[i].In(reportLoc)
	}
	return slots, nil
}

// validate checks the intent and resolves its timezone.
func (o *Orchestrator) validate(intent Intent) (*time.Location, *ValidationError) {
	if intent.DurationMinutes <= 0 {
		return nil, &ValidationError{Field: "durationMinutes", Reason: "must be positive"}
	}
	if intent.RequestedStart.IsZero() {
		return nil, &ValidationError{Field: "requestedStart", Reason: "must be set"}
	}
	if intent.Timezone == "" {
		return nil, &ValidationError{Field: "timezone", Reason: "must be set"}
	}
	loc, err := time.LoadLocation(intent.Timezone)
	if err != nil {
		return nil, &ValidationError{Field: "timezone", Reason: fmt.Sprintf("unknown timezone %q", intent.Timezone)}
	}
	return loc, nil
}

// createEvent performs the single mutating step. Creation is serialized per
// user so two in-flight requests for the same calendar cannot interleave
// between snapshot and create; across processes the provider stays the final
// authority.
func (o *Orchestrator) createEvent(ctx context.Context, req Request, slot TimeSlot) Outcome {
	lock := o.userLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	event, err := o.provider.CreateEvent(ctx, buildEventRequest(req.Intent, slot))
	if err != nil {
		perr := &ProviderError{Op: "createEvent", Err: err}
		o.logger.Error("event creation failed", logging.Err(perr))
		return Failed(FailureProvider, perr.Error())
	}

	o.logger.Info("event created",
		logging.EventID(event.ID),
		logging.UserHash(req.UserID),
		slog.Time("start", slot.Start))
	return Scheduled(event)
}

// buildEventRequest maps an accepted intent and slot onto a provider request.
func buildEventRequest(intent Intent, slot TimeSlot) EventRequest {
	summary := intent.Summary
	if summary == "" {
		summary = fmt.Sprintf("Meeting with %s", intent.Participant)
	}

	var attendees []string
	if strings.Contains(intent.Participant, "@") {
		attendees = []string{intent.Participant}
	}

	return EventRequest{
		Summary:     summary,
		Description: "Scheduled via conflictfewer",
		Start:       slot.Start,
		End:         slot.End,
		Timezone:    intent.Timezone,
		Attendees:   attendees,
	}
}

// finish runs the outcome hook, if any.
func (o *Orchestrator) finish(outcome Outcome) Outcome {
	if o.onOutcome != nil {
		o.onOutcome(outcome)
	}
	return outcome
}

// userLock returns the creation mutex for a user, creating it on first use.
func (o *Orchestrator) userLock(userID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	if lock, ok := o.users[userID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	o.users[userID] = lock
	return lock
}
