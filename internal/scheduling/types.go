package scheduling

import (
	"context"
	"time"
)

// TimeSlot is a half-open time interval [Start, End). Every slot produced by
// this package satisfies Start < End.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the slot.
func (s TimeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// IsValid reports whether the slot is a well-formed non-empty interval.
func (s TimeSlot) IsValid() bool {
	return s.Start.Before(s.End)
}

// Overlaps reports whether two half-open intervals share any instant.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// In converts both endpoints to the given location. The instant is unchanged.
func (s TimeSlot) In(loc *time.Location) TimeSlot {
	return TimeSlot{Start: s.Start.In(loc), End: s.End.In(loc)}
}

// Event is the scheduling engine's read-only view of a calendar event. The
// external calendar provider owns the record; this package only inspects the
// interval and reports attendees for analytics.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
}

// Slot returns the event's interval as a TimeSlot.
func (e Event) Slot() TimeSlot {
	return TimeSlot{Start: e.Start, End: e.End}
}

// EventRequest describes an event to be created through the provider.
type EventRequest struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Timezone    string
	Attendees   []string
}

// Provider is the narrow boundary to the external calendar system of record.
// The scheduling core is a read-mostly consumer: ListEvents feeds conflict
// detection and availability, while CreateEvent, DeleteEvent, and SetReminder
// are the only mutations, always delegated to the provider.
type Provider interface {
	// ListEvents returns the events overlapping [timeMin, timeMax), ordered
	// by start time.
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error)

	// CreateEvent creates an event and returns the provider's record of it.
	CreateEvent(ctx context.Context, req EventRequest) (*Event, error)

	// DeleteEvent removes an event. Deleting an unknown or already-deleted
	// event returns ErrEventNotFound.
	DeleteEvent(ctx context.Context, eventID string) error

	// SetReminder replaces the event's reminders with notifications firing
	// the given number of minutes before the start, returning the updated
	// event. Unknown events return ErrEventNotFound.
	SetReminder(ctx context.Context, eventID string, minutes int) (*Event, error)
}

// Intent is the structured, validated representation of a scheduling request.
// It is constructed per request and never persisted. Free-text parsing into
// an Intent happens outside this package.
type Intent struct {
	// Participant is the email address (or display name) of the other party.
	Participant string `json:"participant"`

	// RequestedStart is the desired meeting start.
	RequestedStart time.Time `json:"requestedStart"`

	// DurationMinutes is the meeting length; must be positive.
	DurationMinutes int `json:"durationMinutes"`

	// Timezone is the caller's IANA timezone name; must resolve.
	Timezone string `json:"timezone"`

	// Summary overrides the generated event title when set.
	Summary string `json:"summary,omitempty"`
}

// Duration returns the requested meeting length.
func (i Intent) Duration() time.Duration {
	return time.Duration(i.DurationMinutes) * time.Minute
}

// RequestedSlot returns the requested interval in the given location.
func (i Intent) RequestedSlot(loc *time.Location) TimeSlot {
	start := i.RequestedStart.In(loc)
	return TimeSlot{Start: start, End: start.Add(i.Duration())}
}

// OutcomeState identifies the terminal state of a scheduling run.
type OutcomeState string

const (
	// StateScheduled means the event was created at the requested slot.
	StateScheduled OutcomeState = "scheduled"

	// StateSuggestionOffered means the requested slot conflicted and an
	// alternative is offered. The run pauses here; the caller must resubmit
	// with UseSuggestedSlot to advance.
	StateSuggestionOffered OutcomeState = "suggestion_offered"

	// StateFailed means the run ended without a booking.
	StateFailed OutcomeState = "failed"
)

// Outcome is the tagged result of a scheduling run. Exactly one of Event,
// Suggested, or Failure carries the payload, selected by State.
type Outcome struct {
	State OutcomeState

	// Event is set when State is StateScheduled.
	Event *Event

	// Suggested is set when State is StateSuggestionOffered.
	Suggested *TimeSlot

	// Reason is a human-readable explanation for a conflict or failure.
	Reason string

	// Failure classifies the error when State is StateFailed.
	Failure FailureKind
}

// Scheduled constructs a successful outcome.
func Scheduled(event *Event) Outcome {
	return Outcome{State: StateScheduled, Event: event}
}

// SuggestionOffered constructs a conflict outcome carrying an alternative.
func SuggestionOffered(slot TimeSlot, reason string) Outcome {
	return Outcome{State: StateSuggestionOffered, Suggested: &slot, Reason: reason}
}

// Failed constructs a failure outcome.
func Failed(kind FailureKind, reason string) Outcome {
	return Outcome{State: StateFailed, Failure: kind, Reason: reason}
}
