package scheduling

import (
	"fmt"
	"time"

	"github.com/teemow/conflictfewer/internal/preference"
)

// ConflictReason explains why a requested slot was rejected.
type ConflictReason string

const (
	// ReasonBusy means the slot overlaps an existing event (after buffer
	// expansion).
	ReasonBusy ConflictReason = "busy"

	// ReasonOutsideWorkHours means the slot does not fit inside the daily
	// work-hours window.
	ReasonOutsideWorkHours ConflictReason = "outside_work_hours"

	// ReasonBlockedWeekday means the slot falls on a blocked weekday.
	ReasonBlockedWeekday ConflictReason = "blocked_weekday"
)

// Conflict describes a detected conflict for a requested slot.
type Conflict struct {
	Reason ConflictReason

	// Event is the first overlapping event when Reason is ReasonBusy.
	Event *Event
}

// Message renders a human-readable explanation.
func (c *Conflict) Message(slot TimeSlot) string {
	when := slot.Start.Format("January 2, 2006 15:04 MST")
	switch c.Reason {
	case ReasonBlockedWeekday:
		return fmt.Sprintf("%s falls on a blocked day (%s)", when, slot.Start.Weekday())
	case ReasonOutsideWorkHours:
		return fmt.Sprintf("%s is outside configured work hours", when)
	default:
		if c.Event != nil && c.Event.Summary != "" {
			return fmt.Sprintf("conflict detected at %s with %q", when, c.Event.Summary)
		}
		return fmt.Sprintf("conflict detected at %s", when)
	}
}

// DetectConflict tests a requested slot against the user's preferences and
// the event snapshot. Preferences are hard constraints: a slot outside work
// hours or on a blocked weekday conflicts even when no event overlaps. The
// engine only ever proposes; it never silently schedules outside preferences.
//
// The busy test expands each event by the preference buffer on both ends and
// applies the strict half-open overlap test:
//
//	slot.Start < event.End+buffer && event.Start-buffer < slot.End
//
// The slot must already be expressed in the timezone preferences are
// evaluated in. Returns nil when the slot is acceptable.
func DetectConflict(pref preference.Preference, slot TimeSlot, events []Event) *Conflict {
	if pref.BlockedWeekdays.Contains(slot.Start.Weekday()) {
		return &Conflict{Reason: ReasonBlockedWeekday}
	}

	day := startOfDay(slot.Start)
	window := TimeSlot{
		Start: pref.WorkHours.Start.On(day),
		End:   pref.WorkHours.End.On(day),
	}
	if slot.Start.Before(window.Start) || slot.End.After(window.End) {
		return &Conflict{Reason: ReasonOutsideWorkHours}
	}

	buffer := pref.Buffer()
	for i := range events {
		expanded := TimeSlot{
			Start: events[i].Start.Add(-buffer),
			End:   events[i].End.Add(buffer),
		}
		if slot.Overlaps(expanded) {
			return &Conflict{Reason: ReasonBusy, Event: &events[i]}
		}
	}

	return nil
}

// busyWithin filters the snapshot to events overlapping [from, to). The
// schedule path fetches one wide snapshot for both the conflict check and
// the suggester and narrows it here for the check.
func busyWithin(events []Event, from, to time.Time) []Event {
	var out []Event
	span := TimeSlot{Start: from, End: to}
	for _, e := range events {
		if e.Slot().Overlaps(span) {
			out = append(out, e)
		}
	}
	return out
}
