package scheduling

import (
	"time"

	"github.com/teemow/conflictfewer/internal/preference"
)

// DefaultSuggestionHorizon bounds how far ahead the suggester searches for
// an alternative slot. The bound guarantees termination, so no cancellation
// token is needed for the search itself.
const DefaultSuggestionHorizon = 14 * 24 * time.Hour

// Suggest finds the nearest acceptable alternative for a rejected request.
//
// Starting at start, it scans the free-slot sequence chronologically over the
// horizon and returns the first free slot long enough for the duration. The
// suggestion begins exactly where the free slot begins, not snapped to a
// rounder boundary, and ends duration later. The scan order is strictly
// chronological, so an unchanged calendar and preferences yield the identical
// suggestion on every call.
//
// Returns nil when the horizon holds no acceptable slot.
func Suggest(pref preference.Preference, events []Event, start time.Time, duration time.Duration, horizon time.Duration) *TimeSlot {
	if duration <= 0 {
		return nil
	}
	if horizon <= 0 {
		horizon = DefaultSuggestionHorizon
	}

	free := FreeSlots(pref, events, start, start.Add(horizon), duration)
	if len(free) == 0 {
		return nil
	}

	first := free[0]
	return &TimeSlot{Start: first.Start, End: first.Start.Add(duration)}
}
