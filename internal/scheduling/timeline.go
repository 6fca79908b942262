package scheduling

import (
	"sort"
	"time"

	"github.com/teemow/conflictfewer/internal/preference"
)

// FreeSlots projects a user's free timeline over [from, to).
//
// For each day in the horizon whose weekday is not blocked, the work-hours
// window forms the allowed timeline. Every event interval, expanded by the
// preference buffer on both ends, is subtracted from it. Remainders shorter
// than minDuration are dropped; zero-length remainders never become slots.
//
// The computation is stateless and recomputed from scratch per call: the
// event set is a snapshot supplied by the caller and nothing is cached.
// Results are ordered ascending by start time. All interval arithmetic
// happens in the location of from; callers normalize beforehand.
func FreeSlots(pref preference.Preference, events []Event, from, to time.Time, minDuration time.Duration) []TimeSlot {
	if !from.Before(to) {
		return nil
	}

	loc := from.Location()
	busy := busyIntervals(events, pref.Buffer(), loc)

	var free []TimeSlot
	for day := startOfDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		if pref.BlockedWeekdays.Contains(day.Weekday()) {
			continue
		}

		window := TimeSlot{
			Start: pref.WorkHours.Start.On(day),
			End:   pref.WorkHours.End.On(day),
		}
		window = clip(window, from, to)
		if !window.IsValid() {
			continue
		}

		for _, slot := range subtract(window, busy) {
			if slot.Duration() >= minDuration && slot.IsValid() {
				free = append(free, slot)
			}
		}
	}

	return free
}

// busyIntervals returns the buffer-expanded, merged, ascending busy timeline.
func busyIntervals(events []Event, buffer time.Duration, loc *time.Location) []TimeSlot {
	intervals := make([]TimeSlot, 0, len(events))
	for _, e := range events {
		slot := TimeSlot{
			Start: e.Start.Add(-buffer).In(loc),
			End:   e.End.Add(buffer).In(loc),
		}
		if slot.IsValid() {
			intervals = append(intervals, slot)
		}
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start.Before(intervals[j].Start)
	})

	// Merge touching or overlapping intervals so subtraction can walk a
	// single pass.
	merged := intervals[:0]
	for _, iv := range intervals {
		if n := len(merged); n > 0 && !merged[n-1].End.Before(iv.Start) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// subtract removes the busy intervals from the window, yielding the free
// remainders in order. busy must be sorted ascending and non-overlapping.
func subtract(window TimeSlot, busy []TimeSlot) []TimeSlot {
	var out []TimeSlot
	cursor := window.Start

	for _, b := range busy {
		if !b.End.After(cursor) {
			continue
		}
		if !b.Start.Before(window.End) {
			break
		}
		if b.Start.After(cursor) {
			end := b.Start
			if end.After(window.End) {
				end = window.End
			}
			if cursor.Before(end) {
				out = append(out, TimeSlot{Start: cursor, End: end})
			}
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
		if !cursor.Before(window.End) {
			return out
		}
	}

	if cursor.Before(window.End) {
		out = append(out, TimeSlot{Start: cursor, End: window.End})
	}
	return out
}

// clip restricts the slot to [from, to).
func clip(slot TimeSlot, from, to time.Time) TimeSlot {
	if slot.Start.Before(from) {
		slot.Start = from
	}
	if slot.End.After(to) {
		slot.End = to
	}
	return slot
}

// startOfDay returns midnight of t's calendar day in t's location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
