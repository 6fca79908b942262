package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/conflictfewer/internal/preference"
)

func TestDetectConflict(t *testing.T) {
	base := preference.Default()

	buffered := base
	buffered.BufferMinutes = 15

	weekendBlocked := base
	weekendBlocked.BlockedWeekdays = preference.WeekdaySet{time.Saturday, time.Sunday}

	existing := []Event{busyEvent(at(monday, 10, 0), at(monday, 11, 0))}

	tests := []struct {
		name   string
		pref   preference.Preference
		slot   TimeSlot
		events []Event
		reason ConflictReason
	}{
		{
			name: "free slot inside work hours",
			pref: base,
			slot: TimeSlot{Start: at(monday, 14, 0), End: at(monday, 15, 0)},
		},
		{
			name:   "overlap with existing event",
			pref:   base,
			slot:   TimeSlot{Start: at(monday, 10, 30), End: at(monday, 11, 30)},
			events: existing,
			reason: ReasonBusy,
		},
		{
			name:   "back to back touch is not a conflict",
			pref:   base,
			slot:   TimeSlot{Start: at(monday, 11, 0), End: at(monday, 12, 0)},
			events: existing,
		},
		{
			name:   "buffer turns a touch into a conflict",
			pref:   buffered,
			slot:   TimeSlot{Start: at(monday, 11, 0), End: at(monday, 12, 0)},
			events: existing,
			reason: ReasonBusy,
		},
		{
			name:   "starts before work hours",
			pref:   base,
			slot:   TimeSlot{Start: at(monday, 8, 0), End: at(monday, 9, 0)},
			reason: ReasonOutsideWorkHours,
		},
		{
			name:   "runs past end of work hours",
			pref:   base,
			slot:   TimeSlot{Start: at(monday, 16, 30), End: at(monday, 17, 30)},
			reason: ReasonOutsideWorkHours,
		},
		{
			name: "ends exactly at close of work hours",
			pref: base,
			slot: TimeSlot{Start: at(monday, 16, 0), End: at(monday, 17, 0)},
		},
		{
			name:   "blocked weekday",
			pref:   weekendBlocked,
			slot:   TimeSlot{Start: at(monday.AddDate(0, 0, 5), 10, 0), End: at(monday.AddDate(0, 0, 5), 11, 0)},
			reason: ReasonBlockedWeekday,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflict := DetectConflict(tt.pref, tt.slot, tt.events)
			if tt.reason == "" {
				assert.Nil(t, conflict)
				return
			}
			require.NotNil(t, conflict)
			assert.Equal(t, tt.reason, conflict.Reason)
		})
	}
}

func TestConflictMessage(t *testing.T) {
	slot := TimeSlot{Start: at(monday, 14, 0), End: at(monday, 15, 0)}

	busy := &Conflict{Reason: ReasonBusy, Event: &Event{Summary: "Sprint review"}}
	assert.Contains(t, busy.Message(slot), "Sprint review")

	blocked := &Conflict{Reason: ReasonBlockedWeekday}
	assert.Contains(t, blocked.Message(slot), "Monday")

	outside := &Conflict{Reason: ReasonOutsideWorkHours}
	assert.Contains(t, outside.Message(slot), "work hours")
}

func TestBusyWithin(t *testing.T) {
	events := []Event{
		busyEvent(at(monday, 9, 0), at(monday, 10, 0)),
		busyEvent(at(monday, 14, 0), at(monday, 15, 0)),
	}

	overlapping := busyWithin(events, at(monday, 13, 0), at(monday, 16, 0))
	require.Len(t, overlapping, 1)
	assert.Equal(t, at(monday, 14, 0), overlapping[0].Start)
}
