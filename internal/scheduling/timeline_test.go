package scheduling

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/conflictfewer/internal/preference"
)

// monday is a fixed reference Monday used across the scheduling tests.
var monday = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, day.Location())
}

func busyEvent(start, end time.Time) Event {
	return Event{ID: "busy", Summary: "Existing meeting", Start: start, End: end}
}

func TestFreeSlotsEmptyCalendar(t *testing.T) {
	pref := preference.Default()

	slots := FreeSlots(pref, nil, monday, monday.AddDate(0, 0, 1), 0)

	require.Len(t, slots, 1)
	assert.Equal(t, at(monday, 9, 0), slots[0].Start)
	assert.Equal(t, at(monday, 17, 0), slots[0].End)
}

func TestFreeSlotsSubtractsEvents(t *testing.T) {
	pref := preference.Default()
	events := []Event{busyEvent(at(monday, 10, 0), at(monday, 11, 0))}

	slots := FreeSlots(pref, events, monday, monday.AddDate(0, 0, 1), 0)

	require.Len(t, slots, 2)
	assert.Equal(t, TimeSlot{Start: at(monday, 9, 0), End: at(monday, 10, 0)}, slots[0])
	assert.Equal(t, TimeSlot{Start: at(monday, 11, 0), End: at(monday, 17, 0)}, slots[1])
}

func TestFreeSlotsBufferExpandsBusyIntervals(t *testing.T) {
	pref := preference.Default()
	pref.BufferMinutes = 15
	events := []Event{busyEvent(at(monday, 10, 0), at(monday, 11, 0))}

	slots := FreeSlots(pref, events, monday, monday.AddDate(0, 0, 1), 0)

	require.Len(t, slots, 2)
	assert.Equal(t, at(monday, 9, 45), slots[0].End)
	assert.Equal(t, at(monday, 11, 15), slots[1].Start)
}

func TestFreeSlotsSkipsBlockedWeekdays(t *testing.T) {
	pref := preference.Default()
	pref.BlockedWeekdays = preference.WeekdaySet{time.Saturday, time.Sunday}

	// Friday through Monday: only Friday and Monday contribute.
	friday := monday.AddDate(0, 0, 4)
	slots := FreeSlots(pref, nil, friday, friday.AddDate(0, 0, 4), 0)

	require.Len(t, slots, 2)
	assert.Equal(t, time.Friday, slots[0].Start.Weekday())
	assert.Equal(t, time.Monday, slots[1].Start.Weekday())
}

func TestFreeSlotsDropsShortRemainders(t *testing.T) {
	pref := preference.Default()
	// 30-minute gap between the two events.
	events := []Event{
		busyEvent(at(monday, 9, 0), at(monday, 12, 0)),
		busyEvent(at(monday, 12, 30), at(monday, 17, 0)),
	}

	slots := FreeSlots(pref, events, monday, monday.AddDate(0, 0, 1), time.Hour)

	assert.Empty(t, slots)
}

func TestFreeSlotsBackToBackEventsYieldNoZeroSlot(t *testing.T) {
	pref := preference.Default()
	events := []Event{
		busyEvent(at(monday, 10, 0), at(monday, 11, 0)),
		busyEvent(at(monday, 11, 0), at(monday, 12, 0)),
	}

	slots := FreeSlots(pref, events, monday, monday.AddDate(0, 0, 1), 0)

	require.Len(t, slots, 2)
	assert.Equal(t, at(monday, 10, 0), slots[0].End)
	assert.Equal(t, at(monday, 12, 0), slots[1].Start)
	for _, s := range slots {
		assert.True(t, s.IsValid())
	}
}

func TestFreeSlotsClipsToQueryRange(t *testing.T) {
	pref := preference.Default()

	from := at(monday, 13, 0)
	slots := FreeSlots(pref, nil, from, at(monday, 16, 0), 0)

	require.Len(t, slots, 1)
	assert.Equal(t, at(monday, 13, 0), slots[0].Start)
	assert.Equal(t, at(monday, 16, 0), slots[0].End)
}

func TestFreeSlotsEventCoveringFullWindow(t *testing.T) {
	pref := preference.Default()
	events := []Event{busyEvent(at(monday, 8, 0), at(monday, 18, 0))}

	slots := FreeSlots(pref, events, monday, monday.AddDate(0, 0, 1), 0)

	assert.Empty(t, slots)
}

// TestFreeSlotsPartition checks the core availability invariant on random
// calendars: within work hours on unblocked days, every instant is either
// inside a buffer-expanded busy interval or inside a reported free slot,
// and never both.
func TestFreeSlotsPartition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pref := preference.Default()
	pref.BufferMinutes = 10

	for trial := 0; trial < 50; trial++ {
		var events []Event
		for i := 0; i < rng.Intn(12); i++ {
			day := rng.Intn(3)
			startMin := 8*60 + rng.Intn(9*60)
			length := 15 + rng.Intn(120)
			start := monday.AddDate(0, 0, day).Add(time.Duration(startMin) * time.Minute)
			events = append(events, busyEvent(start, start.Add(time.Duration(length)*time.Minute)))
		}

		from := monday
		to := monday.AddDate(0, 0, 3)
		slots := FreeSlots(pref, events, from, to, 0)

		for i, s := range slots {
			require.True(t, s.IsValid(), "slot %d invalid", i)
			if i > 0 {
				require.False(t, s.Start.Before(slots[i-1].End), "slots out of order or overlapping")
			}

			day := startOfDay(s.Start)
			require.False(t, s.Start.Before(pref.WorkHours.Start.On(day)), "slot starts before work hours")
			require.False(t, s.End.After(pref.WorkHours.End.On(day)), "slot ends after work hours")

			for _, e := range events {
				expanded := TimeSlot{
					Start: e.Start.Add(-pref.Buffer()),
					End:   e.End.Add(pref.Buffer()),
				}
				require.False(t, s.Overlaps(expanded), "free slot %v overlaps busy %v", s, expanded)
			}
		}
	}
}

func TestFreeSlotsReversedRange(t *testing.T) {
	slots := FreeSlots(preference.Default(), nil, monday.AddDate(0, 0, 1), monday, 0)
	assert.Nil(t, slots)
}
