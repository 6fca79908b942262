package preference

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a clock time expressed as minutes since midnight.
// It marshals to and from the "15:04" wire format used by the preferences API.
type TimeOfDay int

// ParseTimeOfDay parses a "15:04" clock string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// String returns the "15:04" representation.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On anchors the time of day to the calendar date of day in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, day.Location())
}

// MarshalJSON implements json.Marshaler.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// WorkHours is the daily window inside which meetings may be scheduled.
type WorkHours struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// WeekdaySet is a set of blocked weekdays. It marshals as weekday names
// ("Saturday", "Sunday") to match the wire format of the preferences API.
type WeekdaySet []time.Weekday

// Contains reports whether d is in the set.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	for _, wd := range s {
		if wd == d {
			return true
		}
	}
	return false
}

// MarshalJSON implements json.Marshaler.
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	names := make([]string, len(s))
	for i, wd := range s {
		names[i] = wd.String()
	}
	return json.Marshal(names)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set := make(WeekdaySet, 0, len(names))
	for _, name := range names {
		wd, err := parseWeekday(name)
		if err != nil {
			return err
		}
		if !set.Contains(wd) {
			set = append(set, wd)
		}
	}
	*s = set
	return nil
}

// ParseWeekdays converts weekday names into a WeekdaySet, dropping
// duplicates.
func ParseWeekdays(names []string) (WeekdaySet, error) {
	set := make(WeekdaySet, 0, len(names))
	for _, name := range names {
		d, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		if !set.Contains(d) {
			set = append(set, d)
		}
	}
	return set, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(name, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", name)
}

// Preference holds a user's standing availability rules. One record per user;
// it lives for the lifetime of the user account and is overwritten
// field-by-field via Store.Set.
type Preference struct {
	// Timezone is an IANA timezone name. When empty, the timezone of the
	// scheduling request is used for interval arithmetic.
	Timezone string `json:"timezone,omitempty"`

	// WorkHours is the daily scheduling window.
	WorkHours WorkHours `json:"workHours"`

	// BlockedWeekdays lists weekdays on which no meetings are scheduled.
	BlockedWeekdays WeekdaySet `json:"blockedWeekdays"`

	// BufferMinutes is the minimum idle time required immediately before and
	// after any busy interval.
	BufferMinutes int `json:"bufferMinutes"`
}

// Default returns the system default preference: 09:00-17:00 work hours,
// no blocked days, no buffer.
func Default() Preference {
	return Preference{
		WorkHours: WorkHours{
			Start: TimeOfDay(9 * 60),
			End:   TimeOfDay(17 * 60),
		},
	}
}

// Validate checks the preference invariants.
func (p Preference) Validate() error {
	if p.WorkHours.Start >= p.WorkHours.End {
		return fmt.Errorf("%w: %s >= %s", ErrInvalidWorkHours, p.WorkHours.Start, p.WorkHours.End)
	}
	if p.BufferMinutes < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeBuffer, p.BufferMinutes)
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTimezone, p.Timezone)
		}
	}
	return nil
}

// Location resolves the preference timezone, falling back to fallback when
// the preference does not pin one.
func (p Preference) Location(fallback *time.Location) (*time.Location, error) {
	if p.Timezone == "" {
		if fallback != nil {
			return fallback, nil
		}
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, p.Timezone)
	}
	return loc, nil
}

// Buffer returns the buffer as a duration.
func (p Preference) Buffer() time.Duration {
	return time.Duration(p.BufferMinutes) * time.Minute
}

// Update is a partial preference for merge-by-field updates. Nil fields
// retain the prior value; the UI lets users touch a single dimension
// (e.g. "block weekends") without restating the rest.
type Update struct {
	Timezone        *string     `json:"timezone,omitempty"`
	WorkHours       *WorkHours  `json:"workHours,omitempty"`
	BlockedWeekdays *WeekdaySet `json:"blockedWeekdays,omitempty"`
	BufferMinutes   *int        `json:"bufferMinutes,omitempty"`
}

// apply merges the update onto p and returns the result.
func (u Update) apply(p Preference) Preference {
	if u.Timezone != nil {
		p.Timezone = *u.Timezone
	}
	if u.WorkHours != nil {
		p.WorkHours = *u.WorkHours
	}
	if u.BlockedWeekdays != nil {
		p.BlockedWeekdays = *u.BlockedWeekdays
	}
	if u.BufferMinutes != nil {
		p.BufferMinutes = *u.BufferMinutes
	}
	return p
}
