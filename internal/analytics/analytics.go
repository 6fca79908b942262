package analytics

import (
	"sort"
	"time"

	"github.com/teemow/conflictfewer/internal/scheduling"
)

// WeekReport aggregates one week of calendar activity.
type WeekReport struct {
	// WeekStart is the first instant of the reported week.
	WeekStart time.Time `json:"weekStart"`

	// WeekEnd is the exclusive end of the reported week.
	WeekEnd time.Time `json:"weekEnd"`

	// TotalMeetings is the number of events in the window.
	TotalMeetings int `json:"totalMeetings"`

	// TotalHours is the summed event duration in hours.
	TotalHours float64 `json:"totalHours"`

	// BusiestDays lists weekdays by descending meeting time.
	BusiestDays []DayLoad `json:"busiestDays"`

	// TopAttendees lists the most frequent attendees, descending.
	TopAttendees []AttendeeCount `json:"topAttendees"`
}

// DayLoad is the meeting load of a single weekday.
type DayLoad struct {
	Day      string  `json:"day"`
	Meetings int     `json:"meetings"`
	Hours    float64 `json:"hours"`
}

// AttendeeCount is the number of meetings shared with one attendee.
type AttendeeCount struct {
	Email    string `json:"email"`
	Meetings int    `json:"meetings"`
}

// maxTopAttendees bounds the attendee list in a report.
const maxTopAttendees = 5

// WeekOf returns the start of the calendar week (Monday 00:00) containing t,
// in t's location.
func WeekOf(t time.Time) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())

	offset := int(day.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return day.AddDate(0, 0, -offset)
}

// Analyze aggregates the events overlapping the week starting at weekStart.
// Events partially outside the window count only their overlapping portion
// toward hours; they still count as one meeting.
func Analyze(events []scheduling.Event, weekStart time.Time) WeekReport {
	weekEnd := weekStart.AddDate(0, 0, 7)
	window := scheduling.TimeSlot{Start: weekStart, End: weekEnd}

	report := WeekReport{WeekStart: weekStart, WeekEnd: weekEnd}

	dayLoads := make(map[time.Weekday]*DayLoad)
	attendees := make(map[string]int)

	for _, e := range events {
		slot := e.Slot()
		if !slot.IsValid() || !slot.Overlaps(window) {
			continue
		}

		clipped := clipToWindow(slot, window)
		hours := clipped.Duration().Hours()

		report.TotalMeetings++
		report.TotalHours += hours

		wd := clipped.Start.In(weekStart.Location()).Weekday()
		load, ok := dayLoads[wd]
		if !ok {
			load = &DayLoad{Day: wd.String()}
			dayLoads[wd] = load
		}
		load.Meetings++
		load.Hours += hours

		for _, email := range e.Attendees {
			attendees[email]++
		}
	}

	for _, load := range dayLoads {
		report.BusiestDays = append(report.BusiestDays, *load)
	}
	sort.Slice(report.BusiestDays, func(i, j int) bool {
		a, b := report.BusiestDays[i], report.BusiestDays[j]
		if a.Hours != b.Hours {
			return a.Hours > b.Hours
		}
		return a.Day < b.Day
	})

	for email, count := range attendees {
		report.TopAttendees = append(report.TopAttendees, AttendeeCount{Email: email, Meetings: count})
	}
	sort.Slice(report.TopAttendees, func(i, j int) bool {
		a, b := report.TopAttendees[i], report.TopAttendees[j]
		if a.Meetings != b.Meetings {
			return a.Meetings > b.Meetings
		}
		return a.Email < b.Email
	})
	if len(report.TopAttendees) > maxTopAttendees {
		report.TopAttendees = report.TopAttendees[:maxTopAttendees]
	}

	return report
}

func clipToWindow(slot, window scheduling.TimeSlot) scheduling.TimeSlot {
	if slot.Start.Before(window.Start) {
		slot.Start = window.Start
	}
	if slot.End.After(window.End) {
		slot.End = window.End
	}
	return slot
}
