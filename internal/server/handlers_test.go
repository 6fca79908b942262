package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teemow/conflictfewer/internal/preference"
	"github.com/teemow/conflictfewer/internal/scheduling"
)

// monday is a fixed Monday used as the anchor of all handler tests.
var monday = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

// fakeProvider is an in-memory scheduling.Provider.
type fakeProvider struct {
	mu        sync.Mutex
	events    []scheduling.Event
	nextID    int
	listErr   error
	createErr error
	deleteErr error
	reminders map[string]int
}

func (f *fakeProvider) ListEvents(_ context.Context, timeMin, timeMax time.Time) ([]scheduling.Event, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []scheduling.Event
	for _, e := range f.events {
		if e.Start.Before(timeMax) && timeMin.Before(e.End) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeProvider) CreateEvent(_ context.Context, req scheduling.EventRequest) (*scheduling.Event, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	event := scheduling.Event{
		ID:        fmt.Sprintf("evt-%d", f.nextID),
		Summary:   req.Summary,
		Start:     req.Start,
		End:       req.End,
		Attendees: req.Attendees,
	}
	f.events = append(f.events, event)
	return &event, nil
}

func (f *fakeProvider) DeleteEvent(_ context.Context, eventID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.ID == eventID {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return scheduling.ErrEventNotFound
}

func (f *fakeProvider) SetReminder(_ context.Context, eventID string, minutes int) (*scheduling.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == eventID {
			if f.reminders == nil {
				f.reminders = make(map[string]int)
			}
			f.reminders[eventID] = minutes
			return &f.events[i], nil
		}
	}
	return nil, scheduling.ErrEventNotFound
}

// newTestRouter builds the full router over a fake provider. The clock is
// pinned to 08:00 on the anchor Monday.
func newTestRouter(t *testing.T, provider *fakeProvider) http.Handler {
	t.Helper()

	prefs, err := preference.NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return newTestRouterWithStore(t, provider, prefs)
}

func newTestRouterWithStore(t *testing.T, provider *fakeProvider, prefs *preference.Store) http.Handler {
	t.Helper()

	orch := scheduling.NewOrchestrator(provider, prefs)
	resolve := func(account string) (Scheduler, EventLister, error) {
		if account == "noauth" {
			return nil, nil, errors.New("no calendar credentials")
		}
		return orch, provider, nil
	}

	api := NewAPI(resolve, prefs, WithClock(func() time.Time { return at(8, 0) }))
	return NewRouter(api, RouterConfig{})
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestScheduleMeeting_FreeSlot(t *testing.T) {
	provider := &fakeProvider{}
	router := newTestRouter(t, provider)

	rec := doJSON(t, router, http.MethodPost, "/api/schedule/meeting", map[string]any{
		"participant":     "alex@example.com",
		"start":           at(10, 0),
		"durationMinutes": 30,
		"timezone":        "UTC",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[scheduledResponse](t, rec)
	if resp.Event == nil {
		t.Fatal("response has no event")
	}
	if !resp.Event.Start.Equal(at(10, 0)) {
		t.Errorf("event start = %v, want %v", resp.Event.Start, at(10, 0))
	}
	if len(provider.events) != 1 {
		t.Errorf("provider has %d events, want 1", len(provider.events))
	}
}

func TestScheduleMeeting_ConflictOffersSuggestion(t *testing.T) {
	provider := &fakeProvider{events: []scheduling.Event{
		{ID: "busy-1", Start: at(10, 0), End: at(11, 0)},
	}}
	router := newTestRouter(t, provider)

	rec := doJSON(t, router, http.MethodPost, "/api/schedule/meeting", map[string]any{
		"participant":     "alex@example.com",
		"start":           at(10, 0),
		"durationMinutes": 30,
		"timezone":        "UTC",
	})

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[conflictResponse](t, rec)
	if !resp.Conflict {
		t.Error("conflict flag not set")
	}
	if resp.SuggestedSlot == nil {
		t.Fatal("no suggested slot")
	}
	if !resp.SuggestedSlot.Start.Equal(at(11, 0)) {
		t.Errorf("suggested start = %v, want %v", resp.SuggestedSlot.Start, at(11, 0))
	}
	if len(provider.events) != 1 {
		t.Errorf("conflict must not create an event, provider has %d", len(provider.events))
	}

	// Accepting the suggestion books it without another conflict check.
	rec = doJSON(t, router, http.MethodPost, "/api/schedule/meeting", map[string]any{
		"participant":      "alex@example.com",
		"start":            resp.SuggestedSlot.Start,
		"durationMinutes":  30,
		"timezone":         "UTC",
		"useSuggestedSlot": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestScheduleMeeting_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		provider   *fakeProvider
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{
			name:     "validation failure",
			provider: &fakeProvider{},
			body: map[string]any{
				"participant":     "alex@example.com",
				"start":           at(10, 0),
				"durationMinutes": 0,
				"timezone":        "UTC",
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   codeInvalidIntent,
		},
		{
			name:     "provider failure",
			provider: &fakeProvider{listErr: errors.New("backend down")},
			body: map[string]any{
				"participant":     "alex@example.com",
				"start":           at(10, 0),
				"durationMinutes": 30,
				"timezone":        "UTC",
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   codeProviderError,
		},
		{
			name: "no availability",
			provider: &fakeProvider{events: []scheduling.Event{
				// One event swallowing the whole horizon.
				{ID: "busy-1", Start: monday, End: monday.AddDate(0, 0, 20)},
			}},
			body: map[string]any{
				"participant":     "alex@example.com",
				"start":           at(10, 0),
				"durationMinutes": 30,
				"timezone":        "UTC",
			},
			wantStatus: http.StatusConflict,
			wantCode:   codeNoAvailability,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, tt.provider)
			rec := doJSON(t, router, http.MethodPost, "/api/schedule/meeting", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			resp := decodeBody[apiError](t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestScheduleMeeting_InvalidBody(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/schedule/meeting", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeBody[apiError](t, rec)
	if resp.Code != codeInvalidRequest {
		t.Errorf("code = %q, want %q", resp.Code, codeInvalidRequest)
	}
}

func TestScheduleMeeting_NoCredentials(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{})

	rec := doJSON(t, router, http.MethodPost, "/api/schedule/meeting", map[string]any{
		"user":            "noauth",
		"participant":     "alex@example.com",
		"start":           at(10, 0),
		"durationMinutes": 30,
		"timezone":        "UTC",
	})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[apiError](t, rec)
	if resp.Code != "NO_CALENDAR_CLIENT" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestCancelMeeting(t *testing.T) {
	provider := &fakeProvider{events: []scheduling.Event{
		{ID: "evt-1", Start: at(10, 0), End: at(11, 0)},
	}}
	router := newTestRouter(t, provider)

	rec := doJSON(t, router, http.MethodPost, "/api/schedule/cancel", map[string]any{
		"eventId": "evt-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(provider.events) != 0 {
		t.Errorf("event not deleted")
	}

	// Canceling again is still a success.
	rec = doJSON(t, router, http.MethodPost, "/api/schedule/cancel", map[string]any{
		"eventId": "evt-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat cancel status = %d", rec.Code)
	}
}

func TestCancelMeeting_MissingEventID(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{})

	rec := doJSON(t, router, http.MethodPost, "/api/schedule/cancel", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[apiError](t, rec)
	if resp.Code != codeInvalidIntent {
		t.Errorf("code = %q, want %q", resp.Code, codeInvalidIntent)
	}
}

func TestRescheduleMeeting(t *testing.T) {
	provider := &fakeProvider{events: []scheduling.Event{
		{ID: "evt-1", Start: at(10, 0), End: at(11, 0)},
	}}
	router := newTestRouter(t, provider)

	rec := doJSON(t, router, http.MethodPost, "/api/schedule/reschedule", map[string]any{
		"eventId":         "evt-1",
		"participant":     "alex@example.com",
		"start":           at(14, 0),
		"durationMinutes": 60,
		"timezone":        "UTC",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[scheduledResponse](t, rec)
	if resp.Event == nil || !resp.Event.Start.Equal(at(14, 0)) {
		t.Errorf("rescheduled event = %+v", resp.Event)
	}
	if len(provider.events) != 1 {
		t.Errorf("provider has %d events, want 1", len(provider.events))
	}
}

func TestRescheduleMeeting_LostOriginal(t *testing.T) {
	provider := &fakeProvider{
		events:    []scheduling.Event{{ID: "evt-1", Start: at(10, 0), End: at(11, 0)}},
		createErr: errors.New("create rejected"),
	}
	router := newTestRouter(t, provider)

	rec := doJSON(t, router, http.MethodPost, "/api/schedule/reschedule", map[string]any{
		"eventId":         "evt-1",
		"participant":     "alex@example.com",
		"start":           at(14, 0),
		"durationMinutes": 60,
		"timezone":        "UTC",
	})

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[apiError](t, rec)
	if resp.Code != codeRescheduleLostOriginal {
		t.Errorf("code = %q, want %q", resp.Code, codeRescheduleLostOriginal)
	}
	if !strings.Contains(resp.Message, "evt-1") {
		t.Errorf("message %q does not name the lost event", resp.Message)
	}
}

func TestSetReminder(t *testing.T) {
	provider := &fakeProvider{events: []scheduling.Event{
		{ID: "evt-1", Summary: "standup", Start: at(10, 0), End: at(10, 15)},
	}}
	router := newTestRouter(t, provider)

	rec := doJSON(t, router, http.MethodPost, "/api/reminders/set", map[string]any{
		"eventId":         "evt-1",
		"reminderMinutes": 15,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[map[string]string](t, rec)
	if !strings.Contains(resp["message"], "standup") {
		t.Errorf("message %q does not name the event", resp["message"])
	}
	if provider.reminders["evt-1"] != 15 {
		t.Errorf("reminders = %v, want evt-1 at 15 minutes", provider.reminders)
	}
}

func TestSetReminder_ErrorMapping(t *testing.T) {
	provider := &fakeProvider{events: []scheduling.Event{
		{ID: "evt-1", Start: at(10, 0), End: at(10, 15)},
	}}
	router := newTestRouter(t, provider)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown event",
			body:       map[string]any{"eventId": "never-existed", "reminderMinutes": 15},
			wantStatus: http.StatusNotFound,
			wantCode:   codeEventNotFound,
		},
		{
			name:       "missing event id",
			body:       map[string]any{"reminderMinutes": 15},
			wantStatus: http.StatusBadRequest,
			wantCode:   codeInvalidIntent,
		},
		{
			name:       "non-positive minutes",
			body:       map[string]any{"eventId": "evt-1", "reminderMinutes": 0},
			wantStatus: http.StatusBadRequest,
			wantCode:   codeInvalidIntent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/reminders/set", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			resp := decodeBody[apiError](t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestAvailability(t *testing.T) {
	provider := &fakeProvider{events: []scheduling.Event{
		{ID: "busy-1", Start: at(10, 0), End: at(11, 0)},
	}}
	router := newTestRouter(t, provider)

	rec := doJSON(t, router, http.MethodGet, "/api/availability?timezone=UTC&durationMinutes=30", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[availabilityResponse](t, rec)
	if len(resp.TimeSlots) == 0 {
		t.Fatal("no slots returned")
	}
	first := resp.TimeSlots[0]
	if !first.Start.Equal(at(9, 0)) || !first.End.Equal(at(10, 0)) {
		t.Errorf("first slot = %v..%v, want 09:00..10:00", first.Start, first.End)
	}
	for _, slot := range resp.TimeSlots {
		if slot.Start.Before(at(10, 0)) && at(10, 0).Before(slot.End) {
			t.Errorf("slot %v..%v overlaps the busy interval", slot.Start, slot.End)
		}
	}
}

func TestAvailability_BadParams(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{})

	for _, path := range []string{
		"/api/availability?durationMinutes=zero",
		"/api/availability?durationMinutes=-10",
		"/api/availability?days=0",
	} {
		rec := doJSON(t, router, http.MethodGet, path, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestPreferences_SetAndGet(t *testing.T) {
	prefs, err := preference.NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	router := newTestRouterWithStore(t, &fakeProvider{}, prefs)

	rec := doJSON(t, router, http.MethodPost, "/api/preferences/set", map[string]any{
		"user":            "carol",
		"timezone":        "America/New_York",
		"bufferMinutes":   15,
		"blockedWeekdays": []string{"Saturday", "Sunday"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/preferences?user=carol", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	pref := decodeBody[preference.Preference](t, rec)
	if pref.Timezone != "America/New_York" {
		t.Errorf("timezone = %q", pref.Timezone)
	}
	if pref.BufferMinutes != 15 {
		t.Errorf("bufferMinutes = %d", pref.BufferMinutes)
	}
	if !pref.BlockedWeekdays.Contains(time.Saturday) {
		t.Error("Saturday not blocked")
	}
	// Untouched fields keep their defaults.
	if pref.WorkHours.Start.String() != "09:00" {
		t.Errorf("work hours start = %s", pref.WorkHours.Start)
	}
}

func TestPreferences_SetInvalid(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{})

	rec := doJSON(t, router, http.MethodPost, "/api/preferences/set", map[string]any{
		"bufferMinutes": -5,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestPreferences_GetUnsetReturnsDefault(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{})

	rec := doJSON(t, router, http.MethodGet, "/api/preferences?user=nobody", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	pref := decodeBody[preference.Preference](t, rec)
	if pref.WorkHours.Start.String() != "09:00" || pref.WorkHours.End.String() != "17:00" {
		t.Errorf("default work hours = %s..%s", pref.WorkHours.Start, pref.WorkHours.End)
	}
}

func TestListEvents(t *testing.T) {
	provider := &fakeProvider{events: []scheduling.Event{
		{ID: "evt-1", Summary: "standup", Start: at(9, 0), End: at(9, 15)},
		{ID: "evt-2", Summary: "far future", Start: monday.AddDate(0, 2, 0), End: monday.AddDate(0, 2, 0).Add(time.Hour)},
	}}
	router := newTestRouter(t, provider)

	rec := doJSON(t, router, http.MethodGet, "/api/calendar/events?timezone=UTC", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[eventsResponse](t, rec)
	if len(resp.Events) != 1 {
		t.Fatalf("got %d events, want 1 (outside the window excluded)", len(resp.Events))
	}
	if resp.Events[0].Summary != "standup" {
		t.Errorf("summary = %q", resp.Events[0].Summary)
	}
}

func TestListEvents_UnknownTimezone(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{})

	rec := doJSON(t, router, http.MethodGet, "/api/calendar/events?timezone=Mars/Olympus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAnalytics(t *testing.T) {
	provider := &fakeProvider{events: []scheduling.Event{
		{ID: "evt-1", Start: at(9, 0), End: at(10, 0), Attendees: []string{"alex@example.com"}},
		{ID: "evt-2", Start: at(13, 0), End: at(14, 30), Attendees: []string{"alex@example.com"}},
	}}
	router := newTestRouter(t, provider)

	rec := doJSON(t, router, http.MethodGet, "/api/analytics?start_date=2025-03-03", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	report := decodeBody[struct {
		TotalMeetings int     `json:"totalMeetings"`
		TotalHours    float64 `json:"totalHours"`
	}](t, rec)
	if report.TotalMeetings != 2 {
		t.Errorf("totalMeetings = %d, want 2", report.TotalMeetings)
	}
	if report.TotalHours != 2.5 {
		t.Errorf("totalHours = %v, want 2.5", report.TotalHours)
	}
}

func TestAnalytics_BadStartDate(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{})

	rec := doJSON(t, router, http.MethodGet, "/api/analytics?start_date=March+3rd", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
