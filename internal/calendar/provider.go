package calendar

import (
	"context"
	"errors"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/teemow/conflictfewer/internal/scheduling"
)

// Provider adapts a Client to the scheduling.Provider interface for a single
// calendar. The scheduling core never sees Google API types.
type Provider struct {
	client     *Client
	calendarID string
}

// NewProvider wraps the client as a scheduling provider for the given
// calendar. An empty calendarID targets the primary calendar.
func NewProvider(client *Client, calendarID string) *Provider {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Provider{client: client, calendarID: calendarID}
}

// ListEvents implements scheduling.Provider. Cancelled events are dropped so
// they never count as busy time.
func (p *Provider) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]scheduling.Event, error) {
	summaries, err := p.client.ListEvents(ctx, p.calendarID, timeMin, timeMax, "")
	if err != nil {
		return nil, err
	}

	events := make([]scheduling.Event, 0, len(summaries))
	for _, s := range summaries {
		if s.Status == "cancelled" {
			continue
		}
		events = append(events, toSchedulingEvent(s))
	}
	return events, nil
}

// CreateEvent implements scheduling.Provider.
func (p *Provider) CreateEvent(ctx context.Context, req scheduling.EventRequest) (*scheduling.Event, error) {
	created, err := p.client.CreateEvent(ctx, p.calendarID, EventInput{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
		TimeZone:    req.Timezone,
		Attendees:   req.Attendees,
	})
	if err != nil {
		return nil, err
	}

	event := toSchedulingEvent(*created)
	return &event, nil
}

// DeleteEvent implements scheduling.Provider. Unknown and already-deleted
// events map to scheduling.ErrEventNotFound so Cancel stays idempotent.
func (p *Provider) DeleteEvent(ctx context.Context, eventID string) error {
	err := p.client.DeleteEvent(ctx, p.calendarID, eventID)
	if err != nil && isNotFound(err) {
		return scheduling.ErrEventNotFound
	}
	return err
}

// SetReminder implements scheduling.Provider. Unknown events map to
// scheduling.ErrEventNotFound.
func (p *Provider) SetReminder(ctx context.Context, eventID string, minutes int) (*scheduling.Event, error) {
	updated, err := p.client.SetEventReminder(ctx, p.calendarID, eventID, minutes)
	if err != nil {
		if isNotFound(err) {
			return nil, scheduling.ErrEventNotFound
		}
		return nil, err
	}

	event := toSchedulingEvent(*updated)
	return &event, nil
}

// toSchedulingEvent maps a calendar event onto the scheduling core's view.
func toSchedulingEvent(s EventSummary) scheduling.Event {
	var attendees []string
	for _, a := range s.Attendees {
		if a.Email != "" {
			attendees = append(attendees, a.Email)
		}
	}

	return scheduling.Event{
		ID:          s.ID,
		Summary:     s.Summary,
		Description: s.Description,
		Location:    s.Location,
		Start:       s.Start,
		End:         s.End,
		Attendees:   attendees,
	}
}

// isNotFound reports whether the API error means the event does not exist.
// Google returns 410 Gone for events that were already deleted.
func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404 || apiErr.Code == 410
	}
	return false
}
