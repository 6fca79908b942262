package schedule_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/conflictfewer/internal/preference"
	"github.com/teemow/conflictfewer/internal/scheduling"
	"github.com/teemow/conflictfewer/internal/server"
	"github.com/teemow/conflictfewer/internal/tools/common"
)

const (
	defaultMinSlotMinutes = 30
	defaultSearchDays     = 7
)

func handleScheduleMeeting(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	intent, errMsg := parseIntent(args)
	if errMsg != "" {
		return mcp.NewToolResultError(errMsg), nil
	}

	orch, authMsg := schedulerFor(sc, account)
	if orch == nil {
		return mcp.NewToolResultError(authMsg), nil
	}

	useSuggested, _ := args["useSuggestedSlot"].(bool)
	outcome := orch.Schedule(ctx, scheduling.Request{
		UserID:           account,
		Intent:           intent,
		UseSuggestedSlot: useSuggested,
	})
	return formatOutcome(outcome), nil
}

func handleFindAvailability(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	minutes := intArg(args, "durationMinutes", defaultMinSlotMinutes)
	if minutes <= 0 {
		return mcp.NewToolResultError("durationMinutes must be positive"), nil
	}
	days := intArg(args, "days", defaultSearchDays)
	if days <= 0 {
		return mcp.NewToolResultError("days must be positive"), nil
	}
	timezone, _ := args["timezone"].(string)

	orch, authMsg := schedulerFor(sc, account)
	if orch == nil {
		return mcp.NewToolResultError(authMsg), nil
	}

	from := time.Now()
	slots, err := orch.Availability(ctx, account, from, from.AddDate(0, 0, days),
		time.Duration(minutes)*time.Minute, timezone)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compute availability: %v", err)), nil
	}

	return mcp.NewToolResultText(formatSlots(slots, days)), nil
}

func handleCancelMeeting(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	orch, authMsg := schedulerFor(sc, account)
	if orch == nil {
		return mcp.NewToolResultError(authMsg), nil
	}

	if err := orch.Cancel(ctx, account, eventID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to cancel event: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Event %s canceled.", eventID)), nil
}

func handleRescheduleMeeting(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}
	intent, errMsg := parseIntent(args)
	if errMsg != "" {
		return mcp.NewToolResultError(errMsg), nil
	}

	orch, authMsg := schedulerFor(sc, account)
	if orch == nil {
		return mcp.NewToolResultError(authMsg), nil
	}

	outcome := orch.Reschedule(ctx, eventID, scheduling.Request{
		UserID: account,
		Intent: intent,
	})
	return formatOutcome(outcome), nil
}

func handleSetReminder(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}
	minutes := intArg(args, "reminderMinutes", 0)
	if minutes <= 0 {
		return mcp.NewToolResultError("reminderMinutes must be positive"), nil
	}

	orch, authMsg := schedulerFor(sc, account)
	if orch == nil {
		return mcp.NewToolResultError(authMsg), nil
	}

	event, err := orch.SetReminder(ctx, account, eventID, minutes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to set reminder: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Reminder set %d minute(s) before %q.", minutes, event.Summary)), nil
}

func handleSetPreferences(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	var update preference.Update

	if tz, ok := args["timezone"].(string); ok && tz != "" {
		update.Timezone = &tz
	}
	if minutes, ok := args["bufferMinutes"].(float64); ok {
		buffer := int(minutes)
		update.BufferMinutes = &buffer
	}

	startStr, hasStart := args["workHoursStart"].(string)
	endStr, hasEnd := args["workHoursEnd"].(string)
	if hasStart || hasEnd {
		// A single bound merges against the currently effective window.
		hours := sc.Preferences().Get(account).WorkHours
		if hasStart {
			parsed, err := preference.ParseTimeOfDay(startStr)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Invalid workHoursStart: %v", err)), nil
			}
			hours.Start = parsed
		}
		if hasEnd {
			parsed, err := preference.ParseTimeOfDay(endStr)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Invalid workHoursEnd: %v", err)), nil
			}
			hours.End = parsed
		}
		update.WorkHours = &hours
	}

	if blockedStr, ok := args["blockedWeekdays"].(string); ok {
		names := splitAndTrim(blockedStr)
		blocked, err := preference.ParseWeekdays(names)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid blockedWeekdays: %v", err)), nil
		}
		update.BlockedWeekdays = &blocked
	}

	pref, err := sc.Preferences().Set(account, update)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update preferences: %v", err)), nil
	}

	return mcp.NewToolResultText(formatPreference(pref)), nil
}

// parseIntent extracts the scheduling intent fields shared by the schedule
// and reschedule tools. It returns a user-facing message on malformed input;
// semantic validation stays in the orchestrator.
func parseIntent(args map[string]interface{}) (scheduling.Intent, string) {
	participant, ok := args["participant"].(string)
	if !ok || participant == "" {
		return scheduling.Intent{}, "participant is required"
	}

	startStr, ok := args["start"].(string)
	if !ok || startStr == "" {
		return scheduling.Intent{}, "start is required"
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return scheduling.Intent{}, fmt.Sprintf("Invalid start format: %v", err)
	}

	minutes, ok := args["durationMinutes"].(float64)
	if !ok {
		return scheduling.Intent{}, "durationMinutes is required"
	}

	timezone, ok := args["timezone"].(string)
	if !ok || timezone == "" {
		return scheduling.Intent{}, "timezone is required"
	}

	summary, _ := args["summary"].(string)

	return scheduling.Intent{
		Participant:     participant,
		RequestedStart:  start,
		DurationMinutes: int(minutes),
		Timezone:        timezone,
		Summary:         summary,
	}, ""
}

// formatOutcome renders a terminal scheduling outcome as a tool result. A
// conflict is a normal text result carrying the follow-up instruction; only
// failures become error results.
func formatOutcome(outcome scheduling.Outcome) *mcp.CallToolResult {
	switch outcome.State {
	case scheduling.StateScheduled:
		event := outcome.Event
		return mcp.NewToolResultText(fmt.Sprintf(
			"Meeting scheduled: %s\nStart: %s\nEnd: %s\nEvent ID: %s",
			event.Summary,
			event.Start.Format(time.RFC3339),
			event.End.Format(time.RFC3339),
			event.ID,
		))
	case scheduling.StateSuggestionOffered:
		return mcp.NewToolResultText(fmt.Sprintf(
			"The requested time is not available: %s\n\nNearest free slot: %s to %s\n\nTo book it, call schedule_meeting again with start=%s and useSuggestedSlot=true.",
			outcome.Reason,
			outcome.Suggested.Start.Format(time.RFC3339),
			outcome.Suggested.End.Format(time.RFC3339),
			outcome.Suggested.Start.Format(time.RFC3339),
		))
	case scheduling.StateFailed:
		return mcp.NewToolResultError(fmt.Sprintf("Scheduling failed (%s): %s", outcome.Failure, outcome.Reason))
	default:
		return mcp.NewToolResultError("unknown scheduling outcome")
	}
}

func formatSlots(slots []scheduling.TimeSlot, days int) string {
	if len(slots) == 0 {
		return fmt.Sprintf("No free slots found in the next %d day(s).", days)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d free slot(s) in the next %d day(s):\n\n", len(slots), days)
	for i, slot := range slots {
		fmt.Fprintf(&b, "%d. %s to %s (%s)\n",
			i+1,
			slot.Start.Format("Mon Jan 2 15:04 MST"),
			slot.End.Format("15:04 MST"),
			slot.Duration().Truncate(time.Minute),
		)
	}
	return b.String()
}

func formatPreference(pref preference.Preference) string {
	var b strings.Builder
	b.WriteString("Preferences updated:\n")
	timezone := pref.Timezone
	if timezone == "" {
		timezone = "(request timezone)"
	}
	fmt.Fprintf(&b, "Timezone: %s\n", timezone)
	fmt.Fprintf(&b, "Work hours: %s to %s\n", pref.WorkHours.Start, pref.WorkHours.End)
	if len(pref.BlockedWeekdays) == 0 {
		b.WriteString("Blocked weekdays: none\n")
	} else {
		names := make([]string, len(pref.BlockedWeekdays))
		for i, d := range pref.BlockedWeekdays {
			names[i] = d.String()
		}
		fmt.Fprintf(&b, "Blocked weekdays: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "Buffer: %d minute(s)\n", pref.BufferMinutes)
	return b.String()
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func splitAndTrim(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
