package schedule_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/conflictfewer/internal/google"
	"github.com/teemow/conflictfewer/internal/instrumentation"
	"github.com/teemow/conflictfewer/internal/scheduling"
	"github.com/teemow/conflictfewer/internal/server"
	"github.com/teemow/conflictfewer/internal/tools/common"
)

// RegisterScheduleTools registers the scheduling tools with the MCP server.
func RegisterScheduleTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil {
		return fmt.Errorf("mcp server is required")
	}

	scheduleMeetingTool := mcp.NewTool("schedule_meeting",
		mcp.WithDescription("Schedule a meeting at a requested time. Conflicting requests answer with a suggested alternative slot instead of booking."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("participant",
			mcp.Required(),
			mcp.Description("Email address or name of the other participant"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Requested meeting start (RFC3339 format, e.g., '2025-03-03T10:00:00Z')"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("Meeting duration in minutes"),
		),
		mcp.WithString("timezone",
			mcp.Required(),
			mcp.Description("IANA timezone of the requester (e.g., 'Europe/Berlin')"),
		),
		mcp.WithString("summary",
			mcp.Description("Event title; generated from the participant when omitted"),
		),
		mcp.WithBoolean("useSuggestedSlot",
			mcp.Description("Set to true when booking a slot the engine previously suggested; skips the conflict check"),
		),
	)
	s.AddTool(scheduleMeetingTool, common.InstrumentedToolHandlerWithService(
		"schedule_meeting", instrumentation.ServiceCalendar, instrumentation.OperationCreate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleScheduleMeeting(ctx, request, sc)
		}))

	findAvailabilityTool := mcp.NewTool("find_availability",
		mcp.WithDescription("List free time slots over the coming days, honoring work hours, blocked weekdays and buffer preferences"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone for the reported slots (default: the stored preference, else UTC)"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Description("Minimum slot length in minutes (default: 30)"),
		),
		mcp.WithNumber("days",
			mcp.Description("How many days ahead to search (default: 7)"),
		),
	)
	s.AddTool(findAvailabilityTool, common.InstrumentedToolHandlerWithService(
		"find_availability", instrumentation.ServiceCalendar, instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindAvailability(ctx, request, sc)
		}))

	cancelMeetingTool := mcp.NewTool("cancel_meeting",
		mcp.WithDescription("Cancel a scheduled meeting. Canceling a meeting that is already gone succeeds."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("ID of the event to cancel"),
		),
	)
	s.AddTool(cancelMeetingTool, common.InstrumentedToolHandlerWithService(
		"cancel_meeting", instrumentation.ServiceCalendar, instrumentation.OperationDelete, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCancelMeeting(ctx, request, sc)
		}))

	rescheduleMeetingTool := mcp.NewTool("reschedule_meeting",
		mcp.WithDescription("Move a meeting to a new time: cancels the original and schedules the new intent, reporting a suggestion on conflict"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("ID of the event to move"),
		),
		mcp.WithString("participant",
			mcp.Required(),
			mcp.Description("Email address or name of the other participant"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("New meeting start (RFC3339 format)"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("Meeting duration in minutes"),
		),
		mcp.WithString("timezone",
			mcp.Required(),
			mcp.Description("IANA timezone of the requester"),
		),
		mcp.WithString("summary",
			mcp.Description("Event title; generated from the participant when omitted"),
		),
	)
	s.AddTool(rescheduleMeetingTool, common.InstrumentedToolHandlerWithService(
		"reschedule_meeting", instrumentation.ServiceCalendar, instrumentation.OperationUpdate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleRescheduleMeeting(ctx, request, sc)
		}))

	setReminderTool := mcp.NewTool("set_reminder",
		mcp.WithDescription("Set email and popup reminders on a scheduled meeting, firing a number of minutes before the start"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("ID of the event to set reminders on"),
		),
		mcp.WithNumber("reminderMinutes",
			mcp.Required(),
			mcp.Description("How many minutes before the start the reminders fire"),
		),
	)
	s.AddTool(setReminderTool, common.InstrumentedToolHandlerWithService(
		"set_reminder", instrumentation.ServiceCalendar, instrumentation.OperationUpdate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSetReminder(ctx, request, sc)
		}))

	setPreferencesTool := mcp.NewTool("set_preferences",
		mcp.WithDescription("Update availability preferences. Only the provided fields change; the rest keep their current values."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone pinning all availability computation for this user"),
		),
		mcp.WithString("workHoursStart",
			mcp.Description("Daily scheduling window start (HH:MM, e.g., '09:00')"),
		),
		mcp.WithString("workHoursEnd",
			mcp.Description("Daily scheduling window end (HH:MM, e.g., '17:00')"),
		),
		mcp.WithString("blockedWeekdays",
			mcp.Description("Comma-separated weekday names on which no meetings are scheduled (e.g., 'Saturday,Sunday'); an empty string clears the list"),
		),
		mcp.WithNumber("bufferMinutes",
			mcp.Description("Minimum idle minutes required before and after every meeting"),
		),
	)
	s.AddTool(setPreferencesTool, common.InstrumentedToolHandler(
		"set_preferences", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSetPreferences(ctx, request, sc)
		}))

	return nil
}

// schedulerFor resolves the orchestrator for an account, or an instruction
// message when no token is stored yet.
func schedulerFor(sc *server.ServerContext, account string) (*scheduling.Orchestrator, string) {
	orch := sc.OrchestratorForAccount(account)
	if orch == nil {
		return nil, google.GetAuthenticationErrorMessage(account)
	}
	return orch, ""
}
