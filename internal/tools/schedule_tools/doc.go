// Package schedule_tools provides MCP (Model Context Protocol) tools for
// conflict-aware meeting scheduling.
//
// The tools expose the scheduling orchestrator to AI assistants:
// schedule_meeting, find_availability, cancel_meeting, reschedule_meeting,
// set_reminder and set_preferences. A conflicting request does not book
// anything;
// instead the tool answers with the nearest free slot and the follow-up
// call that accepts it. All tools support multi-account authentication via
// the optional account argument.
package schedule_tools
