package instrumentation

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestToolInvocation_Complete(t *testing.T) {
	ti := NewToolInvocation("schedule_meeting").
		WithUser("jane@example.com").
		WithAccount("work").
		WithService(ServiceCalendar, OperationCreate)

	ti.Complete(true, nil)

	if !ti.Success {
		t.Error("expected success")
	}
	if ti.Duration < 0 {
		t.Error("expected non-negative duration")
	}
	if ti.Status() != StatusSuccess {
		t.Errorf("expected status %q, got %q", StatusSuccess, ti.Status())
	}
}

func TestToolInvocation_CompleteWithError(t *testing.T) {
	ti := NewToolInvocation("cancel_meeting")
	ti.CompleteWithError(errors.New("backend unavailable"))

	if ti.Success {
		t.Error("expected failure")
	}
	if ti.Error != "backend unavailable" {
		t.Errorf("expected error message, got %q", ti.Error)
	}
	if ti.Status() != StatusError {
		t.Errorf("expected status %q, got %q", StatusError, ti.Status())
	}
}

func TestToolInvocation_LogAttrsAnonymizes(t *testing.T) {
	ti := NewToolInvocation("schedule_meeting").WithUser("jane@example.com")
	ti.CompleteSuccess()

	for _, attr := range ti.LogAttrs() {
		if strings.Contains(attr.Value.String(), "jane@example.com") {
			t.Errorf("LogAttrs leaked full email in %s", attr.Key)
		}
	}
}

func TestAuditLogger_LogSchedulingDecision(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	al := NewAuditLogger(logger)
	al.LogSchedulingDecision(&SchedulingDecision{
		Operation:      "schedule",
		UserEmail:      "jane@example.com",
		RequestedStart: time.Now(),
		Outcome:        OutcomeSuggestion,
		Reason:         "conflict detected",
	})

	out := buf.String()
	if !strings.Contains(out, "scheduling_decision") {
		t.Error("expected scheduling_decision log message")
	}
	if !strings.Contains(out, OutcomeSuggestion) {
		t.Error("expected outcome in log output")
	}
	// PII is off by default: only the domain should appear.
	if strings.Contains(out, "jane@example.com") {
		t.Error("expected anonymized user identifier, got full email")
	}
	if !strings.Contains(out, "example.com") {
		t.Error("expected user domain in log output")
	}
}

func TestAuditLogger_IncludePII(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true, IncludePII: true})
	al.LogSchedulingDecision(&SchedulingDecision{
		Operation: "cancel",
		UserEmail: "jane@example.com",
		Outcome:   OutcomeScheduled,
		EventID:   "evt-1",
	})

	out := buf.String()
	if !strings.Contains(out, "jane@example.com") {
		t.Error("expected full email when PII logging is enabled")
	}
	if !strings.Contains(out, "evt-1") {
		t.Error("expected event id in audit output")
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: false})
	al.LogSchedulingDecision(&SchedulingDecision{Operation: "schedule", Outcome: OutcomeScheduled})
	al.LogToolInvocation(NewToolInvocation("schedule_meeting").CompleteSuccess())

	if buf.Len() != 0 {
		t.Errorf("expected no output when disabled, got %q", buf.String())
	}
}

func TestAuditLogger_LogToolInvocation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	al := NewAuditLogger(logger)
	al.LogToolInvocation(NewToolInvocation("find_availability").CompleteSuccess())

	if !strings.Contains(buf.String(), "tool_executed") {
		t.Error("expected tool_executed log message")
	}

	buf.Reset()
	al.LogToolInvocation(NewToolInvocation("find_availability").CompleteWithError(errors.New("boom")))

	if !strings.Contains(buf.String(), "tool_failed") {
		t.Error("expected tool_failed log message")
	}
}
