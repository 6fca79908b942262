package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/teemow/conflictfewer/internal/logging"
	"github.com/teemow/conflictfewer/internal/scheduling"
)

// apiError is the uniform error envelope returned by every API endpoint.
// Clients branch on Code; Message and Action are for humans.
type apiError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// Error codes returned in the envelope.
const (
	codeInvalidRequest         = "INVALID_REQUEST"
	codeInvalidIntent          = "INVALID_INTENT"
	codeNoAvailability         = "NO_AVAILABILITY"
	codeEventNotFound          = "EVENT_NOT_FOUND"
	codeProviderError          = "PROVIDER_ERROR"
	codeRescheduleLostOriginal = "RESCHEDULE_LOST_ORIGINAL"
	codeInternalError          = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeAPIError(w http.ResponseWriter, status int, apiErr apiError) {
	writeJSON(w, status, apiErr)
}

func writeInvalidBody(w http.ResponseWriter) {
	writeAPIError(w, http.StatusBadRequest, apiError{
		Code:     codeInvalidRequest,
		Message:  "request body could not be parsed",
		Category: "validation",
		Action:   "send a well-formed JSON body",
	})
}

// writeServiceError maps errors returned by the scheduling core onto the
// envelope. Unknown errors become a 500 without leaking internals.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *scheduling.ValidationError
	if errors.As(err, &verr) {
		writeAPIError(w, http.StatusBadRequest, apiError{
			Code:     codeInvalidIntent,
			Message:  verr.Error(),
			Category: "validation",
			Action:   "correct the named field and retry",
		})
		return
	}

	if errors.Is(err, scheduling.ErrEventNotFound) {
		writeAPIError(w, http.StatusNotFound, apiError{
			Code:     codeEventNotFound,
			Message:  "the event does not exist",
			Category: "scheduling",
			Action:   "check the event ID",
		})
		return
	}

	var perr *scheduling.ProviderError
	if errors.As(err, &perr) {
		writeAPIError(w, http.StatusBadGateway, apiError{
			Code:     codeProviderError,
			Message:  "the calendar provider rejected the request",
			Category: "provider",
			Action:   "retry once the calendar service recovers",
		})
		return
	}

	logger.Error("unhandled service error", logging.Err(err))
	writeAPIError(w, http.StatusInternalServerError, apiError{
		Code:     codeInternalError,
		Message:  "an internal error occurred",
		Category: "system",
		Action:   "retry later",
	})
}

// failureStatus maps a failed outcome's kind onto an HTTP status and envelope.
func failureEnvelope(kind scheduling.FailureKind, reason string) (int, apiError) {
	switch kind {
	case scheduling.FailureValidation:
		return http.StatusBadRequest, apiError{
			Code:     codeInvalidIntent,
			Message:  reason,
			Category: "validation",
			Action:   "correct the named field and retry",
		}
	case scheduling.FailureNoAvailability:
		return http.StatusConflict, apiError{
			Code:     codeNoAvailability,
			Message:  reason,
			Category: "scheduling",
			Action:   "widen the time range or relax preferences",
		}
	case scheduling.FailureProvider:
		return http.StatusBadGateway, apiError{
			Code:     codeProviderError,
			Message:  reason,
			Category: "provider",
			Action:   "retry once the calendar service recovers",
		}
	case scheduling.FailureRescheduleLostOriginal:
		// The original booking is gone. A distinct code so clients can
		// prompt the user to rebook instead of silently retrying.
		return http.StatusBadGateway, apiError{
			Code:     codeRescheduleLostOriginal,
			Message:  reason,
			Category: "provider",
			Action:   "the original event was canceled; book a new meeting",
		}
	default:
		return http.StatusInternalServerError, apiError{
			Code:     codeInternalError,
			Message:  reason,
			Category: "system",
			Action:   "retry later",
		}
	}
}
