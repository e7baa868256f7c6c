package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	RespondAppError(w, MapDomainError(err), nil)
}

// RespondDomainErrorWithDetails is used by allocation commands to return
// the allocation's current summary alongside the error.
func RespondDomainErrorWithDetails(w http.ResponseWriter, err error, details any) {
	RespondAppError(w, MapDomainError(err), details)
}

// MapDomainError checks specialised kinds before the general kinds they wrap.
func MapDomainError(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrAllocationNotFound):
		return ErrAllocationNotFound
	case errors.Is(err, domain.ErrPostingNotFound):
		return ErrPostingNotFound
	case errors.Is(err, domain.ErrApprovalNotFound):
		return ErrApprovalNotFound
	case errors.Is(err, domain.ErrNotFound):
		return ErrResourceNotFound
	case errors.Is(err, domain.ErrOverBudget):
		return ErrOverBudget
	case errors.Is(err, domain.ErrAllocationInactive):
		return ErrAllocationClosed
	case errors.Is(err, domain.ErrNonPositiveAmount), errors.Is(err, domain.ErrNegativeAmount):
		return ErrNonPositiveAmount
	case errors.Is(err, domain.ErrAmountPrecision):
		return ErrAmountPrecision
	case errors.Is(err, domain.ErrAmountOutOfRange):
		return ErrAmountOutOfRange
	case errors.Is(err, domain.ErrCurrencyMismatch):
		return ErrCurrencyMismatch
	case errors.Is(err, domain.ErrInvalidCurrency):
		return ErrInvalidCurrency
	case errors.Is(err, domain.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, domain.ErrNotInDraft):
		return ErrNotInDraft
	case errors.Is(err, domain.ErrNotSubmitted):
		return ErrNotSubmitted
	case errors.Is(err, domain.ErrInvalidTransition):
		return ErrInvalidTransition
	case errors.Is(err, domain.ErrNotOriginalSubmitter):
		return ErrNotOriginalSubmitter
	case errors.Is(err, domain.ErrSelfApproval):
		return ErrSelfApproval
	case errors.Is(err, domain.ErrActorNotAuthorized):
		return ErrActorNotAuthorized
	case errors.Is(err, domain.ErrAlreadyVoided):
		return ErrAlreadyVoided
	case errors.Is(err, domain.ErrAlreadySuperseded):
		return ErrAlreadySuperseded
	case errors.Is(err, domain.ErrDuplicateID):
		return ErrDuplicateID
	case errors.Is(err, domain.ErrVersionConflict):
		return ErrVersionConflict
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err)
		return ErrInternalError
	}
}
