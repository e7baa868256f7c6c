package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken          = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken          = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest        = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed      = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound      = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError         = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
	ErrVersionConflict       = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrIdempotencyInFlight   = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_FLIGHT", "A request with this idempotency key is still being processed"}

	ErrAllocationNotFound = &AppError{http.StatusNotFound, "ALLOCATION_NOT_FOUND", "Allocation not found"}
	ErrPostingNotFound    = &AppError{http.StatusNotFound, "POSTING_NOT_FOUND", "Posting not found"}
	ErrApprovalNotFound   = &AppError{http.StatusNotFound, "APPROVAL_NOT_FOUND", "Approval request not found"}

	ErrInvalidAmount     = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount is not valid"}
	ErrNonPositiveAmount = &AppError{http.StatusBadRequest, "NON_POSITIVE_AMOUNT", "Amount must be greater than zero"}
	ErrAmountPrecision   = &AppError{http.StatusBadRequest, "AMOUNT_PRECISION", "Amount has more decimal places than the currency allows"}
	ErrAmountOutOfRange  = &AppError{http.StatusBadRequest, "AMOUNT_OUT_OF_RANGE", "Amount has more than 16 integer digits"}
	ErrInvalidCurrency   = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Invalid currency"}
	ErrCurrencyMismatch  = &AppError{http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", "Posting currency does not match the allocation"}
	ErrOverBudget        = &AppError{http.StatusUnprocessableEntity, "OVER_BUDGET", "Posting would exceed the allocation total"}
	ErrAllocationClosed  = &AppError{http.StatusUnprocessableEntity, "ALLOCATION_INACTIVE", "Allocation is not accepting postings"}
	ErrAlreadyVoided     = &AppError{http.StatusConflict, "ALREADY_VOIDED", "Posting is already voided"}
	ErrAlreadySuperseded = &AppError{http.StatusConflict, "ALREADY_SUPERSEDED", "Allocation is already superseded"}
	ErrDuplicateID       = &AppError{http.StatusConflict, "DUPLICATE_ID", "A record with this id already exists"}

	ErrNotInDraft           = &AppError{http.StatusConflict, "NOT_IN_DRAFT", "Request is not in draft"}
	ErrNotSubmitted         = &AppError{http.StatusConflict, "NOT_SUBMITTED", "Request is not submitted"}
	ErrInvalidTransition    = &AppError{http.StatusConflict, "INVALID_TRANSITION", "Transition not allowed from the current state"}
	ErrNotOriginalSubmitter = &AppError{http.StatusForbidden, "NOT_ORIGINAL_SUBMITTER", "Only the original submitter may withdraw"}
	ErrSelfApproval         = &AppError{http.StatusForbidden, "SELF_APPROVAL", "The creator or submitter cannot decide their own request"}
	ErrActorNotAuthorized   = &AppError{http.StatusForbidden, "ACTOR_NOT_AUTHORIZED", "Actor is not allowed to decide this request"}
)
