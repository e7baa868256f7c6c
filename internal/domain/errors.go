package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrOverBudget         = errors.New("posting would exceed allocation total")
	ErrAllocationInactive = errors.New("allocation is not accepting postings")
	ErrInvalidTransition  = errors.New("invalid approval transition")
	ErrActorNotAuthorized = errors.New("actor not authorized")
	ErrAlreadyVoided      = errors.New("posting already voided")
	ErrAlreadySuperseded  = errors.New("allocation already superseded")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrVersionConflict    = errors.New("optimistic lock conflict")
	ErrInvalidRequest     = errors.New("invalid request")
)

// Specialised kinds wrap a general kind so errors.Is matches either.
var (
	ErrAllocationNotFound = fmt.Errorf("allocation %w", ErrNotFound)
	ErrPostingNotFound    = fmt.Errorf("posting %w", ErrNotFound)
	ErrApprovalNotFound   = fmt.Errorf("approval request %w", ErrNotFound)

	ErrNonPositiveAmount = fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	ErrNegativeAmount    = fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	ErrAmountPrecision   = fmt.Errorf("%w: too many fractional digits for currency", ErrInvalidAmount)
	ErrCurrencyMismatch  = fmt.Errorf("%w: currency mismatch", ErrInvalidAmount)
	ErrInvalidCurrency   = fmt.Errorf("%w: unsupported currency", ErrInvalidAmount)
	ErrAmountOutOfRange  = fmt.Errorf("%w: too many integer digits", ErrInvalidAmount)

	ErrNotInDraft   = fmt.Errorf("%w: request is not in draft", ErrInvalidTransition)
	ErrNotSubmitted = fmt.Errorf("%w: request is not submitted", ErrInvalidTransition)

	ErrNotOriginalSubmitter = fmt.Errorf("%w: only the original submitter may withdraw", ErrActorNotAuthorized)
	ErrSelfApproval         = fmt.Errorf("%w: creator or submitter cannot decide own request", ErrActorNotAuthorized)
)
