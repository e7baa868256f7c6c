package service

import (
	"errors"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

// Outcome labels a command result with a short, bounded error kind.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrOverBudget):
		return "over_budget"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrAllocationInactive):
		return "allocation_inactive"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrActorNotAuthorized):
		return "not_authorized"
	case errors.Is(err, domain.ErrAlreadyVoided), errors.Is(err, domain.ErrAlreadySuperseded):
		return "already_applied"
	case errors.Is(err, domain.ErrDuplicateID):
		return "duplicate"
	case errors.Is(err, domain.ErrVersionConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	default:
		return "error"
	}
}

func isRejection(err error) bool {
	return Outcome(err) != "error"
}
