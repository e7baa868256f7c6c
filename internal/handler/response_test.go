package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err        error
		wantCode   string
		wantStatus int
	}{
		{domain.ErrAllocationNotFound, "ALLOCATION_NOT_FOUND", http.StatusNotFound},
		{domain.ErrApprovalNotFound, "APPROVAL_NOT_FOUND", http.StatusNotFound},
		{domain.ErrNotFound, "RESOURCE_NOT_FOUND", http.StatusNotFound},
		{domain.ErrOverBudget, "OVER_BUDGET", http.StatusUnprocessableEntity},
		{domain.ErrAllocationInactive, "ALLOCATION_INACTIVE", http.StatusUnprocessableEntity},
		{domain.ErrNonPositiveAmount, "NON_POSITIVE_AMOUNT", http.StatusBadRequest},
		{domain.ErrCurrencyMismatch, "CURRENCY_MISMATCH", http.StatusUnprocessableEntity},
		{domain.ErrAmountOutOfRange, "AMOUNT_OUT_OF_RANGE", http.StatusBadRequest},
		{domain.ErrNotSubmitted, "NOT_SUBMITTED", http.StatusConflict},
		{domain.ErrSelfApproval, "SELF_APPROVAL", http.StatusForbidden},
		{domain.ErrNotOriginalSubmitter, "NOT_ORIGINAL_SUBMITTER", http.StatusForbidden},
		{domain.ErrActorNotAuthorized, "ACTOR_NOT_AUTHORIZED", http.StatusForbidden},
		{domain.ErrVersionConflict, "VERSION_CONFLICT", http.StatusConflict},
		{fmt.Errorf("RecordPosting: %w", domain.ErrOverBudget), "OVER_BUDGET", http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			got := MapDomainError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestCreateAllocationRequest_Validate(t *testing.T) {
	valid := createAllocationRequest{Kind: "budget", TotalAmount: "100", Currency: "IDR", OwnerRef: "dept-ops"}
	assert.Empty(t, valid.Validate())

	tests := []struct {
		name  string
		mod   func(r *createAllocationRequest)
		field string
	}{
		{"missing kind", func(r *createAllocationRequest) { r.Kind = "" }, "kind"},
		{"unknown kind", func(r *createAllocationRequest) { r.Kind = "loan" }, "kind"},
		{"bad currency", func(r *createAllocationRequest) { r.Currency = "XYZ" }, "currency"},
		{"bad amount", func(r *createAllocationRequest) { r.TotalAmount = "ten" }, "total_amount"},
		{"blank owner", func(r *createAllocationRequest) { r.OwnerRef = "  " }, "owner_ref"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mod(&r)
			errs := r.Validate()
			if assert.Len(t, errs, 1) {
				assert.Equal(t, tt.field, errs[0].Field)
			}
		})
	}
}

func TestValidateCurrency_ListsSupported(t *testing.T) {
	errs := validateCurrency("currency", "XYZ")
	if assert.Len(t, errs, 1) {
		assert.Equal(t, "must be one of IDR, USD, EUR, GBP, SGD, JPY", errs[0].Message)
	}
	assert.Empty(t, validateCurrency("currency", "EUR"))
}

func TestDecisionRequest_Validate(t *testing.T) {
	assert.Empty(t, decisionRequest{Decision: "approve"}.Validate())
	assert.Empty(t, decisionRequest{Decision: "reject"}.Validate())
	assert.Len(t, decisionRequest{Decision: "maybe"}.Validate(), 1)
}
