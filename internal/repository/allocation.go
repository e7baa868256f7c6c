package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

const allocationColumns = `id, kind, total_amount, currency, owner_ref, description,
	required_approval_id, supersedes_id, superseded_by_id, created_by, created_at, superseded_at`

type AllocationRepository struct{}

func (AllocationRepository) Create(ctx context.Context, tx *sql.Tx, a *domain.Allocation) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO allocations (`+allocationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.Kind, a.TotalAmount, a.Currency, a.OwnerRef, a.Description,
		a.RequiredApprovalID, a.SupersedesID, a.SupersededByID, a.CreatedBy, a.CreatedAt, a.SupersededAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %s: %w", a.ID, domain.ErrDuplicateID)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (AllocationRepository) Get(ctx context.Context, q querier, id uuid.UUID) (*domain.Allocation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE id = $1`, id)
	a, err := scanAllocation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %s: %w", id, domain.ErrAllocationNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return a, nil
}

// GetForUpdate locks the allocation row until tx ends. Every write that
// can change the allocation's balance takes this lock first.
func (AllocationRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Allocation, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations WHERE id = $1 FOR UPDATE`, id,
	)
	a, err := scanAllocation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %s: %w", id, domain.ErrAllocationNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return a, nil
}

func (AllocationRepository) MarkSuperseded(ctx context.Context, tx *sql.Tx, a *domain.Allocation) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE allocations SET superseded_by_id = $1, superseded_at = $2
		WHERE id = $3 AND superseded_at IS NULL`,
		a.SupersededByID, a.SupersededAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("MarkSuperseded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkSuperseded: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("MarkSuperseded: %s: %w", a.ID, domain.ErrAlreadySuperseded)
	}
	return nil
}

func scanAllocation(s scanner) (*domain.Allocation, error) {
	var a domain.Allocation
	err := s.Scan(
		&a.ID, &a.Kind, &a.TotalAmount, &a.Currency, &a.OwnerRef, &a.Description,
		&a.RequiredApprovalID, &a.SupersedesID, &a.SupersededByID, &a.CreatedBy, &a.CreatedAt, &a.SupersededAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
