package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

const postingColumns = `id, allocation_id, amount, currency, occurred_at, recorded_at,
	reference, recorded_by, voided, voided_at, voided_by, void_reason`

type PostingRepository struct{}

func (PostingRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.Posting) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO postings (`+postingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.AllocationID, p.Amount, p.Currency, p.OccurredAt, p.RecordedAt,
		p.Reference, p.RecordedBy, p.Voided, p.VoidedAt, p.VoidedBy, p.VoidReason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %s: %w", p.ID, domain.ErrDuplicateID)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (PostingRepository) Get(ctx context.Context, q querier, id uuid.UUID) (*domain.Posting, error) {
	row := q.QueryRowContext(ctx, `SELECT `+postingColumns+` FROM postings WHERE id = $1`, id)
	p, err := scanPosting(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %s: %w", id, domain.ErrPostingNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return p, nil
}

// ListByAllocation returns every posting of the allocation, voided ones
// included, in recording order.
func (PostingRepository) ListByAllocation(ctx context.Context, q querier, allocationID uuid.UUID) ([]domain.Posting, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+postingColumns+` FROM postings
		WHERE allocation_id = $1 ORDER BY recorded_at, id`, allocationID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAllocation: %w", err)
	}
	defer rows.Close()

	var postings []domain.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByAllocation: scan: %w", err)
		}
		postings = append(postings, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByAllocation: rows: %w", err)
	}
	return postings, nil
}

func (PostingRepository) MarkVoided(ctx context.Context, tx *sql.Tx, p *domain.Posting) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE postings SET voided = TRUE, voided_at = $1, voided_by = $2, void_reason = $3
		WHERE id = $4 AND voided = FALSE`,
		p.VoidedAt, p.VoidedBy, p.VoidReason, p.ID,
	)
	if err != nil {
		return fmt.Errorf("MarkVoided: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkVoided: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("MarkVoided: %s: %w", p.ID, domain.ErrAlreadyVoided)
	}
	return nil
}

func scanPosting(s scanner) (*domain.Posting, error) {
	var p domain.Posting
	err := s.Scan(
		&p.ID, &p.AllocationID, &p.Amount, &p.Currency, &p.OccurredAt, &p.RecordedAt,
		&p.Reference, &p.RecordedBy, &p.Voided, &p.VoidedAt, &p.VoidedBy, &p.VoidReason,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
