package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

const approvalColumns = `id, kind, subject_ref, title, details, state, created_by, submitted_by,
	approvers, supersedes_id, version, created_at, updated_at`

type ApprovalRepository struct {
	db *DB
}

func NewApprovalRepository(db *DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

func (r *ApprovalRepository) Create(ctx context.Context, req *domain.ApprovalRequest) error {
	_, err := r.db.Conn().ExecContext(ctx,
		`INSERT INTO approval_requests (`+approvalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		req.ID, req.Kind, req.SubjectRef, req.Title, string(req.Details), req.State, req.CreatedBy,
		req.SubmittedBy, approverArray(req.Approvers), req.SupersedesID, req.Version, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %s: %w", req.ID, domain.ErrDuplicateID)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Get reads the row and its history from one snapshot, so State always
// matches the last recorded transition.
func (r *ApprovalRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("Get: begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1`, id,
	)
	req, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %s: %w", id, domain.ErrApprovalNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}

	transitions, err := loadHistory(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	req.History = transitions

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Get: commit: %w", err)
	}
	return req, nil
}

// UpdateDraft writes edited content. req.Version is the new version; the
// row must still be a draft at the previous one.
func (r *ApprovalRepository) UpdateDraft(ctx context.Context, req *domain.ApprovalRequest) error {
	res, err := r.db.Conn().ExecContext(ctx,
		`UPDATE approval_requests
		SET title = $1, details = $2, approvers = $3, version = $4, updated_at = $5
		WHERE id = $6 AND state = 'draft' AND version = $7`,
		req.Title, string(req.Details), approverArray(req.Approvers), req.Version, req.UpdatedAt,
		req.ID, req.Version-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateDraft: %w", err)
	}
	return expectOneRow(res, "UpdateDraft", req.ID)
}

// Transition moves the row from tr.FromState at req.Version-1 to req's
// state and version, and appends tr to the history, atomically.
func (r *ApprovalRepository) Transition(ctx context.Context, req *domain.ApprovalRequest, tr domain.ApprovalTransition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Transition: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE approval_requests
		SET state = $1, submitted_by = $2, version = $3, updated_at = $4
		WHERE id = $5 AND state = $6 AND version = $7`,
		req.State, req.SubmittedBy, req.Version, req.UpdatedAt,
		req.ID, tr.FromState, req.Version-1,
	)
	if err != nil {
		return fmt.Errorf("Transition: %w", err)
	}
	if err := expectOneRow(res, "Transition", req.ID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO approval_transitions (request_id, seq, actor, from_state, to_state, comment, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.ID, tr.Seq, tr.Actor, tr.FromState, tr.ToState, tr.Comment, tr.At,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Transition: seq %d: %w", tr.Seq, domain.ErrVersionConflict)
		}
		return fmt.Errorf("Transition: history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Transition: commit: %w", err)
	}
	return nil
}

func loadHistory(ctx context.Context, q querier, id uuid.UUID) ([]domain.ApprovalTransition, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT seq, actor, from_state, to_state, comment, at
		FROM approval_transitions WHERE request_id = $1 ORDER BY seq`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("loadHistory: %w", err)
	}
	defer rows.Close()

	var out []domain.ApprovalTransition
	for rows.Next() {
		var tr domain.ApprovalTransition
		if err := rows.Scan(&tr.Seq, &tr.Actor, &tr.FromState, &tr.ToState, &tr.Comment, &tr.At); err != nil {
			return nil, fmt.Errorf("loadHistory: scan: %w", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loadHistory: rows: %w", err)
	}
	return out, nil
}

func approverArray(approvers []string) any {
	if approvers == nil {
		approvers = []string{}
	}
	return pq.Array(approvers)
}

func expectOneRow(res sql.Result, op string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %s: %w", op, id, domain.ErrVersionConflict)
	}
	return nil
}

func scanApproval(s scanner) (*domain.ApprovalRequest, error) {
	var (
		req     domain.ApprovalRequest
		details []byte
	)
	err := s.Scan(
		&req.ID, &req.Kind, &req.SubjectRef, &req.Title, &details, &req.State, &req.CreatedBy, &req.SubmittedBy,
		pq.Array(&req.Approvers), &req.SupersedesID, &req.Version, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Details = details
	return &req, nil
}
