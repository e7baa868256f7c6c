package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

type AuditRepository struct{}

func (AuditRepository) Create(ctx context.Context, tx *sql.Tx, ev *domain.AuditEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_events (id, entity_type, entity_id, action, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.EntityType, ev.EntityID, ev.Action, ev.Actor, string(ev.Payload), ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (AuditRepository) ListByEntity(ctx context.Context, q querier, entityType string, entityID uuid.UUID) ([]domain.AuditEvent, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, action, actor, payload, created_at
		FROM audit_events WHERE entity_type = $1 AND entity_id = $2
		ORDER BY seq`, entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByEntity: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var (
			ev      domain.AuditEvent
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.EntityType, &ev.EntityID, &ev.Action, &ev.Actor, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListByEntity: scan: %w", err)
		}
		ev.Payload = payload
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByEntity: rows: %w", err)
	}
	return events, nil
}
