package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditAllocationCreated    AuditAction = "allocation.created"
	AuditAllocationSuperseded AuditAction = "allocation.superseded"
	AuditPostingRecorded      AuditAction = "posting.recorded"
	AuditPostingVoided        AuditAction = "posting.voided"
)

type AuditEvent struct {
	ID         uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Action     AuditAction
	Actor      string
	Payload    json.RawMessage
	CreatedAt  time.Time
}
