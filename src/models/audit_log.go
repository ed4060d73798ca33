package models

import (
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
)

// AuditLogEntry is append-only.
type AuditLogEntry struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ActorID   string            `gorm:"not null;index" json:"actor_id"`
	Action    types.AuditAction `gorm:"type:varchar(32);not null;index" json:"action"`
	TicketID  *uuid.UUID        `gorm:"type:uuid;index" json:"ticket_id,omitempty"`
	EventID   *uuid.UUID        `gorm:"type:uuid" json:"event_id,omitempty"`
	Metadata  types.JSONB       `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"autoCreateTime:nano;index" json:"created_at"`
}
