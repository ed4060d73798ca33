package models

import (
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
)

// Ticket is one admission. CheckedInAt is set iff Status is USED.
type Ticket struct {
	ID            uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID          `gorm:"type:uuid;not null;index" json:"tenant_id"`
	EventID       uuid.UUID          `gorm:"type:uuid;not null;index" json:"event_id"`
	OrderID       uuid.UUID          `gorm:"type:uuid;not null;index" json:"order_id"`
	OrderItemID   uuid.UUID          `gorm:"type:uuid;not null" json:"order_item_id"`
	TicketTypeID  uuid.UUID          `gorm:"type:uuid;not null;index" json:"ticket_type_id"`
	AttendeeName  string             `gorm:"not null" json:"attendee_name"`
	AttendeeEmail string             `gorm:"not null" json:"attendee_email"`
	ScanPayload   string             `gorm:"type:text;not null" json:"scan_payload,omitempty"`
	Status        types.TicketStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	IssuedAt      time.Time          `gorm:"not null" json:"issued_at"`
	CheckedInAt   *time.Time         `json:"checked_in_at,omitempty"`
	CheckedInBy   *string            `json:"checked_in_by,omitempty"`
	SeatLabel     *string            `json:"seat_label,omitempty"`

	types.Timestamps
}
