package models

import (
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID       uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID uuid.UUID         `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Name     string            `gorm:"not null" json:"name"`
	Slug     string            `gorm:"index" json:"slug"`
	Venue    string            `json:"venue,omitempty"`
	StartsAt *time.Time        `json:"starts_at,omitempty"`
	EndsAt   *time.Time        `json:"ends_at,omitempty"`
	Status   types.EventStatus `gorm:"type:varchar(20);not null" json:"status"`

	TicketTypes []TicketType `gorm:"foreignKey:EventID" json:"ticket_types,omitempty"`

	types.Timestamps
}
