package models

import (
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
)

// TicketType is a purchasable admission category. QuantitySold is owned by
// the inventory ledger and is only changed through conditional updates.
type TicketType struct {
	ID            uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID              `gorm:"type:uuid;index;not null" json:"tenant_id"`
	EventID       uuid.UUID              `gorm:"type:uuid;index;not null" json:"event_id"`
	Name          string                 `gorm:"not null" json:"name"`
	PriceCents    int64                  `gorm:"not null" json:"price_cents"`
	Currency      string                 `gorm:"type:varchar(3);not null" json:"currency"`
	QuantityTotal int                    `gorm:"not null;check:chk_ticket_types_total,quantity_total >= 0" json:"quantity_total"`
	QuantitySold  int                    `gorm:"not null;check:chk_ticket_types_sold,quantity_sold >= 0 AND quantity_sold <= quantity_total" json:"quantity_sold"`
	SalesStart    *time.Time             `json:"sales_start,omitempty"`
	SalesEnd      *time.Time             `json:"sales_end,omitempty"`
	Status        types.TicketTypeStatus `gorm:"type:varchar(20);not null" json:"status"`

	types.Timestamps
}

func (t *TicketType) Remaining() int {
	if t.QuantitySold >= t.QuantityTotal {
		return 0
	}
	return t.QuantityTotal - t.QuantitySold
}

// InSalesWindow treats nil bounds as open-ended.
func (t *TicketType) InSalesWindow(now time.Time) bool {
	if t.SalesStart != nil && now.Before(*t.SalesStart) {
		return false
	}
	if t.SalesEnd != nil && now.After(*t.SalesEnd) {
		return false
	}
	return true
}
