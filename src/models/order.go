package models

import (
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID          uuid.UUID         `gorm:"type:uuid;not null;index;uniqueIndex:idx_orders_tenant_idempotency,priority:1" json:"tenant_id"`
	EventID           uuid.UUID         `gorm:"type:uuid;not null;index" json:"event_id"`
	BuyerEmail        string            `gorm:"not null" json:"buyer_email"`
	BuyerName         string            `gorm:"not null" json:"buyer_name"`
	SubtotalCents     int64             `gorm:"not null" json:"subtotal_cents"`
	DiscountCents     int64             `gorm:"not null" json:"discount_cents"`
	TotalCents        int64             `gorm:"not null" json:"total_cents"`
	Currency          string            `gorm:"type:varchar(3);not null" json:"currency"`
	Status            types.OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentReference  *string           `json:"payment_reference,omitempty"`
	PublicLookupToken string            `gorm:"size:64;not null;uniqueIndex" json:"public_lookup_token"`
	IdempotencyKey    *string           `gorm:"size:128;uniqueIndex:idx_orders_tenant_idempotency,priority:2" json:"-"`
	DiscountCodeID    *uuid.UUID        `gorm:"type:uuid" json:"discount_code_id,omitempty"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	RefundedAt        *time.Time        `json:"refunded_at,omitempty"`

	Items   []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Tickets []Ticket    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"tickets,omitempty"`

	types.Timestamps
}

// OrderItem keeps the unit price captured at checkout time.
type OrderItem struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID        uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	TicketTypeID   uuid.UUID `gorm:"type:uuid;not null" json:"ticket_type_id"`
	Position       int       `gorm:"not null" json:"position"`
	UnitPriceCents int64     `gorm:"not null" json:"unit_price_cents"`
	Quantity       int       `gorm:"not null" json:"quantity"`
	SubtotalCents  int64     `gorm:"not null" json:"subtotal_cents"`

	types.Timestamps
}
