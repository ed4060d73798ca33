package types

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}

func (a *JSONB) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type TicketTypeStatus string

const (
	TICKET_TYPE_ACTIVE   TicketTypeStatus = "ACTIVE"
	TICKET_TYPE_INACTIVE TicketTypeStatus = "INACTIVE"
	TICKET_TYPE_HIDDEN   TicketTypeStatus = "HIDDEN"
)

type DiscountType string

const (
	DISCOUNT_PERCENTAGE   DiscountType = "PERCENTAGE"
	DISCOUNT_FIXED_AMOUNT DiscountType = "FIXED_AMOUNT"
)

type DiscountStatus string

const (
	DISCOUNT_ACTIVE   DiscountStatus = "ACTIVE"
	DISCOUNT_INACTIVE DiscountStatus = "INACTIVE"
	DISCOUNT_EXPIRED  DiscountStatus = "EXPIRED"
)

type OrderStatus string

const (
	ORDER_PENDING   OrderStatus = "PENDING"
	ORDER_PAID      OrderStatus = "PAID"
	ORDER_CANCELLED OrderStatus = "CANCELLED"
	ORDER_REFUNDED  OrderStatus = "REFUNDED"
)

type TicketStatus string

const (
	TICKET_PENDING   TicketStatus = "PENDING"
	TICKET_ACTIVE    TicketStatus = "ACTIVE"
	TICKET_CANCELLED TicketStatus = "CANCELLED"
	TICKET_USED      TicketStatus = "USED"
)

type AuditAction string

const (
	AUDIT_CHECKIN_SUCCESS  AuditAction = "CHECKIN_SUCCESS"
	AUDIT_DUPLICATE_SCAN   AuditAction = "DUPLICATE_SCAN"
	AUDIT_INVALID_QR       AuditAction = "INVALID_QR"
	AUDIT_NOT_ADMISSIBLE   AuditAction = "NOT_ADMISSIBLE"
	AUDIT_TICKET_CANCELLED AuditAction = "TICKET_CANCELLED"
)

type EventStatus string

const (
	EVENT_DRAFT     EventStatus = "DRAFT"
	EVENT_PUBLISHED EventStatus = "PUBLISHED"
	EVENT_CANCELLED EventStatus = "CANCELLED"
)

// Handler consumes one raw queue message body.
type Handler func(ctx context.Context, payload string) error

type Pagination struct {
	Page  int `form:"page,default=1" binding:"min=1"`
	Limit int `form:"limit,default=20" binding:"min=1,max=100"`
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}
