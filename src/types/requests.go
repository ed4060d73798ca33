package types

import (
	"time"

	"github.com/google/uuid"
)

type CreateEventRequestBody struct {
	Name     string     `json:"name" binding:"required,min=3,max=200"`
	Venue    string     `json:"venue,omitempty" binding:"max=200"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
}

type CreateTicketTypeRequestBody struct {
	Name          string     `json:"name" binding:"required,max=120"`
	PriceCents    int64      `json:"price_cents" binding:"min=0,max=100000000000"`
	Currency      string     `json:"currency,omitempty" binding:"omitempty,len=3"`
	QuantityTotal int        `json:"quantity_total" binding:"required,min=1"`
	SalesStart    *time.Time `json:"sales_start,omitempty"`
	SalesEnd      *time.Time `json:"sales_end,omitempty"`
	Status        string     `json:"status,omitempty" binding:"omitempty,oneof=ACTIVE INACTIVE HIDDEN"`
}

type CreateDiscountCodeRequestBody struct {
	Code           string     `json:"code" binding:"required,discountcode"`
	Description    string     `json:"description,omitempty" binding:"max=255"`
	DiscountType   string     `json:"discount_type" binding:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	DiscountValue  int64      `json:"discount_value" binding:"min=0,max=100000000000"`
	MaxRedemptions *int       `json:"max_redemptions,omitempty" binding:"omitempty,min=1"`
	StartsAt       *time.Time `json:"starts_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

type AttendeeRequestBody struct {
	Name  string `json:"name" binding:"required,max=120"`
	Email string `json:"email" binding:"required,email"`
}

type CheckoutItemRequestBody struct {
	TicketTypeID uuid.UUID             `json:"ticket_type_id" binding:"required"`
	Quantity     int                   `json:"quantity" binding:"required,min=1,max=50"`
	Attendees    []AttendeeRequestBody `json:"attendees,omitempty" binding:"omitempty,dive"`
}

type CheckoutRequestBody struct {
	EventID        uuid.UUID                 `json:"event_id" binding:"required"`
	Items          []CheckoutItemRequestBody `json:"items" binding:"required,min=1,dive"`
	BuyerEmail     string                    `json:"buyer_email" binding:"required,email"`
	BuyerName      string                    `json:"buyer_name" binding:"required,max=120"`
	DiscountCode   *string                   `json:"discount_code,omitempty"`
	IdempotencyKey *string                   `json:"idempotency_key,omitempty" binding:"omitempty,max=128"`
}

type DiscountPreviewRequestBody struct {
	EventID       uuid.UUID `json:"event_id" binding:"required"`
	Code          string    `json:"code" binding:"required,max=50"`
	SubtotalCents int64     `json:"subtotal_cents" binding:"min=0"`
}

type CheckinRequestBody struct {
	Payload string `json:"payload" binding:"required,max=2048"`
}

type MarkPaidRequestBody struct {
	Reference string `json:"reference" binding:"required,max=255"`
}

type AuditLogQueryParams struct {
	ActorID  string `form:"actor_id"`
	Action   string `form:"action" binding:"omitempty,oneof=CHECKIN_SUCCESS DUPLICATE_SCAN INVALID_QR NOT_ADMISSIBLE TICKET_CANCELLED"`
	TicketID string `form:"ticket_id" binding:"omitempty,uuid"`
	Pagination
}

type AttendanceQueryParams struct {
	EventID string `form:"event_id" binding:"omitempty,uuid"`
	Pagination
}

type TicketSearchQueryParams struct {
	Q string `form:"q" binding:"required,min=2,max=100"`
	Pagination
}

type OrderHistoryQueryParams struct {
	BuyerEmail string `form:"buyer_email" binding:"required,email"`
	Pagination
}

type IDURIParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type SlugURIParams struct {
	Slug string `uri:"slug" binding:"required,max=200"`
}

type TokenURIParams struct {
	Token string `uri:"token" binding:"required,min=8,max=64"`
}
