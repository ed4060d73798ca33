// Package store declares one repository per entity. Every write that guards
// contended state is a single conditional update reporting whether it
// applied; callers never read a counter and write it back.
package store

import (
	"context"
	"ticketing/src/models"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	// Transaction runs fn against a transactional view. Returning an error
	// rolls back every write made through that view.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	Events() EventRepository
	TicketTypes() TicketTypeRepository
	DiscountCodes() DiscountCodeRepository
	Orders() OrderRepository
	Tickets() TicketRepository
	AuditLogs() AuditLogRepository
}

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Event, error)
	// FindBySlug returns the newest event carrying slug.
	FindBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*models.Event, error)
}

type TicketTypeRepository interface {
	Create(ctx context.Context, tt *models.TicketType) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.TicketType, error)
	ListByEvent(ctx context.Context, tenantID, eventID uuid.UUID) ([]models.TicketType, error)
	// IncrementSold adds qty only while the type is ACTIVE and the result
	// stays within quantity_total.
	IncrementSold(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	// DecrementSold subtracts qty only while quantity_sold >= qty.
	DecrementSold(ctx context.Context, id uuid.UUID, qty int) (bool, error)
}

type DiscountCodeRepository interface {
	Create(ctx context.Context, code *models.DiscountCode) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DiscountCode, error)
	FindByCode(ctx context.Context, eventID uuid.UUID, code string) (*models.DiscountCode, error)
	// IncrementRedeemed adds one redemption only while the code is ACTIVE
	// and under its cap.
	IncrementRedeemed(ctx context.Context, id uuid.UUID) (bool, error)
	DecrementRedeemed(ctx context.Context, id uuid.UUID) (bool, error)
}

type OrderTransition struct {
	PaymentReference *string
	At               time.Time
}

type OrderRepository interface {
	// Create persists the order together with its items and tickets.
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// FindByIDForUpdate also locks the order row until the surrounding
	// transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByLookupToken(ctx context.Context, token string) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*models.Order, error)
	// TransitionStatus moves the order to `to` only if its current status is
	// one of `from`.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []types.OrderStatus, to types.OrderStatus, t OrderTransition) (bool, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Order, error)
	// ListByBuyerEmail matches email case-insensitively, newest first, and
	// reports the total match count.
	ListByBuyerEmail(ctx context.Context, tenantID uuid.UUID, email string, offset, limit int) ([]models.Order, int64, error)
}

type TicketFilter struct {
	TenantID  uuid.UUID
	EventID   *uuid.UUID
	CheckedIn bool
	Search    string
	Offset    int
	Limit     int
}

type TicketRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Ticket, error)
	Transition(ctx context.Context, id uuid.UUID, from []types.TicketStatus, to types.TicketStatus) (bool, error)
	TransitionByOrder(ctx context.Context, orderID uuid.UUID, from []types.TicketStatus, to types.TicketStatus) (int64, error)
	// MarkUsed flips an ACTIVE, never-scanned ticket to USED.
	MarkUsed(ctx context.Context, id uuid.UUID, at time.Time, actorID string) (bool, error)
	List(ctx context.Context, f TicketFilter) ([]models.Ticket, int64, error)
}

type AuditFilter struct {
	TenantID uuid.UUID
	ActorID  string
	Action   types.AuditAction
	TicketID *uuid.UUID
	Offset   int
	Limit    int
}

type AuditLogRepository interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
	List(ctx context.Context, f AuditFilter) ([]models.AuditLogEntry, int64, error)
}
