// Package inventory owns TicketType.quantity_sold. Reservations are granted
// by a single conditional increment so concurrent buyers can never push the
// sold count past capacity.
package inventory

import (
	"context"
	"ticketing/src/apperr"
	"ticketing/src/models"
	"ticketing/src/store"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Reservation is a claim made inside the caller's transaction. It becomes
// durable when that transaction commits.
type Reservation struct {
	TicketTypeID uuid.UUID
	Quantity     int
	released     bool
}

type Status struct {
	TicketTypeID  uuid.UUID `json:"ticket_type_id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	QuantityTotal int       `json:"quantity_total"`
	QuantitySold  int       `json:"quantity_sold"`
	Remaining     int       `json:"remaining"`
}

type StatusCache interface {
	Get(ctx context.Context, id uuid.UUID) (*Status, bool)
	Set(ctx context.Context, status *Status)
	Invalidate(ctx context.Context, id uuid.UUID)
}

type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID) (*Status, bool) { return nil, false }
func (noopCache) Set(context.Context, *Status)                   {}
func (noopCache) Invalidate(context.Context, uuid.UUID)          {}

type Ledger struct {
	logger *logrus.Logger
	cache  StatusCache
	Clock  func() time.Time
}

// NewLedger accepts a nil cache.
func NewLedger(logger *logrus.Logger, cache StatusCache) *Ledger {
	if cache == nil {
		cache = noopCache{}
	}
	return &Ledger{logger: logger, cache: cache, Clock: time.Now}
}

func (l *Ledger) Reserve(ctx context.Context, st store.Store, ticketTypeID uuid.UUID, quantity int) (*Reservation, error) {
	if quantity <= 0 {
		return nil, apperr.ErrInvalidQty
	}
	tt, err := st.TicketTypes().FindByID(ctx, ticketTypeID)
	if err != nil {
		return nil, apperr.FromStorage(err, apperr.ErrTicketTypeNotFound)
	}
	if err := l.checkOnSale(tt); err != nil {
		return nil, err
	}

	ok, err := st.TicketTypes().IncrementSold(ctx, ticketTypeID, quantity)
	if err != nil {
		return nil, apperr.FromStorage(err, nil)
	}
	if !ok {
		// The guard also covers status, so tell a concurrent close apart
		// from a sell-out.
		if cur, err := st.TicketTypes().FindByID(ctx, ticketTypeID); err == nil && cur.Status != types.TICKET_TYPE_ACTIVE {
			return nil, apperr.ErrTicketTypeClosed
		}
		l.logger.WithContext(ctx).WithFields(logrus.Fields{
			"ticket_type_id": ticketTypeID,
			"quantity":       quantity,
		}).Info("reservation rejected: out of stock")
		return nil, apperr.ErrOutOfStock
	}
	l.cache.Invalidate(ctx, ticketTypeID)
	return &Reservation{TicketTypeID: ticketTypeID, Quantity: quantity}, nil
}

func (l *Ledger) checkOnSale(tt *models.TicketType) error {
	if tt.Status != types.TICKET_TYPE_ACTIVE {
		return apperr.ErrTicketTypeClosed
	}
	if !tt.InSalesWindow(l.Clock()) {
		return apperr.ErrSalesWindowClosed
	}
	return nil
}

// Release gives the quantity back. Releasing twice is a no-op.
func (l *Ledger) Release(ctx context.Context, st store.Store, r *Reservation) error {
	if r == nil || r.released {
		return nil
	}
	ok, err := st.TicketTypes().DecrementSold(ctx, r.TicketTypeID, r.Quantity)
	if err != nil {
		return apperr.FromStorage(err, nil)
	}
	if !ok {
		l.logger.WithContext(ctx).WithFields(logrus.Fields{
			"ticket_type_id": r.TicketTypeID,
			"quantity":       r.Quantity,
		}).Warn("release found fewer sold tickets than reserved")
	}
	r.released = true
	l.cache.Invalidate(ctx, r.TicketTypeID)
	return nil
}

// ReleaseAll releases in reverse order and returns the first failure.
func (l *Ledger) ReleaseAll(ctx context.Context, st store.Store, rs []*Reservation) error {
	var first error
	for i := len(rs) - 1; i >= 0; i-- {
		if err := l.Release(ctx, st, rs[i]); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Status reports availability of a ticket type owned by tenantID.
func (l *Ledger) Status(ctx context.Context, st store.Store, tenantID, ticketTypeID uuid.UUID) (*Status, error) {
	if s, ok := l.cache.Get(ctx, ticketTypeID); ok && s.TenantID == tenantID {
		return s, nil
	}
	tt, err := st.TicketTypes().FindByID(ctx, ticketTypeID)
	if err != nil {
		return nil, apperr.FromStorage(err, apperr.ErrTicketTypeNotFound)
	}
	if tt.TenantID != tenantID {
		return nil, apperr.ErrTicketTypeNotFound
	}
	s := &Status{
		TicketTypeID:  tt.ID,
		TenantID:      tt.TenantID,
		QuantityTotal: tt.QuantityTotal,
		QuantitySold:  tt.QuantitySold,
		Remaining:     tt.Remaining(),
	}
	l.cache.Set(ctx, s)
	return s, nil
}
