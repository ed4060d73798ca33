package checkout

import (
	"context"
	"errors"
	"slices"
	"strings"
	"ticketing/src/apperr"
	"ticketing/src/inventory"
	"ticketing/src/models"
	"ticketing/src/store"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Get returns the order only if it belongs to tenantID.
func (o *Orchestrator) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	order, err := o.store.Orders().FindByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStorage(err, apperr.ErrOrderNotFound)
	}
	if order.TenantID != tenantID {
		return nil, apperr.ErrOrderNotFound
	}
	return order, nil
}

func (o *Orchestrator) Lookup(ctx context.Context, token string) (*models.Order, error) {
	order, err := o.store.Orders().FindByLookupToken(ctx, token)
	if err != nil {
		return nil, apperr.FromStorage(err, apperr.ErrOrderNotFound)
	}
	return order, nil
}

// History lists a buyer's orders inside the tenant, newest first.
func (o *Orchestrator) History(ctx context.Context, tenantID uuid.UUID, email string, p types.Pagination) ([]models.Order, int64, error) {
	if strings.TrimSpace(email) == "" {
		return nil, 0, apperr.ErrInvalidInput.Withf("buyer email is required")
	}
	orders, total, err := o.store.Orders().ListByBuyerEmail(ctx, tenantID, email, p.Offset(), p.Limit)
	if err != nil {
		return nil, 0, apperr.FromStorage(err, nil)
	}
	return orders, total, nil
}

func (o *Orchestrator) Tickets(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.Ticket, error) {
	if _, err := o.Get(ctx, tenantID, orderID); err != nil {
		return nil, err
	}
	tickets, err := o.store.Tickets().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.FromStorage(err, nil)
	}
	return tickets, nil
}

// MarkPaid confirms payment. Repeating it for a paid order is a no-op.
func (o *Orchestrator) MarkPaid(ctx context.Context, orderID uuid.UUID, reference string) (*models.Order, error) {
	var order *models.Order
	changed := false
	err := o.store.Transaction(ctx, func(tx store.Store) error {
		cur, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return apperr.FromStorage(err, apperr.ErrOrderNotFound)
		}
		if cur.Status == types.ORDER_PAID {
			order = cur
			return nil
		}
		t := store.OrderTransition{At: o.Clock().UTC()}
		if reference != "" {
			t.PaymentReference = &reference
		}
		ok, err := tx.Orders().TransitionStatus(ctx, orderID, []types.OrderStatus{types.ORDER_PENDING}, types.ORDER_PAID, t)
		if err != nil {
			return apperr.FromStorage(err, nil)
		}
		if !ok {
			return o.transitionRejected(ctx, tx, orderID, types.ORDER_PAID)
		}
		if _, err := tx.Tickets().TransitionByOrder(ctx, orderID, []types.TicketStatus{types.TICKET_PENDING}, types.TICKET_ACTIVE); err != nil {
			return apperr.FromStorage(err, nil)
		}
		order, err = tx.Orders().FindByID(ctx, orderID)
		if err != nil {
			return apperr.FromStorage(err, nil)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		o.logger.WithContext(ctx).WithFields(logrus.Fields{"order_id": orderID, "reference": reference}).Info("order paid")
		eventName := ""
		if ev, err := o.store.Events().FindByID(ctx, order.TenantID, order.EventID); err == nil {
			eventName = ev.Name
		}
		o.sendOrderConfirmation(ctx, order, eventName)
	}
	return order, nil
}

// MarkFailed abandons an unpaid order and gives back its inventory and
// discount redemption.
func (o *Orchestrator) MarkFailed(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return o.close(ctx, orderID, []types.OrderStatus{types.ORDER_PENDING}, types.ORDER_CANCELLED)
}

// Refund reverses a paid order. Tickets already used stay USED and keep
// their inventory.
func (o *Orchestrator) Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return o.close(ctx, orderID, []types.OrderStatus{types.ORDER_PAID}, types.ORDER_REFUNDED)
}

func (o *Orchestrator) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return o.close(ctx, orderID, []types.OrderStatus{types.ORDER_PENDING, types.ORDER_PAID}, types.ORDER_CANCELLED)
}

// closeAttempts bounds re-reads when a concurrent transition moves the
// order between the read and the conditional update.
const closeAttempts = 3

func (o *Orchestrator) close(ctx context.Context, orderID uuid.UUID, from []types.OrderStatus, to types.OrderStatus) (*models.Order, error) {
	var order *models.Order
	err := o.store.Transaction(ctx, func(tx store.Store) error {
		cur, err := o.lockedTransition(ctx, tx, orderID, from, to)
		if err != nil || cur.Status == to {
			order = cur
			return err
		}

		released := map[uuid.UUID]int{}
		for _, t := range cur.Tickets {
			ok, err := tx.Tickets().Transition(ctx, t.ID, []types.TicketStatus{types.TICKET_PENDING, types.TICKET_ACTIVE}, types.TICKET_CANCELLED)
			if err != nil {
				return apperr.FromStorage(err, nil)
			}
			if ok {
				released[t.TicketTypeID]++
			}
		}
		for ttID, qty := range released {
			if err := o.ledger.Release(ctx, tx, &inventory.Reservation{TicketTypeID: ttID, Quantity: qty}); err != nil {
				return err
			}
		}
		// Redemptions only go back for orders that were never paid.
		if cur.DiscountCodeID != nil && cur.Status == types.ORDER_PENDING {
			if err := o.discounts.ReleaseCode(ctx, tx, *cur.DiscountCodeID); err != nil {
				return err
			}
		}

		order, err = tx.Orders().FindByID(ctx, orderID)
		return apperr.FromStorage(err, nil)
	})
	if err != nil {
		return nil, err
	}
	o.logger.WithContext(ctx).WithFields(logrus.Fields{"order_id": orderID, "status": order.Status}).Info("order closed")
	return order, nil
}

// lockedTransition moves the order to `to` from exactly the status it read,
// and returns the order as it was before the move. An order already in `to`
// comes back unchanged.
func (o *Orchestrator) lockedTransition(ctx context.Context, tx store.Store, orderID uuid.UUID, from []types.OrderStatus, to types.OrderStatus) (*models.Order, error) {
	for range closeAttempts {
		cur, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return nil, apperr.FromStorage(err, apperr.ErrOrderNotFound)
		}
		if cur.Status == to {
			return cur, nil
		}
		if !slices.Contains(from, cur.Status) {
			return nil, apperr.ErrInvalidTransition.Withf("order is %s and cannot become %s", cur.Status, to)
		}
		ok, err := tx.Orders().TransitionStatus(ctx, orderID, []types.OrderStatus{cur.Status}, to, store.OrderTransition{At: o.Clock().UTC()})
		if err != nil {
			return nil, apperr.FromStorage(err, nil)
		}
		if ok {
			return cur, nil
		}
	}
	return nil, o.transitionRejected(ctx, tx, orderID, to)
}

func (o *Orchestrator) transitionRejected(ctx context.Context, tx store.Store, orderID uuid.UUID, to types.OrderStatus) error {
	cur, err := tx.Orders().FindByID(ctx, orderID)
	if err != nil {
		return apperr.FromStorage(err, apperr.ErrOrderNotFound)
	}
	return apperr.ErrInvalidTransition.Withf("order is %s and cannot become %s", cur.Status, to)
}

// ExpireStale fails PENDING orders created before now-ttl, at most limit
// per call, and reports how many it closed.
func (o *Orchestrator) ExpireStale(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	before := o.Clock().Add(-ttl)
	stale, err := o.store.Orders().ListStalePending(ctx, before, limit)
	if err != nil {
		return 0, apperr.FromStorage(err, nil)
	}
	expired := 0
	for _, s := range stale {
		if _, err := o.MarkFailed(ctx, s.ID); err != nil {
			// paid in the meantime
			if errors.Is(err, apperr.ErrInvalidTransition) {
				continue
			}
			o.logger.WithContext(ctx).WithError(err).WithField("order_id", s.ID).Error("could not expire order")
			continue
		}
		expired++
	}
	if expired > 0 {
		o.logger.WithContext(ctx).WithField("count", expired).Info("expired stale orders")
	}
	return expired, nil
}
