package checkin

import (
	"context"
	"ticketing/src/apperr"
	"ticketing/src/audit"
	"ticketing/src/inventory"
	"ticketing/src/models"
	"ticketing/src/store"
	"ticketing/src/types"

	"github.com/google/uuid"
)

func (m *Machine) Ticket(ctx context.Context, tenantID, id uuid.UUID) (*models.Ticket, error) {
	t, err := m.store.Tickets().FindByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStorage(err, apperr.ErrTicketNotFound)
	}
	if t.TenantID != tenantID {
		return nil, apperr.ErrTicketNotFound
	}
	return t, nil
}

// Attendance lists checked-in tickets, latest first.
func (m *Machine) Attendance(ctx context.Context, tenantID uuid.UUID, eventID *uuid.UUID, p types.Pagination) ([]models.Ticket, int64, error) {
	return m.list(ctx, store.TicketFilter{TenantID: tenantID, EventID: eventID, CheckedIn: true}, p)
}

func (m *Machine) Search(ctx context.Context, tenantID uuid.UUID, q string, p types.Pagination) ([]models.Ticket, int64, error) {
	return m.list(ctx, store.TicketFilter{TenantID: tenantID, Search: q}, p)
}

func (m *Machine) List(ctx context.Context, tenantID uuid.UUID, eventID *uuid.UUID, p types.Pagination) ([]models.Ticket, int64, error) {
	return m.list(ctx, store.TicketFilter{TenantID: tenantID, EventID: eventID}, p)
}

func (m *Machine) list(ctx context.Context, f store.TicketFilter, p types.Pagination) ([]models.Ticket, int64, error) {
	f.Offset = p.Offset()
	f.Limit = p.Limit
	rows, total, err := m.store.Tickets().List(ctx, f)
	if err != nil {
		return nil, 0, apperr.FromStorage(err, nil)
	}
	return rows, total, nil
}

// CancelTicket is the administrative exit from PENDING or ACTIVE. The seat
// goes back to inventory.
func (m *Machine) CancelTicket(ctx context.Context, tenantID uuid.UUID, actorID string, id uuid.UUID) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		cur, err := tx.Tickets().FindByID(ctx, id)
		if err != nil {
			return apperr.FromStorage(err, apperr.ErrTicketNotFound)
		}
		if cur.TenantID != tenantID {
			return apperr.ErrTicketNotFound
		}
		ok, err := tx.Tickets().Transition(ctx, id, []types.TicketStatus{types.TICKET_PENDING, types.TICKET_ACTIVE}, types.TICKET_CANCELLED)
		if err != nil {
			return apperr.FromStorage(err, nil)
		}
		if !ok {
			return apperr.ErrInvalidTransition.Withf("ticket is %s and cannot be cancelled", cur.Status)
		}
		if m.ledger != nil {
			if err := m.ledger.Release(ctx, tx, &inventory.Reservation{TicketTypeID: cur.TicketTypeID, Quantity: 1}); err != nil {
				return err
			}
		}
		if _, err := m.audit.Append(ctx, tx, audit.Entry{
			TenantID: tenantID,
			ActorID:  actorID,
			Action:   types.AUDIT_TICKET_CANCELLED,
			TicketID: &cur.ID,
			EventID:  &cur.EventID,
			Metadata: map[string]any{"previous_status": cur.Status},
		}); err != nil {
			return err
		}
		cur.Status = types.TICKET_CANCELLED
		ticket = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.WithContext(ctx).WithField("ticket_id", id).Info("ticket cancelled")
	return ticket, nil
}
