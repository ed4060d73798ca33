// Package checkin admits tickets at the gate. A ticket moves from ACTIVE
// to USED once; every attempt, successful or not, is audited.
package checkin

import (
	"context"
	"errors"
	"strings"
	"ticketing/src/apperr"
	"ticketing/src/audit"
	"ticketing/src/inventory"
	"ticketing/src/issuer"
	"ticketing/src/models"
	"ticketing/src/notify"
	"ticketing/src/store"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxLoggedPayload = 512

type Scan struct {
	TenantID uuid.UUID
	ActorID  string
	Payload  string
}

type Result struct {
	Ticket      *models.Ticket
	CheckedInAt time.Time
}

type Machine struct {
	store    store.Store
	signer   *issuer.Signer
	audit    *audit.Log
	ledger   *inventory.Ledger
	notifier notify.Notifier
	logger   *logrus.Logger
	Clock    func() time.Time
}

type Options struct {
	Signer   *issuer.Signer
	Audit    *audit.Log
	Ledger   *inventory.Ledger
	Notifier notify.Notifier
}

func NewMachine(st store.Store, logger *logrus.Logger, opts Options) *Machine {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Machine{
		store:    st,
		signer:   opts.Signer,
		audit:    opts.Audit,
		ledger:   opts.Ledger,
		notifier: notifier,
		logger:   logger,
		Clock:    time.Now,
	}
}

var errLostRace = errors.New("ticket changed during check-in")

func (m *Machine) CheckIn(ctx context.Context, scan Scan) (*Result, error) {
	// scanners often append or prepend whitespace
	scan.Payload = strings.TrimSpace(scan.Payload)
	ticketID, signed, err := issuer.Resolve(scan.Payload)
	if err != nil {
		m.record(ctx, scan, types.AUDIT_INVALID_QR, nil, nil, types.JSONB{
			"payload": truncate(scan.Payload),
			"reason":  "malformed",
		})
		return nil, err
	}

	ticket, err := m.store.Tickets().FindByID(ctx, ticketID)
	if err != nil {
		if err = apperr.FromStorage(err, apperr.ErrTicketNotFound); !errors.Is(err, apperr.ErrTicketNotFound) {
			return nil, err
		}
	}
	if err != nil || ticket.TenantID != scan.TenantID {
		m.record(ctx, scan, types.AUDIT_INVALID_QR, nil, nil, types.JSONB{
			"payload":   truncate(scan.Payload),
			"ticket_id": ticketID.String(),
			"reason":    "unknown_ticket",
		})
		return nil, apperr.ErrTicketNotFound
	}

	if signed {
		if err := m.verify(scan, ticket); err != nil {
			m.record(ctx, scan, types.AUDIT_INVALID_QR, &ticket.ID, &ticket.EventID, types.JSONB{
				"payload": truncate(scan.Payload),
				"reason":  "bad_signature",
			})
			return nil, apperr.ErrInvalidPayload.Wrap(err)
		}
	}

	if err := m.rejectInadmissible(ctx, scan, ticket); err != nil {
		return nil, err
	}

	now := m.Clock().UTC()
	err = m.store.Transaction(ctx, func(tx store.Store) error {
		ok, err := tx.Tickets().MarkUsed(ctx, ticket.ID, now, scan.ActorID)
		if err != nil {
			return apperr.FromStorage(err, nil)
		}
		if !ok {
			return errLostRace
		}
		_, err = m.audit.Append(ctx, tx, audit.Entry{
			TenantID: scan.TenantID,
			ActorID:  scan.ActorID,
			Action:   types.AUDIT_CHECKIN_SUCCESS,
			TicketID: &ticket.ID,
			EventID:  &ticket.EventID,
			Metadata: types.JSONB{"checked_in_at": now.Format(time.RFC3339Nano)},
		})
		return err
	})
	if errors.Is(err, errLostRace) {
		// another scan got there first, or the ticket was cancelled
		cur, ferr := m.store.Tickets().FindByID(ctx, ticket.ID)
		if ferr != nil {
			return nil, apperr.FromStorage(ferr, apperr.ErrTicketNotFound)
		}
		if err := m.rejectInadmissible(ctx, scan, cur); err != nil {
			return nil, err
		}
		return nil, apperr.ErrAlreadyUsed
	}
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).WithField("ticket_id", ticket.ID).Error("check-in failed")
		return nil, err
	}

	ticket.Status = types.TICKET_USED
	ticket.CheckedInAt = &now
	ticket.CheckedInBy = &scan.ActorID
	m.confirm(ctx, ticket)
	return &Result{Ticket: ticket, CheckedInAt: now}, nil
}

func (m *Machine) verify(scan Scan, ticket *models.Ticket) error {
	claims, err := m.signer.Verify(scan.TenantID, scan.Payload)
	if err != nil {
		return err
	}
	if claims.TicketID != ticket.ID.String() || claims.EventID != ticket.EventID.String() {
		return errors.New("scan payload does not match ticket")
	}
	return nil
}

// rejectInadmissible audits and returns the failure for a ticket that can
// not be admitted, or nil for an ACTIVE unused one.
func (m *Machine) rejectInadmissible(ctx context.Context, scan Scan, ticket *models.Ticket) error {
	if ticket.Status == types.TICKET_USED || ticket.CheckedInAt != nil {
		meta := types.JSONB{"status": ticket.Status}
		if ticket.CheckedInAt != nil {
			meta["previous_checked_in_at"] = ticket.CheckedInAt.UTC().Format(time.RFC3339Nano)
		}
		if ticket.CheckedInBy != nil {
			meta["previous_checked_in_by"] = *ticket.CheckedInBy
		}
		m.record(ctx, scan, types.AUDIT_DUPLICATE_SCAN, &ticket.ID, &ticket.EventID, meta)
		return apperr.ErrAlreadyUsed
	}
	if ticket.Status != types.TICKET_ACTIVE {
		m.record(ctx, scan, types.AUDIT_NOT_ADMISSIBLE, &ticket.ID, &ticket.EventID, types.JSONB{"status": ticket.Status})
		return apperr.ErrNotAdmissible.Withf("ticket is %s", ticket.Status)
	}
	return nil
}

// record appends outside any transaction. A failed append is logged and
// never replaces the scan's own outcome.
func (m *Machine) record(ctx context.Context, scan Scan, action types.AuditAction, ticketID, eventID *uuid.UUID, meta types.JSONB) {
	_, _ = m.audit.Append(ctx, m.store, audit.Entry{
		TenantID: scan.TenantID,
		ActorID:  scan.ActorID,
		Action:   action,
		TicketID: ticketID,
		EventID:  eventID,
		Metadata: meta,
	})
}

func (m *Machine) confirm(ctx context.Context, ticket *models.Ticket) {
	eventName := ""
	if ev, err := m.store.Events().FindByID(ctx, ticket.TenantID, ticket.EventID); err == nil {
		eventName = ev.Name
	}
	m.notifier.SendCheckinConfirmation(ctx, notify.CheckinConfirmation{
		To:        ticket.AttendeeEmail,
		Name:      ticket.AttendeeName,
		EventName: eventName,
	})
}

func truncate(payload string) string {
	if len(payload) > maxLoggedPayload {
		return payload[:maxLoggedPayload]
	}
	return payload
}
