// Package audit appends check-in attempts and administrative ticket changes.
package audit

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

type Entry struct {
	TenantID uuid.UUID
	ActorID  string
	Action   types.AuditAction
	TicketID *uuid.UUID
	EventID  *uuid.UUID
	Metadata map[string]any
}

type Log struct {
	logger *logrus.Logger
	Clock  func() time.Time
}

func NewLog(logger *logrus.Logger) *Log {
	return &Log{logger: logger, Clock: time.Now}
}

// Append writes through st, so an entry written inside a transaction
// commits or rolls back with it.
func (l *Log) Append(ctx context.Context, st store.Store, e Entry) (*models.AuditLogEntry, error) {
	meta := types.JSONB{}
	for k, v := range e.Metadata {
		meta[k] = v
	}
	row := &models.AuditLogEntry{
		ID:        uuid.New(),
		TenantID:  e.TenantID,
		ActorID:   e.ActorID,
		Action:    e.Action,
		TicketID:  e.TicketID,
		EventID:   e.EventID,
		Metadata:  meta,
		CreatedAt: l.Clock().UTC(),
	}
	if err := st.AuditLogs().Append(ctx, row); err != nil {
		l.logger.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
			"tenant_id": e.TenantID,
			"action":    e.Action,
		}).Error("could not append audit entry")
		return nil, apperr.FromStorage(err, nil)
	}
	fields := logrus.Fields{"tenant_id": e.TenantID, "actor_id": e.ActorID, "action": e.Action}
	if e.TicketID != nil {
		fields["ticket_id"] = *e.TicketID
	}
	entry := l.logger.WithContext(ctx).WithFields(fields)
	switch e.Action {
	case types.AUDIT_INVALID_QR:
		entry.Warn("suspicious scan")
	default:
		entry.Info("audit")
	}
	return row, nil
}

type Query struct {
	TenantID uuid.UUID
	ActorID  string
	Action   types.AuditAction
	TicketID *uuid.UUID
	types.Pagination
}

func (l *Log) List(ctx context.Context, st store.Store, q Query) ([]models.AuditLogEntry, int64, error) {
	rows, total, err := st.AuditLogs().List(ctx, store.AuditFilter{
		TenantID: q.TenantID,
		ActorID:  q.ActorID,
		Action:   q.Action,
		TicketID: q.TicketID,
		Offset:   q.Offset(),
		Limit:    q.Limit,
	})
	if err != nil {
		return nil, 0, apperr.FromStorage(err, nil)
	}
	return rows, total, nil
}
