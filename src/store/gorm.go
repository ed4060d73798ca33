package store

import (
	"context"
	"errors"
	"strings"
	"ticketing/src/models"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormStore(db *gorm.DB, logger *logrus.Logger) *GormStore {
	return &GormStore{db: db, logger: logger}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, logger: s.logger})
	})
}

func (s *GormStore) Events() EventRepository               { return &gormEvents{s} }
func (s *GormStore) TicketTypes() TicketTypeRepository     { return &gormTicketTypes{s} }
func (s *GormStore) DiscountCodes() DiscountCodeRepository { return &gormDiscountCodes{s} }
func (s *GormStore) Orders() OrderRepository               { return &gormOrders{s} }
func (s *GormStore) Tickets() TicketRepository             { return &gormTickets{s} }
func (s *GormStore) AuditLogs() AuditLogRepository         { return &gormAuditLogs{s} }

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) logError(ctx context.Context, err error, op string) {
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	s.logger.WithContext(ctx).WithError(err).WithField("op", op).Error("storage error")
}

type gormEvents struct{ s *GormStore }

func (r *gormEvents) Create(ctx context.Context, event *models.Event) error {
	err := r.s.conn(ctx).Create(event).Error
	r.s.logError(ctx, err, "events.create")
	return err
}

func (r *gormEvents) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.s.conn(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&event).
		Error
	if err != nil {
		r.s.logError(ctx, err, "events.find")
		return nil, err
	}
	return &event, nil
}

func (r *gormEvents) FindBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*models.Event, error) {
	var event models.Event
	err := r.s.conn(ctx).
		Where("tenant_id = ? AND slug = ?", tenantID, slug).
		Order("created_at DESC").
		First(&event).
		Error
	if err != nil {
		r.s.logError(ctx, err, "events.find_by_slug")
		return nil, err
	}
	return &event, nil
}

type gormTicketTypes struct{ s *GormStore }

func (r *gormTicketTypes) Create(ctx context.Context, tt *models.TicketType) error {
	err := r.s.conn(ctx).Create(tt).Error
	r.s.logError(ctx, err, "ticket_types.create")
	return err
}

func (r *gormTicketTypes) FindByID(ctx context.Context, id uuid.UUID) (*models.TicketType, error) {
	var tt models.TicketType
	err := r.s.conn(ctx).
		Where("id = ?", id).
		First(&tt).
		Error
	if err != nil {
		r.s.logError(ctx, err, "ticket_types.find")
		return nil, err
	}
	return &tt, nil
}

func (r *gormTicketTypes) ListByEvent(ctx context.Context, tenantID, eventID uuid.UUID) ([]models.TicketType, error) {
	var tts []models.TicketType
	err := r.s.conn(ctx).
		Where("tenant_id = ? AND event_id = ?", tenantID, eventID).
		Order("created_at").
		Find(&tts).
		Error
	r.s.logError(ctx, err, "ticket_types.list")
	return tts, err
}

func (r *gormTicketTypes) IncrementSold(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.s.conn(ctx).
		Model(&models.TicketType{}).
		Where("id = ? AND status = ? AND quantity_sold + ? <= quantity_total", id, types.TICKET_TYPE_ACTIVE, qty).
		UpdateColumn("quantity_sold", gorm.Expr("quantity_sold + ?", qty))
	r.s.logError(ctx, res.Error, "ticket_types.increment_sold")
	return res.RowsAffected == 1, res.Error
}

func (r *gormTicketTypes) DecrementSold(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.s.conn(ctx).
		Model(&models.TicketType{}).
		Where("id = ? AND quantity_sold >= ?", id, qty).
		UpdateColumn("quantity_sold", gorm.Expr("quantity_sold - ?", qty))
	r.s.logError(ctx, res.Error, "ticket_types.decrement_sold")
	return res.RowsAffected == 1, res.Error
}

type gormDiscountCodes struct{ s *GormStore }

func (r *gormDiscountCodes) Create(ctx context.Context, code *models.DiscountCode) error {
	err := r.s.conn(ctx).Create(code).Error
	r.s.logError(ctx, err, "discount_codes.create")
	return err
}

func (r *gormDiscountCodes) FindByID(ctx context.Context, id uuid.UUID) (*models.DiscountCode, error) {
	var code models.DiscountCode
	err := r.s.conn(ctx).
		Where("id = ?", id).
		First(&code).
		Error
	if err != nil {
		r.s.logError(ctx, err, "discount_codes.find")
		return nil, err
	}
	return &code, nil
}

func (r *gormDiscountCodes) FindByCode(ctx context.Context, eventID uuid.UUID, code string) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	err := r.s.conn(ctx).
		Where("event_id = ? AND code = ?", eventID, code).
		First(&dc).
		Error
	if err != nil {
		r.s.logError(ctx, err, "discount_codes.find_by_code")
		return nil, err
	}
	return &dc, nil
}

func (r *gormDiscountCodes) IncrementRedeemed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.s.conn(ctx).
		Model(&models.DiscountCode{}).
		Where("id = ? AND status = ? AND (max_redemptions IS NULL OR times_redeemed < max_redemptions)", id, types.DISCOUNT_ACTIVE).
		UpdateColumn("times_redeemed", gorm.Expr("times_redeemed + 1"))
	r.s.logError(ctx, res.Error, "discount_codes.increment_redeemed")
	return res.RowsAffected == 1, res.Error
}

func (r *gormDiscountCodes) DecrementRedeemed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.s.conn(ctx).
		Model(&models.DiscountCode{}).
		Where("id = ? AND times_redeemed > 0", id).
		UpdateColumn("times_redeemed", gorm.Expr("times_redeemed - 1"))
	r.s.logError(ctx, res.Error, "discount_codes.decrement_redeemed")
	return res.RowsAffected == 1, res.Error
}

type gormOrders struct{ s *GormStore }

func (r *gormOrders) Create(ctx context.Context, order *models.Order) error {
	err := r.s.conn(ctx).Create(order).Error
	r.s.logError(ctx, err, "orders.create")
	return err
}

func (r *gormOrders) preloaded(ctx context.Context) *gorm.DB {
	return r.s.conn(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).
		Preload("Tickets", func(db *gorm.DB) *gorm.DB {
			return db.Order("issued_at, id")
		})
}

func (r *gormOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.preloaded(ctx).
		Where("id = ?", id).
		First(&order).
		Error
	if err != nil {
		r.s.logError(ctx, err, "orders.find")
		return nil, err
	}
	return &order, nil
}

func (r *gormOrders) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.preloaded(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).
		Error
	if err != nil {
		r.s.logError(ctx, err, "orders.find_for_update")
		return nil, err
	}
	return &order, nil
}

func (r *gormOrders) FindByLookupToken(ctx context.Context, token string) (*models.Order, error) {
	var order models.Order
	err := r.preloaded(ctx).
		Where("public_lookup_token = ?", token).
		First(&order).
		Error
	if err != nil {
		r.s.logError(ctx, err, "orders.find_by_token")
		return nil, err
	}
	return &order, nil
}

func (r *gormOrders) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*models.Order, error) {
	var order models.Order
	err := r.preloaded(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&order).
		Error
	if err != nil {
		r.s.logError(ctx, err, "orders.find_by_idempotency_key")
		return nil, err
	}
	return &order, nil
}

func (r *gormOrders) TransitionStatus(ctx context.Context, id uuid.UUID, from []types.OrderStatus, to types.OrderStatus, t OrderTransition) (bool, error) {
	updates := map[string]any{"status": to}
	if t.PaymentReference != nil {
		updates["payment_reference"] = *t.PaymentReference
	}
	switch to {
	case types.ORDER_PAID:
		updates["paid_at"] = t.At
	case types.ORDER_CANCELLED:
		updates["cancelled_at"] = t.At
	case types.ORDER_REFUNDED:
		updates["refunded_at"] = t.At
	}
	res := r.s.conn(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	r.s.logError(ctx, res.Error, "orders.transition")
	return res.RowsAffected == 1, res.Error
}

func (r *gormOrders) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.s.conn(ctx).
		Where("status = ? AND created_at < ?", types.ORDER_PENDING, before).
		Order("created_at").
		Limit(limit).
		Find(&orders).
		Error
	r.s.logError(ctx, err, "orders.list_stale")
	return orders, err
}

func (r *gormOrders) ListByBuyerEmail(ctx context.Context, tenantID uuid.UUID, email string, offset, limit int) ([]models.Order, int64, error) {
	scoped := func() *gorm.DB {
		return r.s.conn(ctx).
			Model(&models.Order{}).
			Where("tenant_id = ? AND LOWER(buyer_email) = ?", tenantID, strings.ToLower(strings.TrimSpace(email)))
	}
	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		r.s.logError(ctx, err, "orders.count_by_buyer")
		return nil, 0, err
	}
	var orders []models.Order
	err := scoped().
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).
		Error
	r.s.logError(ctx, err, "orders.list_by_buyer")
	return orders, total, err
}

type gormTickets struct{ s *GormStore }

func (r *gormTickets) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.s.conn(ctx).
		Where("id = ?", id).
		First(&ticket).
		Error
	if err != nil {
		r.s.logError(ctx, err, "tickets.find")
		return nil, err
	}
	return &ticket, nil
}

func (r *gormTickets) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.s.conn(ctx).
		Where("order_id = ?", orderID).
		Order("issued_at, id").
		Find(&tickets).
		Error
	r.s.logError(ctx, err, "tickets.list_by_order")
	return tickets, err
}

func (r *gormTickets) Transition(ctx context.Context, id uuid.UUID, from []types.TicketStatus, to types.TicketStatus) (bool, error) {
	res := r.s.conn(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	r.s.logError(ctx, res.Error, "tickets.transition")
	return res.RowsAffected == 1, res.Error
}

func (r *gormTickets) TransitionByOrder(ctx context.Context, orderID uuid.UUID, from []types.TicketStatus, to types.TicketStatus) (int64, error) {
	res := r.s.conn(ctx).
		Model(&models.Ticket{}).
		Where("order_id = ? AND status IN ?", orderID, from).
		Update("status", to)
	r.s.logError(ctx, res.Error, "tickets.transition_by_order")
	return res.RowsAffected, res.Error
}

func (r *gormTickets) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time, actorID string) (bool, error) {
	res := r.s.conn(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND status = ? AND checked_in_at IS NULL", id, types.TICKET_ACTIVE).
		Updates(map[string]any{
			"status":        types.TICKET_USED,
			"checked_in_at": at,
			"checked_in_by": actorID,
		})
	r.s.logError(ctx, res.Error, "tickets.mark_used")
	return res.RowsAffected == 1, res.Error
}

func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

func (r *gormTickets) List(ctx context.Context, f TicketFilter) ([]models.Ticket, int64, error) {
	scoped := func() *gorm.DB {
		q := r.s.conn(ctx).
			Model(&models.Ticket{}).
			Where("tenant_id = ?", f.TenantID)
		if f.EventID != nil {
			q = q.Where("event_id = ?", *f.EventID)
		}
		if f.CheckedIn {
			q = q.Where("checked_in_at IS NOT NULL")
		}
		if f.Search != "" {
			like := "%" + escapeLike(f.Search) + "%"
			q = q.Where("attendee_name ILIKE ? OR attendee_email ILIKE ?", like, like)
		}
		return q
	}
	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		r.s.logError(ctx, err, "tickets.count")
		return nil, 0, err
	}
	order := "created_at DESC"
	if f.CheckedIn {
		order = "checked_in_at DESC"
	}
	var tickets []models.Ticket
	err := scoped().
		Order(order).
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&tickets).
		Error
	r.s.logError(ctx, err, "tickets.list")
	return tickets, total, err
}

type gormAuditLogs struct{ s *GormStore }

func (r *gormAuditLogs) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	err := r.s.conn(ctx).Create(entry).Error
	r.s.logError(ctx, err, "audit_logs.append")
	return err
}

func (r *gormAuditLogs) List(ctx context.Context, f AuditFilter) ([]models.AuditLogEntry, int64, error) {
	scoped := func() *gorm.DB {
		q := r.s.conn(ctx).
			Model(&models.AuditLogEntry{}).
			Where("tenant_id = ?", f.TenantID)
		if f.ActorID != "" {
			q = q.Where("actor_id = ?", f.ActorID)
		}
		if f.Action != "" {
			q = q.Where("action = ?", f.Action)
		}
		if f.TicketID != nil {
			q = q.Where("ticket_id = ?", *f.TicketID)
		}
		return q
	}
	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		r.s.logError(ctx, err, "audit_logs.count")
		return nil, 0, err
	}
	var entries []models.AuditLogEntry
	err := scoped().
		Order("created_at DESC").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&entries).
		Error
	r.s.logError(ctx, err, "audit_logs.list")
	return entries, total, err
}
