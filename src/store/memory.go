package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"ticketing/src/models"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemoryStore keeps every table in process memory. Conditional updates run
// under one mutex, so they serialize the same way a row lock would.
// Transactions record undo steps and replay them in reverse on failure.
type MemoryStore struct {
	data *memoryData
	undo *[]func()
}

type memoryData struct {
	mu          sync.Mutex
	events      map[uuid.UUID]models.Event
	ticketTypes map[uuid.UUID]models.TicketType
	discounts   map[uuid.UUID]models.DiscountCode
	orders      map[uuid.UUID]models.Order
	items       map[uuid.UUID]models.OrderItem
	tickets     map[uuid.UUID]models.Ticket
	audit       []models.AuditLogEntry
	faults      map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memoryData{
			events:      map[uuid.UUID]models.Event{},
			ticketTypes: map[uuid.UUID]models.TicketType{},
			discounts:   map[uuid.UUID]models.DiscountCode{},
			orders:      map[uuid.UUID]models.Order{},
			items:       map[uuid.UUID]models.OrderItem{},
			tickets:     map[uuid.UUID]models.Ticket{},
			faults:      map[string]error{},
		},
	}
}

// FailOn makes the named operation (e.g. "orders.create") return err until
// cleared with a nil err.
func (s *MemoryStore) FailOn(op string, err error) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if err == nil {
		delete(s.data.faults, op)
		return
	}
	s.data.faults[op] = err
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.undo != nil {
		return fn(s)
	}
	undo := []func(){}
	tx := &MemoryStore{data: s.data, undo: &undo}
	if err := fn(tx); err != nil {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return err
	}
	return nil
}

func (s *MemoryStore) Events() EventRepository               { return &memEvents{s} }
func (s *MemoryStore) TicketTypes() TicketTypeRepository     { return &memTicketTypes{s} }
func (s *MemoryStore) DiscountCodes() DiscountCodeRepository { return &memDiscountCodes{s} }
func (s *MemoryStore) Orders() OrderRepository               { return &memOrders{s} }
func (s *MemoryStore) Tickets() TicketRepository             { return &memTickets{s} }
func (s *MemoryStore) AuditLogs() AuditLogRepository         { return &memAuditLogs{s} }

// lock must be released by the caller. It also reports an injected fault.
func (s *MemoryStore) lock(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data.mu.Lock()
	if err, ok := s.data.faults[op]; ok {
		s.data.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) onRollback(fn func()) {
	if s.undo == nil {
		return
	}
	*s.undo = append(*s.undo, func() {
		s.data.mu.Lock()
		defer s.data.mu.Unlock()
		fn()
	})
}

type memEvents struct{ s *MemoryStore }

func (r *memEvents) Create(ctx context.Context, event *models.Event) error {
	if err := r.s.lock(ctx, "events.create"); err != nil {
		return err
	}
	defer r.s.data.mu.Unlock()
	if _, ok := r.s.data.events[event.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	r.s.data.events[event.ID] = *event
	id := event.ID
	r.s.onRollback(func() { delete(r.s.data.events, id) })
	return nil
}

func (r *memEvents) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Event, error) {
	if err := r.s.lock(ctx, "events.find"); err != nil {
		return nil, err
	}
	defer r.s.data.mu.Unlock()
	event, ok := r.s.data.events[id]
	if !ok || event.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return &event, nil
}

func (r *memEvents) FindBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*models.Event, error) {
	if err := r.s.lock(ctx, "events.find_by_slug"); err != nil {
		return nil, err
	}
	defer r.s.data.mu.Unlock()
	var found *models.Event
	for _, e := range r.s.data.events {
		if e.TenantID != tenantID || e.Slug != slug {
			continue
		}
		if found == nil || e.CreatedAt.After(found.CreatedAt) {
			found = &e
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return found, nil
}

type memTicketTypes struct{ s *MemoryStore }

func (r *memTicketTypes) Create(ctx context.Context, tt *models.TicketType) error {
	if err := r.s.lock(ctx, "ticket_types.create"); err != nil {
		return err
	}
	defer r.s.data.mu.Unlock()
	if _, ok := r.s.data.ticketTypes[tt.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	tt.CreatedAt = time.Now()
	tt.UpdatedAt = tt.CreatedAt
	r.s.data.ticketTypes[tt.ID] = *tt
	id := tt.ID
	r.s.onRollback(func() { delete(r.s.data.ticketTypes, id) })
	return nil
}

func (r *memTicketTypes) FindByID(ctx context.Context, id uuid.UUID) (*models.TicketType, error) {
	if err := r.s.lock(ctx, "ticket_types.find"); err != nil {
		return nil, err
	}
	defer r.s.data.mu.Unlock()
	tt, ok := r.s.data.ticketTypes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &tt, nil
}

func (r *memTicketTypes) ListByEvent(ctx context.Context, tenantID, eventID uuid.UUID) ([]models.TicketType, error) {
	if err := r.s.lock(ctx, "ticket_types.list"); err != nil {
		return nil, err
	}
	defer r.s.data.mu.Unlock()
	var tts []models.TicketType
	for _, tt := range r.s.data.ticketTypes {
		if tt.TenantID == tenantID && tt.EventID == eventID {
			tts = append(tts, tt)
		}
	}
	sort.Slice(tts, func(i, j int) bool { return tts[i].CreatedAt.Before(tts[j].CreatedAt) })
	return tts, nil
}

func (r *memTicketTypes) IncrementSold(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	if err := r.s.lock(ctx, "ticket_types.increment_sold"); err != nil {
		return false, err
	}
	defer r.s.data.mu.Unlock()
	tt, ok := r.s.data.ticketTypes[id]
	if !ok || tt.Status != types.TICKET_TYPE_ACTIVE || tt.QuantitySold+qty > tt.QuantityTotal {
		return false, nil
	}
	tt.QuantitySold += qty
	r.s.data.ticketTypes[id] = tt
	r.s.onRollback(func() {
		cur := r.s.data.ticketTypes[id]
		cur.QuantitySold -= qty
		r.s.data.ticketTypes[id] = cur
	})
	return true, nil
}

func (r *memTicketTypes) DecrementSold(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	if err := r.s.lock(ctx, "ticket_types.decrement_sold"); err != nil {
		return false, err
	}
	defer r.s.data.mu.Unlock()
	tt, ok := r.s.data.ticketTypes[id]
	if !ok || tt.QuantitySold < qty {
		return false, nil
	}
	tt.QuantitySold -= qty
	r.s.data.ticketTypes[id] = tt
	r.s.onRollback(func() {
		cur := r.s.data.ticketTypes[id]
		cur.QuantitySold += qty
		r.s.data.ticketTypes[id] = cur
	})
	return true, nil
}

type memDiscountCodes struct{ s *MemoryStore }

func (r *memDiscountCodes) Create(ctx context.Context, code *models.DiscountCode) error {
	if err := r.s.lock(ctx, "discount_codes.create"); err != nil {
		return err
	}
	defer r.s.data.mu.Unlock()
	for _, dc := range r.s.data.discounts {
		if dc.ID == code.ID || (dc.EventID == code.EventID && dc.Code == code.Code) {
			return gorm.ErrDuplicatedKey
		}
	}
	code.CreatedAt = time.Now()
	code.UpdatedAt = code.CreatedAt
	r.s.data.discounts[code.ID] = *code
	id := code.ID
	r.s.onRollback(func() { delete(r.s.data.discounts, id) })
	return nil
}

func (r *memDiscountCodes) FindByID(ctx context.Context, id uuid.UUID) (*models.DiscountCode, error) {
	if err := r.s.lock(ctx, "discount_codes.find"); err != nil {
		return nil, err
	}
	defer r.s.data.mu.Unlock()
	dc, ok := r.s.data.discounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &dc, nil
}

func (r *memDiscountCodes) FindByCode(ctx context.Context, eventID uuid.UUID, code string) (*models.DiscountCode, error) {
	if err := r.s.lock(ctx, "discount_codes.find_by_code"); err != nil {
		return nil, err
	}
	defer r.s.data.mu.Unlock()
	for _, dc := range r.s.data.discounts {
		if dc.EventID == eventID && dc.Code == code {
			return &dc, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memDiscountCodes) IncrementRedeemed(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := r.s.lock(ctx, "discount_codes.increment_redeemed"); err != nil {
		return false, err
	}
	defer r.s.data.mu.Unlock()
	dc, ok := r.s.data.discounts[id]
	if !ok || dc.Status != types.DISCOUNT_ACTIVE || dc.CapReached() {
		return false, nil
	}
	dc.TimesRedeemed++
	r.s.data.discounts[id] = dc
	r.s.onRollback(func() {
		cur := r.s.data.discounts[id]
		cur.TimesRedeemed--
		r.s.data.discounts[id] = cur
	})
	return true, nil
}

func (r *memDiscountCodes) DecrementRedeemed(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := r.s.lock(ctx, "discount_codes.decrement_redeemed"); err != nil {
		return false, err
	}
	defer r.s.data.mu.Unlock()
	dc, ok := r.s.data.discounts[id]
	if !ok || dc.TimesRedeemed == 0 {
		return false, nil
	}
	dc.TimesRedeemed--
	r.s.data.discounts[id] = dc
	r.s.onRollback(func() {
		cur := r.s.data.discounts[id]
		cur.TimesRedeemed++
		r.s.data.discounts[id] = cur
	})
	return true, nil
}

type memOrders struct{ s *MemoryStore }

func (r *memOrders) Create(ctx context.Context, order *models.Order) error {
	if err := r.s.lock(ctx, "orders.create"); err != nil {
		return err
	}
	defer r.s.data.mu.Unlock()
	for _, o := range r.s.data.orders {
		if o.ID == order.ID || o.PublicLookupToken == order.PublicLookupToken {
			return gorm.ErrDuplicatedKey
		}
		if order.IdempotencyKey != nil && o.IdempotencyKey != nil &&
			o.TenantID == order.TenantID && *o.IdempotencyKey == *order.IdempotencyKey {
			return gorm.ErrDuplicatedKey
		}
	}
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	row := *order
	row.Items, row.Tickets = nil, nil
	r.s.data.orders[order.ID] = row
	var itemIDs, ticketIDs []uuid.UUID
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		order.Items[i].CreatedAt, order.Items[i].UpdatedAt = now, now
		r.s.data.items[order.Items[i].ID] = order.Items[i]
		itemIDs = append(itemIDs, order.Items[i].ID)
	}
	for i := range order.Tickets {
		order.Tickets[i].OrderID = order.ID
		order.Tickets[i].CreatedAt, order.Tickets[i].UpdatedAt = now, now
		r.s.data.tickets[order.Tickets[i].ID] = order.Tickets[i]
		ticketIDs = append(ticketIDs, order.Tickets[i].ID)
	}
	id := order.ID
	r.s.onRollback(func() {
		delete(r.s.data.orders, id)
		for _, iid := range itemIDs {
			delete(r.s.data.items, iid)
		}
		for _, tid := range ticketIDs {
			delete(r.s.data.tickets, tid)
		}
	})
	return nil
}

// assemble must be called with the lock held.
func (r *memOrders) assemble(o models.Order) *models.Order {
	for _, it := range r.s.data.items {
		if it.OrderID == o.ID {
			o.Items = append(o.Items, it)
		}
	}
	sort.Slice(o.Items, func(i, j int) bool { return o.Items[i].Position < o.Items[j].Position })
	o.Tickets = ticketsOf(r.s.data, o.ID)
	return &o
}

func ticketsOf(d *memoryData, orderID uuid.UUID) []models.Ticket {
	var tickets []models.Ticket
	for _, t := range d.tickets {
		if t.OrderID == orderID {
			tickets = append(tickets, t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool {
		if tickets[i].IssuedAt.Equal(tickets[j].IssuedAt) {
			return tickets[i].ID.String() < tickets[j].ID.String()
		}
		return tickets[i].IssuedAt.Before(tickets[j].IssuedAt)
	})
	return tickets
}

func (r *memOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if err := r.s.lock(ctx, "orders.find"); err != nil {
		return nil, err
	}
	defer r.s.data.mu.Unlock()
	o, ok := r.s.data.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.assemble(o), nil
}

// FindByIDForUpdate holds no lock past the read; conditional transitions
// still serialize on the store mutex.
func (r *memOrders) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *memOrders) FindByLookupToken(ctx context.Context, token string) (*models.Order, error) {
	if err := r.s.lock(ctx, "orders.find_by_token"); err != nil {
		return nil, err
	}
	defer r.s.data.mu.Unlock()
	for _, o := range r.s.data.orders {
		if o.PublicLookupToken == token {
			return r.assemble(o), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memOrders) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*models.Order, error) {
	if err := r.s.lock(ctx, "orders.find_by_idempotency_key"); err != nil {
		return nil, err
	}
	defer r.s.data.mu.Unlock()
	for _, o := range r.s.data.orders {
		if o.TenantID == tenantID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return r.assemble(o), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memOrders) TransitionStatus(ctx context.Context, id uuid.UUID, from []types.OrderStatus, to types.OrderStatus, t OrderTransition) (bool, error) {
	if err := r.s.lock(ctx, "orders.transition"); err != nil {
		return false, err
	}
	defer r.s.data.mu.Unlock()
	o, ok := r.s.data.orders[id]
	if !ok || !slices.Contains(from, o.Status) {
		return false, nil
	}
	prev := o
	o.Status = to
	if t.PaymentReference != nil {
		ref := *t.PaymentReference
		o.PaymentReference = &ref
	}
	at := t.At
	switch to {
	case types.ORDER_PAID:
		o.PaidAt = &at
	case types.ORDER_CANCELLED:
		o.CancelledAt = &at
	case types.ORDER_REFUNDED:
		o.RefundedAt = &at
	}
	o.UpdatedAt = time.Now()
	r.s.data.orders[id] = o
	r.s.onRollback(func() { r.s.data.orders[id] = prev })
	return true, nil
}

func (r *memOrders) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	if err := r.s.lock(ctx, "orders.list_stale"); err != nil {
		return nil, err
	}
	defer r.s.data.mu.Unlock()
	var orders []models.Order
	for _, o := range r.s.data.orders {
		if o.Status == types.ORDER_PENDING && o.CreatedAt.Before(before) {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (r *memOrders) ListByBuyerEmail(ctx context.Context, tenantID uuid.UUID, email string, offset, limit int) ([]models.Order, int64, error) {
	if err := r.s.lock(ctx, "orders.list_by_buyer"); err != nil {
		return nil, 0, err
	}
	defer r.s.data.mu.Unlock()
	email = strings.TrimSpace(email)
	var matched []models.Order
	for _, o := range r.s.data.orders {
		if o.TenantID == tenantID && strings.EqualFold(o.BuyerEmail, email) {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, offset, limit), int64(len(matched)), nil
}

// Backdate shifts an order's creation time, for exercising expiry.
func (s *MemoryStore) Backdate(orderID uuid.UUID, by time.Duration) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if o, ok := s.data.orders[orderID]; ok {
		o.CreatedAt = o.CreatedAt.Add(-by)
		s.data.orders[orderID] = o
	}
}

type memTickets struct{ s *MemoryStore }

func (r *memTickets) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	if err := r.s.lock(ctx, "tickets.find"); err != nil {
		return nil, err
	}
	defer r.s.data.mu.Unlock()
	t, ok := r.s.data.tickets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}

func (r *memTickets) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Ticket, error) {
	if err := r.s.lock(ctx, "tickets.list_by_order"); err != nil {
		return nil, err
	}
	defer r.s.data.mu.Unlock()
	return ticketsOf(r.s.data, orderID), nil
}

func (r *memTickets) Transition(ctx context.Context, id uuid.UUID, from []types.TicketStatus, to types.TicketStatus) (bool, error) {
	if err := r.s.lock(ctx, "tickets.transition"); err != nil {
		return false, err
	}
	defer r.s.data.mu.Unlock()
	t, ok := r.s.data.tickets[id]
	if !ok || !slices.Contains(from, t.Status) {
		return false, nil
	}
	prev := t
	t.Status = to
	r.s.data.tickets[id] = t
	r.s.onRollback(func() { r.s.data.tickets[id] = prev })
	return true, nil
}

func (r *memTickets) TransitionByOrder(ctx context.Context, orderID uuid.UUID, from []types.TicketStatus, to types.TicketStatus) (int64, error) {
	if err := r.s.lock(ctx, "tickets.transition_by_order"); err != nil {
		return 0, err
	}
	defer r.s.data.mu.Unlock()
	var n int64
	for id, t := range r.s.data.tickets {
		if t.OrderID != orderID || !slices.Contains(from, t.Status) {
			continue
		}
		prev := t
		t.Status = to
		r.s.data.tickets[id] = t
		r.s.onRollback(func() { r.s.data.tickets[prev.ID] = prev })
		n++
	}
	return n, nil
}

func (r *memTickets) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time, actorID string) (bool, error) {
	if err := r.s.lock(ctx, "tickets.mark_used"); err != nil {
		return false, err
	}
	defer r.s.data.mu.Unlock()
	t, ok := r.s.data.tickets[id]
	if !ok || t.Status != types.TICKET_ACTIVE || t.CheckedInAt != nil {
		return false, nil
	}
	prev := t
	t.Status = types.TICKET_USED
	t.CheckedInAt = &at
	t.CheckedInBy = &actorID
	r.s.data.tickets[id] = t
	r.s.onRollback(func() { r.s.data.tickets[id] = prev })
	return true, nil
}

func (r *memTickets) List(ctx context.Context, f TicketFilter) ([]models.Ticket, int64, error) {
	if err := r.s.lock(ctx, "tickets.list"); err != nil {
		return nil, 0, err
	}
	defer r.s.data.mu.Unlock()
	term := strings.ToLower(f.Search)
	var matched []models.Ticket
	for _, t := range r.s.data.tickets {
		if t.TenantID != f.TenantID {
			continue
		}
		if f.EventID != nil && t.EventID != *f.EventID {
			continue
		}
		if f.CheckedIn && t.CheckedInAt == nil {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(t.AttendeeName), term) &&
			!strings.Contains(strings.ToLower(t.AttendeeEmail), term) {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool {
		if f.CheckedIn {
			return matched[i].CheckedInAt.After(*matched[j].CheckedInAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return page(matched, f.Offset, f.Limit), int64(len(matched)), nil
}

func page[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

type memAuditLogs struct{ s *MemoryStore }

func (r *memAuditLogs) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	if err := r.s.lock(ctx, "audit_logs.append"); err != nil {
		return err
	}
	defer r.s.data.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.s.data.audit = append(r.s.data.audit, *entry)
	id := entry.ID
	r.s.onRollback(func() {
		r.s.data.audit = slices.DeleteFunc(r.s.data.audit, func(e models.AuditLogEntry) bool { return e.ID == id })
	})
	return nil
}

func (r *memAuditLogs) List(ctx context.Context, f AuditFilter) ([]models.AuditLogEntry, int64, error) {
	if err := r.s.lock(ctx, "audit_logs.list"); err != nil {
		return nil, 0, err
	}
	defer r.s.data.mu.Unlock()
	var matched []models.AuditLogEntry
	for i := len(r.s.data.audit) - 1; i >= 0; i-- {
		e := r.s.data.audit[i]
		if e.TenantID != f.TenantID {
			continue
		}
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.TicketID != nil && (e.TicketID == nil || *e.TicketID != *f.TicketID) {
			continue
		}
		matched = append(matched, e)
	}
	return page(matched, f.Offset, f.Limit), int64(len(matched)), nil
}
