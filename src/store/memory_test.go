package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"ticketing/src/models"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedTicketType(t *testing.T, s *MemoryStore, total int) *models.TicketType {
	t.Helper()
	tt := &models.TicketType{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		EventID:       uuid.New(),
		Name:          "General",
		PriceCents:    1000,
		Currency:      "USD",
		QuantityTotal: total,
		Status:        types.TICKET_TYPE_ACTIVE,
	}
	require.NoError(t, s.TicketTypes().Create(context.Background(), tt))
	return tt
}

func TestMemoryIncrementSoldIsBounded(t *testing.T) {
	s := NewMemoryStore()
	tt := seedTicketType(t, s, 10)

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TicketTypes().IncrementSold(context.Background(), tt.ID, 1)
			assert.NoError(t, err)
			if ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	got, err := s.TicketTypes().FindByID(context.Background(), tt.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(10), granted.Load())
	assert.Equal(t, 10, got.QuantitySold)
}

func TestMemoryTransactionUndo(t *testing.T) {
	s := NewMemoryStore()
	tt := seedTicketType(t, s, 5)
	boom := errors.New("boom")

	err := s.Transaction(context.Background(), func(tx Store) error {
		ok, err := tx.TicketTypes().IncrementSold(context.Background(), tt.ID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.Orders().Create(context.Background(), &models.Order{
			ID:                uuid.New(),
			TenantID:          tt.TenantID,
			PublicLookupToken: "tok",
			Status:            types.ORDER_PENDING,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, _ := s.TicketTypes().FindByID(context.Background(), tt.ID)
	assert.Equal(t, 0, got.QuantitySold)
	_, err = s.Orders().FindByLookupToken(context.Background(), "tok")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMemoryOrderUniqueness(t *testing.T) {
	s := NewMemoryStore()
	tenant := uuid.New()
	key := "checkout-1"
	first := &models.Order{ID: uuid.New(), TenantID: tenant, PublicLookupToken: "a", IdempotencyKey: &key}
	second := &models.Order{ID: uuid.New(), TenantID: tenant, PublicLookupToken: "b", IdempotencyKey: &key}

	require.NoError(t, s.Orders().Create(context.Background(), first))
	assert.ErrorIs(t, s.Orders().Create(context.Background(), second), gorm.ErrDuplicatedKey)
}

func TestMemoryFindEventBySlug(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	tenant := uuid.New()
	first := &models.Event{ID: uuid.New(), TenantID: tenant, Name: "Gopher Summit", Slug: "gopher-summit"}
	require.NoError(t, s.Events().Create(ctx, first))
	time.Sleep(time.Millisecond)
	second := &models.Event{ID: uuid.New(), TenantID: tenant, Name: "Gopher Summit", Slug: "gopher-summit"}
	require.NoError(t, s.Events().Create(ctx, second))

	got, err := s.Events().FindBySlug(ctx, tenant, "gopher-summit")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = s.Events().FindBySlug(ctx, uuid.New(), "gopher-summit")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMemoryListByBuyerEmail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	tenant := uuid.New()
	for i, email := range []string{"ada@example.com", "Ada@Example.com", "grace@example.com"} {
		o := &models.Order{ID: uuid.New(), TenantID: tenant, BuyerEmail: email, PublicLookupToken: uuid.NewString(), Status: types.ORDER_PENDING}
		require.NoError(t, s.Orders().Create(ctx, o), i)
	}
	other := &models.Order{ID: uuid.New(), TenantID: uuid.New(), BuyerEmail: "ada@example.com", PublicLookupToken: uuid.NewString()}
	require.NoError(t, s.Orders().Create(ctx, other))

	orders, total, err := s.Orders().ListByBuyerEmail(ctx, tenant, "ADA@example.com", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, orders, 2)

	orders, total, err = s.Orders().ListByBuyerEmail(ctx, tenant, "ada@example.com", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, orders, 1)
}

func TestMemoryMarkUsedOnce(t *testing.T) {
	s := NewMemoryStore()
	ticket := models.Ticket{ID: uuid.New(), TenantID: uuid.New(), Status: types.TICKET_ACTIVE, IssuedAt: time.Now()}
	require.NoError(t, s.Orders().Create(context.Background(), &models.Order{
		ID:                uuid.New(),
		TenantID:          ticket.TenantID,
		PublicLookupToken: "t",
		Tickets:           []models.Ticket{ticket},
	}))

	ok, err := s.Tickets().MarkUsed(context.Background(), ticket.ID, time.Now(), "staff")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Tickets().MarkUsed(context.Background(), ticket.ID, time.Now(), "staff")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryFaultInjection(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("down")
	s.FailOn("audit_logs.append", boom)
	assert.ErrorIs(t, s.AuditLogs().Append(context.Background(), &models.AuditLogEntry{ID: uuid.New()}), boom)

	s.FailOn("audit_logs.append", nil)
	assert.NoError(t, s.AuditLogs().Append(context.Background(), &models.AuditLogEntry{ID: uuid.New()}))
}
