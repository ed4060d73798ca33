package inventory

import (
	"context"
	"sync"
	"testing"
	"ticketing/src/apperr"
	"ticketing/src/models"
	"ticketing/src/store"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type LedgerSuite struct {
	suite.Suite
	Store  *store.MemoryStore
	Ledger *Ledger
}

func (s *LedgerSuite) SetupTest() {
	logger, _ := test.NewNullLogger()
	s.Store = store.NewMemoryStore()
	s.Ledger = NewLedger(logger, nil)
}

func (s *LedgerSuite) ticketType(total, sold int, mutate ...func(*models.TicketType)) *models.TicketType {
	tt := &models.TicketType{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		EventID:       uuid.New(),
		Name:          "GA",
		PriceCents:    2500,
		Currency:      "USD",
		QuantityTotal: total,
		QuantitySold:  sold,
		Status:        types.TICKET_TYPE_ACTIVE,
	}
	for _, m := range mutate {
		m(tt)
	}
	require.NoError(s.T(), s.Store.TicketTypes().Create(context.Background(), tt))
	return tt
}

func (s *LedgerSuite) sold(id uuid.UUID) int {
	tt, err := s.Store.TicketTypes().FindByID(context.Background(), id)
	require.NoError(s.T(), err)
	return tt.QuantitySold
}

func (s *LedgerSuite) TestReserve() {
	ctx := context.Background()

	s.Run("increments sold count", func() {
		tt := s.ticketType(10, 2)
		r, err := s.Ledger.Reserve(ctx, s.Store, tt.ID, 3)
		require.NoError(s.T(), err)
		assert.Equal(s.T(), 3, r.Quantity)
		assert.Equal(s.T(), 5, s.sold(tt.ID))
	})

	s.Run("fills capacity exactly", func() {
		tt := s.ticketType(4, 1)
		_, err := s.Ledger.Reserve(ctx, s.Store, tt.ID, 3)
		require.NoError(s.T(), err)
		assert.Equal(s.T(), 4, s.sold(tt.ID))
	})

	s.Run("rejects oversell", func() {
		tt := s.ticketType(4, 3)
		_, err := s.Ledger.Reserve(ctx, s.Store, tt.ID, 2)
		assert.ErrorIs(s.T(), err, apperr.ErrOutOfStock)
		assert.Equal(s.T(), 3, s.sold(tt.ID))
	})

	s.Run("rejects inactive types", func() {
		tt := s.ticketType(4, 0, func(tt *models.TicketType) { tt.Status = types.TICKET_TYPE_HIDDEN })
		_, err := s.Ledger.Reserve(ctx, s.Store, tt.ID, 1)
		assert.ErrorIs(s.T(), err, apperr.ErrTicketTypeClosed)
	})

	s.Run("rejects outside the sales window", func() {
		later := time.Now().Add(time.Hour)
		earlier := time.Now().Add(-time.Hour)
		notYet := s.ticketType(4, 0, func(tt *models.TicketType) { tt.SalesStart = &later })
		over := s.ticketType(4, 0, func(tt *models.TicketType) { tt.SalesEnd = &earlier })

		_, err := s.Ledger.Reserve(ctx, s.Store, notYet.ID, 1)
		assert.ErrorIs(s.T(), err, apperr.ErrSalesWindowClosed)
		_, err = s.Ledger.Reserve(ctx, s.Store, over.ID, 1)
		assert.ErrorIs(s.T(), err, apperr.ErrSalesWindowClosed)
	})

	s.Run("validates input", func() {
		tt := s.ticketType(4, 0)
		_, err := s.Ledger.Reserve(ctx, s.Store, tt.ID, 0)
		assert.ErrorIs(s.T(), err, apperr.ErrInvalidQty)
		_, err = s.Ledger.Reserve(ctx, s.Store, uuid.New(), 1)
		assert.ErrorIs(s.T(), err, apperr.ErrTicketTypeNotFound)
	})
}

func (s *LedgerSuite) TestReleaseIsIdempotent() {
	ctx := context.Background()
	tt := s.ticketType(5, 0)
	r, err := s.Ledger.Reserve(ctx, s.Store, tt.ID, 2)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.Ledger.Release(ctx, s.Store, r))
	require.NoError(s.T(), s.Ledger.Release(ctx, s.Store, r))
	assert.Equal(s.T(), 0, s.sold(tt.ID))
}

func (s *LedgerSuite) TestConcurrentReservationsNeverOversell() {
	ctx := context.Background()
	tt := s.ticketType(25, 0)

	var mu sync.Mutex
	granted := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Ledger.Reserve(ctx, s.Store, tt.ID, 1); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			} else {
				assert.ErrorIs(s.T(), err, apperr.ErrOutOfStock)
			}
		}()
	}
	wg.Wait()

	assert.Equal(s.T(), 25, granted)
	assert.Equal(s.T(), 25, s.sold(tt.ID))
}

type mapCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]Status
}

func (c *mapCache) Get(_ context.Context, id uuid.UUID) (*Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.entries[id]
	return &st, ok
}

func (c *mapCache) Set(_ context.Context, st *Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[st.TicketTypeID] = *st
}

func (c *mapCache) Invalidate(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func (s *LedgerSuite) TestStatus() {
	ctx := context.Background()
	tt := s.ticketType(10, 4)
	st, err := s.Ledger.Status(ctx, s.Store, tt.TenantID, tt.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), &Status{TicketTypeID: tt.ID, TenantID: tt.TenantID, QuantityTotal: 10, QuantitySold: 4, Remaining: 6}, st)

	_, err = s.Ledger.Status(ctx, s.Store, uuid.New(), tt.ID)
	assert.ErrorIs(s.T(), err, apperr.ErrTicketTypeNotFound)
}

func (s *LedgerSuite) TestStatusCacheIsTenantScoped() {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	cache := &mapCache{entries: map[uuid.UUID]Status{}}
	ledger := NewLedger(logger, cache)
	tt := s.ticketType(10, 4)

	_, err := ledger.Status(ctx, s.Store, tt.TenantID, tt.ID)
	require.NoError(s.T(), err)
	require.Contains(s.T(), cache.entries, tt.ID)

	_, err = ledger.Status(ctx, s.Store, uuid.New(), tt.ID)
	assert.ErrorIs(s.T(), err, apperr.ErrTicketTypeNotFound)

	_, err = ledger.Reserve(ctx, s.Store, tt.ID, 1)
	require.NoError(s.T(), err)
	assert.NotContains(s.T(), cache.entries, tt.ID)
	st, err := ledger.Status(ctx, s.Store, tt.TenantID, tt.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 5, st.Remaining)
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}
