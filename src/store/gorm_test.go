package store

import (
	"context"
	"errors"
	"testing"
	"ticketing/src/db"
	"ticketing/src/types"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type GormStoreSuite struct {
	suite.Suite
	Mock  sqlmock.Sqlmock
	Store *GormStore
	Hook  *test.Hook
}

func (s *GormStoreSuite) SetupTest() {
	gdb, mock := db.NewMockDB()
	var logger *logrus.Logger
	logger, s.Hook = test.NewNullLogger()
	s.Mock = mock
	s.Store = NewGormStore(gdb, logger)
}

func (s *GormStoreSuite) TearDownTest() {
	assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *GormStoreSuite) TestIncrementSold() {
	ctx := context.Background()
	id := uuid.New()

	s.Run("applies when capacity allows", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectExec(`UPDATE "ticket_types" SET "quantity_sold"=quantity_sold \+ \$1 WHERE .*quantity_sold \+ \$4 <= quantity_total`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.Mock.ExpectCommit()

		ok, err := s.Store.TicketTypes().IncrementSold(ctx, id, 2)
		assert.NoError(s.T(), err)
		assert.True(s.T(), ok)
	})

	s.Run("reports no change when the guard rejects", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectExec(`UPDATE "ticket_types" SET "quantity_sold"=quantity_sold \+ \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		s.Mock.ExpectCommit()

		ok, err := s.Store.TicketTypes().IncrementSold(ctx, id, 5)
		assert.NoError(s.T(), err)
		assert.False(s.T(), ok)
	})

	s.Run("surfaces driver errors and logs them", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectExec(`UPDATE "ticket_types"`).
			WillReturnError(errors.New("connection reset"))
		s.Mock.ExpectRollback()

		ok, err := s.Store.TicketTypes().IncrementSold(ctx, id, 1)
		assert.Error(s.T(), err)
		assert.False(s.T(), ok)
		assert.Equal(s.T(), logrus.ErrorLevel, s.Hook.LastEntry().Level)
	})
}

func (s *GormStoreSuite) TestIncrementRedeemed() {
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "discount_codes" SET "times_redeemed"=times_redeemed \+ 1 WHERE .*max_redemptions IS NULL OR times_redeemed < max_redemptions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	ok, err := s.Store.DiscountCodes().IncrementRedeemed(context.Background(), uuid.New())
	assert.NoError(s.T(), err)
	assert.True(s.T(), ok)
}

func (s *GormStoreSuite) TestMarkUsed() {
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "tickets" SET .*"status"=.*WHERE .*checked_in_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.Mock.ExpectCommit()

	ok, err := s.Store.Tickets().MarkUsed(context.Background(), uuid.New(), time.Now(), "staff-1")
	assert.NoError(s.T(), err)
	assert.False(s.T(), ok)
}

func (s *GormStoreSuite) TestTransitionStatus() {
	ref := "pi_123"
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "orders" SET .*"payment_reference"=.*WHERE .*status IN`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	ok, err := s.Store.Orders().TransitionStatus(context.Background(), uuid.New(),
		[]types.OrderStatus{types.ORDER_PENDING}, types.ORDER_PAID,
		OrderTransition{PaymentReference: &ref, At: time.Now()})
	assert.NoError(s.T(), err)
	assert.True(s.T(), ok)
}

func (s *GormStoreSuite) TestFindByIDForUpdateLocksRow() {
	id := uuid.New()
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(id, types.ORDER_PENDING))
	s.Mock.ExpectQuery(`SELECT \* FROM "order_items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	s.Mock.ExpectQuery(`SELECT \* FROM "tickets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	s.Mock.ExpectCommit()

	err := s.Store.Transaction(context.Background(), func(tx Store) error {
		order, err := tx.Orders().FindByIDForUpdate(context.Background(), id)
		if err != nil {
			return err
		}
		assert.Equal(s.T(), types.ORDER_PENDING, order.Status)
		return nil
	})
	assert.NoError(s.T(), err)
}

func (s *GormStoreSuite) TestListByBuyerEmailIsCaseInsensitive() {
	tenant := uuid.New()
	s.Mock.ExpectQuery(`SELECT count\(\*\) FROM "orders" WHERE \(?tenant_id = \$1 AND LOWER\(buyer_email\) = \$2`).
		WithArgs(tenant, "ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	s.Mock.ExpectQuery(`SELECT \* FROM "orders" WHERE \(?tenant_id = \$1 AND LOWER\(buyer_email\) = \$2.*ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "buyer_email"}).AddRow(uuid.New(), "Ada@Example.com"))

	orders, total, err := s.Store.Orders().ListByBuyerEmail(context.Background(), tenant, " Ada@Example.com", 0, 20)
	assert.NoError(s.T(), err)
	assert.EqualValues(s.T(), 1, total)
	assert.Len(s.T(), orders, 1)
}

func (s *GormStoreSuite) TestTransactionRollsBack() {
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "ticket_types"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.Store.Transaction(context.Background(), func(tx Store) error {
		if _, err := tx.TicketTypes().IncrementSold(context.Background(), uuid.New(), 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(s.T(), err, boom)
}

func TestGormStoreSuite(t *testing.T) {
	suite.Run(t, new(GormStoreSuite))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}
