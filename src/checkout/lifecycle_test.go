package checkout

import (
	"context"
	"sync"
	"ticketing/src/apperr"
	"ticketing/src/discount"
	"ticketing/src/inventory"
	"ticketing/src/issuer"
	"ticketing/src/models"
	"ticketing/src/store"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
)

// racingStore runs race once, right after the first locking order read.
type racingStore struct {
	store.Store
	once *sync.Once
	race func()
}

func (r *racingStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return r.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(&racingStore{Store: tx, once: r.once, race: r.race})
	})
}

func (r *racingStore) Orders() store.OrderRepository {
	return &racingOrders{OrderRepository: r.Store.Orders(), parent: r}
}

type racingOrders struct {
	store.OrderRepository
	parent *racingStore
}

func (r *racingOrders) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := r.OrderRepository.FindByIDForUpdate(ctx, id)
	r.parent.once.Do(r.parent.race)
	return order, err
}

// paidUnderneath returns an orchestrator whose first order read is followed
// by a payment confirmation landing outside its transaction.
func (s *CheckoutSuite) paidUnderneath(orderID uuid.UUID) *Orchestrator {
	logger, _ := test.NewNullLogger()
	st := &racingStore{Store: s.st, once: &sync.Once{}, race: func() {
		ok, err := s.st.Orders().TransitionStatus(s.ctx, orderID, []types.OrderStatus{types.ORDER_PENDING}, types.ORDER_PAID, store.OrderTransition{At: time.Now()})
		s.Require().NoError(err)
		s.Require().True(ok)
	}}
	return NewOrchestrator(st, logger, Options{
		Ledger:    inventory.NewLedger(logger, nil),
		Discounts: discount.NewEngine(logger),
		Issuer:    issuer.NewIssuer(issuer.NewSigner("secret")),
	})
}

func (s *CheckoutSuite) TestMarkPaidActivatesTickets() {
	tt := s.ticketType(1000, 10)
	res, err := s.orch.Checkout(s.ctx, s.request(CartItem{TicketTypeID: tt.ID, Quantity: 2}))
	s.Require().NoError(err)

	order, err := s.orch.MarkPaid(s.ctx, res.Order.ID, "pi_123")
	s.Require().NoError(err)
	s.Equal(types.ORDER_PAID, order.Status)
	s.Require().NotNil(order.PaymentReference)
	s.Equal("pi_123", *order.PaymentReference)
	s.NotNil(order.PaidAt)
	for _, t := range order.Tickets {
		s.Equal(types.TICKET_ACTIVE, t.Status)
	}
	s.Require().Len(s.notifier.orders, 1)
	s.Len(s.notifier.orders[0].Tickets, 2)

	again, err := s.orch.MarkPaid(s.ctx, res.Order.ID, "pi_123")
	s.Require().NoError(err)
	s.Equal(types.ORDER_PAID, again.Status)
	s.Len(s.notifier.orders, 1, "repeated confirmation does not notify twice")

	_, err = s.orch.MarkFailed(s.ctx, res.Order.ID)
	s.ErrorIs(err, apperr.ErrInvalidTransition)
}

func (s *CheckoutSuite) TestMarkFailedReleases() {
	tt := s.ticketType(1000, 10)
	dc := s.code("SAVE", types.DISCOUNT_PERCENTAGE, 10, nil)
	req := s.request(CartItem{TicketTypeID: tt.ID, Quantity: 3})
	req.DiscountCode = "SAVE"
	res, err := s.orch.Checkout(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(3, s.sold(tt.ID))
	s.Equal(1, s.redeemed(dc.ID))

	order, err := s.orch.MarkFailed(s.ctx, res.Order.ID)
	s.Require().NoError(err)
	s.Equal(types.ORDER_CANCELLED, order.Status)
	for _, t := range order.Tickets {
		s.Equal(types.TICKET_CANCELLED, t.Status)
	}
	s.Equal(0, s.sold(tt.ID))
	s.Equal(0, s.redeemed(dc.ID))

	// a second failure notice changes nothing
	_, err = s.orch.MarkFailed(s.ctx, res.Order.ID)
	s.Require().NoError(err)
	s.Equal(0, s.sold(tt.ID))

	_, err = s.orch.MarkPaid(s.ctx, res.Order.ID, "late")
	s.ErrorIs(err, apperr.ErrInvalidTransition)
}

func (s *CheckoutSuite) TestRefundKeepsUsedTickets() {
	tt := s.ticketType(1000, 10)
	dc := s.code("SAVE", types.DISCOUNT_FIXED_AMOUNT, 100, nil)
	req := s.request(CartItem{TicketTypeID: tt.ID, Quantity: 2})
	req.DiscountCode = "SAVE"
	res, err := s.orch.Checkout(s.ctx, req)
	s.Require().NoError(err)
	_, err = s.orch.MarkPaid(s.ctx, res.Order.ID, "pi_1")
	s.Require().NoError(err)

	used := res.Order.Tickets[0].ID
	ok, err := s.st.Tickets().MarkUsed(s.ctx, used, time.Now(), "staff")
	s.Require().NoError(err)
	s.Require().True(ok)

	order, err := s.orch.Refund(s.ctx, res.Order.ID)
	s.Require().NoError(err)
	s.Equal(types.ORDER_REFUNDED, order.Status)
	s.NotNil(order.RefundedAt)
	for _, t := range order.Tickets {
		if t.ID == used {
			s.Equal(types.TICKET_USED, t.Status)
		} else {
			s.Equal(types.TICKET_CANCELLED, t.Status)
		}
	}
	s.Equal(1, s.sold(tt.ID))
	s.Equal(1, s.redeemed(dc.ID), "paid redemptions are not given back")

	_, err = s.orch.Refund(s.ctx, uuid.New())
	s.ErrorIs(err, apperr.ErrOrderNotFound)
}

func (s *CheckoutSuite) TestCancelPendingOrder() {
	tt := s.ticketType(1000, 10)
	res, err := s.orch.Checkout(s.ctx, s.request(CartItem{TicketTypeID: tt.ID, Quantity: 1}))
	s.Require().NoError(err)

	_, err = s.orch.Refund(s.ctx, res.Order.ID)
	s.ErrorIs(err, apperr.ErrInvalidTransition)

	order, err := s.orch.Cancel(s.ctx, res.Order.ID)
	s.Require().NoError(err)
	s.Equal(types.ORDER_CANCELLED, order.Status)
	s.NotNil(order.CancelledAt)
	s.Equal(0, s.sold(tt.ID))
}

func (s *CheckoutSuite) TestGetIsTenantScoped() {
	tt := s.ticketType(1000, 10)
	res, err := s.orch.Checkout(s.ctx, s.request(CartItem{TicketTypeID: tt.ID, Quantity: 1}))
	s.Require().NoError(err)

	_, err = s.orch.Get(s.ctx, uuid.New(), res.Order.ID)
	s.ErrorIs(err, apperr.ErrOrderNotFound)
	_, err = s.orch.Lookup(s.ctx, "nope")
	s.ErrorIs(err, apperr.ErrOrderNotFound)
}

func (s *CheckoutSuite) TestExpireStale() {
	tt := s.ticketType(1000, 10)
	stale, err := s.orch.Checkout(s.ctx, s.request(CartItem{TicketTypeID: tt.ID, Quantity: 2}))
	s.Require().NoError(err)
	fresh, err := s.orch.Checkout(s.ctx, s.request(CartItem{TicketTypeID: tt.ID, Quantity: 1}))
	s.Require().NoError(err)
	paid, err := s.orch.Checkout(s.ctx, s.request(CartItem{TicketTypeID: tt.ID, Quantity: 1}))
	s.Require().NoError(err)
	_, err = s.orch.MarkPaid(s.ctx, paid.Order.ID, "pi")
	s.Require().NoError(err)

	s.st.Backdate(stale.Order.ID, time.Hour)
	s.st.Backdate(paid.Order.ID, time.Hour)

	n, err := s.orch.ExpireStale(s.ctx, 30*time.Minute, 10)
	s.Require().NoError(err)
	s.Equal(1, n)

	got, err := s.orch.Get(s.ctx, s.tenant, stale.Order.ID)
	s.Require().NoError(err)
	s.Equal(types.ORDER_CANCELLED, got.Status)
	got, err = s.orch.Get(s.ctx, s.tenant, fresh.Order.ID)
	s.Require().NoError(err)
	s.Equal(types.ORDER_PENDING, got.Status)
	s.Equal(2, s.sold(tt.ID))
}

func (s *CheckoutSuite) TestCloseRereadsWhenPaidConcurrently() {
	tt := s.ticketType(1000, 10)
	dc := s.code("SAVE", types.DISCOUNT_PERCENTAGE, 10, nil)
	req := s.request(CartItem{TicketTypeID: tt.ID, Quantity: 2})
	req.DiscountCode = "SAVE"

	s.Run("failure notice loses to payment", func() {
		res, err := s.orch.Checkout(s.ctx, req)
		s.Require().NoError(err)

		_, err = s.paidUnderneath(res.Order.ID).MarkFailed(s.ctx, res.Order.ID)
		s.ErrorIs(err, apperr.ErrInvalidTransition)
		order, err := s.st.Orders().FindByID(s.ctx, res.Order.ID)
		s.Require().NoError(err)
		s.Equal(types.ORDER_PAID, order.Status)
		s.Equal(2, s.sold(tt.ID))
		s.Equal(1, s.redeemed(dc.ID))
	})

	s.Run("cancel keeps the paid redemption", func() {
		req.IdempotencyKey = "second"
		res, err := s.orch.Checkout(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(2, s.redeemed(dc.ID))

		order, err := s.paidUnderneath(res.Order.ID).Cancel(s.ctx, res.Order.ID)
		s.Require().NoError(err)
		s.Equal(types.ORDER_CANCELLED, order.Status)
		s.Equal(2, s.sold(tt.ID), "only the first order still holds inventory")
		s.Equal(2, s.redeemed(dc.ID))
	})
}

func (s *CheckoutSuite) TestHistoryByBuyerEmail() {
	tt := s.ticketType(1000, 10)
	older, err := s.orch.Checkout(s.ctx, s.request(CartItem{TicketTypeID: tt.ID, Quantity: 1}))
	s.Require().NoError(err)
	newer, err := s.orch.Checkout(s.ctx, s.request(CartItem{TicketTypeID: tt.ID, Quantity: 2}))
	s.Require().NoError(err)
	s.st.Backdate(older.Order.ID, time.Hour)

	someoneElse := s.request(CartItem{TicketTypeID: tt.ID, Quantity: 1})
	someoneElse.Buyer.Email = "grace@example.com"
	_, err = s.orch.Checkout(s.ctx, someoneElse)
	s.Require().NoError(err)

	orders, total, err := s.orch.History(s.ctx, s.tenant, " ADA@example.com ", types.Pagination{Page: 1, Limit: 1})
	s.Require().NoError(err)
	s.EqualValues(2, total)
	s.Require().Len(orders, 1)
	s.Equal(newer.Order.ID, orders[0].ID)

	orders, _, err = s.orch.History(s.ctx, s.tenant, "ada@example.com", types.Pagination{Page: 2, Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(orders, 1)
	s.Equal(older.Order.ID, orders[0].ID)

	_, total, err = s.orch.History(s.ctx, uuid.New(), "ada@example.com", types.Pagination{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Zero(total)

	_, _, err = s.orch.History(s.ctx, s.tenant, "  ", types.Pagination{Page: 1, Limit: 10})
	s.ErrorIs(err, apperr.ErrInvalidInput)
}

func (s *CheckoutSuite) TestOrderTickets() {
	tt := s.ticketType(1000, 10)
	res, err := s.orch.Checkout(s.ctx, s.request(CartItem{TicketTypeID: tt.ID, Quantity: 3}))
	s.Require().NoError(err)

	tickets, err := s.orch.Tickets(s.ctx, s.tenant, res.Order.ID)
	s.Require().NoError(err)
	s.Len(tickets, 3)
	for _, t := range tickets {
		s.Equal(res.Order.ID, t.OrderID)
		s.NotEmpty(t.ScanPayload)
	}

	_, err = s.orch.Tickets(s.ctx, uuid.New(), res.Order.ID)
	s.ErrorIs(err, apperr.ErrOrderNotFound)
}
