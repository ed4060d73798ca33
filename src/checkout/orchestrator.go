// Package checkout turns a cart into an order and its tickets as one unit
// of work, and drives the order through payment.
package checkout

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"strings"
	"ticketing/src/apperr"
	"ticketing/src/discount"
	"ticketing/src/inventory"
	"ticketing/src/issuer"
	"ticketing/src/models"
	"ticketing/src/notify"
	"ticketing/src/payment"
	"ticketing/src/store"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
)

type Buyer struct {
	Email string
	Name  string
}

type CartItem struct {
	TicketTypeID uuid.UUID
	Quantity     int
	// Attendees are assigned to tickets in order; missing ones fall back
	// to the buyer.
	Attendees []issuer.Attendee
}

type Request struct {
	TenantID       uuid.UUID
	EventID        uuid.UUID
	Items          []CartItem
	Buyer          Buyer
	DiscountCode   string
	IdempotencyKey string
}

type Result struct {
	Order      *models.Order
	Replayed   bool
	PaymentURL string
}

type Orchestrator struct {
	store     store.Store
	ledger    *inventory.Ledger
	discounts *discount.Engine
	issuer    *issuer.Issuer
	notifier  notify.Notifier
	gateway   payment.Gateway
	logger    *logrus.Logger
	Clock     func() time.Time
}

type Options struct {
	Ledger    *inventory.Ledger
	Discounts *discount.Engine
	Issuer    *issuer.Issuer
	Notifier  notify.Notifier
	// Gateway is optional. Without one, unpaid orders wait for markPaid.
	Gateway payment.Gateway
}

func NewOrchestrator(st store.Store, logger *logrus.Logger, opts Options) *Orchestrator {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Orchestrator{
		store:     st,
		ledger:    opts.Ledger,
		discounts: opts.Discounts,
		issuer:    opts.Issuer,
		notifier:  notifier,
		gateway:   opts.Gateway,
		logger:    logger,
		Clock:     time.Now,
	}
}

// NewLookupToken returns 16 random bytes in base58.
func NewLookupToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base58.Encode(buf), nil
}

func validate(req *Request) error {
	if len(req.Items) == 0 {
		return apperr.ErrEmptyCart
	}
	if strings.TrimSpace(req.Buyer.Email) == "" {
		return apperr.ErrInvalidInput.Withf("buyer email is required")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return apperr.ErrInvalidQty
		}
		if len(item.Attendees) > item.Quantity {
			return apperr.ErrInvalidInput.Withf("more attendees than tickets for ticket type %s", item.TicketTypeID)
		}
	}
	return nil
}

type pricedLine struct {
	item       CartItem
	ticketType *models.TicketType
	unitPrice  int64
	lineTotal  int64
}

func (o *Orchestrator) Checkout(ctx context.Context, req Request) (*Result, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}
	if req.IdempotencyKey != "" {
		existing, err := o.store.Orders().FindByIdempotencyKey(ctx, req.TenantID, req.IdempotencyKey)
		if err == nil {
			return &Result{Order: existing, Replayed: true}, nil
		}
		if err := apperr.FromStorage(err, apperr.ErrOrderNotFound); !errors.Is(err, apperr.ErrOrderNotFound) {
			return nil, err
		}
	}
	event, err := o.store.Events().FindByID(ctx, req.TenantID, req.EventID)
	if err != nil {
		return nil, apperr.FromStorage(err, apperr.ErrEventNotFound)
	}

	var order *models.Order
	err = o.store.Transaction(ctx, func(tx store.Store) error {
		lines, currency, subtotal, err := o.priceCart(ctx, tx, &req)
		if err != nil {
			return err
		}

		reservations := make([]*inventory.Reservation, 0, len(lines))
		for _, l := range lines {
			r, err := o.ledger.Reserve(ctx, tx, l.item.TicketTypeID, l.item.Quantity)
			if err != nil {
				return o.unwind(ctx, tx, err, reservations, nil)
			}
			reservations = append(reservations, r)
		}

		var redemption *discount.Result
		if code := strings.TrimSpace(req.DiscountCode); code != "" {
			redemption, err = o.discounts.ValidateAndConsume(ctx, tx, req.EventID, code, subtotal)
			if err != nil {
				return o.unwind(ctx, tx, err, reservations, nil)
			}
		}

		order, err = o.buildOrder(&req, lines, currency, subtotal, redemption)
		if err != nil {
			return o.unwind(ctx, tx, err, reservations, redemption)
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return o.unwind(ctx, tx, apperr.FromStorage(err, nil), reservations, redemption)
		}
		return nil
	})
	if err != nil {
		o.logFailure(ctx, &req, err)
		return nil, err
	}

	logger := o.logger.WithContext(ctx).WithFields(logrus.Fields{
		"tenant_id": req.TenantID,
		"order_id":  order.ID,
		"total":     order.TotalCents,
		"tickets":   len(order.Tickets),
	})
	logger.Info("order created")

	res := &Result{Order: order}
	if order.Status == types.ORDER_PAID {
		o.sendOrderConfirmation(ctx, order, event.Name)
		return res, nil
	}
	if o.gateway != nil {
		session, err := o.gateway.CreateSession(ctx, order, event.Name)
		if err != nil {
			logger.WithError(err).Warn("could not create payment session, order stays pending")
		} else {
			res.PaymentURL = session.URL
		}
	}
	return res, nil
}

// priceCart loads every ticket type once and captures its price for the
// rest of the call.
func (o *Orchestrator) priceCart(ctx context.Context, tx store.Store, req *Request) ([]pricedLine, string, int64, error) {
	lines := make([]pricedLine, 0, len(req.Items))
	currency := ""
	var subtotal int64
	for _, item := range req.Items {
		tt, err := tx.TicketTypes().FindByID(ctx, item.TicketTypeID)
		if err != nil {
			return nil, "", 0, apperr.FromStorage(err, apperr.ErrTicketTypeNotFound)
		}
		if tt.TenantID != req.TenantID || tt.EventID != req.EventID {
			return nil, "", 0, apperr.ErrTicketTypeNotFound
		}
		if currency == "" {
			currency = tt.Currency
		} else if !strings.EqualFold(currency, tt.Currency) {
			return nil, "", 0, apperr.ErrCurrencyMismatch
		}
		// quantity is validated positive before pricing
		if tt.PriceCents < 0 || tt.PriceCents > math.MaxInt64/int64(item.Quantity) {
			return nil, "", 0, apperr.ErrInvalidInput.Withf("line total for ticket type %s is out of range", item.TicketTypeID)
		}
		lineTotal := tt.PriceCents * int64(item.Quantity)
		if subtotal > math.MaxInt64-lineTotal {
			return nil, "", 0, apperr.ErrInvalidInput.Withf("cart subtotal is out of range")
		}
		subtotal += lineTotal
		lines = append(lines, pricedLine{item: item, ticketType: tt, unitPrice: tt.PriceCents, lineTotal: lineTotal})
	}
	return lines, strings.ToUpper(currency), subtotal, nil
}

func (o *Orchestrator) buildOrder(req *Request, lines []pricedLine, currency string, subtotal int64, redemption *discount.Result) (*models.Order, error) {
	token, err := NewLookupToken()
	if err != nil {
		return nil, apperr.ErrStorage.Withf("could not generate lookup token").Wrap(err)
	}
	var discountCents int64
	var codeID *uuid.UUID
	if redemption != nil {
		discountCents = redemption.AmountCents
		codeID = &redemption.CodeID
	}
	total := max(subtotal-discountCents, 0)
	now := o.Clock().UTC()

	order := &models.Order{
		ID:                uuid.New(),
		TenantID:          req.TenantID,
		EventID:           req.EventID,
		BuyerEmail:        strings.TrimSpace(req.Buyer.Email),
		BuyerName:         strings.TrimSpace(req.Buyer.Name),
		SubtotalCents:     subtotal,
		DiscountCents:     discountCents,
		TotalCents:        total,
		Currency:          currency,
		Status:            types.ORDER_PENDING,
		PublicLookupToken: token,
		DiscountCodeID:    codeID,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		order.IdempotencyKey = &key
	}
	paid := total == 0
	if paid {
		order.Status = types.ORDER_PAID
		order.PaidAt = &now
	}

	buyer := issuer.Attendee{Name: order.BuyerName, Email: order.BuyerEmail}
	for pos, l := range lines {
		item := models.OrderItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			TicketTypeID:   l.item.TicketTypeID,
			Position:       pos,
			UnitPriceCents: l.unitPrice,
			Quantity:       l.item.Quantity,
			SubtotalCents:  l.lineTotal,
		}
		order.Items = append(order.Items, item)
		for i := 0; i < l.item.Quantity; i++ {
			attendee := buyer
			if i < len(l.item.Attendees) {
				attendee = l.item.Attendees[i]
				if attendee.Email == "" {
					attendee.Email = buyer.Email
				}
				if attendee.Name == "" {
					attendee.Name = buyer.Name
				}
			}
			ticket, err := o.issuer.Mint(issuer.MintRequest{
				TenantID:     req.TenantID,
				EventID:      req.EventID,
				OrderID:      order.ID,
				OrderItemID:  item.ID,
				TicketTypeID: l.item.TicketTypeID,
				Attendee:     attendee,
				Paid:         paid,
			})
			if err != nil {
				return nil, err
			}
			order.Tickets = append(order.Tickets, *ticket)
		}
	}
	return order, nil
}

// unwind gives back what this call claimed and returns cause. After a
// storage failure the transaction is unusable, so the rollback alone
// restores the counters.
func (o *Orchestrator) unwind(ctx context.Context, tx store.Store, cause error, rs []*inventory.Reservation, redemption *discount.Result) error {
	switch apperr.KindOf(cause) {
	case apperr.Infrastructure, apperr.Conflict:
		return cause
	}
	if err := o.ledger.ReleaseAll(ctx, tx, rs); err != nil {
		o.logger.WithContext(ctx).WithError(err).Error("could not release reservations")
	}
	if err := o.discounts.Release(ctx, tx, redemption); err != nil {
		o.logger.WithContext(ctx).WithError(err).Error("could not release discount redemption")
	}
	return cause
}

func (o *Orchestrator) logFailure(ctx context.Context, req *Request, err error) {
	entry := o.logger.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
		"tenant_id": req.TenantID,
		"event_id":  req.EventID,
	})
	switch apperr.KindOf(err) {
	case apperr.Infrastructure:
		entry.Error("checkout failed")
	case apperr.Conflict:
		entry.Warn("checkout conflict")
	default:
		entry.Info("checkout rejected")
	}
}

func (o *Orchestrator) sendOrderConfirmation(ctx context.Context, order *models.Order, eventName string) {
	summaries := make([]notify.TicketSummary, 0, len(order.Tickets))
	for _, t := range order.Tickets {
		summaries = append(summaries, notify.TicketSummary{
			ID:           t.ID.String(),
			TicketTypeID: t.TicketTypeID.String(),
			AttendeeName: t.AttendeeName,
		})
	}
	o.notifier.SendOrderConfirmation(ctx, notify.OrderConfirmation{
		To:          order.BuyerEmail,
		Name:        order.BuyerName,
		EventName:   eventName,
		OrderID:     order.ID.String(),
		LookupToken: order.PublicLookupToken,
		Tickets:     summaries,
	})
}
