// Package payment talks to the payment gateway. The gateway confirms or
// rejects payment; order state changes happen in checkout.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"ticketing/src/models"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Gateway interface {
	CreateSession(ctx context.Context, order *models.Order, description string) (*Session, error)
}

type StripeGateway struct {
	client  *stripe.Client
	appHost string
}

func NewStripeGateway(client *stripe.Client, appHost string) *StripeGateway {
	return &StripeGateway{client: client, appHost: appHost}
}

func (g *StripeGateway) CreateSession(ctx context.Context, order *models.Order, description string) (*Session, error) {
	orderID := order.ID.String()
	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		UIMode:            stripe.String("hosted"),
		SuccessURL:        stripe.String(fmt.Sprintf("%s/orders/%s/success", g.appHost, order.PublicLookupToken)),
		CancelURL:         stripe.String(fmt.Sprintf("%s/orders/%s/cancelled", g.appHost, order.PublicLookupToken)),
		CustomerEmail:     stripe.String(order.BuyerEmail),
		ClientReferenceID: stripe.String(orderID),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(order.Currency)),
					UnitAmount: stripe.Int64(order.TotalCents),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{"order_id": orderID},
	}
	cs, err := g.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return &Session{ID: cs.ID, URL: cs.URL}, nil
}

type Outcome string

const (
	OutcomePaid    Outcome = "paid"
	OutcomeFailed  Outcome = "failed"
	OutcomeIgnored Outcome = "ignored"
)

type Result struct {
	Outcome   Outcome
	EventType string
	OrderID   uuid.UUID
	Reference string
}

var ErrSignature = errors.New("webhook signature verification failed")

// ParseWebhook verifies a Stripe webhook and maps it onto an order outcome.
func ParseWebhook(payload []byte, signature, secret string) (*Result, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSignature, err.Error())
	}
	res := &Result{Outcome: OutcomeIgnored, EventType: string(event.Type)}
	var outcome Outcome
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		outcome = OutcomePaid
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		outcome = OutcomeFailed
	default:
		return res, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("parsing checkout session: %w", err)
	}
	// completed also fires for delayed methods that have not settled yet
	if event.Type == "checkout.session.completed" && cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return res, nil
	}
	id, err := uuid.Parse(cs.Metadata["order_id"])
	if err != nil {
		return nil, fmt.Errorf("checkout session %s has no order id", cs.ID)
	}
	res.Outcome = outcome
	res.OrderID = id
	res.Reference = cs.ID
	if cs.PaymentIntent != nil && cs.PaymentIntent.ID != "" {
		res.Reference = cs.PaymentIntent.ID
	}
	return res, nil
}
