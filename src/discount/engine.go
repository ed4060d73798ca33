// Package discount validates discount codes and counts redemptions against
// their caps.
package discount

import (
	"context"
	"strings"
	"ticketing/src/apperr"
	"ticketing/src/models"
	"ticketing/src/store"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Result struct {
	CodeID      uuid.UUID          `json:"discount_code_id"`
	Code        string             `json:"code"`
	Type        types.DiscountType `json:"discount_type"`
	AmountCents int64              `json:"amount_cents"`
	released    bool
}

type Engine struct {
	logger *logrus.Logger
	Clock  func() time.Time
}

func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{logger: logger, Clock: time.Now}
}

// Normalize is applied to codes both when stored and when looked up.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Amount returns the discount for subtotal, never more than subtotal.
func Amount(dc *models.DiscountCode, subtotal int64) int64 {
	if subtotal <= 0 || dc.DiscountValue <= 0 {
		return 0
	}
	var amount int64
	switch dc.DiscountType {
	case types.DISCOUNT_PERCENTAGE:
		pct := min(dc.DiscountValue, 100)
		// split so large subtotals cannot overflow
		amount = subtotal/100*pct + subtotal%100*pct/100
	case types.DISCOUNT_FIXED_AMOUNT:
		amount = dc.DiscountValue
	}
	return min(amount, subtotal)
}

// lookup finds a redeemable code without consuming it.
func (e *Engine) lookup(ctx context.Context, st store.Store, eventID uuid.UUID, code string) (*models.DiscountCode, error) {
	dc, err := st.DiscountCodes().FindByCode(ctx, eventID, Normalize(code))
	if err != nil {
		return nil, apperr.FromStorage(err, apperr.ErrDiscountNotFound)
	}
	if dc.Status == types.DISCOUNT_EXPIRED || !dc.InWindow(e.Clock()) {
		return nil, apperr.ErrDiscountExpired
	}
	if dc.Status != types.DISCOUNT_ACTIVE {
		return nil, apperr.ErrDiscountInactive
	}
	if dc.CapReached() {
		return nil, apperr.ErrDiscountCapped
	}
	return dc, nil
}

func resultOf(dc *models.DiscountCode, subtotal int64) *Result {
	return &Result{
		CodeID:      dc.ID,
		Code:        dc.Code,
		Type:        dc.DiscountType,
		AmountCents: Amount(dc, subtotal),
	}
}

// Preview reports what code would take off subtotal right now. Nothing is
// redeemed, so a later checkout can still lose the last redemption.
func (e *Engine) Preview(ctx context.Context, st store.Store, eventID uuid.UUID, code string, subtotal int64) (*Result, error) {
	dc, err := e.lookup(ctx, st, eventID, code)
	if err != nil {
		return nil, err
	}
	return resultOf(dc, subtotal), nil
}

func (e *Engine) ValidateAndConsume(ctx context.Context, st store.Store, eventID uuid.UUID, code string, subtotal int64) (*Result, error) {
	dc, err := e.lookup(ctx, st, eventID, code)
	if err != nil {
		return nil, err
	}

	ok, err := st.DiscountCodes().IncrementRedeemed(ctx, dc.ID)
	if err != nil {
		return nil, apperr.FromStorage(err, nil)
	}
	if !ok {
		if cur, err := st.DiscountCodes().FindByID(ctx, dc.ID); err == nil && cur.Status != types.DISCOUNT_ACTIVE {
			return nil, apperr.ErrDiscountInactive
		}
		e.logger.WithContext(ctx).WithField("discount_code_id", dc.ID).Info("redemption rejected: cap reached")
		return nil, apperr.ErrDiscountCapped
	}
	return resultOf(dc, subtotal), nil
}

// Release reverses one redemption. Releasing twice is a no-op.
func (e *Engine) Release(ctx context.Context, st store.Store, r *Result) error {
	if r == nil || r.released {
		return nil
	}
	if err := e.ReleaseCode(ctx, st, r.CodeID); err != nil {
		return err
	}
	r.released = true
	return nil
}

// ReleaseCode reverses one redemption of a code recorded on an order.
func (e *Engine) ReleaseCode(ctx context.Context, st store.Store, codeID uuid.UUID) error {
	ok, err := st.DiscountCodes().DecrementRedeemed(ctx, codeID)
	if err != nil {
		return apperr.FromStorage(err, nil)
	}
	if !ok {
		e.logger.WithContext(ctx).WithField("discount_code_id", codeID).Warn("release found no redemption to undo")
	}
	return nil
}
