package main

import (
	"errors"
	"io"
	"net/http"
	"ticketing/src/apperr"
	"ticketing/src/payment"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxWebhookBody = int64(65536)

func (app *application) stripeWebhookRoute(g *gin.RouterGroup) *gin.RouterGroup {
	g.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBody))
		if err != nil {
			app.logger.WithError(err).Error("Error reading request body")
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		res, err := payment.ParseWebhook(payload, ctx.GetHeader("Stripe-Signature"), app.cfg.StripeWebhookSecret)
		if err != nil {
			app.logger.WithError(err).Warn("Error verifying webhook")
			ctx.Status(http.StatusBadRequest)
			return
		}
		log := app.logger.WithFields(logrus.Fields{"stripe_event": res.EventType, "order_id": res.OrderID})
		switch res.Outcome {
		case payment.OutcomePaid:
			_, err = app.checkout.MarkPaid(ctx, res.OrderID, res.Reference)
		case payment.OutcomeFailed:
			_, err = app.checkout.MarkFailed(ctx, res.OrderID)
		default:
			log.Debug("stripe event ignored")
			ctx.Status(http.StatusOK)
			return
		}
		if err != nil {
			// Stripe retries non-2xx responses, which only helps when
			// storage was the problem.
			if errors.Is(err, apperr.ErrOrderNotFound) || errors.Is(err, apperr.ErrInvalidTransition) {
				log.WithError(err).Warn("stripe event not applied")
				ctx.Status(http.StatusOK)
				return
			}
			log.WithError(err).Error("stripe event failed")
			ctx.Status(http.StatusInternalServerError)
			return
		}
		log.Info("stripe event applied")
		ctx.Status(http.StatusOK)
	})
	return g
}
