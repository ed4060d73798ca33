package main

import (
	"net/http"
	"ticketing/src/apperr"
	"ticketing/src/checkout"
	"ticketing/src/issuer"
	"ticketing/src/middlewares"
	"ticketing/src/models"
	"ticketing/src/types"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// publicHandlers need no token.
func (app *application) publicHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/orders/lookup/:token", func(ctx *gin.Context) {
			var params types.TokenURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				abortWithError(ctx, apperr.ErrOrderNotFound)
				return
			}
			order, err := app.checkout.Lookup(ctx, params.Token)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		})
	return g
}

func (app *application) checkoutHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/checkout", func(ctx *gin.Context) {
			var body types.CheckoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				badRequest(ctx, err)
				return
			}
			req := checkout.Request{
				TenantID: middlewares.TenantID(ctx),
				EventID:  body.EventID,
				Buyer:    checkout.Buyer{Email: body.BuyerEmail, Name: body.BuyerName},
			}
			if body.DiscountCode != nil {
				req.DiscountCode = *body.DiscountCode
			}
			if body.IdempotencyKey != nil {
				req.IdempotencyKey = *body.IdempotencyKey
			}
			for _, item := range body.Items {
				ci := checkout.CartItem{TicketTypeID: item.TicketTypeID, Quantity: item.Quantity}
				for _, a := range item.Attendees {
					ci.Attendees = append(ci.Attendees, issuer.Attendee{Name: a.Name, Email: a.Email})
				}
				req.Items = append(req.Items, ci)
			}

			res, err := app.checkout.Checkout(ctx, req)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			status := http.StatusCreated
			if res.Replayed {
				status = http.StatusOK
			}
			ctx.JSON(status, gin.H{
				"data":         res.Order,
				"ticket_count": len(res.Order.Tickets),
				"payment_url":  res.PaymentURL,
			})
		}).
		POST("/discount-codes/validate", func(ctx *gin.Context) {
			var body types.DiscountPreviewRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				badRequest(ctx, err)
				return
			}
			event, err := app.store.Events().FindByID(ctx, middlewares.TenantID(ctx), body.EventID)
			if err != nil {
				abortWithError(ctx, apperr.FromStorage(err, apperr.ErrEventNotFound))
				return
			}
			res, err := app.discount.Preview(ctx, app.store, event.ID, body.Code, body.SubtotalCents)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"data":        res,
				"total_cents": body.SubtotalCents - res.AmountCents,
			})
		}).
		GET("/events/slug/:slug", func(ctx *gin.Context) {
			var params types.SlugURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				badRequest(ctx, err)
				return
			}
			event, err := app.store.Events().FindBySlug(ctx, middlewares.TenantID(ctx), params.Slug)
			if err != nil {
				abortWithError(ctx, apperr.FromStorage(err, apperr.ErrEventNotFound))
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		}).
		GET("/orders", func(ctx *gin.Context) {
			var query types.OrderHistoryQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				badRequest(ctx, err)
				return
			}
			orders, total, err := app.checkout.History(ctx, middlewares.TenantID(ctx), query.BuyerEmail, query.Pagination)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": orders, "count": total})
		}).
		GET("/orders/:id", func(ctx *gin.Context) {
			id, ok := uriID(ctx)
			if !ok {
				return
			}
			order, err := app.checkout.Get(ctx, middlewares.TenantID(ctx), id)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		GET("/orders/:id/tickets", func(ctx *gin.Context) {
			id, ok := uriID(ctx)
			if !ok {
				return
			}
			tickets, err := app.checkout.Tickets(ctx, middlewares.TenantID(ctx), id)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets, "count": len(tickets)})
		}).
		GET("/ticket-types/:id/inventory", func(ctx *gin.Context) {
			id, ok := uriID(ctx)
			if !ok {
				return
			}
			status, err := app.ledger.Status(ctx, app.store, middlewares.TenantID(ctx), id)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": status})
		})
	return g
}

func (app *application) orderAdminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	transition := func(apply func(ctx *gin.Context, order *models.Order) (*models.Order, error)) gin.HandlerFunc {
		return func(ctx *gin.Context) {
			id, ok := uriID(ctx)
			if !ok {
				return
			}
			order, err := app.checkout.Get(ctx, middlewares.TenantID(ctx), id)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			order, err = apply(ctx, order)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			app.logger.WithContext(ctx).WithFields(logrus.Fields{
				"order_id": order.ID,
				"status":   order.Status,
				"actor_id": middlewares.ActorID(ctx),
			}).Info("order updated by operator")
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}
	}
	g.
		POST("/orders/:id/paid", transition(func(ctx *gin.Context, order *models.Order) (*models.Order, error) {
			var body types.MarkPaidRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				return nil, apperr.ErrInvalidInput.Withf("%s", err.Error())
			}
			return app.checkout.MarkPaid(ctx, order.ID, body.Reference)
		})).
		POST("/orders/:id/failed", transition(func(ctx *gin.Context, order *models.Order) (*models.Order, error) {
			return app.checkout.MarkFailed(ctx, order.ID)
		})).
		POST("/orders/:id/refund", transition(func(ctx *gin.Context, order *models.Order) (*models.Order, error) {
			return app.checkout.Refund(ctx, order.ID)
		})).
		POST("/orders/:id/cancel", transition(func(ctx *gin.Context, order *models.Order) (*models.Order, error) {
			return app.checkout.Cancel(ctx, order.ID)
		}))
	return g
}
