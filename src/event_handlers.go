package main

import (
	"net/http"
	"ticketing/src/apperr"
	"ticketing/src/discount"
	"ticketing/src/models"
	"ticketing/src/middlewares"
	"ticketing/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

func (app *application) eventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/events", func(ctx *gin.Context) {
			var body types.CreateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				badRequest(ctx, err)
				return
			}
			if body.StartsAt != nil && body.EndsAt != nil && body.EndsAt.Before(*body.StartsAt) {
				abortWithError(ctx, apperr.ErrInvalidInput.Withf("ends_at must not be before starts_at"))
				return
			}
			event := models.Event{
				ID:       uuid.New(),
				TenantID: middlewares.TenantID(ctx),
				Name:     body.Name,
				Slug:     slug.Make(body.Name),
				Venue:    body.Venue,
				StartsAt: body.StartsAt,
				EndsAt:   body.EndsAt,
				Status:   types.EVENT_PUBLISHED,
			}
			if err := app.store.Events().Create(ctx, &event); err != nil {
				app.logger.WithError(err).Error("Error creating Event")
				abortWithError(ctx, apperr.FromStorage(err, nil))
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": event})
		}).
		GET("/events/:id", func(ctx *gin.Context) {
			event, ok := app.bindEvent(ctx)
			if !ok {
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		}).
		POST("/events/:id/ticket-types", func(ctx *gin.Context) {
			event, ok := app.bindEvent(ctx)
			if !ok {
				return
			}
			var body types.CreateTicketTypeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				badRequest(ctx, err)
				return
			}
			if body.SalesStart != nil && body.SalesEnd != nil && body.SalesEnd.Before(*body.SalesStart) {
				abortWithError(ctx, apperr.ErrInvalidInput.Withf("sales_end must not be before sales_start"))
				return
			}
			currency := body.Currency
			if currency == "" {
				currency = "USD"
			}
			status := types.TicketTypeStatus(body.Status)
			if status == "" {
				status = types.TICKET_TYPE_ACTIVE
			}
			tt := models.TicketType{
				ID:            uuid.New(),
				TenantID:      event.TenantID,
				EventID:       event.ID,
				Name:          body.Name,
				PriceCents:    body.PriceCents,
				Currency:      currency,
				QuantityTotal: body.QuantityTotal,
				SalesStart:    body.SalesStart,
				SalesEnd:      body.SalesEnd,
				Status:        status,
			}
			if err := app.store.TicketTypes().Create(ctx, &tt); err != nil {
				app.logger.WithError(err).Error("Error creating TicketType")
				abortWithError(ctx, apperr.FromStorage(err, nil))
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": tt})
		}).
		GET("/events/:id/ticket-types", func(ctx *gin.Context) {
			event, ok := app.bindEvent(ctx)
			if !ok {
				return
			}
			tts, err := app.store.TicketTypes().ListByEvent(ctx, event.TenantID, event.ID)
			if err != nil {
				abortWithError(ctx, apperr.FromStorage(err, nil))
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tts})
		}).
		POST("/events/:id/discount-codes", func(ctx *gin.Context) {
			event, ok := app.bindEvent(ctx)
			if !ok {
				return
			}
			var body types.CreateDiscountCodeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				badRequest(ctx, err)
				return
			}
			if body.StartsAt != nil && body.ExpiresAt != nil && body.ExpiresAt.Before(*body.StartsAt) {
				abortWithError(ctx, apperr.ErrInvalidInput.Withf("expires_at must not be before starts_at"))
				return
			}
			kind := types.DiscountType(body.DiscountType)
			if kind == types.DISCOUNT_PERCENTAGE && body.DiscountValue > 100 {
				abortWithError(ctx, apperr.ErrInvalidInput.Withf("percentage discount must be between 0 and 100"))
				return
			}
			dc := models.DiscountCode{
				ID:             uuid.New(),
				TenantID:       event.TenantID,
				EventID:        event.ID,
				Code:           discount.Normalize(body.Code),
				Description:    body.Description,
				DiscountType:   kind,
				DiscountValue:  body.DiscountValue,
				MaxRedemptions: body.MaxRedemptions,
				StartsAt:       body.StartsAt,
				ExpiresAt:      body.ExpiresAt,
				Status:         types.DISCOUNT_ACTIVE,
			}
			if err := app.store.DiscountCodes().Create(ctx, &dc); err != nil {
				err = apperr.FromStorage(err, nil)
				if apperr.KindOf(err) != apperr.Conflict {
					app.logger.WithError(err).Error("Error creating DiscountCode")
				}
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": dc})
		})
	return g
}

// bindEvent loads the :id event of the caller's tenant or aborts.
func (app *application) bindEvent(ctx *gin.Context) (*models.Event, bool) {
	id, ok := uriID(ctx)
	if !ok {
		return nil, false
	}
	event, err := app.store.Events().FindByID(ctx, middlewares.TenantID(ctx), id)
	if err != nil {
		abortWithError(ctx, apperr.FromStorage(err, apperr.ErrEventNotFound))
		return nil, false
	}
	return event, true
}

func uriID(ctx *gin.Context) (uuid.UUID, bool) {
	var params types.IDURIParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		badRequest(ctx, err)
		return uuid.Nil, false
	}
	return uuid.MustParse(params.ID), true
}
