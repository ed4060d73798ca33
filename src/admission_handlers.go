package main

import (
	"net/http"
	"ticketing/src/audit"
	"ticketing/src/checkin"
	"ticketing/src/middlewares"
	"ticketing/src/models"
	"ticketing/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// publicTicket drops the scan payload so it is never echoed back to the
// gate or staff screens.
func publicTicket(t *models.Ticket) *models.Ticket {
	c := *t
	c.ScanPayload = ""
	return &c
}

func publicTickets(ts []models.Ticket) []*models.Ticket {
	out := make([]*models.Ticket, 0, len(ts))
	for i := range ts {
		out = append(out, publicTicket(&ts[i]))
	}
	return out
}

func optionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

func (app *application) admissionHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/check-in", func(ctx *gin.Context) {
			var body types.CheckinRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				badRequest(ctx, err)
				return
			}
			res, err := app.checkin.CheckIn(ctx, checkin.Scan{
				TenantID: middlewares.TenantID(ctx),
				ActorID:  middlewares.ActorID(ctx),
				Payload:  body.Payload,
			})
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"message": "Ticket checked in successfully",
				"ticket":  publicTicket(res.Ticket),
			})
		}).
		GET("/attendance", func(ctx *gin.Context) {
			var query types.AttendanceQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				badRequest(ctx, err)
				return
			}
			tickets, total, err := app.checkin.Attendance(ctx, middlewares.TenantID(ctx), optionalUUID(query.EventID), query.Pagination)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": publicTickets(tickets), "count": total})
		}).
		GET("/audit-logs", func(ctx *gin.Context) {
			var query types.AuditLogQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				badRequest(ctx, err)
				return
			}
			entries, total, err := app.audit.List(ctx, app.store, audit.Query{
				TenantID:   middlewares.TenantID(ctx),
				ActorID:    query.ActorID,
				Action:     types.AuditAction(query.Action),
				TicketID:   optionalUUID(query.TicketID),
				Pagination: query.Pagination,
			})
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entries, "count": total})
		})
	return g
}
