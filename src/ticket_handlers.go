package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"ticketing/src/apperr"
	"ticketing/src/issuer"
	"ticketing/src/middlewares"
	"ticketing/src/models"
	"ticketing/src/types"

	"github.com/gin-gonic/gin"
)

func (app *application) ticketHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/tickets", func(ctx *gin.Context) {
			var query types.AttendanceQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				badRequest(ctx, err)
				return
			}
			tickets, total, err := app.checkin.List(ctx, middlewares.TenantID(ctx), optionalUUID(query.EventID), query.Pagination)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": publicTickets(tickets), "count": total})
		}).
		GET("/tickets/search", func(ctx *gin.Context) {
			var query types.TicketSearchQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				badRequest(ctx, err)
				return
			}
			tickets, total, err := app.checkin.Search(ctx, middlewares.TenantID(ctx), query.Q, query.Pagination)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": publicTickets(tickets), "count": total})
		}).
		GET("/tickets/:id", func(ctx *gin.Context) {
			id, ok := uriID(ctx)
			if !ok {
				return
			}
			ticket, err := app.checkin.Ticket(ctx, middlewares.TenantID(ctx), id)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": publicTicket(ticket)})
		}).
		POST("/tickets/:id/cancel", func(ctx *gin.Context) {
			id, ok := uriID(ctx)
			if !ok {
				return
			}
			ticket, err := app.checkin.CancelTicket(ctx, middlewares.TenantID(ctx), middlewares.ActorID(ctx), id)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": publicTicket(ticket)})
		}).
		GET("/tickets/:id/qrcode", func(ctx *gin.Context) {
			id, ok := uriID(ctx)
			if !ok {
				return
			}
			ticket, err := app.checkin.Ticket(ctx, middlewares.TenantID(ctx), id)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			if ticket.Status == types.TICKET_CANCELLED {
				abortWithError(ctx, apperr.ErrNotAdmissible.Withf("ticket is cancelled"))
				return
			}
			codePath, err := app.ticketCode(ctx, ticket)
			if err != nil {
				app.logger.WithError(err).WithField("ticket_id", ticket.ID).Error("Error rendering ticket code")
				abortWithError(ctx, err)
				return
			}
			ctx.FileAttachment(codePath, "eticket.jpeg")
		})
	return g
}

// ticketCode returns a local path to the ticket's QR image. Rendered codes
// are archived to the assets bucket when one is configured and fetched from
// there on later requests.
func (app *application) ticketCode(ctx context.Context, ticket *models.Ticket) (string, error) {
	dir := filepath.Join(app.cfg.TempDir, "ticketcodes")
	local := filepath.Join(dir, fmt.Sprintf("%s.jpeg", ticket.ID.String()))
	if _, err := os.Stat(local); err == nil {
		return local, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	key := fmt.Sprintf("ticketcodes/%s/%s.jpeg", ticket.TenantID, ticket.ID)
	if app.assets != nil {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		found, err := app.assets.Download(ctx, key, local)
		if err != nil {
			app.logger.WithError(err).WithField("key", key).Warn("could not fetch ticket code from assets bucket")
		}
		if found {
			return local, nil
		}
	}

	path, err := issuer.RenderQRCode(ticket, dir)
	if err != nil {
		return "", err
	}
	if app.assets != nil {
		if err := app.assets.Upload(ctx, key, path); err != nil {
			app.logger.WithError(err).WithField("key", key).Warn("could not archive ticket code")
		}
	}
	return path, nil
}
