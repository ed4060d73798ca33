// Package issuer mints tickets and their signed scan payloads.
package issuer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"ticketing/src/apperr"
	"ticketing/src/models"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/yeqown/go-qrcode"
)

type Attendee struct {
	Name  string
	Email string
}

type MintRequest struct {
	TenantID     uuid.UUID
	EventID      uuid.UUID
	OrderID      uuid.UUID
	OrderItemID  uuid.UUID
	TicketTypeID uuid.UUID
	Attendee     Attendee
	// Paid orders mint ACTIVE tickets; unpaid ones mint PENDING.
	Paid bool
}

type Issuer struct {
	signer *Signer
	Clock  func() time.Time
}

func NewIssuer(signer *Signer) *Issuer {
	return &Issuer{signer: signer, Clock: time.Now}
}

func (i *Issuer) Signer() *Signer {
	return i.signer
}

func (i *Issuer) Mint(req MintRequest) (*models.Ticket, error) {
	id := uuid.New()
	issuedAt := i.Clock().UTC()
	payload, err := i.signer.Sign(req.TenantID, id, req.EventID, issuedAt)
	if err != nil {
		return nil, apperr.ErrStorage.Withf("could not sign ticket").Wrap(err)
	}
	status := types.TICKET_PENDING
	if req.Paid {
		status = types.TICKET_ACTIVE
	}
	return &models.Ticket{
		ID:            id,
		TenantID:      req.TenantID,
		EventID:       req.EventID,
		OrderID:       req.OrderID,
		OrderItemID:   req.OrderItemID,
		TicketTypeID:  req.TicketTypeID,
		AttendeeName:  req.Attendee.Name,
		AttendeeEmail: req.Attendee.Email,
		ScanPayload:   payload,
		Status:        status,
		IssuedAt:      issuedAt,
	}, nil
}

// Resolve finds the ticket id a scan refers to. A bare UUID is a manual
// entry; anything else must decode as a scan payload.
func Resolve(payload string) (ticketID uuid.UUID, signed bool, err error) {
	raw := strings.TrimSpace(payload)
	if id, err := uuid.Parse(raw); err == nil {
		return id, false, nil
	}
	claims, err := Peek(raw)
	if err != nil {
		return uuid.Nil, false, apperr.ErrInvalidPayload.Wrap(err)
	}
	id, err := uuid.Parse(claims.TicketID)
	if err != nil {
		return uuid.Nil, false, apperr.ErrInvalidPayload.Wrap(err)
	}
	return id, true, nil
}

// RenderQRCode writes the ticket's payload as a JPEG under dir.
func RenderQRCode(ticket *models.Ticket, dir string) (string, error) {
	qrc, err := qrcode.New(ticket.ScanPayload)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.jpeg", ticket.ID.String()))
	if err := qrc.Save(path); err != nil {
		return "", err
	}
	return path, nil
}
