package issuer

import (
	"os"
	"strings"
	"testing"
	"ticketing/src/apperr"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(paid bool) MintRequest {
	return MintRequest{
		TenantID:     uuid.New(),
		EventID:      uuid.New(),
		OrderID:      uuid.New(),
		OrderItemID:  uuid.New(),
		TicketTypeID: uuid.New(),
		Attendee:     Attendee{Name: "Ada", Email: "ada@example.com"},
		Paid:         paid,
	}
}

func TestMintRoundTrip(t *testing.T) {
	iss := NewIssuer(NewSigner("secret"))
	req := newRequest(true)

	ticket, err := iss.Mint(req)
	require.NoError(t, err)
	assert.Equal(t, types.TICKET_ACTIVE, ticket.Status)
	assert.NotEqual(t, uuid.Nil, ticket.ID)

	claims, err := iss.Signer().Verify(req.TenantID, ticket.ScanPayload)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID.String(), claims.TicketID)
	assert.Equal(t, req.EventID.String(), claims.EventID)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, 2*time.Second)

	id, signed, err := Resolve(ticket.ScanPayload)
	require.NoError(t, err)
	assert.True(t, signed)
	assert.Equal(t, ticket.ID, id)
}

func TestMintPendingForUnpaidOrders(t *testing.T) {
	iss := NewIssuer(NewSigner("secret"))
	ticket, err := iss.Mint(newRequest(false))
	require.NoError(t, err)
	assert.Equal(t, types.TICKET_PENDING, ticket.Status)
}

func TestVerifyRejectsTampering(t *testing.T) {
	iss := NewIssuer(NewSigner("secret"))
	req := newRequest(true)
	ticket, err := iss.Mint(req)
	require.NoError(t, err)

	parts := strings.Split(ticket.ScanPayload, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = iss.Signer().Verify(req.TenantID, tampered)
	assert.Error(t, err)

	_, err = iss.Signer().Verify(uuid.New(), ticket.ScanPayload)
	assert.Error(t, err, "another tenant's key must not verify")

	_, err = NewSigner("other").Verify(req.TenantID, ticket.ScanPayload)
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	id := uuid.New()
	got, signed, err := Resolve("  " + id.String() + " ")
	require.NoError(t, err)
	assert.False(t, signed)
	assert.Equal(t, id, got)

	_, _, err = Resolve("not-a-ticket")
	assert.ErrorIs(t, err, apperr.ErrInvalidPayload)
}

func TestRenderQRCode(t *testing.T) {
	iss := NewIssuer(NewSigner("secret"))
	ticket, err := iss.Mint(newRequest(true))
	require.NoError(t, err)

	path, err := RenderQRCode(ticket, t.TempDir())
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
