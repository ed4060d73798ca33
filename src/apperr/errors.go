// Package apperr carries the machine-readable failure kinds surfaced by the
// ticketing core.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

type Kind string

const (
	Validation     Kind = "VALIDATION"
	BusinessRule   Kind = "BUSINESS_RULE"
	NotFound       Kind = "NOT_FOUND"
	Conflict       Kind = "CONFLICT"
	Integrity      Kind = "INTEGRITY"
	Infrastructure Kind = "INFRASTRUCTURE"
)

type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code so wrapped copies compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

// Withf returns a copy of e with a more specific message.
func (e *Error) Withf(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

var (
	ErrInvalidInput = New(Validation, "INVALID_INPUT", "invalid input")
	ErrEmptyCart    = New(Validation, "EMPTY_CART", "cart is empty")
	ErrInvalidQty   = New(Validation, "INVALID_QUANTITY", "quantity must be greater than zero")

	ErrOutOfStock        = New(BusinessRule, "OUT_OF_STOCK", "not enough tickets left")
	ErrTicketTypeClosed  = New(BusinessRule, "TICKET_TYPE_CLOSED", "ticket type is not on sale")
	ErrSalesWindowClosed = New(BusinessRule, "SALES_WINDOW_CLOSED", "ticket sales are closed")
	ErrDiscountInactive  = New(BusinessRule, "DISCOUNT_INACTIVE", "discount code is not active")
	ErrDiscountExpired   = New(BusinessRule, "DISCOUNT_EXPIRED", "discount code is expired")
	ErrDiscountCapped    = New(BusinessRule, "DISCOUNT_CAP_REACHED", "discount code redemption limit reached")
	ErrAlreadyUsed       = New(BusinessRule, "ALREADY_USED", "ticket already scanned")
	ErrNotAdmissible     = New(BusinessRule, "NOT_ADMISSIBLE", "ticket is not active")
	ErrInvalidTransition = New(BusinessRule, "INVALID_TRANSITION", "order cannot change to the requested status")
	ErrCurrencyMismatch  = New(BusinessRule, "CURRENCY_MISMATCH", "cart items must share one currency")

	ErrEventNotFound      = New(NotFound, "EVENT_NOT_FOUND", "event not found")
	ErrTicketTypeNotFound = New(NotFound, "TICKET_TYPE_NOT_FOUND", "ticket type not found")
	ErrDiscountNotFound   = New(NotFound, "DISCOUNT_NOT_FOUND", "discount code not found")
	ErrOrderNotFound      = New(NotFound, "ORDER_NOT_FOUND", "order not found")
	ErrTicketNotFound     = New(NotFound, "TICKET_NOT_FOUND", "ticket not found")

	ErrDuplicate = New(Conflict, "DUPLICATE", "resource already exists")

	ErrInvalidPayload = New(Integrity, "INVALID_PAYLOAD", "scan payload failed verification")

	ErrStorage = New(Infrastructure, "STORAGE_UNAVAILABLE", "storage unavailable")
)

// FromStorage translates gorm errors. Callers pass the not-found sentinel
// appropriate for the entity they queried.
func FromStorage(err error, notFound *Error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if notFound != nil {
			return notFound.Wrap(err)
		}
		return ErrStorage.Wrap(err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate.Wrap(err)
	default:
		return ErrStorage.Wrap(err)
	}
}

// KindOf reports the kind of err, or Infrastructure for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Infrastructure
}

// HTTPStatus maps err onto a response code.
func HTTPStatus(err error) int {
	if errors.Is(err, ErrNotAdmissible) {
		return http.StatusConflict
	}
	switch KindOf(err) {
	case Validation, BusinessRule:
		return http.StatusBadRequest
	case NotFound, Integrity:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Body renders err for a JSON response.
func Body(err error) map[string]any {
	var ae *Error
	if errors.As(err, &ae) {
		return map[string]any{"error": ae.Message, "kind": ae.Kind, "code": ae.Code}
	}
	return map[string]any{"error": "internal error", "kind": Infrastructure, "code": ErrStorage.Code}
}
