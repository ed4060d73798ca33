// Package notify delivers attendee notifications off the request path.
// Nothing here ever fails a checkout or a check-in.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"ticketing/src/types"
	"time"

	"github.com/sirupsen/logrus"
)

type CheckinConfirmation struct {
	To        string
	Name      string
	EventName string
}

type TicketSummary struct {
	ID           string `json:"id"`
	TicketTypeID string `json:"ticket_type_id"`
	AttendeeName string `json:"attendee_name"`
}

type OrderConfirmation struct {
	To          string
	Name        string
	EventName   string
	OrderID     string
	LookupToken string
	Tickets     []TicketSummary
}

type Notifier interface {
	SendCheckinConfirmation(ctx context.Context, n CheckinConfirmation)
	SendOrderConfirmation(ctx context.Context, n OrderConfirmation)
}

// Message is the backend-neutral form of a notification.
type Message struct {
	Kind     string
	To       []string
	FromName string
	From     string
	Subject  string
	Body     string
	Data     types.JSONB
}

func (m Message) JSONB() types.JSONB {
	return types.JSONB{
		"kind":      m.Kind,
		"from":      m.From,
		"from-name": m.FromName,
		"to":        m.To,
		"subject":   m.Subject,
		"body":      m.Body,
		"html":      false,
		"data":      m.Data,
	}
}

type Backend interface {
	Name() string
	Deliver(ctx context.Context, m Message) error
}

type Options struct {
	From      string
	FromName  string
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Dispatcher queues messages for a small worker pool. When the queue is
// full the message is dropped and logged.
type Dispatcher struct {
	backend Backend
	logger  *logrus.Logger
	opts    Options
	queue   chan Message
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

func NewDispatcher(backend Backend, logger *logrus.Logger, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	d := &Dispatcher{
		backend: backend,
		logger:  logger,
		opts:    opts,
		queue:   make(chan Message, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for m := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
		if err := d.backend.Deliver(ctx, m); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"backend": d.backend.Name(),
				"kind":    m.Kind,
			}).Warn("notification not delivered")
		}
		cancel()
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, m Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- m:
	default:
		d.logger.WithContext(ctx).WithField("kind", m.Kind).Warn("notification queue full, dropping message")
	}
}

// Close stops accepting messages and waits for queued ones to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) SendCheckinConfirmation(ctx context.Context, n CheckinConfirmation) {
	if n.To == "" {
		return
	}
	d.enqueue(ctx, Message{
		Kind:     "checkin_confirmation",
		To:       []string{n.To},
		From:     d.opts.From,
		FromName: d.opts.FromName,
		Subject:  fmt.Sprintf("Welcome to %s", n.EventName),
		Body:     fmt.Sprintf("Hi %s,\n\nYou have been checked in to %s. Enjoy the event!\n", n.Name, n.EventName),
		Data:     types.JSONB{"event_name": n.EventName, "name": n.Name},
	})
}

func (d *Dispatcher) SendOrderConfirmation(ctx context.Context, n OrderConfirmation) {
	if n.To == "" {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nYour order %s for %s is confirmed.\n\n", n.Name, n.OrderID, n.EventName)
	for _, t := range n.Tickets {
		fmt.Fprintf(&b, "  Ticket %s (%s)\n", t.ID, t.AttendeeName)
	}
	fmt.Fprintf(&b, "\nLookup code: %s\n", n.LookupToken)
	d.enqueue(ctx, Message{
		Kind:     "order_confirmation",
		To:       []string{n.To},
		From:     d.opts.From,
		FromName: d.opts.FromName,
		Subject:  fmt.Sprintf("Your tickets for %s", n.EventName),
		Body:     b.String(),
		Data: types.JSONB{
			"order_id":     n.OrderID,
			"event_name":   n.EventName,
			"lookup_token": n.LookupToken,
			"tickets":      n.Tickets,
		},
	})
}

// Discard drops every notification.
type Discard struct{}

func (Discard) SendCheckinConfirmation(context.Context, CheckinConfirmation) {}
func (Discard) SendOrderConfirmation(context.Context, OrderConfirmation)     {}
