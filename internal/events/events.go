// Package events carries notifications of booking-lifecycle state changes
// out to interested listeners (metrics, audit logging, notification fanout)
// without the Orchestrator knowing who's listening. Grounded on the
// teacher's pkg/concurrent.SafeGo panic-isolation helper, used here to keep
// one misbehaving handler from taking down a command handler's response
// path.
package events

import (
	"context"
	"time"

	"tutoring-platform/internal/models"
	"tutoring-platform/pkg/concurrent"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Type names a kind of lifecycle event a Dispatcher can carry.
type Type string

const (
	BookingCreated     Type = "booking.created"
	BookingConfirmed   Type = "booking.confirmed"
	BookingCancelled   Type = "booking.cancelled"
	BookingDeclined    Type = "booking.declined"
	BookingRescheduled Type = "booking.rescheduled"
	SessionStarted     Type = "session.started"
	SessionEnded       Type = "session.ended"
	PaymentCaptured    Type = "payment.captured"
	RefundIssued       Type = "refund.issued"
	DisputeOpened      Type = "dispute.opened"
	DisputeResolved    Type = "dispute.resolved"
)

// Event is the single envelope passed to every handler. Payload carries
// event-specific detail as a plain map rather than a type per event kind,
// since handlers (metrics counters, audit rows) only ever project out a
// couple of fields.
type Event struct {
	Type      Type
	BookingID uuid.UUID
	At        time.Time
	Payload   map[string]any
}

// Handler reacts to one event. Handlers must not assume ordering relative
// to other handlers of the same event.
type Handler func(ctx context.Context, evt Event)

// registration pairs a handler with the priority it was registered at;
// lower priority numbers run first in Wait mode.
type registration struct {
	priority int
	handler  Handler
}

// Dispatcher fans an Event out to every handler registered for its Type.
// Not safe for concurrent Subscribe calls after Publish has started; build
// the full handler set at startup before serving traffic, the same way the
// teacher wires its HTTP routes once in cmd/server/main.go before
// ListenAndServe.
type Dispatcher struct {
	handlers map[Type][]registration
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Type][]registration)}
}

// Subscribe registers handler for evt, ordered by priority (ascending).
func (d *Dispatcher) Subscribe(evt Type, priority int, handler Handler) {
	d.handlers[evt] = append(d.handlers[evt], registration{priority: priority, handler: handler})
	handlers := d.handlers[evt]
	for i := 1; i < len(handlers); i++ {
		for j := i; j > 0 && handlers[j-1].priority > handlers[j].priority; j-- {
			handlers[j-1], handlers[j] = handlers[j], handlers[j-1]
		}
	}
}

// Wait runs every handler for evt.Type synchronously, in priority order,
// isolating each from the others' panics. Use for handlers whose completion
// the caller depends on (e.g. an audit-log write that must land before the
// HTTP response is sent).
func (d *Dispatcher) Wait(ctx context.Context, evt Event) {
	for _, reg := range d.handlers[evt.Type] {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("event", string(evt.Type)).Msg("event handler panicked")
				}
			}()
			reg.handler(ctx, evt)
		}()
	}
}

// FireAndForget runs every handler for evt.Type in its own goroutine and
// returns immediately. Use for best-effort side effects (metrics, analytics)
// that must never add latency to the command path.
func (d *Dispatcher) FireAndForget(ctx context.Context, evt Event) {
	for _, reg := range d.handlers[evt.Type] {
		handler := reg.handler
		concurrent.SafeGo(func() {
			handler(ctx, evt)
		})
	}
}
