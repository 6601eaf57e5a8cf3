// Package dispatch routes a structured booking action to its domain handler
// and normalizes the handler's reply.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/aura/internal/booking"
)

// Result is the normalized outcome of a successful dispatch.
type Result struct {
	DisplayText string
	Domain      booking.Domain
	Payload     booking.Payload
}

// Dispatcher maps domains to handlers. It never retries.
type Dispatcher struct {
	handlers map[booking.Domain]booking.Handler
	logger   *slog.Logger
}

// New creates a Dispatcher over the given handlers.
func New(handlers map[booking.Domain]booking.Handler) *Dispatcher {
	hs := make(map[booking.Domain]booking.Handler, len(handlers))
	for d, h := range handlers {
		hs[d] = h
	}
	return &Dispatcher{handlers: hs, logger: slog.Default()}
}

// WithLogger sets the logger used for no-result diagnostics.
func (d *Dispatcher) WithLogger(l *slog.Logger) *Dispatcher {
	d.logger = l
	return d
}

// Dispatch calls the handler for action.Domain. The boolean is false when
// there is no usable result: unknown domain, a nil reply, or a payload whose
// type does not belong to the domain. A handler failure is returned as error.
func (d *Dispatcher) Dispatch(ctx context.Context, action booking.Action, utterance string) (Result, bool, error) {
	h, ok := d.handlers[action.Domain]
	if !ok {
		d.logger.Warn("no handler for booking domain", "domain", action.Domain)
		return Result{}, false, nil
	}

	reply, err := h.Handle(ctx, action, utterance)
	if err != nil {
		return Result{}, false, fmt.Errorf("handling %s action: %w", action.Domain, err)
	}
	if reply == nil {
		return Result{}, false, nil
	}
	if reply.Payload != nil && !booking.Fits(action.Domain, reply.Payload) {
		d.logger.Warn("handler payload does not match domain", "domain", action.Domain, "payload", fmt.Sprintf("%T", reply.Payload))
		return Result{}, false, nil
	}
	return Result{
		DisplayText: reply.DisplayText,
		Domain:      action.Domain,
		Payload:     reply.Payload,
	}, true, nil
}
