// Package report turns engine lifecycle events into output.
//
// A Reporter runs on the consumer side of an event.Bus. Each reporter routes
// events through its own dispatch table; kinds missing from the table are
// ignored.
package report

import (
	"errors"

	"github.com/roach88/theo/internal/event"
)

// Reporter handles one event at a time, in bus order.
type Reporter interface {
	Handle(e event.Event) error
}

// handlers maps event kinds to the functions that render them.
type handlers map[event.Kind]func(event.Event) error

func (h handlers) dispatch(e event.Event) error {
	fn, ok := h[e.Kind]
	if !ok {
		return nil
	}
	return fn(e)
}

// Run drains bus into r until an Exit event is consumed. Handler errors do
// not stop the drain; they are joined and returned at the end.
func Run(bus *event.Bus, r Reporter) error {
	var errs []error
	err := bus.Consume(func(e event.Event) {
		if err := r.Handle(e); err != nil {
			errs = append(errs, err)
		}
	})
	if err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Multi fans every event out to several reporters in order.
type Multi []Reporter

// Handle passes e to every reporter, even after one of them fails.
func (m Multi) Handle(e event.Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Handle(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
