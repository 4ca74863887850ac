// Package event carries lifecycle events from the execution engine to the
// reporter.
//
// The Bus is an unbounded FIFO with any number of producers and exactly one
// consumer. Producers never block, so slow terminal output cannot stall test
// execution. The consumer sees events in the order they were published, across
// all suites of a run, and stops only when it dequeues an Exit event.
package event

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/theo/internal/suite"
)

// Kind identifies a lifecycle event.
type Kind int

const (
	SuiteStart Kind = iota + 1
	SuiteSetupFinished
	TestStart
	TestFinished
	SuiteFinished
	// Exit ends the consumer loop. Events published after it is consumed
	// are dropped.
	Exit
)

var kindNames = map[Kind]string{
	SuiteStart:         "SuiteStart",
	SuiteSetupFinished: "SuiteSetupFinished",
	TestStart:          "TestStart",
	TestFinished:       "TestFinished",
	SuiteFinished:      "SuiteFinished",
	Exit:               "Exit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText renders the kind by name in JSON event streams.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is one entry on the bus. Suite and Test are snapshots owned by the
// event; producers must not mutate them after publishing.
type Event struct {
	Kind  Kind
	Suite *suite.Suite
	Test  *suite.Test
}

// Publisher is the producer side of a Bus.
type Publisher interface {
	Publish(e Event) bool
}

// ErrConsumerActive is returned when a second consumer tries to drain a bus.
var ErrConsumerActive = errors.New("event bus already has a consumer")

// Bus is a thread-safe unbounded FIFO of events with a single consumer.
//
// The signal channel (buffered, size 1) coalesces wake-ups; the consumer
// always re-checks the queue after waking.
type Bus struct {
	mu        sync.Mutex
	events    []Event
	exited    bool
	consuming bool
	signal    chan struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Publish appends an event. Safe from any goroutine, never blocks.
// Returns false if the consumer has already stopped at Exit.
func (b *Bus) Publish(e Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exited {
		return false
	}

	b.events = append(b.events, e)

	select {
	case b.signal <- struct{}{}:
	default:
	}

	return true
}

// Consume delivers events to handle in FIFO order until an Exit event is
// dequeued. Exit itself is not passed to handle. Only one Consume may run
// per bus.
func (b *Bus) Consume(handle func(Event)) error {
	b.mu.Lock()
	if b.consuming || b.exited {
		b.mu.Unlock()
		return ErrConsumerActive
	}
	b.consuming = true
	b.mu.Unlock()

	for {
		e, ok := b.tryDequeue()
		if !ok {
			<-b.signal
			continue
		}
		if e.Kind == Exit {
			b.mu.Lock()
			b.exited = true
			b.consuming = false
			b.events = nil
			b.mu.Unlock()
			return nil
		}
		handle(e)
	}
}

// Len returns the number of events waiting to be consumed.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func (b *Bus) tryDequeue() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) == 0 {
		return Event{}, false
	}

	e := b.events[0]
	// Clear the slot so the snapshots it points to can be collected.
	b.events[0] = Event{}
	if len(b.events) == 1 {
		b.events = b.events[:0]
	} else {
		b.events = b.events[1:]
	}

	return e, true
}
