// Package outbox implements the bounded event queue linking every
// producer (SystemMonitor, NewsService, TwitterService) to the
// Broadcaster. A buffered channel gives FIFO ordering and safe
// multi-producer/single-consumer semantics for free, the same way the
// rest of this codebase prefers a channel over a hand-rolled ring
// buffer plus mutex for producer/consumer handoff.
package outbox

import (
	"github.com/nugget/pulse/internal/broadcastevent"
	"github.com/nugget/pulse/internal/pulseerr"
)

// Capacity is the fixed queue depth. Overflow is a caller-visible Full
// error, never a blocking send.
const Capacity = 100_000

// Outbox is a bounded FIFO of BroadcastEvents.
type Outbox struct {
	ch chan broadcastevent.Event
}

// New constructs an empty Outbox at the fixed capacity.
func New() *Outbox {
	return &Outbox{ch: make(chan broadcastevent.Event, Capacity)}
}

// Push enqueues an event. It never blocks: if the queue is full it
// returns a pulseerr.OutboxFullError and the caller is expected to log
// and drop, per the design's overflow policy.
func (o *Outbox) Push(e broadcastevent.Event) error {
	select {
	case o.ch <- e:
		return nil
	default:
		return pulseerr.New(pulseerr.OutboxFullError, "outbox at capacity, dropping event")
	}
}

// Pop removes and returns the oldest event, or ok=false if the queue
// is currently empty.
func (o *Outbox) Pop() (broadcastevent.Event, bool) {
	select {
	case e := <-o.ch:
		return e, true
	default:
		return nil, false
	}
}

// Len reports the number of events currently queued. Intended for
// metrics/diagnostics only — not part of the push/pop contract.
func (o *Outbox) Len() int {
	return len(o.ch)
}
