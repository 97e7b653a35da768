// Package notify provides non-blocking change notification fan-out to an
// arbitrary number of live listeners.
//
// Broadcast never blocks on a slow or unresponsive listener: each listener has
// a one-slot delivery channel, and when the slot is already occupied the
// signal is coalesced for that listener. Listeners only care that "something
// changed", not how many times, so coalescing loses no information.
//
// Subscribe and Unsubscribe are safe to interleave arbitrarily with Broadcast;
// removing a listener during an in-flight broadcast neither crashes nor
// deadlocks, and a listener never receives a signal after Unsubscribe returns.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Listener is a registered change listener. Receive from C() to wait for the
// next change signal.
type Listener struct {
	id string
	ch chan struct{}
}

// ID returns the unique listener identifier.
func (l *Listener) ID() string {
	return l.id
}

// C returns the signal channel. One receive corresponds to "at least one
// change happened since the last receive".
func (l *Listener) C() <-chan struct{} {
	return l.ch
}

// Stats is a point-in-time snapshot of notifier counters.
type Stats struct {
	Broadcasts uint64
	Delivered  uint64
	Dropped    uint64
	Listeners  int
}

// Notifier maintains the dynamic listener set and broadcasts change signals.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[string]*Listener
	closed    bool

	broadcasts atomic.Uint64
	delivered  atomic.Uint64
	dropped    atomic.Uint64

	onCount     func(listeners int)
	onBroadcast func(delivered, dropped int)
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithListenerCallback registers a callback invoked with the listener count
// after every subscribe and unsubscribe. Used to keep an external gauge in
// sync.
func WithListenerCallback(fn func(listeners int)) Option {
	return func(n *Notifier) {
		n.onCount = fn
	}
}

// WithBroadcastCallback registers a callback invoked after every broadcast
// with the per-broadcast delivery and coalesce counts.
func WithBroadcastCallback(fn func(delivered, dropped int)) Option {
	return func(n *Notifier) {
		n.onBroadcast = fn
	}
}

// New creates a Notifier with no listeners.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		listeners: make(map[string]*Listener),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subscribe registers a new listener. The listener receives one signal per
// change occurring after registration; changes before registration are not
// replayed.
func (n *Notifier) Subscribe() *Listener {
	l := &Listener{
		id: uuid.NewString(),
		ch: make(chan struct{}, 1),
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		// A closed notifier hands out a listener that never fires, so
		// shutdown races with late HTTP connections stay harmless.
		return l
	}
	n.listeners[l.id] = l
	count := len(n.listeners)
	n.mu.Unlock()

	if n.onCount != nil {
		n.onCount(count)
	}
	return l
}

// Unsubscribe deregisters a listener. Safe to call concurrently with
// Broadcast and idempotent; nil listeners are ignored.
func (n *Notifier) Unsubscribe(l *Listener) {
	if l == nil {
		return
	}

	n.mu.Lock()
	if _, exists := n.listeners[l.id]; !exists {
		n.mu.Unlock()
		return
	}
	delete(n.listeners, l.id)
	count := len(n.listeners)
	n.mu.Unlock()

	if n.onCount != nil {
		n.onCount(count)
	}
}

// Broadcast delivers a change signal to every listener. Delivery is
// best-effort: a listener whose slot is already full has the signal coalesced.
// Never blocks. Broadcasting on a closed notifier is a no-op.
func (n *Notifier) Broadcast() {
	n.mu.RLock()

	if n.closed {
		n.mu.RUnlock()
		return
	}

	n.broadcasts.Add(1)
	var delivered, dropped int
	for _, l := range n.listeners {
		select {
		case l.ch <- struct{}{}:
			delivered++
		default:
			// Slot occupied - coalesce
			dropped++
		}
	}
	n.mu.RUnlock()

	n.delivered.Add(uint64(delivered))
	n.dropped.Add(uint64(dropped))

	if n.onBroadcast != nil {
		n.onBroadcast(delivered, dropped)
	}
}

// Count returns the number of currently subscribed listeners.
func (n *Notifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return len(n.listeners)
}

// Stats returns a snapshot of the notifier counters.
func (n *Notifier) Stats() Stats {
	n.mu.RLock()
	listeners := len(n.listeners)
	n.mu.RUnlock()

	return Stats{
		Broadcasts: n.broadcasts.Load(),
		Delivered:  n.delivered.Load(),
		Dropped:    n.dropped.Load(),
		Listeners:  listeners,
	}
}

// Close stops the notifier, drops all listeners, and makes further broadcasts
// no-ops. Idempotent.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	n.listeners = make(map[string]*Listener)
}
