// Package notifier fans schema cache events out to editor shells.
package notifier

import (
	"sync"

	"github.com/leapstack-labs/leapcomplete/pkg/schema"
)

// Buffer is the number of events a slow subscriber may fall behind by
// before further events are dropped for it.
const Buffer = 16

// Notifier broadcasts cache events to every subscriber.
// Subscribers should treat an event as a hint and re-read the snapshot;
// a dropped event is covered by the next one.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan schema.Event]struct{}
}

// New creates a notifier without subscribers.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan schema.Event]struct{}),
	}
}

// Subscribe returns a channel that receives events.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan schema.Event {
	ch := make(chan schema.Event, Buffer)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(ch chan schema.Event) {
	n.mu.Lock()
	_, ok := n.listeners[ch]
	delete(n.listeners, ch)
	n.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Publish delivers ev to every subscriber without blocking.
// It has the signature of a schema.Cache listener.
func (n *Notifier) Publish(ev schema.Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
