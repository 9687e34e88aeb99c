// Package events is the in-process signal bus. Low-level platform signals
// (remote change arrived, local save committed, share accepted or failed)
// are broadcast here and subscribers re-trigger their own refresh. The bus
// is deliberately decoupled from any UI framework.
package events

import (
	"log/slog"
	"sync"
)

const (
	// KindRemoteChange signals that remote changes were processed.
	// KidsChanged / TransactionsChanged indicate which entity types moved.
	KindRemoteChange Kind = "remote-change"
	// KindLocalSave signals a committed local write.
	KindLocalSave Kind = "local-save"
	// KindShareAccepted signals a successfully accepted sharing invitation.
	KindShareAccepted Kind = "share-accepted"
	// KindShareAcceptFailed carries a human-readable failure message.
	KindShareAcceptFailed Kind = "share-accept-failed"
)

type (
	Kind string

	// Signal is one broadcast event. Only the fields relevant to its Kind
	// are populated.
	Signal struct {
		Kind                Kind
		KidsChanged         bool
		TransactionsChanged bool
		Message             string
	}
)

// Bus fans signals out to all current subscribers. Delivery is
// best-effort: a subscriber that falls behind has the signal dropped
// rather than blocking the publisher.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Signal
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Signal)}
}

// Subscribe registers a new listener. The returned cancel func must be
// called when the listener goes away.
func (b *Bus) Subscribe() (<-chan Signal, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Signal, 16)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish broadcasts a signal to every subscriber without blocking.
func (b *Bus) Publish(s Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for id, sub := range b.subs {
		select {
		case sub <- s:
		default:
			slog.Warn("Dropping signal for slow subscriber",
				"kind", s.Kind,
				"subscriber", id)
		}
	}
}

// Close tears the bus down; subsequent publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub)
	}
}
