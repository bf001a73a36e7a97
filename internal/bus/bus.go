// Package bus fans applied events out to in-process subscribers (UI, timer).
// Delivery is best-effort and non-durable: a slow subscriber drops
// notifications rather than blocking the writer.
package bus

import (
	"sync"

	"taskline/internal/eventlog"
)

const subscriberBuffer = 64

// Bus is a non-blocking publish/subscribe channel for applied log entries.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan eventlog.Entry
	next int
}

func New() *Bus {
	return &Bus{subs: map[int]chan eventlog.Entry{}}
}

// Subscribe registers a listener. The returned cancel function must be called
// to release it; the channel is closed on cancel.
func (b *Bus) Subscribe() (<-chan eventlog.Entry, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan eventlog.Entry, subscriberBuffer)
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

// Publish delivers an entry to every subscriber without blocking. Full
// buffers drop the notification; subscribers needing completeness re-read the
// log.
func (b *Bus) Publish(entry eventlog.Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}
