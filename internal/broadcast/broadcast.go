// Package broadcast implements the lossy multi-consumer event bus
// (spec §4.6, §9). Adapted from go-server/pkg/websocket/ring_buffer.go's
// per-client buffer design — one buffer per subscriber, a full buffer
// drops rather than blocks the publisher — but rebuilt on plain
// buffered channels instead of an unsafe lock-free ring. The bus has
// few producers (the writer pipeline and the NIP-05 verifier, which
// republishes verified metadata) and many independent consumers
// (connection engines).
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
)

// Bus fans out Events to any number of subscribers. A subscriber that
// falls behind has its oldest buffered event dropped to make room for
// the newest one; the publisher never blocks on a slow reader.
type Bus struct {
	mu       sync.RWMutex
	subs     map[uint64]*subscriber
	nextID   uint64
	capacity int
}

type subscriber struct {
	ch      chan nostrcore.Event
	dropped uint64 // atomic, count of events lost to backpressure
}

// New creates a Bus whose per-subscriber buffer holds capacity events.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{subs: make(map[uint64]*subscriber), capacity: capacity}
}

// Subscription is a live handle into the bus: Events delivers the
// stream, Lagged reports how many events this subscriber has dropped.
type Subscription struct {
	id     uint64
	bus    *Bus
	sub    *subscriber
	Events <-chan nostrcore.Event
}

// Lagged returns the number of events dropped for this subscriber
// since it joined the bus.
func (s *Subscription) Lagged() uint64 {
	return atomic.LoadUint64(&s.sub.dropped)
}

// Unsubscribe detaches the subscription; its channel receives no
// further events.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
}

// Subscribe registers a new subscriber and returns its handle.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	sub := &subscriber{ch: make(chan nostrcore.Event, b.capacity)}
	b.subs[id] = sub

	return &Subscription{id: id, bus: b, sub: sub, Events: sub.ch}
}

// Publish fans e out to every subscriber without blocking. A
// subscriber whose buffer is full has its oldest item discarded to
// make room; Lagged() on that subscription will reflect the loss.
func (b *Bus) Publish(e nostrcore.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			select {
			case <-sub.ch:
				atomic.AddUint64(&sub.dropped, 1)
			default:
			}
			select {
			case sub.ch <- e:
			default:
				atomic.AddUint64(&sub.dropped, 1)
			}
		}
	}
}

// SubscriberCount reports the number of live subscribers, for tests
// and diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
