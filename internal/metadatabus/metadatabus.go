// Package metadatabus implements the fixed-capacity metadata-only bus
// (spec §4.6) that feeds the NIP-05 verifier. It mirrors the
// connect/subscribe/publish shape of go-server/pkg/nats/client.go but
// narrows it to a single subject and a single message type, and
// offers an in-process fallback so the relay can run — and be tested
// — without a live NATS server.
package metadatabus

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
)

// capacity is the fixed size of the metadata bus (spec §4.6: "a second
// metadata-only bus (fixed capacity 4096)").
const capacity = 4096

const subject = "nostr.metadata"

// Bus delivers kind-0 metadata events to the verifier. It may drop
// events under overload, same as the main broadcast bus.
type Bus interface {
	Publish(e nostrcore.Event)
	Subscribe() (events <-chan nostrcore.Event, unsubscribe func())
	Close() error
}

// NewLocal builds an in-process Bus backed by a buffered channel with
// drop-when-full semantics, requiring no external service.
func NewLocal() Bus {
	return &localBus{subs: make(map[int]chan nostrcore.Event)}
}

type localBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan nostrcore.Event
}

func (b *localBus) Publish(e nostrcore.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *localBus) Subscribe() (<-chan nostrcore.Event, func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	ch := make(chan nostrcore.Event, capacity)
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *localBus) Close() error { return nil }

// natsBus backs the metadata bus with a real NATS subject, giving
// operators a multi-process deployment option without changing the
// verifier's consumption code at all.
type natsBus struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NewNATS connects to the NATS server at url and returns a Bus backed
// by a single subject. Connection failures are returned rather than
// silently falling back, so callers can decide whether to retry or
// use NewLocal instead.
func NewNATS(url string, log zerolog.Logger) (Bus, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("metadata bus disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("metadata bus reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect metadata bus: %w", err)
	}
	return &natsBus{conn: conn, log: log}, nil
}

func (b *natsBus) Publish(e nostrcore.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		b.log.Error().Err(err).Msg("marshal metadata event")
		return
	}
	if err := b.conn.Publish(subject, data); err != nil {
		b.log.Warn().Err(err).Msg("publish metadata event")
	}
}

func (b *natsBus) Subscribe() (<-chan nostrcore.Event, func()) {
	out := make(chan nostrcore.Event, capacity)
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var e nostrcore.Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			b.log.Warn().Err(err).Msg("unmarshal metadata event")
			return
		}
		select {
		case out <- e:
		default:
			b.log.Warn().Msg("metadata bus subscriber overloaded, dropping event")
		}
	})
	if err != nil {
		b.log.Error().Err(err).Msg("subscribe metadata bus")
		close(out)
		return out, func() {}
	}
	return out, func() { _ = sub.Unsubscribe() }
}

func (b *natsBus) Close() error {
	b.conn.Close()
	return nil
}
