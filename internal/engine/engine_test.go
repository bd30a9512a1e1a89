package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kofj/nostr-rs-relay/internal/broadcast"
	"github.com/kofj/nostr-rs-relay/internal/dispatch"
	"github.com/kofj/nostr-rs-relay/internal/metadatabus"
	"github.com/kofj/nostr-rs-relay/internal/metrics"
	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
	"github.com/kofj/nostr-rs-relay/internal/repository/memrepo"
	"github.com/kofj/nostr-rs-relay/internal/writer"
)

// fakeSocket is an in-memory Socket: inbound frames are fed via send,
// outbound frames land in sent. ReadMessage blocks until either a
// frame is queued or closed is signalled, mirroring a real conn.
type fakeSocket struct {
	mu     sync.Mutex
	sent   [][]byte
	in     chan []byte
	closed chan struct{}
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case msg, ok := <-f.in:
		if !ok {
			return 0, nil, errors.New("closed")
		}
		return TextMessage, msg, nil
	case <-f.closed:
		return 0, nil, errors.New("closed")
	}
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeSocket) SetReadDeadline(t time.Time) error { return nil }

func (f *fakeSocket) Close() error {
	close(f.closed)
	return nil
}

func (f *fakeSocket) send(raw string) { f.in <- []byte(raw) }

func (f *fakeSocket) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func containsFrameWithTag(frames [][]byte, tag string) bool {
	for _, fr := range frames {
		var arr []json.RawMessage
		if err := json.Unmarshal(fr, &arr); err != nil || len(arr) == 0 {
			continue
		}
		var t string
		if err := json.Unmarshal(arr[0], &t); err == nil && t == tag {
			return true
		}
	}
	return false
}

func newTestEngine(t *testing.T, socket Socket) (*Engine, *broadcast.Bus) {
	t.Helper()
	repo := memrepo.New()
	bus := broadcast.New(8)
	metaBus := metadatabus.NewLocal()
	m := metrics.New(prometheus.NewRegistry())
	w := writer.New(repo, bus, metaBus, nil, m, zerolog.Nop(), 8)
	d := dispatch.New(repo, 2, m)

	go w.Run(context.Background())

	eng := New(socket, "127.0.0.1", bus, w, d, m, zerolog.Nop(), Config{
		MaxEventBytes: 65536,
		PingInterval:  time.Hour,
		IdleTimeout:   time.Hour,
	})
	return eng, bus
}

func TestEngineRespondsOKToValidEvent(t *testing.T) {
	socket := newFakeSocket()
	eng, _ := newTestEngine(t, socket)

	ctx, cancel := context.WithCancel(context.Background())
	shutdown := make(chan struct{})
	done := make(chan struct{})
	go func() { eng.Run(ctx, shutdown); close(done) }()

	ev := mustValidEvent()
	raw, _ := json.Marshal([]any{"EVENT", ev})
	socket.send(string(raw))

	require.Eventually(t, func() bool {
		return containsFrameWithTag(socket.frames(), "OK")
	}, time.Second, 10*time.Millisecond)

	close(shutdown)
	cancel()
	<-done
}

func TestEngineHandlesReqAndEmitsEOSE(t *testing.T) {
	socket := newFakeSocket()
	eng, _ := newTestEngine(t, socket)

	ctx, cancel := context.WithCancel(context.Background())
	shutdown := make(chan struct{})
	done := make(chan struct{})
	go func() { eng.Run(ctx, shutdown); close(done) }()

	raw, _ := json.Marshal([]any{"REQ", "sub1", map[string]any{"kinds": []int{1}}})
	socket.send(string(raw))

	require.Eventually(t, func() bool {
		return containsFrameWithTag(socket.frames(), "EOSE")
	}, time.Second, 10*time.Millisecond)

	close(shutdown)
	cancel()
	<-done
}

func TestEngineOversizeFrameSendsNotice(t *testing.T) {
	socket := newFakeSocket()
	repo := memrepo.New()
	bus := broadcast.New(8)
	metaBus := metadatabus.NewLocal()
	m := metrics.New(prometheus.NewRegistry())
	w := writer.New(repo, bus, metaBus, nil, m, zerolog.Nop(), 8)
	d := dispatch.New(repo, 2, m)
	go w.Run(context.Background())

	eng := New(socket, "127.0.0.1", bus, w, d, m, zerolog.Nop(), Config{
		MaxEventBytes: 8,
		PingInterval:  time.Hour,
		IdleTimeout:   time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	shutdown := make(chan struct{})
	done := make(chan struct{})
	go func() { eng.Run(ctx, shutdown); close(done) }()

	ev := mustValidEvent()
	raw, _ := json.Marshal([]any{"EVENT", ev})
	socket.send(string(raw))

	require.Eventually(t, func() bool {
		return containsFrameWithTag(socket.frames(), "NOTICE")
	}, time.Second, 10*time.Millisecond)

	close(shutdown)
	cancel()
	<-done
}

// mustValidEvent returns a structurally valid (but not cryptographically
// signed) event whose id matches its content, for tests that only
// exercise the structural Validate() path.
func mustValidEvent() map[string]any {
	ev := nostrcore.Event{
		PubKey:    "b9d6a8b2fd6a2a2c1a4b4f1e6c9c2f0a9d6a8b2fd6a2a2c1a4b4f1e6c9c2f0aa",
		CreatedAt: 1,
		Kind:      1,
		Tags:      [][]string{},
		Content:   "hi",
		Sig:       "c9d6a8b2fd6a2a2c1a4b4f1e6c9c2f0a9d6a8b2fd6a2a2c1a4b4f1e6c9c2f0aac9d6a8b2fd6a2a2c1a4b4f1e6c9c2f0a9d6a8b2fd6a2a2c1a4b4f1e6c9c2f0aa",
	}
	id, err := ev.ComputeID()
	if err != nil {
		panic(err)
	}
	return map[string]any{
		"id":         id,
		"pubkey":     ev.PubKey,
		"created_at": ev.CreatedAt,
		"kind":       ev.Kind,
		"tags":       []any{},
		"content":    ev.Content,
		"sig":        ev.Sig,
	}
}
