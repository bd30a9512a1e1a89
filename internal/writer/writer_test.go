package writer

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kofj/nostr-rs-relay/internal/broadcast"
	"github.com/kofj/nostr-rs-relay/internal/metadatabus"
	"github.com/kofj/nostr-rs-relay/internal/metrics"
	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
	"github.com/kofj/nostr-rs-relay/internal/notice"
	"github.com/kofj/nostr-rs-relay/internal/repository/memrepo"
)

func newTestWriter(t *testing.T, policy *Policy) (*Writer, *broadcast.Bus) {
	t.Helper()
	repo := memrepo.New()
	bus := broadcast.New(8)
	metaBus := metadatabus.NewLocal()
	m := metrics.New(prometheus.NewRegistry())
	w := New(repo, bus, metaBus, policy, m, zerolog.Nop(), 8)
	return w, bus
}

func runAndStop(w *Writer) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	return cancel
}

func TestWriterStoresAndAnnounces(t *testing.T) {
	w, bus := newTestWriter(t, nil)
	defer runAndStop(w)()

	sub := bus.Subscribe()
	result := make(chan notice.Notice, 1)
	e := nostrcore.Event{ID: "e1", PubKey: "p", CreatedAt: 1, Kind: 1}

	require.NoError(t, w.Submit(context.Background(), SubmittedEvent{Event: e, Result: result}))

	select {
	case n := <-result:
		frame, err := n.Frame()
		require.NoError(t, err)
		require.JSONEq(t, `["OK","e1",true,"stored"]`, string(frame))
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}

	select {
	case got := <-sub.Events:
		require.Equal(t, "e1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("event not announced on broadcast bus")
	}
}

func TestWriterDetectsDuplicate(t *testing.T) {
	w, _ := newTestWriter(t, nil)
	defer runAndStop(w)()

	e := nostrcore.Event{ID: "e1", PubKey: "p", CreatedAt: 1, Kind: 1}

	r1 := make(chan notice.Notice, 1)
	require.NoError(t, w.Submit(context.Background(), SubmittedEvent{Event: e, Result: r1}))
	<-r1

	r2 := make(chan notice.Notice, 1)
	require.NoError(t, w.Submit(context.Background(), SubmittedEvent{Event: e, Result: r2}))

	select {
	case n := <-r2:
		frame, err := n.Frame()
		require.NoError(t, err)
		require.JSONEq(t, `["OK","e1",true,"duplicate: already have this event"]`, string(frame))
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}
}

func TestWriterRejectsByPolicy(t *testing.T) {
	policy := &Policy{PubkeyWhitelist: map[string]bool{"allowed": true}}
	w, bus := newTestWriter(t, policy)
	defer runAndStop(w)()

	sub := bus.Subscribe()
	result := make(chan notice.Notice, 1)
	e := nostrcore.Event{ID: "e1", PubKey: "not-allowed", CreatedAt: 1, Kind: 1}

	require.NoError(t, w.Submit(context.Background(), SubmittedEvent{Event: e, Result: result}))

	select {
	case n := <-result:
		frame, err := n.Frame()
		require.NoError(t, err)
		require.JSONEq(t, `["OK","e1",false,"pubkey not whitelisted"]`, string(frame))
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}

	select {
	case <-sub.Events:
		t.Fatal("rejected event must not be announced")
	case <-time.After(50 * time.Millisecond):
	}
}
