package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kofj/nostr-rs-relay/internal/metrics"
	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
	"github.com/kofj/nostr-rs-relay/internal/repository"
	"github.com/kofj/nostr-rs-relay/internal/repository/memrepo"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func TestSubmitStreamsResultsAndEOSE(t *testing.T) {
	repo := memrepo.New()
	_, _ = repo.WriteEvent(context.Background(), nostrcore.Event{ID: "e1", CreatedAt: 1, Kind: 1})

	d := New(repo, 2, newTestMetrics())
	sub := nostrcore.Subscription{ID: "h", Filters: []nostrcore.Filter{{Kinds: []int{1}}}}
	out := make(chan repository.QueryResult, 10)
	cancel := make(chan struct{})

	d.Submit(context.Background(), sub, "conn1", out, cancel)

	var results []repository.QueryResult
	deadline := time.After(time.Second)
	for {
		select {
		case r := <-out:
			results = append(results, r)
			if r.EOSE {
				require.Len(t, results, 2)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for query results")
		}
	}
}

func TestSubmitRespectsPoolSize(t *testing.T) {
	repo := memrepo.New()
	d := New(repo, 1, newTestMetrics())
	sub := nostrcore.Subscription{ID: "h", Filters: []nostrcore.Filter{{Kinds: []int{1}}}}

	for i := 0; i < 3; i++ {
		out := make(chan repository.QueryResult, 10)
		cancel := make(chan struct{})
		d.Submit(context.Background(), sub, "conn1", out, cancel)
		select {
		case r := <-out:
			require.True(t, r.EOSE)
		case <-time.After(time.Second):
			t.Fatal("query did not complete")
		}
	}
}
