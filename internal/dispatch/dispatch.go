// Package dispatch runs historical-query submissions against the
// Repository on a bounded worker pool, separate from the connection
// engines, so a blocking store call never stalls a connection's fair
// select loop (spec §4.7). The pool itself is a classic buffered
// channel semaphore, the same shape go-server/pkg/websocket uses for
// bounding concurrent broadcast fan-out work.
package dispatch

import (
	"context"
	"time"

	"github.com/kofj/nostr-rs-relay/internal/metrics"
	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
	"github.com/kofj/nostr-rs-relay/internal/repository"
)

// Dispatcher submits subscriptions for historical query execution.
type Dispatcher struct {
	repo repository.Repository
	sem  chan struct{}
	m    *metrics.Metrics
}

// New creates a Dispatcher backed by repo, limited to maxWorkers
// concurrent queries.
func New(repo repository.Repository, maxWorkers int, m *metrics.Metrics) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Dispatcher{repo: repo, sem: make(chan struct{}, maxWorkers), m: m}
}

// Submit runs sub's historical query on the worker pool and streams
// results onto out. It returns immediately; the caller's connection
// engine continues servicing its select loop while the query runs.
// cancel, closed by the caller, aborts the query; ctx's deadline (if
// any) aborts it as a timeout.
func (d *Dispatcher) Submit(ctx context.Context, sub nostrcore.Subscription, connID string, out chan<- repository.QueryResult, cancel <-chan struct{}) {
	go func() {
		select {
		case d.sem <- struct{}{}:
		case <-cancel:
			d.m.QueryAbortTotal.WithLabelValues("cancelled").Inc()
			return
		case <-ctx.Done():
			d.m.QueryAbortTotal.WithLabelValues("overload").Inc()
			return
		}
		defer func() { <-d.sem }()

		start := time.Now()
		done := make(chan error, 1)
		go func() { done <- d.repo.QuerySubscription(ctx, sub, connID, out, cancel) }()

		select {
		case err := <-done:
			d.m.QuerySeconds.Observe(time.Since(start).Seconds())
			if err != nil {
				d.m.QueryAbortTotal.WithLabelValues("overload").Inc()
			}
		case <-cancel:
			d.m.QueryAbortTotal.WithLabelValues("cancelled").Inc()
		case <-ctx.Done():
			d.m.QueryAbortTotal.WithLabelValues("timeout").Inc()
		}
	}()
}
