// Package writer implements the single-consumer ingestion pipeline
// (spec §4.5): policy checks, then persistence, then announcement, in
// that order, so no consumer ever observes an event before the writer
// itself considers it durable. Grounded on the single-goroutine
// consumer loop in go-server/pkg/websocket/hub.go's Run method,
// generalized from hub registration bookkeeping to the relay's
// policy/persist/publish sequence.
package writer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kofj/nostr-rs-relay/internal/broadcast"
	"github.com/kofj/nostr-rs-relay/internal/metadatabus"
	"github.com/kofj/nostr-rs-relay/internal/metrics"
	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
	"github.com/kofj/nostr-rs-relay/internal/notice"
	"github.com/kofj/nostr-rs-relay/internal/repository"
)

// SubmittedEvent is one EVENT command handed off by a connection
// engine to the writer. Result carries the OK notice back to the
// submitting connection. The writer sends at most one value on it and
// never blocks doing so: if Result is full, the notice is dropped.
type SubmittedEvent struct {
	Event  nostrcore.Event
	Result chan<- notice.Notice
}

// Writer drains a bounded submission channel, applying Policy, then
// Repository persistence, then broadcast announcement.
type Writer struct {
	repo    repository.Repository
	bus     *broadcast.Bus
	metaBus metadatabus.Bus
	policy  *Policy
	m       *metrics.Metrics
	log     zerolog.Logger

	submissions chan SubmittedEvent
}

// New creates a Writer with the given submission channel capacity
// (spec §4.5: "bounded capacity event_persist_buffer").
func New(repo repository.Repository, bus *broadcast.Bus, metaBus metadatabus.Bus, policy *Policy, m *metrics.Metrics, log zerolog.Logger, bufferSize int) *Writer {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Writer{
		repo:        repo,
		bus:         bus,
		metaBus:     metaBus,
		policy:      policy,
		m:           m,
		log:         log,
		submissions: make(chan SubmittedEvent, bufferSize),
	}
}

// Submit enqueues se, blocking if the submission channel is full. This
// is the backpressure mechanism onto misbehaving or overly fast
// clients described in spec §4.5.
func (w *Writer) Submit(ctx context.Context, se SubmittedEvent) error {
	select {
	case w.submissions <- se:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the submission channel until ctx is cancelled. It is
// meant to run as the relay's single writer task (spec §4.8).
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case se := <-w.submissions:
			w.process(se)
		}
	}
}

func (w *Writer) process(se SubmittedEvent) {
	e := se.Event

	if reason := w.policy.Check(e); reason != "" {
		if reason == reasonAntispam {
			w.m.SpamsTotal.WithLabelValues(e.PubKey).Inc()
		}
		w.deliver(se.Result, notice.Invalid(e.ID, reason))
		return
	}

	start := time.Now()
	outcome, err := w.repo.WriteEvent(context.Background(), e)
	w.m.EventsWriteSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		w.log.Error().Err(err).Str("event", e.IDPrefix()).Msg("repository write failed")
		w.deliver(se.Result, notice.Invalid(e.ID, "error: "+err.Error()))
		return
	}

	switch outcome.Kind {
	case repository.WriteStored:
		w.deliver(se.Result, notice.Stored(e.ID))
		w.bus.Publish(e)
		if e.IsMetadata() && w.metaBus != nil {
			w.metaBus.Publish(e)
		}
	case repository.WriteDuplicate:
		w.deliver(se.Result, notice.Duplicate(e.ID))
	case repository.WriteInvalid:
		w.deliver(se.Result, notice.Invalid(e.ID, outcome.Msg))
	case repository.WriteTransient:
		w.deliver(se.Result, notice.Invalid(e.ID, "error: "+outcome.Msg))
	}
}

func (w *Writer) deliver(result chan<- notice.Notice, n notice.Notice) {
	if result == nil {
		return
	}
	select {
	case result <- n:
	default:
	}
}
