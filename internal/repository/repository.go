// Package repository defines the persistent-store seam (spec §1, §6).
// The core never talks to a database directly; it talks to this
// interface, so the storage engine can be swapped without touching
// the connection engine or writer pipeline.
package repository

import (
	"context"

	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
)

// WriteKind enumerates the possible dispositions of a write attempt.
type WriteKind int

const (
	// WriteStored means the event was persisted and should be announced.
	WriteStored WriteKind = iota
	// WriteDuplicate means an identical event id already exists.
	WriteDuplicate
	// WriteInvalid means the store itself rejected the event (distinct
	// from protocol-level validation, which happens before this point).
	WriteInvalid
	// WriteTransient means the store was temporarily unavailable; the
	// writer pipeline does not retry automatically.
	WriteTransient
)

// WriteOutcome reports what happened to a single write attempt.
type WriteOutcome struct {
	Kind WriteKind
	Msg  string // populated for WriteInvalid and WriteTransient
}

// QueryResult is one item streamed back from a historical query: either
// a matched event, or the terminal EOSE sentinel for that subscription.
type QueryResult struct {
	SubID string
	Event *nostrcore.Event
	EOSE  bool
}

// Repository is the persistence seam the writer pipeline and query
// dispatcher depend on. Implementations must be safe for concurrent
// use by many goroutines.
type Repository interface {
	// WriteEvent persists e, returning its disposition. Implementations
	// must treat identical event ids as WriteDuplicate regardless of
	// how many times WriteEvent is called concurrently with the same id.
	WriteEvent(ctx context.Context, e nostrcore.Event) (WriteOutcome, error)

	// QuerySubscription streams events matching sub into out, in
	// store-defined order, followed by exactly one EOSE result, unless
	// cancel fires first. QuerySubscription must return promptly after
	// cancel is closed without sending further non-EOSE results.
	QuerySubscription(ctx context.Context, sub nostrcore.Subscription, connID string, out chan<- QueryResult, cancel <-chan struct{}) error
}
