// Package memrepo is an in-memory repository.Repository reference
// implementation, grounded on the mutex-protected map pattern in
// go-server/pkg/websocket/hub.go's seenNonces dedup table. It exists
// for tests and for running the relay without an external store; it
// keeps every event in memory for the life of the process.
package memrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
	"github.com/kofj/nostr-rs-relay/internal/repository"
)

// pollInterval controls how often QuerySubscription checks cancel
// while streaming a large result set.
const pollInterval = 200

// Store is a concurrency-safe in-memory event store.
type Store struct {
	mu     sync.RWMutex
	events map[string]nostrcore.Event
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{events: make(map[string]nostrcore.Event)}
}

// WriteEvent implements repository.Repository.
func (s *Store) WriteEvent(ctx context.Context, e nostrcore.Event) (repository.WriteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[e.ID]; exists {
		return repository.WriteOutcome{Kind: repository.WriteDuplicate}, nil
	}
	s.events[e.ID] = e
	return repository.WriteOutcome{Kind: repository.WriteStored}, nil
}

// QuerySubscription implements repository.Repository, matching every
// stored event against each of sub's filters and streaming hits in
// created_at desc, id asc order, the same default ordering spec §4.7
// describes as "typical".
func (s *Store) QuerySubscription(ctx context.Context, sub nostrcore.Subscription, connID string, out chan<- repository.QueryResult, cancel <-chan struct{}) error {
	matches := s.snapshotMatches(sub)

	for i, e := range matches {
		if i%pollInterval == 0 {
			select {
			case <-cancel:
				return nil
			default:
			}
		}
		ev := e
		select {
		case <-cancel:
			return nil
		case out <- repository.QueryResult{SubID: sub.ID, Event: &ev}:
		}
	}

	select {
	case <-cancel:
		return nil
	case out <- repository.QueryResult{SubID: sub.ID, EOSE: true}:
	}
	return nil
}

func (s *Store) snapshotMatches(sub nostrcore.Subscription) []nostrcore.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]nostrcore.Event, 0, len(s.events))
	for _, e := range s.events {
		if sub.InterestedIn(e) {
			matches = append(matches, e)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt != matches[j].CreatedAt {
			return matches[i].CreatedAt > matches[j].CreatedAt
		}
		return matches[i].ID < matches[j].ID
	})
	return matches
}
