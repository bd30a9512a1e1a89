// Package nostrcore holds the Nostr wire types treated as external
// collaborators by the relay core: Event, Filter and Subscription.
// Signature cryptography is intentionally out of scope (see spec §1);
// Validate only checks the structural invariants the core depends on.
package nostrcore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrMissingField  = errors.New("event missing required field")
	ErrIDMismatch    = errors.New("event id does not match computed hash")
	ErrBadHexField   = errors.New("event field is not valid hex")
)

// Event is an immutable, client-signed Nostr event.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

const MetadataKind = 0

// IsMetadata reports whether this event is a kind-0 (profile metadata) event.
func (e Event) IsMetadata() bool {
	return e.Kind == MetadataKind
}

// IDPrefix returns the first 8 characters of the event id, for log lines.
func (e Event) IDPrefix() string {
	if len(e.ID) <= 8 {
		return e.ID
	}
	return e.ID[:8]
}

// Serialize returns the canonical JSON encoding sent to subscribers.
func (e Event) Serialize() ([]byte, error) {
	return json.Marshal(e)
}

// serializationArray reproduces the NIP-01 id-preimage array:
// [0, pubkey, created_at, kind, tags, content].
func (e Event) serializationArray() ([]byte, error) {
	arr := []any{0, e.PubKey, e.CreatedAt, e.Kind, e.Tags, e.Content}
	return json.Marshal(arr)
}

// ComputeID returns the sha256 hex digest of the id-preimage array.
func (e Event) ComputeID() (string, error) {
	raw, err := e.serializationArray()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Validate checks the structural invariants the relay core relies on:
// required fields present, id/pubkey/sig are hex of the expected length,
// and the id matches the recomputed hash of the event body. It does NOT
// verify the schnorr signature itself — that cryptographic step belongs
// to the external Event module the spec scopes out (spec §1).
func (e Event) Validate() error {
	if e.ID == "" || e.PubKey == "" || e.Sig == "" {
		return ErrMissingField
	}
	if !isHex(e.ID, 64) || !isHex(e.PubKey, 64) || !isHex(e.Sig, 128) {
		return ErrBadHexField
	}
	computed, err := e.ComputeID()
	if err != nil {
		return fmt.Errorf("compute id: %w", err)
	}
	if computed != e.ID {
		return ErrIDMismatch
	}
	return nil
}

func isHex(s string, wantLen int) bool {
	if len(s) != wantLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// IsValidTimestamp reports whether CreatedAt is acceptable given the
// configured future-rejection window. A nil window means no bound is
// enforced: every CreatedAt is accepted, so future-dated events are
// neither dropped nor answered with a notice.
func (e Event) IsValidTimestamp(nowUnix int64, rejectFutureSeconds *int) bool {
	if rejectFutureSeconds == nil {
		return true
	}
	return e.CreatedAt <= nowUnix+int64(*rejectFutureSeconds)
}

// TagValues returns all values of tags whose name (first element)
// matches the given key, e.g. TagValues("e") for event references.
func (e Event) TagValues(key string) []string {
	var out []string
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == key {
			out = append(out, t[1])
		}
	}
	return out
}

// String implements fmt.Stringer for log lines.
func (e Event) String() string {
	return "event:" + e.IDPrefix() + ":kind" + strconv.Itoa(e.Kind)
}
