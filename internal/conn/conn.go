// Package conn holds per-connection client state: identity and the
// active subscription table. A ClientConn is owned exclusively by the
// connection engine that created it and is never aliased across
// goroutines without its own lock.
package conn

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
)

// ErrTooManySubscriptions is returned by Subscribe when the connection
// is already at its configured subscription cap.
var ErrTooManySubscriptions = errors.New("too many subscriptions")

// ClientConn tracks one WebSocket client's identity and subscriptions.
type ClientConn struct {
	prefix  string
	ip      string
	maxSubs int

	mu   sync.Mutex
	subs map[string]*nostrcore.Subscription
}

// New creates a ClientConn for a newly accepted socket from the given
// remote IP, capped at maxSubs simultaneous subscriptions.
func New(ip string, maxSubs int) *ClientConn {
	return &ClientConn{
		prefix:  generatePrefix(),
		ip:      ip,
		maxSubs: maxSubs,
		subs:    make(map[string]*nostrcore.Subscription),
	}
}

// Prefix returns the short random id used in logs and metrics.
func (c *ClientConn) Prefix() string { return c.prefix }

// IP returns the client's remote address.
func (c *ClientConn) IP() string { return c.ip }

// HasSubscription reports whether a subscription with this id is
// already registered.
func (c *ClientConn) HasSubscription(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[id]
	return ok
}

// Subscribe registers a new subscription, failing if the connection is
// already at its subscription cap. A duplicate id is rejected by the
// caller before Subscribe is reached (spec §4.4 handles that as a
// separate, silently-ignored case).
func (c *ClientConn) Subscribe(sub nostrcore.Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxSubs > 0 && len(c.subs) >= c.maxSubs {
		return ErrTooManySubscriptions
	}
	s := sub
	c.subs[sub.ID] = &s
	return nil
}

// Unsubscribe removes a subscription; a no-op if it does not exist.
func (c *ClientConn) Unsubscribe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

// Count returns the number of active subscriptions.
func (c *ClientConn) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Snapshot returns a point-in-time copy of the subscription table,
// safe to range over without holding the connection's lock.
func (c *ClientConn) Snapshot() map[string]*nostrcore.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*nostrcore.Subscription, len(c.subs))
	for id, s := range c.subs {
		out[id] = s
	}
	return out
}

func generatePrefix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(buf)
}
