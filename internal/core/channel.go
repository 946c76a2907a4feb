package core

import "fmt"

// BroadcastChannel is the key of the single channel every connected user
// subscribes to.
const BroadcastChannel = "all"

// PairKey returns the deterministic, order-independent key of the pairwise
// channel for two users.
func PairKey(a, b int64) (string, error) {
	if a == b {
		return "", ErrSelfPair
	}
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%d:%d", a, b), nil
}

// Router resolves channel keys to the connections that must receive an event.
// Membership is derived from the live connection set at publish time rather
// than kept in per-channel subscription tables: the broadcast channel is every
// registered connection, a pairwise channel is the connections of its two
// member ids. Pair channels are recorded lazily and carry no state beyond the
// member pair, so the whole table is recoverable from the registry alone.
//
// Router is owned by the hub goroutine and is not safe for concurrent use.
type Router struct {
	registry *Registry
	pairs    map[string][2]int64
}

// NewRouter constructs a router over the given registry.
func NewRouter(registry *Registry) *Router {
	return &Router{
		registry: registry,
		pairs:    make(map[string][2]int64),
	}
}

// EnsurePair lazily records the pairwise channel for two users and returns
// its key. Recording an already-known pair is a no-op.
func (r *Router) EnsurePair(a, b int64) (string, error) {
	key, err := PairKey(a, b)
	if err != nil {
		return "", err
	}
	if _, ok := r.pairs[key]; !ok {
		if a > b {
			a, b = b, a
		}
		r.pairs[key] = [2]int64{a, b}
	}
	return key, nil
}

// HasPair reports whether the pairwise channel has been recorded.
func (r *Router) HasPair(a, b int64) bool {
	key, err := PairKey(a, b)
	if err != nil {
		return false
	}
	_, ok := r.pairs[key]
	return ok
}

// Publish delivers the event to every connection currently subscribed to the
// channel. Unknown channel keys deliver to nobody.
func (r *Router) Publish(channelKey string, event *Event) {
	r.PublishExcept(channelKey, event, nil)
}

// PublishExcept delivers the event to the channel's connections, skipping the
// excluded connection. Delivery to a slow or stale connection is dropped
// rather than treated as an error; the next disconnect cycle cleans it up.
func (r *Router) PublishExcept(channelKey string, event *Event, except *Client) {
	if channelKey == BroadcastChannel {
		r.registry.Each(func(c *Client) {
			if c != except {
				deliver(c, event)
			}
		})
		return
	}

	pair, ok := r.pairs[channelKey]
	if !ok {
		return
	}
	for _, userID := range pair {
		for _, c := range r.registry.ConnectionsOf(userID) {
			if c != except {
				deliver(c, event)
			}
		}
	}
}

func deliver(c *Client, event *Event) {
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer.
	}
}
