package core

import "sort"

// Registry is the process-wide table of live connections per user. It is the
// single source of truth for online/offline state: a user is online exactly
// while at least one of their clients is registered.
//
// Registry is not safe for concurrent use; the hub goroutine owns it and all
// mutations happen between suspension points.
type Registry struct {
	conns map[int64]map[*Client]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[int64]map[*Client]struct{}),
	}
}

// Add inserts a client. Returns true when this is the user's first live
// connection, i.e. the user just transitioned to online.
func (r *Registry) Add(c *Client) bool {
	set, ok := r.conns[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		r.conns[c.UserID] = set
	}
	set[c] = struct{}{}
	return !ok
}

// Remove deletes a client. removed is false for a client that was never
// registered or already removed, making duplicate unregisters harmless.
// last is true when the user's final connection went away.
func (r *Registry) Remove(c *Client) (removed, last bool) {
	set, ok := r.conns[c.UserID]
	if !ok {
		return false, false
	}
	if _, ok := set[c]; !ok {
		return false, false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, c.UserID)
		return true, true
	}
	return true, false
}

// IsOnline reports whether the user holds at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	return len(r.conns[userID]) > 0
}

// ConnectionsOf returns the live connections of a user.
func (r *Registry) ConnectionsOf(userID int64) []*Client {
	set := r.conns[userID]
	if len(set) == 0 {
		return nil
	}
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}

// Each invokes fn for every live connection of every user.
func (r *Registry) Each(fn func(*Client)) {
	for _, set := range r.conns {
		for c := range set {
			fn(c)
		}
	}
}

// Snapshot returns summaries of currently online users, sorted by id.
func (r *Registry) Snapshot() []UserSummary {
	users := make([]UserSummary, 0, len(r.conns))
	for userID, set := range r.conns {
		// All connections of a user share the same handle.
		for c := range set {
			users = append(users, UserSummary{ID: userID, Handle: c.Handle})
			break
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}
