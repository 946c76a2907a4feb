package core

import "sync"

// Client ties one transport-level session to exactly one user for its
// lifetime. A user may hold several clients at once (multiple tabs/devices).
type Client struct {
	ID     string
	UserID int64
	Handle string

	Commands chan *Command
	Events   chan *Event

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, userID int64, handle string) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Handle:   handle,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
		closed:   make(chan struct{}),
	}
}

// Summary returns the user projection used in outbound events.
func (c *Client) Summary() UserSummary {
	return UserSummary{ID: c.UserID, Handle: c.Handle}
}

// Closed is signalled once the hub has unregistered the client. The transport
// write loop may also use it to stop draining Events.
func (c *Client) Closed() <-chan struct{} {
	return c.closed
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}
