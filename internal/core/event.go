package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage carries a chat message to channel subscribers.
	EventMessage EventKind = iota
	// EventUserJoined notifies that a user came online.
	EventUserJoined
	// EventUserLeft notifies that a user went offline.
	EventUserLeft
	// EventTyping relays a transient typing indicator.
	EventTyping
	// EventMessageRead notifies a sender that its message was read.
	EventMessageRead
	// EventOnlineUsers delivers the online snapshot to a client on connect.
	EventOnlineUsers
	// EventError reports a domain error to the originating client only.
	EventError
)

// UserSummary identifies a user in outbound payloads.
type UserSummary struct {
	ID     int64
	Handle string
}

// Message is the canonical outbound payload for a delivered chat message.
// Recipient is nil for broadcast messages.
type Message struct {
	ID        int64
	Sender    UserSummary
	Recipient *UserSummary
	Content   string
	CreatedAt time.Time
	IsRead    bool
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind      EventKind
	User      UserSummary   // joined/left/typing subject
	Message   *Message      // for EventMessage
	IsTyping  bool          // for EventTyping
	Private   bool          // for EventTyping: pairwise vs broadcast
	MessageID int64         // for EventMessageRead
	Users     []UserSummary // for EventOnlineUsers
	Error     *CoreError    // for EventError
}
