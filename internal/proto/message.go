package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	// BroadcastTarget is the sentinel recipient addressing everyone online.
	BroadcastTarget = "all"

	InboundTypeHello  = "hello"
	InboundTypeSend   = "send"
	InboundTypeTyping = "typing"
	InboundTypeRead   = "read"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventUserJoined  = "user-joined"
	EventUserLeft    = "user-left"
	EventMessage     = "message"
	EventTyping      = "typing"
	EventMessageRead = "message-read"
	EventOnlineUsers = "online-users"
)

// HelloData carries the credential; it must be the first inbound frame.
type HelloData struct {
	Token string `json:"token"`
}

// SendData is a chat message from the client. To is either "all" or a
// decimal user id.
type SendData struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

// TypingData toggles the typing indicator toward a target.
type TypingData struct {
	To       string `json:"to"`
	IsTyping bool   `json:"isTyping"`
}

// ReadData marks a received private message as read.
type ReadData struct {
	MessageID int64 `json:"messageId"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// UserRef identifies a user in outbound payloads.
type UserRef struct {
	ID     int64  `json:"id"`
	Handle string `json:"handle"`
}

// PresenceData notifies that a user came online or went offline.
type PresenceData struct {
	UserID int64  `json:"userId"`
	Handle string `json:"handle"`
}

// MessageData is the canonical delivered-message payload. Recipient is
// either a UserRef or the string "all".
type MessageData struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    UserRef   `json:"sender"`
	Recipient any       `json:"recipient"`
	IsRead    bool      `json:"isRead"`
}

// TypingEventData relays a typing indicator to channel subscribers.
type TypingEventData struct {
	UserID   int64  `json:"userId"`
	Handle   string `json:"handle"`
	IsTyping bool   `json:"isTyping"`
	Private  bool   `json:"private"`
}

// MessageReadData notifies a sender that its message was read.
type MessageReadData struct {
	MessageID int64 `json:"messageId"`
}

// OnlineUsersData delivers the online snapshot on connect.
type OnlineUsersData struct {
	Users []UserRef `json:"users"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
