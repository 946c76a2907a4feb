package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested user or message does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsOnline     bool
	LastSeenAt   *time.Time
	CreatedAt    time.Time
}

// UserSummary is the slim user projection used in presence listings.
type UserSummary struct {
	ID       int64
	Username string
}

// Message represents a persisted chat message.
// RecipientID is nil for broadcast messages.
type Message struct {
	ID          int64
	SenderID    int64
	RecipientID *int64
	Content     string
	IsRead      bool
	IsEdited    bool
	EditedAt    *time.Time
	CreatedAt   time.Time

	// SenderUsername is populated by list queries only.
	SenderUsername string
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SetUserOnlineState records a presence transition for a user.
	SetUserOnlineState(ctx context.Context, id int64, online bool, lastSeenAt time.Time) error

	// ListOnlineUsers lists summaries of users currently flagged online.
	ListOnlineUsers(ctx context.Context) ([]*UserSummary, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message and returns it with ID and timestamp set.
	// recipientID nil means broadcast.
	CreateMessage(ctx context.Context, senderID int64, recipientID *int64, content string, isRead bool) (*Message, error)

	// GetMessageByID retrieves a message by ID.
	GetMessageByID(ctx context.Context, id int64) (*Message, error)

	// SetMessageRead flips the read flag on a message.
	SetMessageRead(ctx context.Context, id int64) error

	// ListBroadcastMessages retrieves broadcast messages, oldest first.
	// If beforeID is provided, returns only messages older than that ID.
	// Limit determines max number of messages to return.
	ListBroadcastMessages(ctx context.Context, limit int, beforeID *int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
