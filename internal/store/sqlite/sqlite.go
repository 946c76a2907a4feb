package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pulsechat/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_online     BOOLEAN NOT NULL DEFAULT 0,
	last_seen_at  DATETIME,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id    INTEGER NOT NULL,
	recipient_id INTEGER,
	content      TEXT NOT NULL,
	is_read      BOOLEAN NOT NULL DEFAULT 0,
	is_edited    BOOLEAN NOT NULL DEFAULT 0,
	edited_at    DATETIME,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (sender_id) REFERENCES users(id),
	FOREIGN KEY (recipient_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_broadcast ON messages(created_at DESC) WHERE recipient_id IS NULL;
CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_users_online ON users(is_online);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_online, last_seen_at, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_online, last_seen_at, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	var lastSeen sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsOnline,
		&lastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	if lastSeen.Valid {
		user.LastSeenAt = &lastSeen.Time
	}

	return &user, nil
}

// SetUserOnlineState records a presence transition for a user.
func (s *SQLiteStore) SetUserOnlineState(ctx context.Context, id int64, online bool, lastSeenAt time.Time) error {
	query := `
		UPDATE users
		SET is_online = ?, last_seen_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, online, lastSeenAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("update online state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}

	return nil
}

// ListOnlineUsers lists summaries of users currently flagged online.
func (s *SQLiteStore) ListOnlineUsers(ctx context.Context) ([]*store.UserSummary, error) {
	query := `
		SELECT id, username
		FROM users
		WHERE is_online = 1
		ORDER BY username
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query online users: %w", err)
	}
	defer rows.Close()

	summaries := make([]*store.UserSummary, 0)
	for rows.Next() {
		var u store.UserSummary
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, fmt.Errorf("scan online user: %w", err)
		}
		summaries = append(summaries, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate online users: %w", err)
	}

	return summaries, nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a message and returns it with ID and timestamp set.
func (s *SQLiteStore) CreateMessage(ctx context.Context, senderID int64, recipientID *int64, content string, isRead bool) (*store.Message, error) {
	query := `
		INSERT INTO messages (sender_id, recipient_id, content, is_read)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, senderID, recipientID, content, isRead)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetMessageByID(ctx, id)
}

// GetMessageByID retrieves a message by ID.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, sender_id, recipient_id, content, is_read, is_edited, edited_at, created_at
		FROM messages
		WHERE id = ?
	`
	var msg store.Message
	var recipientID sql.NullInt64
	var editedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.SenderID,
		&recipientID,
		&msg.Content,
		&msg.IsRead,
		&msg.IsEdited,
		&editedAt,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	if recipientID.Valid {
		msg.RecipientID = &recipientID.Int64
	}
	if editedAt.Valid {
		msg.EditedAt = &editedAt.Time
	}

	return &msg, nil
}

// SetMessageRead flips the read flag on a message.
func (s *SQLiteStore) SetMessageRead(ctx context.Context, id int64) error {
	query := `
		UPDATE messages
		SET is_read = 1
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("update message read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}

	return nil
}

// ListBroadcastMessages retrieves broadcast messages, oldest first.
func (s *SQLiteStore) ListBroadcastMessages(ctx context.Context, limit int, beforeID *int64) ([]*store.Message, error) {
	// Fetch newest-first so LIMIT keeps the most recent page, then reverse.
	query := `
		SELECT m.id, m.sender_id, m.content, m.is_read, m.is_edited, m.edited_at, m.created_at, u.username
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.recipient_id IS NULL
	`
	args := []any{}
	if beforeID != nil {
		query += " AND m.id < ?"
		args = append(args, *beforeID)
	}
	query += " ORDER BY m.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query broadcast messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var msg store.Message
		var editedAt sql.NullTime
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.Content,
			&msg.IsRead,
			&msg.IsEdited,
			&editedAt,
			&msg.CreatedAt,
			&msg.SenderUsername,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if editedAt.Valid {
			msg.EditedAt = &editedAt.Time
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse to oldest-first for chronological rendering.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
