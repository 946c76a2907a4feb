package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pulsechat/internal/store"
)

// defaultMaxContentLength bounds message content after trimming.
const defaultMaxContentLength = 1000

// Hub is the presence and message-routing coordinator. A single goroutine
// (Run) owns the registry and router; every in-memory mutation happens on
// that goroutine, so no handler can observe a half-updated membership table.
//
// Operations that need the storage collaborator suspend by running the call
// in its own goroutine and re-entering the loop through the tasks channel
// once the write is acknowledged. A hung store call therefore stalls only
// the operation awaiting it, never the registry.
type Hub struct {
	store store.Store
	log   zerolog.Logger

	registry *Registry
	router   *Router

	register   chan *Client
	unregister chan *Client
	queue      chan queuedCommand
	tasks      chan func()
	snapshots  chan chan []UserSummary
	stopped    chan struct{}

	maxContentLen int
}

type queuedCommand struct {
	client *Client
	cmd    *Command
}

// Option configures a Hub.
type Option func(*Hub)

// WithMaxContentLength overrides the message content length bound.
func WithMaxContentLength(n int) Option {
	return func(h *Hub) { h.maxContentLen = n }
}

// NewHub creates a new chat hub instance. A nil logger disables logging.
func NewHub(st store.Store, logger *zerolog.Logger, opts ...Option) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		store:         st,
		log:           *logger,
		registry:      NewRegistry(),
		router:        nil,
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		queue:         make(chan queuedCommand, 64),
		tasks:         make(chan func(), 64),
		snapshots:     make(chan chan []UserSummary),
		stopped:       make(chan struct{}),
		maxContentLen: defaultMaxContentLength,
	}
	h.router = NewRouter(h.registry)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes commands until ctx is cancelled. It must be called exactly
// once, before any client is registered.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleUnregister(ctx, c)
		case q := <-h.queue:
			h.handleCommand(ctx, q.client, q.cmd)
		case fn := <-h.tasks:
			fn()
		case reply := <-h.snapshots:
			reply <- h.registry.Snapshot()
		}
	}
}

// RegisterClient admits an authenticated client to the hub and starts
// forwarding its commands. The caller must have verified the credential
// already; the hub never sees unauthenticated connections.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
		go h.pump(c)
	case <-h.stopped:
	}
}

// UnregisterClient removes a client. Safe to call more than once.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
		c.close()
	}
}

// Snapshot returns the current set of online users.
func (h *Hub) Snapshot(ctx context.Context) []UserSummary {
	reply := make(chan []UserSummary, 1)
	select {
	case h.snapshots <- reply:
	case <-ctx.Done():
		return nil
	case <-h.stopped:
		return nil
	}
	select {
	case users := <-reply:
		return users
	case <-ctx.Done():
		return nil
	}
}

// pump forwards the client's commands into the hub queue until the client
// is closed.
func (h *Hub) pump(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			select {
			case h.queue <- queuedCommand{client: c, cmd: cmd}:
			case <-c.Closed():
				return
			case <-h.stopped:
				return
			}
		case <-c.Closed():
			return
		case <-h.stopped:
			return
		}
	}
}

// resume schedules fn back onto the hub goroutine after a storage call.
// Completions for a given channel run in the order their writes finished.
func (h *Hub) resume(ctx context.Context, fn func()) {
	select {
	case h.tasks <- fn:
	case <-ctx.Done():
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	first := h.registry.Add(c)
	if first {
		h.router.PublishExcept(BroadcastChannel, &Event{Kind: EventUserJoined, User: c.Summary()}, c)
		h.persistPresence(ctx, c.UserID, true)
		h.log.Debug().Int64("user_id", c.UserID).Str("handle", c.Handle).Msg("user online")
	}
	// Answer "who is online" for the connecting client.
	deliver(c, &Event{Kind: EventOnlineUsers, Users: h.registry.Snapshot()})
}

func (h *Hub) handleUnregister(ctx context.Context, c *Client) {
	removed, last := h.registry.Remove(c)
	c.close()
	if !removed {
		return
	}
	if last {
		h.router.PublishExcept(BroadcastChannel, &Event{Kind: EventUserLeft, User: c.Summary()}, c)
		h.persistPresence(ctx, c.UserID, false)
		h.log.Debug().Int64("user_id", c.UserID).Str("handle", c.Handle).Msg("user offline")
	}
}

// persistPresence mirrors a presence transition into the store, best effort.
// The in-memory registry is already correct, so routing stays consistent
// even if the durable flag is briefly stale.
func (h *Hub) persistPresence(ctx context.Context, userID int64, online bool) {
	if h.store == nil {
		return
	}
	now := time.Now()
	go func() {
		if err := h.store.SetUserOnlineState(ctx, userID, online, now); err != nil {
			h.log.Warn().Err(err).Int64("user_id", userID).Bool("online", online).
				Msg("failed to persist presence transition")
		}
	}()
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandSendMessage:
		h.handleSend(ctx, c, cmd)
	case CommandSetTyping:
		h.handleTyping(c, cmd)
	case CommandMarkRead:
		h.handleMarkRead(ctx, c, cmd)
	default:
		h.sendError(c, ErrCodeValidation, "unknown command")
	}
}

func (h *Hub) handleSend(ctx context.Context, c *Client, cmd *Command) {
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		h.sendError(c, ErrCodeValidation, "message content is required")
		return
	}
	if len(content) > h.maxContentLen {
		h.sendError(c, ErrCodeValidation, fmt.Sprintf("message content exceeds %d characters", h.maxContentLen))
		return
	}

	rcpt := cmd.Recipient
	if !rcpt.IsBroadcast() && rcpt.UserID() == c.UserID {
		h.sendError(c, ErrCodeInvalidArgument, "cannot send a private message to yourself")
		return
	}
	if h.store == nil {
		h.sendError(c, ErrCodePersistence, "message store unavailable")
		return
	}

	sender := c.Summary()
	// Broadcast messages are read by definition.
	isRead := rcpt.IsBroadcast()

	go func() {
		var recipient *UserSummary
		var recipientID *int64
		if !rcpt.IsBroadcast() {
			user, err := h.store.GetUserByID(ctx, rcpt.UserID())
			if err != nil {
				h.resume(ctx, func() {
					if errors.Is(err, store.ErrNotFound) {
						h.sendError(c, ErrCodeNotFound, "unknown recipient")
					} else {
						h.sendError(c, ErrCodePersistence, "failed to resolve recipient")
					}
				})
				return
			}
			recipient = &UserSummary{ID: user.ID, Handle: user.Username}
			recipientID = &user.ID
		}

		saved, err := h.store.CreateMessage(ctx, sender.ID, recipientID, content, isRead)
		h.resume(ctx, func() {
			if err != nil {
				h.log.Error().Err(err).Int64("sender_id", sender.ID).Msg("failed to persist message")
				h.sendError(c, ErrCodePersistence, "failed to send message")
				return
			}

			event := &Event{Kind: EventMessage, Message: &Message{
				ID:        saved.ID,
				Sender:    sender,
				Recipient: recipient,
				Content:   saved.Content,
				CreatedAt: saved.CreatedAt,
				IsRead:    saved.IsRead,
			}}

			if recipient == nil {
				h.router.Publish(BroadcastChannel, event)
				return
			}
			key, keyErr := h.router.EnsurePair(sender.ID, recipient.ID)
			if keyErr != nil {
				h.sendError(c, ErrCodeInvalidArgument, keyErr.Error())
				return
			}
			h.router.Publish(key, event)
		})
	}()
}

func (h *Hub) handleTyping(c *Client, cmd *Command) {
	event := &Event{
		Kind:     EventTyping,
		User:     c.Summary(),
		IsTyping: cmd.IsTyping,
		Private:  !cmd.Recipient.IsBroadcast(),
	}

	if cmd.Recipient.IsBroadcast() {
		h.router.PublishExcept(BroadcastChannel, event, c)
		return
	}
	if cmd.Recipient.UserID() == c.UserID {
		h.sendError(c, ErrCodeInvalidArgument, "cannot signal typing to yourself")
		return
	}
	key, err := h.router.EnsurePair(c.UserID, cmd.Recipient.UserID())
	if err != nil {
		h.sendError(c, ErrCodeInvalidArgument, err.Error())
		return
	}
	h.router.PublishExcept(key, event, c)
}

func (h *Hub) handleMarkRead(ctx context.Context, c *Client, cmd *Command) {
	if h.store == nil {
		h.sendError(c, ErrCodePersistence, "message store unavailable")
		return
	}

	readerID := c.UserID
	messageID := cmd.MessageID

	go func() {
		msg, err := h.store.GetMessageByID(ctx, messageID)
		if err != nil {
			h.resume(ctx, func() {
				if errors.Is(err, store.ErrNotFound) {
					h.sendError(c, ErrCodeNotFound, "message not found")
				} else {
					h.sendError(c, ErrCodePersistence, "failed to load message")
				}
			})
			return
		}

		// Only the recipient of an unread private message has authority over
		// the flag; anyone else is a silent no-op, not an error.
		if msg.RecipientID == nil || *msg.RecipientID != readerID || msg.IsRead {
			return
		}

		err = h.store.SetMessageRead(ctx, msg.ID)
		h.resume(ctx, func() {
			if err != nil {
				h.sendError(c, ErrCodePersistence, "failed to mark message read")
				return
			}
			key, keyErr := h.router.EnsurePair(msg.SenderID, readerID)
			if keyErr != nil {
				return
			}
			h.router.Publish(key, &Event{Kind: EventMessageRead, MessageID: msg.ID})
		})
	}()
}

func (h *Hub) sendError(c *Client, code, msg string) {
	deliver(c, &Event{Kind: EventError, Error: coreError(code, msg)})
}
