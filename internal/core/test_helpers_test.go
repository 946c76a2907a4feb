package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"pulsechat/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent fails the test if an event of the given kind shows up within the
// grace window. Events of other kinds are consumed and ignored.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v received: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// fakeStore is an in-memory store.Store with failure injection and a gate to
// stall message persistence mid-flight.
type fakeStore struct {
	mu       sync.Mutex
	users    map[int64]*store.User
	messages map[int64]*store.Message
	nextID   int64

	failCreateMessage bool
	failSetRead       bool
	createGate        chan struct{} // CreateMessage blocks until closed, if set
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*store.User),
		messages: make(map[int64]*store.Message),
	}
}

func (f *fakeStore) addUser(id int64, username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &store.User{ID: id, Username: username, CreatedAt: time.Now()}
}

func (f *fakeStore) addMessage(senderID int64, recipientID *int64, content string, isRead bool) *store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg := &store.Message{
		ID:          f.nextID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		IsRead:      isRead,
		CreatedAt:   time.Now(),
	}
	f.messages[msg.ID] = msg
	return msg
}

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeStore) message(id int64) *store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[id]
}

func (f *fakeStore) CreateUser(_ context.Context, username, passwordHash string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user := &store.User{ID: f.nextID, Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) SetUserOnlineState(_ context.Context, id int64, online bool, lastSeenAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.IsOnline = online
	user.LastSeenAt = &lastSeenAt
	return nil
}

func (f *fakeStore) ListOnlineUsers(_ context.Context) ([]*store.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summaries := make([]*store.UserSummary, 0)
	for _, user := range f.users {
		if user.IsOnline {
			summaries = append(summaries, &store.UserSummary{ID: user.ID, Username: user.Username})
		}
	}
	return summaries, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, senderID int64, recipientID *int64, content string, isRead bool) (*store.Message, error) {
	f.mu.Lock()
	gate := f.createGate
	fail := f.failCreateMessage
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		return nil, fmt.Errorf("disk full")
	}
	return f.addMessage(senderID, recipientID, content, isRead), nil
}

func (f *fakeStore) GetMessageByID(_ context.Context, id int64) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeStore) SetMessageRead(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetRead {
		return fmt.Errorf("disk full")
	}
	msg, ok := f.messages[id]
	if !ok {
		return store.ErrNotFound
	}
	msg.IsRead = true
	return nil
}

func (f *fakeStore) ListBroadcastMessages(_ context.Context, limit int, beforeID *int64) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	messages := make([]*store.Message, 0)
	for _, msg := range f.messages {
		if msg.RecipientID == nil {
			copied := *msg
			messages = append(messages, &copied)
		}
	}
	return messages, nil
}

func (f *fakeStore) Close() error { return nil }
