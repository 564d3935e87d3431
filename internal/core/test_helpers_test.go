package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/venturesroom/venturechat/internal/store"
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

// fakePersistence is an in-memory Persistence for hub tests.
type fakePersistence struct {
	users   map[string]*store.User
	nextID  int64
	saveErr error
	marked  [][2]int64
}

func newFakePersistence(names ...string) *fakePersistence {
	f := &fakePersistence{users: make(map[string]*store.User)}
	for i, name := range names {
		f.users[name] = &store.User{ID: int64(i + 1), DisplayName: name}
	}
	return f
}

func (f *fakePersistence) GetUserByDisplayName(_ context.Context, displayName string) (*store.User, error) {
	u, ok := f.users[displayName]
	if !ok {
		return nil, fmt.Errorf("no such user %q", displayName)
	}
	return u, nil
}

func (f *fakePersistence) SaveMessage(_ context.Context, senderID, receiverID int64, content, imageURL string) (*store.Message, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.nextID++
	var senderName, receiverName string
	for _, u := range f.users {
		if u.ID == senderID {
			senderName = u.DisplayName
		}
		if u.ID == receiverID {
			receiverName = u.DisplayName
		}
	}
	return &store.Message{
		ID:           f.nextID,
		SenderID:     senderID,
		ReceiverID:   receiverID,
		SenderName:   senderName,
		ReceiverName: receiverName,
		Content:      content,
		ImageURL:     imageURL,
		CreatedAt:    time.Now(),
	}, nil
}

func (f *fakePersistence) MarkConversationRead(_ context.Context, receiverID, senderID int64) (int64, error) {
	f.marked = append(f.marked, [2]int64{receiverID, senderID})
	return 1, nil
}
