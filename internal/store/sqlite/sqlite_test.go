package sqlite

import (
	"context"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, username, displayName string) int64 {
	t.Helper()

	u, err := s.CreateUser(context.Background(), username, displayName, "hash")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u.ID
}

func TestUserLookupByDisplayName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := seedUser(t, s, "acme", "Acme Robotics")

	u, err := s.GetUserByDisplayName(ctx, "Acme Robotics")
	if err != nil {
		t.Fatalf("GetUserByDisplayName failed: %v", err)
	}
	if u.ID != id || u.Username != "acme" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := s.GetUserByDisplayName(ctx, "Nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPartnersExcludesSelf(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	me := seedUser(t, s, "me", "Me Inc")
	seedUser(t, s, "acme", "Acme Robotics")
	seedUser(t, s, "zephyr", "Zephyr Labs")

	partners, err := s.ListPartners(ctx, me)
	if err != nil {
		t.Fatalf("ListPartners failed: %v", err)
	}
	if len(partners) != 2 {
		t.Fatalf("expected 2 partners, got %d", len(partners))
	}
	for _, p := range partners {
		if p.ID == me {
			t.Fatalf("partner list contains the excluded user: %+v", p)
		}
	}
	if partners[0].DisplayName != "Acme Robotics" || partners[1].DisplayName != "Zephyr Labs" {
		t.Fatalf("unexpected partner ordering: %+v", partners)
	}
}

func TestSaveMessageAssignsIdentityAndNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice", "Alice")
	bob := seedUser(t, s, "bob", "Bob")

	msg, err := s.SaveMessage(ctx, alice, bob, "hello", "")
	if err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}
	if msg.ID == 0 {
		t.Fatal("expected server-assigned id")
	}
	if msg.SenderName != "Alice" || msg.ReceiverName != "Bob" {
		t.Fatalf("expected denormalized names, got %+v", msg)
	}
	if msg.CreatedAt.IsZero() {
		t.Fatal("expected server-assigned timestamp")
	}
	if msg.Read {
		t.Fatal("new messages must start unread")
	}
}

func TestMessagesBetweenOrderedBothDirections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice", "Alice")
	bob := seedUser(t, s, "bob", "Bob")
	carol := seedUser(t, s, "carol", "Carol")

	if _, err := s.SaveMessage(ctx, alice, bob, "first", ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.SaveMessage(ctx, bob, alice, "second", ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Noise from an unrelated conversation must not leak in.
	if _, err := s.SaveMessage(ctx, carol, alice, "noise", ""); err != nil {
		t.Fatalf("save: %v", err)
	}

	msgs, err := s.MessagesBetween(ctx, alice, bob)
	if err != nil {
		t.Fatalf("MessagesBetween failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Fatalf("unexpected ordering: %q then %q", msgs[0].Content, msgs[1].Content)
	}
}

func TestUnreadSummaryAndMarkRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice", "Alice")
	bob := seedUser(t, s, "bob", "Bob")
	carol := seedUser(t, s, "carol", "Carol")

	for i := 0; i < 2; i++ {
		if _, err := s.SaveMessage(ctx, bob, alice, "from bob", ""); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		if _, err := s.SaveMessage(ctx, carol, alice, "from carol", ""); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	summary, err := s.UnreadSummary(ctx, alice)
	if err != nil {
		t.Fatalf("UnreadSummary failed: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(summary))
	}
	if summary[0].SenderName != "Bob" || summary[0].UnreadCount != 2 {
		t.Fatalf("unexpected entry: %+v", summary[0])
	}
	if summary[1].SenderName != "Carol" || summary[1].UnreadCount != 5 {
		t.Fatalf("unexpected entry: %+v", summary[1])
	}

	changed, err := s.MarkConversationRead(ctx, alice, carol)
	if err != nil {
		t.Fatalf("MarkConversationRead failed: %v", err)
	}
	if changed != 5 {
		t.Fatalf("expected 5 rows marked, got %d", changed)
	}

	summary, err = s.UnreadSummary(ctx, alice)
	if err != nil {
		t.Fatalf("UnreadSummary failed: %v", err)
	}
	if len(summary) != 1 || summary[0].SenderName != "Bob" {
		t.Fatalf("expected only Bob left unread, got %+v", summary)
	}

	// Marking an already-read conversation is a no-op.
	changed, err = s.MarkConversationRead(ctx, alice, carol)
	if err != nil {
		t.Fatalf("MarkConversationRead failed: %v", err)
	}
	if changed != 0 {
		t.Fatalf("expected 0 rows marked, got %d", changed)
	}
}
