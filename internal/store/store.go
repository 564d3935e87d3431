package store

import (
	"context"
	"time"
)

// User represents a registered account. Display names are what the wire
// protocol is keyed by; the integer ID is the stable internal identity.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	LogoPath     string
	CreatedAt    time.Time
}

// Message represents a persisted direct message between two users.
// Sender/receiver display names are denormalized on read so transport
// layers never have to resolve IDs themselves.
type Message struct {
	ID           int64
	SenderID     int64
	ReceiverID   int64
	SenderName   string
	ReceiverName string
	Content      string
	ImageURL     string
	Read         bool
	CreatedAt    time.Time
}

// UnreadEntry is one row of a receiver's unread summary.
type UnreadEntry struct {
	SenderName  string
	UnreadCount int
}

// Partner is a user as presented in the conversable-partners list.
type Partner struct {
	ID          int64
	DisplayName string
	LogoPath    string
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, displayName, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by login name.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByDisplayName resolves a wire-level display name to a user.
	GetUserByDisplayName(ctx context.Context, displayName string) (*User, error)

	// ListPartners lists users the given user may converse with.
	ListPartners(ctx context.Context, excludeUserID int64) ([]*Partner, error)
}

// MessageStore handles message persistence and read tracking.
type MessageStore interface {
	// SaveMessage persists a message and returns it with server-assigned
	// identity and timestamp.
	SaveMessage(ctx context.Context, senderID, receiverID int64, content, imageURL string) (*Message, error)

	// MessagesBetween returns the full conversation between two users,
	// ordered by creation time ascending.
	MessagesBetween(ctx context.Context, userID, partnerID int64) ([]*Message, error)

	// MarkConversationRead marks all messages from sender to receiver as
	// read and reports how many rows changed.
	MarkConversationRead(ctx context.Context, receiverID, senderID int64) (int64, error)

	// UnreadSummary returns per-sender unread counts for the receiver.
	// Senders with zero unread messages are not included.
	UnreadSummary(ctx context.Context, receiverID int64) ([]*UnreadEntry, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
