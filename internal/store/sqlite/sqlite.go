package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/venturesroom/venturechat/internal/store"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	logo_path     TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id   INTEGER NOT NULL REFERENCES users(id),
	receiver_id INTEGER NOT NULL REFERENCES users(id),
	content     TEXT NOT NULL DEFAULT '',
	image_url   TEXT NOT NULL DEFAULT '',
	read        BOOLEAN NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_pair
	ON messages (sender_id, receiver_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_unread
	ON messages (receiver_id, read);
`

// New creates a new SQLite store and ensures the schema exists.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
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
func (s *SQLiteStore) CreateUser(ctx context.Context, username, displayName, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, display_name, password_hash)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, displayName, passwordHash)
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
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByUsername retrieves a user by login name.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

// GetUserByDisplayName resolves a wire-level display name to a user.
func (s *SQLiteStore) GetUserByDisplayName(ctx context.Context, displayName string) (*store.User, error) {
	return s.getUser(ctx, "display_name = ?", displayName)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*store.User, error) {
	query := `
		SELECT id, username, display_name, password_hash, logo_path, created_at
		FROM users
		WHERE ` + where

	var user store.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.PasswordHash,
		&user.LogoPath,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ListPartners lists users the given user may converse with.
func (s *SQLiteStore) ListPartners(ctx context.Context, excludeUserID int64) ([]*store.Partner, error) {
	query := `
		SELECT id, display_name, logo_path
		FROM users
		WHERE id != ?
		ORDER BY display_name
	`
	rows, err := s.db.QueryContext(ctx, query, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("query partners: %w", err)
	}
	defer rows.Close()

	partners := []*store.Partner{}
	for rows.Next() {
		var p store.Partner
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.LogoPath); err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		partners = append(partners, &p)
	}
	return partners, rows.Err()
}

// ==== MessageStore implementation ====

const messageSelect = `
	SELECT m.id, m.sender_id, m.receiver_id,
	       su.display_name, ru.display_name,
	       m.content, m.image_url, m.read, m.created_at
	FROM messages m
	JOIN users su ON su.id = m.sender_id
	JOIN users ru ON ru.id = m.receiver_id`

// SaveMessage persists a message and returns it with server identity.
func (s *SQLiteStore) SaveMessage(ctx context.Context, senderID, receiverID int64, content, imageURL string) (*store.Message, error) {
	query := `
		INSERT INTO messages (sender_id, receiver_id, content, image_url)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, senderID, receiverID, content, imageURL)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getMessage(ctx, id)
}

func (s *SQLiteStore) getMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := messageSelect + `
	WHERE m.id = ?`

	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.SenderName,
		&msg.ReceiverName,
		&msg.Content,
		&msg.ImageURL,
		&msg.Read,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return &msg, nil
}

// MessagesBetween returns the full conversation between two users,
// ordered by creation time ascending.
func (s *SQLiteStore) MessagesBetween(ctx context.Context, userID, partnerID int64) ([]*store.Message, error) {
	query := messageSelect + `
	WHERE (m.sender_id = ? AND m.receiver_id = ?)
	   OR (m.sender_id = ? AND m.receiver_id = ?)
	ORDER BY m.created_at ASC, m.id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, partnerID, partnerID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	messages := []*store.Message{}
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.SenderName,
			&msg.ReceiverName,
			&msg.Content,
			&msg.ImageURL,
			&msg.Read,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// MarkConversationRead marks all messages from sender to receiver as read.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, receiverID, senderID int64) (int64, error) {
	query := `
		UPDATE messages
		SET read = 1
		WHERE receiver_id = ? AND sender_id = ? AND read = 0
	`
	result, err := s.db.ExecContext(ctx, query, receiverID, senderID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return result.RowsAffected()
}

// UnreadSummary returns per-sender unread counts for the receiver.
func (s *SQLiteStore) UnreadSummary(ctx context.Context, receiverID int64) ([]*store.UnreadEntry, error) {
	query := `
		SELECT su.display_name, COUNT(*)
		FROM messages m
		JOIN users su ON su.id = m.sender_id
		WHERE m.receiver_id = ? AND m.read = 0
		GROUP BY m.sender_id
		ORDER BY su.display_name
	`
	rows, err := s.db.QueryContext(ctx, query, receiverID)
	if err != nil {
		return nil, fmt.Errorf("query unread summary: %w", err)
	}
	defer rows.Close()

	entries := []*store.UnreadEntry{}
	for rows.Next() {
		var e store.UnreadEntry
		if err := rows.Scan(&e.SenderName, &e.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan unread entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
