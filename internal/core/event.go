package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage notifies a session about a persisted direct message.
	EventMessage EventKind = iota
	// EventUnreadChanged signals that the recipient's unread state changed
	// and consumers should re-fetch their summary. Signal-only: no counts
	// are carried, so a stale producer can never poison a consumer cache.
	EventUnreadChanged
	// EventError notifies a session about a domain error.
	EventError
)

// Event is sent to sessions to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Message *Message
	Error   *CoreError
}
