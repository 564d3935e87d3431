package core

// Client is one connected session of an authenticated user. A user may
// hold several sessions at once (multiple tabs/devices); the hub fans
// events out to all of them.
type Client struct {
	ID       string // connection id, unique per session
	UserID   int64
	Name     string // display name, the wire-level conversation key
	Commands chan *Command
	Events   chan *Event
}

// NewClient constructs a session with initialized channels.
func NewClient(id string, userID int64, name string) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Name:     name,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 8),
	}
}
