package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSendMessage persists a direct message and fans it out to the
	// sender's and receiver's connected sessions.
	CommandSendMessage CommandKind = iota
	// CommandMarkRead marks a conversation partner's messages as read.
	CommandMarkRead
)

// Command represents an action requested by a connected client.
type Command struct {
	Kind CommandKind

	// SendMessage fields.
	Receiver string
	Content  string
	ImageURL string

	// MarkRead: the partner whose messages should be marked read.
	Partner string
}
