package core

import "time"

// Message is the domain model for a direct chat message.
type Message struct {
	ID           int64
	SenderName   string
	ReceiverName string
	Content      string
	ImageURL     string
	Read         bool
	CreatedAt    time.Time
}
