package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	// InboundTypeSendMessage matches the legacy relay's frame tag; clients
	// in the field still send the upper-case literal.
	InboundTypeSendMessage = "SEND_MESSAGE"
	// InboundTypeMarkRead acknowledges a conversation as read.
	InboundTypeMarkRead = "MARK_READ"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameMessage       = "message"
	EventNameUnreadChanged = "unread_changed"
)

// SendMessageData is a direct message from the client.
type SendMessageData struct {
	ReceiverName string `json:"receiverName"`
	Content      string `json:"content"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

// MarkReadData acknowledges all messages from SenderName as read.
type MarkReadData struct {
	SenderName string `json:"senderName"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is a persisted direct message pushed to a session.
type EventMessage struct {
	ID           int64  `json:"id"`
	SenderName   string `json:"senderName"`
	ReceiverName string `json:"receiverName"`
	Content      string `json:"content"`
	ImageURL     string `json:"imageUrl,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
