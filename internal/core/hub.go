package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/venturesroom/venturechat/internal/metrics"
	"github.com/venturesroom/venturechat/internal/store"
)

// Persistence is the slice of storage the hub needs. A successfully
// acknowledged send has always been persisted before any session sees it.
type Persistence interface {
	GetUserByDisplayName(ctx context.Context, displayName string) (*store.User, error)
	SaveMessage(ctx context.Context, senderID, receiverID int64, content, imageURL string) (*store.Message, error)
	MarkConversationRead(ctx context.Context, receiverID, senderID int64) (int64, error)
}

// DeliverRequest carries one send through the persist-and-publish path.
// Both the HTTP send endpoint and the WebSocket relay funnel into it, so
// there is exactly one code path that can acknowledge a message.
type DeliverRequest struct {
	SenderID     int64
	SenderName   string
	ReceiverName string
	Content      string
	ImageURL     string
}

type submission struct {
	client *Client
	cmd    *Command
}

type deliverCall struct {
	req   DeliverRequest
	reply chan deliverResult
}

type deliverResult struct {
	msg *Message
	err error
}

// Hub coordinates connected sessions. All session-set mutation and all
// message delivery happens on the single Run goroutine.
type Hub struct {
	store Persistence
	log   *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	inbox      chan submission
	deliveries chan *deliverCall
	readNotes  chan string
	presence   chan chan map[string]struct{}

	clients map[*Client]struct{}
	byName  map[string]map[*Client]struct{}
}

// NewHub creates a hub backed by the given persistence.
func NewHub(st Persistence, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		store:      st,
		log:        logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbox:      make(chan submission, 64),
		deliveries: make(chan *deliverCall),
		readNotes:  make(chan string, 16),
		presence:   make(chan chan map[string]struct{}),
		clients:    make(map[*Client]struct{}),
		byName:     make(map[string]map[*Client]struct{}),
	}
}

// RegisterClient adds a session to the hub. Must be called after Run started.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient removes a session. Safe to call once per registered client.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Deliver persists a message and publishes it to every connected session of
// the sender and the receiver. It returns the server-authoritative message.
func (h *Hub) Deliver(ctx context.Context, req DeliverRequest) (*Message, error) {
	call := &deliverCall{req: req, reply: make(chan deliverResult, 1)}
	select {
	case h.deliveries <- call:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-call.reply:
		return res.msg, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NotifyRead tells every session of the named user that their unread state
// changed. Used by the HTTP mark-as-read path so other open tabs re-sync.
func (h *Hub) NotifyRead(userName string) {
	select {
	case h.readNotes <- userName:
	default:
		// Unread notes are hints; dropping one only delays a re-poll.
	}
}

// OnlineNames returns the display names with at least one open session.
func (h *Hub) OnlineNames(ctx context.Context) (map[string]struct{}, error) {
	reply := make(chan map[string]struct{}, 1)
	select {
	case h.presence <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case names := <-reply:
		return names, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run processes hub traffic until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case sub := <-h.inbox:
			h.handleCommand(ctx, sub.client, sub.cmd)
		case call := <-h.deliveries:
			msg, err := h.deliver(ctx, call.req)
			call.reply <- deliverResult{msg: msg, err: err}
		case name := <-h.readNotes:
			h.publishToUser(name, &Event{Kind: EventUnreadChanged})
		case reply := <-h.presence:
			names := make(map[string]struct{}, len(h.byName))
			for name := range h.byName {
				names[name] = struct{}{}
			}
			reply <- names
		}
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	h.clients[c] = struct{}{}
	sessions := h.byName[c.Name]
	if sessions == nil {
		sessions = make(map[*Client]struct{})
		h.byName[c.Name] = sessions
	}
	sessions[c] = struct{}{}
	metrics.ConnectionsTotal.Inc()
	h.log.Debug().Str("client_id", c.ID).Str("user", c.Name).Msg("session registered")

	// Pump this session's commands into the hub loop. The transport closes
	// Commands when the connection ends.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cmd, ok := <-c.Commands:
				if !ok {
					return
				}
				select {
				case h.inbox <- submission{client: c, cmd: cmd}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

func (h *Hub) handleUnregister(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if sessions, ok := h.byName[c.Name]; ok {
		delete(sessions, c)
		if len(sessions) == 0 {
			delete(h.byName, c.Name)
		}
	}
	metrics.ConnectionsTotal.Dec()
	h.log.Debug().Str("client_id", c.ID).Str("user", c.Name).Msg("session unregistered")
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandSendMessage:
		_, err := h.deliver(ctx, DeliverRequest{
			SenderID:     c.UserID,
			SenderName:   c.Name,
			ReceiverName: cmd.Receiver,
			Content:      cmd.Content,
			ImageURL:     cmd.ImageURL,
		})
		if err != nil {
			h.sendEvent(c, &Event{Kind: EventError, Error: toCoreError(err)})
		}
	case CommandMarkRead:
		h.markRead(ctx, c, cmd.Partner)
	}
}

func (h *Hub) deliver(ctx context.Context, req DeliverRequest) (*Message, error) {
	if req.Content == "" && req.ImageURL == "" {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyMessage
	}
	start := time.Now()
	defer func() {
		metrics.SendLatency.Observe(time.Since(start).Seconds())
	}()

	receiver, err := h.store.GetUserByDisplayName(ctx, req.ReceiverName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrReceiverNotFound, req.ReceiverName)
	}

	saved, err := h.store.SaveMessage(ctx, req.SenderID, receiver.ID, req.Content, req.ImageURL)
	if err != nil {
		h.log.Error().Err(err).Str("sender", req.SenderName).Str("receiver", req.ReceiverName).Msg("persist message")
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	msg := &Message{
		ID:           saved.ID,
		SenderName:   saved.SenderName,
		ReceiverName: saved.ReceiverName,
		Content:      saved.Content,
		ImageURL:     saved.ImageURL,
		Read:         saved.Read,
		CreatedAt:    saved.CreatedAt,
	}

	metrics.MessagesTotal.WithLabelValues("persisted").Inc()

	// Publish only after the store accepted the message.
	h.publishToUser(msg.SenderName, &Event{Kind: EventMessage, Message: msg})
	if msg.ReceiverName != msg.SenderName {
		h.publishToUser(msg.ReceiverName, &Event{Kind: EventMessage, Message: msg})
		h.publishToUser(msg.ReceiverName, &Event{Kind: EventUnreadChanged})
	}

	return msg, nil
}

func (h *Hub) markRead(ctx context.Context, c *Client, partnerName string) {
	partner, err := h.store.GetUserByDisplayName(ctx, partnerName)
	if err != nil {
		h.sendEvent(c, &Event{Kind: EventError, Error: coreError(ErrCodeReceiverNotFound, "unknown partner: "+partnerName)})
		return
	}
	if _, err := h.store.MarkConversationRead(ctx, c.UserID, partner.ID); err != nil {
		h.log.Error().Err(err).Str("user", c.Name).Str("partner", partnerName).Msg("mark conversation read")
		h.sendEvent(c, &Event{Kind: EventError, Error: coreError(ErrCodePersistFailed, "could not mark conversation read")})
		return
	}
	h.publishToUser(c.Name, &Event{Kind: EventUnreadChanged})
}

func (h *Hub) publishToUser(name string, event *Event) {
	for session := range h.byName[name] {
		h.sendEvent(session, event)
	}
}

func (h *Hub) sendEvent(c *Client, event *Event) {
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer.
		h.log.Warn().Str("client_id", c.ID).Str("user", c.Name).Msg("event dropped, slow consumer")
	}
}

func toCoreError(err error) *CoreError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEmptyMessage):
		return coreError(ErrCodeEmptyMessage, ErrEmptyMessage.Error())
	case errors.Is(err, ErrReceiverNotFound):
		return coreError(ErrCodeReceiverNotFound, err.Error())
	case errors.Is(err, ErrPersistFailed):
		return coreError(ErrCodePersistFailed, "message could not be persisted")
	default:
		return coreError(ErrCodeBadRequest, err.Error())
	}
}
