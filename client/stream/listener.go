// Package stream consumes the gateway's WebSocket fan-out and routes
// pushed events into the session-scoped components.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/venturesroom/venturechat/client/api"
	"github.com/venturesroom/venturechat/client/signal"
)

// Receiver is the session surface pushed messages are offered to. It
// reports whether the message belonged to the open conversation.
type Receiver interface {
	Receive(msg *api.Message) bool
}

// Wire frame shapes, matching the gateway's outbound envelope.
type frame struct {
	Type  string        `json:"type"`
	Event string        `json:"event"`
	Data  *messageEvent `json:"data"`
	Error *frameError   `json:"error"`
}

type messageEvent struct {
	ID           int64  `json:"id"`
	SenderName   string `json:"senderName"`
	ReceiverName string `json:"receiverName"`
	Content      string `json:"content"`
	ImageURL     string `json:"imageUrl"`
	Timestamp    string `json:"timestamp"`
}

type frameError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Listener reads pushed frames for one session. It does not reconnect;
// a dropped connection ends Run and the caller decides what to do.
type Listener struct {
	baseURL  string
	token    api.TokenProvider
	receiver Receiver
	bus      *signal.Bus
	log      *zerolog.Logger
}

// New creates a listener for the gateway at baseURL (http or https
// scheme; it is rewritten for the upgrade).
func New(baseURL string, token api.TokenProvider, receiver Receiver, bus *signal.Bus, logger *zerolog.Logger) *Listener {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Listener{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		receiver: receiver,
		bus:      bus,
		log:      logger,
	}
}

// Run connects and processes frames until ctx is cancelled, the peer
// closes, or a protocol error occurs. Clean closes return nil.
func (l *Listener) Run(ctx context.Context) error {
	wsURL, err := l.dialURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial gateway stream: %w", err)
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	l.log.Debug().Msg("gateway stream connected")

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if expectedClose(err) {
				l.log.Debug().Msg("gateway stream closed")
				conn.Close(websocket.StatusNormalClosure, "closing")
				return nil
			}
			l.log.Warn().Err(err).Msg("gateway stream read failed")
			return fmt.Errorf("read gateway stream: %w", err)
		}
		l.handle(&f)
	}
}

func (l *Listener) handle(f *frame) {
	switch {
	case f.Type == "error":
		if f.Error != nil {
			l.log.Warn().Str("code", f.Error.Code).Str("msg", f.Error.Msg).Msg("gateway rejected a frame")
		}
	case f.Event == "message" && f.Data != nil:
		msg := api.Message{
			ID:           f.Data.ID,
			SenderName:   f.Data.SenderName,
			ReceiverName: f.Data.ReceiverName,
			Content:      f.Data.Content,
			ImageURL:     f.Data.ImageURL,
		}
		if ts, err := time.Parse(time.RFC3339Nano, f.Data.Timestamp); err == nil {
			msg.Timestamp = ts
		} else {
			msg.Timestamp = time.Now()
		}
		handled := l.receiver != nil && l.receiver.Receive(&msg)
		if !handled && l.bus != nil {
			// Not on screen; let the unread machinery pick it up.
			l.bus.Publish(signal.TopicUnreadChanged)
		}
	case f.Event == "unread_changed":
		if l.bus != nil {
			l.bus.Publish(signal.TopicUnreadChanged)
		}
	default:
		l.log.Debug().Str("type", f.Type).Str("event", f.Event).Msg("ignoring unknown frame")
	}
}

func (l *Listener) dialURL() (string, error) {
	u, err := url.Parse(l.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	q := u.Query()
	if l.token != nil {
		q.Set("token", l.token())
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func expectedClose(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
