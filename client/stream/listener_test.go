package stream

import (
	"testing"
	"time"

	"github.com/venturesroom/venturechat/client/api"
	"github.com/venturesroom/venturechat/client/signal"
)

type recordingReceiver struct {
	accept   bool
	received []*api.Message
}

func (r *recordingReceiver) Receive(msg *api.Message) bool {
	r.received = append(r.received, msg)
	return r.accept
}

func pending(sub *signal.Subscription) bool {
	select {
	case <-sub.C:
		return true
	default:
		return false
	}
}

func TestHandleRoutesMessageToReceiver(t *testing.T) {
	receiver := &recordingReceiver{accept: true}
	bus := signal.New()
	sub := bus.Subscribe(signal.TopicUnreadChanged)
	defer sub.Unsubscribe()

	l := New("http://gateway", nil, receiver, bus, nil)
	l.handle(&frame{
		Type:  "event",
		Event: "message",
		Data: &messageEvent{
			ID:           7,
			SenderName:   "Alice Ventures",
			ReceiverName: "Me",
			Content:      "hi",
			Timestamp:    time.Now().Format(time.RFC3339Nano),
		},
	})

	if len(receiver.received) != 1 {
		t.Fatalf("expected one delivered message, got %d", len(receiver.received))
	}
	if receiver.received[0].ID != 7 || receiver.received[0].Content != "hi" {
		t.Fatalf("unexpected message: %+v", receiver.received[0])
	}
	if pending(sub) {
		t.Fatal("a consumed message must not trigger an unread signal")
	}
}

func TestHandleSignalsUnreadForForeignConversation(t *testing.T) {
	receiver := &recordingReceiver{accept: false}
	bus := signal.New()
	sub := bus.Subscribe(signal.TopicUnreadChanged)
	defer sub.Unsubscribe()

	l := New("http://gateway", nil, receiver, bus, nil)
	l.handle(&frame{
		Type:  "event",
		Event: "message",
		Data:  &messageEvent{ID: 8, SenderName: "Carol Fund", ReceiverName: "Me", Content: "yo"},
	})

	if !pending(sub) {
		t.Fatal("an unconsumed message must signal an unread re-sync")
	}
}

func TestHandleUnreadChangedPublishes(t *testing.T) {
	bus := signal.New()
	sub := bus.Subscribe(signal.TopicUnreadChanged)
	defer sub.Unsubscribe()

	l := New("http://gateway", nil, nil, bus, nil)
	l.handle(&frame{Type: "event", Event: "unread_changed"})

	if !pending(sub) {
		t.Fatal("unread_changed frame must publish on the bus")
	}
}

func TestDialURLRewritesSchemeAndToken(t *testing.T) {
	l := New("https://chat.example.com/", func() string { return "tok123" }, nil, nil, nil)
	u, err := l.dialURL()
	if err != nil {
		t.Fatalf("dial url: %v", err)
	}
	if u != "wss://chat.example.com/ws?token=tok123" {
		t.Fatalf("unexpected dial url: %s", u)
	}
}
