// Smoke test for a running gateway: registers two throwaway accounts,
// relays one message over the WebSocket and verifies the receiver sees it.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/venturesroom/venturechat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "http://localhost:8080", "gateway base URL")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	suffix := uuid.NewString()[:8]
	senderName := "smoke-sender-" + suffix
	receiverName := "smoke-receiver-" + suffix

	senderToken, err := register(ctx, *addr, "smokesender"+suffix, senderName)
	if err != nil {
		return fmt.Errorf("register sender: %w", err)
	}
	receiverToken, err := register(ctx, *addr, "smokereceiver"+suffix, receiverName)
	if err != nil {
		return fmt.Errorf("register receiver: %w", err)
	}

	wsBase := strings.Replace(*addr, "http", "ws", 1)
	receiverConn, _, err := websocket.Dial(ctx, wsBase+"/ws?token="+receiverToken, nil)
	if err != nil {
		return fmt.Errorf("dial receiver: %w", err)
	}
	defer receiverConn.Close(websocket.StatusNormalClosure, "bye")

	senderConn, _, err := websocket.Dial(ctx, wsBase+"/ws?token="+senderToken, nil)
	if err != nil {
		return fmt.Errorf("dial sender: %w", err)
	}
	defer senderConn.Close(websocket.StatusNormalClosure, "bye")

	payload, err := json.Marshal(proto.SendMessageData{
		ReceiverName: receiverName,
		Content:      *text,
	})
	if err != nil {
		return fmt.Errorf("marshal send: %w", err)
	}
	if err := wsjson.Write(ctx, senderConn, proto.Inbound{
		Type: proto.InboundTypeSendMessage,
		Data: payload,
	}); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}

	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, receiverConn, &outbound); err != nil {
			return fmt.Errorf("read receiver: %w", err)
		}
		if outbound.Event != proto.EventNameMessage {
			continue
		}
		var event proto.EventMessage
		if err := json.Unmarshal(outbound.Data, &event); err != nil {
			return fmt.Errorf("unmarshal event: %w", err)
		}
		if event.SenderName != senderName || event.Content != *text {
			return fmt.Errorf("unexpected event: %+v", event)
		}
		fmt.Printf("OK: %s -> %s: %q (id %d)\n", event.SenderName, event.ReceiverName, event.Content, event.ID)
		return nil
	}
}

func register(ctx context.Context, addr, username, displayName string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username":    username,
		"displayName": displayName,
		"password":    "smoke-secret",
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/api/auth/register", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var auth struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", err
	}
	return auth.Token, nil
}
