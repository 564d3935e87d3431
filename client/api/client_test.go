package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(ts.URL, func() string { return "tok" }, nil)
}

func TestSendDecodesServerMessage(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/messages/send" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", got)
		}
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(sendResponse{SentMessage: Message{
			ID:           42,
			SenderName:   "Me",
			ReceiverName: req.ReceiverName,
			Content:      req.Content,
			Timestamp:    time.Now(),
		}})
	})

	msg, err := client.Send(context.Background(), "Alice", "hello", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ID != 42 || msg.ReceiverName != "Alice" || msg.Content != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestAuthFailureMapsToErrAuthExpired(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
	})

	_, err := client.UnreadSummary(context.Background())
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
}

func TestNonAuthFailureCarriesStatusAndMessage(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown receiver"})
	})

	_, err := client.Send(context.Background(), "Nobody", "hi", "")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.StatusCode != http.StatusNotFound || reqErr.Message != "unknown receiver" {
		t.Fatalf("unexpected request error: %+v", reqErr)
	}
}

func TestConversationWithEscapesPartnerName(t *testing.T) {
	var requestedPath string
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.EscapedPath()
		json.NewEncoder(w).Encode([]Message{})
	})

	if _, err := client.ConversationWith(context.Background(), "Bob Capital"); err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if requestedPath != "/api/messages/with/Bob%20Capital" {
		t.Fatalf("partner name not escaped: %s", requestedPath)
	}
}

func TestUploadImageSendsMultipart(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("File")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "logo.png" {
			t.Errorf("unexpected filename: %s", header.Filename)
		}
		json.NewEncoder(w).Encode(uploadResponse{ImageURL: "/uploads/abc.png"})
	})

	url, err := client.UploadImage(context.Background(), "logo.png", strings.NewReader("pngbytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "/uploads/abc.png" {
		t.Fatalf("unexpected url: %s", url)
	}
}
