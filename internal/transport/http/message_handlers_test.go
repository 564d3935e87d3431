package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
)

func sendMessage(t *testing.T, ts string, token, receiver, content string) MessageResponse {
	t.Helper()
	resp := postJSON(t, ts, "/api/messages/send", token, SendRequest{
		ReceiverName: receiver,
		Content:      content,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("send status %d: %s", resp.StatusCode, body)
	}
	var sent SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		t.Fatalf("decode send response: %v", err)
	}
	return sent.SentMessage
}

func TestSendReturnsPersistedMessage(t *testing.T) {
	ts, _, _ := startTestServer(t)
	alice := registerTestUser(t, ts, "alice", "Alice Ventures")
	registerTestUser(t, ts, "bob", "Bob Capital")

	msg := sendMessage(t, ts.URL, alice, "Bob Capital", "hello bob")

	if msg.ID == 0 {
		t.Fatal("expected server-assigned id")
	}
	if msg.SenderName != "Alice Ventures" || msg.ReceiverName != "Bob Capital" {
		t.Fatalf("unexpected names: %+v", msg)
	}
	if msg.Timestamp == "" {
		t.Fatal("expected server-assigned timestamp")
	}
}

func TestSendToUnknownReceiver(t *testing.T) {
	ts, _, _ := startTestServer(t)
	alice := registerTestUser(t, ts, "alice", "Alice Ventures")

	resp := postJSON(t, ts.URL, "/api/messages/send", alice, SendRequest{
		ReceiverName: "Nobody",
		Content:      "hello?",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSendRejectsEmptyPayload(t *testing.T) {
	ts, _, _ := startTestServer(t)
	alice := registerTestUser(t, ts, "alice", "Alice Ventures")
	registerTestUser(t, ts, "bob", "Bob Capital")

	resp := postJSON(t, ts.URL, "/api/messages/send", alice, SendRequest{
		ReceiverName: "Bob Capital",
		Content:      "   ",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestConversationHistoryOrdered(t *testing.T) {
	ts, _, _ := startTestServer(t)
	alice := registerTestUser(t, ts, "alice", "Alice Ventures")
	bob := registerTestUser(t, ts, "bob", "Bob Capital")

	sendMessage(t, ts.URL, alice, "Bob Capital", "first")
	sendMessage(t, ts.URL, bob, "Alice Ventures", "second")
	sendMessage(t, ts.URL, alice, "Bob Capital", "third")

	var history []MessageResponse
	resp := getJSON(t, ts.URL, "/api/messages/with/Bob Capital", alice, &history)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status: %d", resp.StatusCode)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	want := []string{"first", "second", "third"}
	for i, msg := range history {
		if msg.Content != want[i] {
			t.Fatalf("position %d: want %q, got %q", i, want[i], msg.Content)
		}
	}
}

func TestUnreadSummaryAndMarkAsRead(t *testing.T) {
	ts, _, _ := startTestServer(t)
	alice := registerTestUser(t, ts, "alice", "Alice Ventures")
	bob := registerTestUser(t, ts, "bob", "Bob Capital")
	carol := registerTestUser(t, ts, "carol", "Carol Fund")

	sendMessage(t, ts.URL, alice, "Bob Capital", "one")
	sendMessage(t, ts.URL, alice, "Bob Capital", "two")
	sendMessage(t, ts.URL, carol, "Bob Capital", "three")

	var summary []UnreadEntryResponse
	resp := getJSON(t, ts.URL, "/api/messages/my-unread-summary", bob, &summary)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status: %d", resp.StatusCode)
	}
	counts := make(map[string]int)
	for _, e := range summary {
		if e.UnreadCount == 0 {
			t.Fatalf("zero-count sender leaked into summary: %+v", e)
		}
		counts[e.SenderName] = e.UnreadCount
	}
	if counts["Alice Ventures"] != 2 || counts["Carol Fund"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	markResp := postJSON(t, ts.URL, "/api/messages/mark-as-read", bob, MarkReadRequest{SenderName: "Alice Ventures"})
	markResp.Body.Close()
	if markResp.StatusCode != http.StatusNoContent {
		t.Fatalf("mark-as-read status: %d", markResp.StatusCode)
	}

	summary = nil
	resp = getJSON(t, ts.URL, "/api/messages/my-unread-summary", bob, &summary)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status after mark: %d", resp.StatusCode)
	}
	if len(summary) != 1 || summary[0].SenderName != "Carol Fund" {
		t.Fatalf("expected only Carol Fund unread, got %+v", summary)
	}
}

func TestConversablePartnersExcludesSelf(t *testing.T) {
	ts, _, _ := startTestServer(t)
	alice := registerTestUser(t, ts, "alice", "Alice Ventures")
	registerTestUser(t, ts, "bob", "Bob Capital")

	var partners []PartnerResponse
	resp := getJSON(t, ts.URL, "/api/messages/conversable-partners", alice, &partners)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("partners status: %d", resp.StatusCode)
	}
	if len(partners) != 1 || partners[0].DisplayName != "Bob Capital" {
		t.Fatalf("unexpected partners: %+v", partners)
	}
}

func uploadFile(t *testing.T, ts string, token, filename string, size int) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("File", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(bytes.Repeat([]byte{0xAB}, size)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, ts+"/api/messages/upload-image", &buf)
	if err != nil {
		t.Fatalf("build upload request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func TestUploadImageAcceptsAllowedTypes(t *testing.T) {
	ts, _, _ := startTestServer(t)
	alice := registerTestUser(t, ts, "alice", "Alice Ventures")

	resp := uploadFile(t, ts.URL, alice, "avatar.png", 1024)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status: %d", resp.StatusCode)
	}
	var uploaded UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if !strings.HasPrefix(uploaded.ImageURL, "/uploads/") || !strings.HasSuffix(uploaded.ImageURL, ".png") {
		t.Fatalf("unexpected image url: %s", uploaded.ImageURL)
	}
}

func TestUploadImageRejectsBadType(t *testing.T) {
	ts, _, _ := startTestServer(t)
	alice := registerTestUser(t, ts, "alice", "Alice Ventures")

	resp := uploadFile(t, ts.URL, alice, "script.exe", 64)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.StatusCode)
	}
}

func TestUploadImageRejectsOversize(t *testing.T) {
	ts, _, _ := startTestServer(t)
	alice := registerTestUser(t, ts, "alice", "Alice Ventures")

	resp := uploadFile(t, ts.URL, alice, "huge.jpg", (5<<20)+1)
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}
