package http

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestPresenceWireShape(t *testing.T) {
	ts, _, _ := startTestServer(t)
	alice := registerTestUser(t, ts, "alice", "Alice Ventures")
	registerTestUser(t, ts, "bob", "Bob Capital")

	var raw []map[string]string
	resp := getJSON(t, ts.URL, "/api/presence/status", alice, &raw)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("presence status: %d", resp.StatusCode)
	}
	if len(raw) == 0 {
		t.Fatal("expected at least one presence entry")
	}
	for _, entry := range raw {
		if _, ok := entry["name"]; !ok {
			t.Fatalf("presence entry missing name field: %v", entry)
		}
		if _, ok := entry["status"]; !ok {
			t.Fatalf("presence entry missing status field: %v", entry)
		}
	}
}

func presenceByName(entries []PresenceEntry) map[string]string {
	status := make(map[string]string, len(entries))
	for _, e := range entries {
		status[e.Name] = e.Status
	}
	return status
}

func TestPresenceAllOfflineWithoutConnections(t *testing.T) {
	ts, _, _ := startTestServer(t)
	alice := registerTestUser(t, ts, "alice", "Alice Ventures")
	registerTestUser(t, ts, "bob", "Bob Capital")

	var entries []PresenceEntry
	resp := getJSON(t, ts.URL, "/api/presence/status", alice, &entries)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("presence status: %d", resp.StatusCode)
	}
	status := presenceByName(entries)
	if status["Bob Capital"] != statusOffline {
		t.Fatalf("expected Bob offline, got %v", status)
	}
}

func TestPresenceReflectsOpenSessions(t *testing.T) {
	ts, _, _ := startTestServer(t)
	alice := registerTestUser(t, ts, "alice", "Alice Ventures")
	bobToken := registerTestUser(t, ts, "bob", "Bob Capital")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dialWS(ctx, t, wsURL(ts.URL, bobToken))
	time.Sleep(100 * time.Millisecond)

	var entries []PresenceEntry
	resp := getJSON(t, ts.URL, "/api/presence/status", alice, &entries)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("presence status: %d", resp.StatusCode)
	}
	status := presenceByName(entries)
	if status["Bob Capital"] != statusOnline {
		t.Fatalf("expected Bob online, got %v", status)
	}
}
