package presence

import (
	"context"
	"errors"
	"testing"

	"github.com/venturesroom/venturechat/client/api"
)

type fakeAPI struct {
	entries []api.PresenceEntry
	err     error
}

func (f *fakeAPI) PresenceStatus(ctx context.Context) ([]api.PresenceEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		want Status
	}{
		{"Online", Online},
		{"online", Online},
		{"  ONLINE  ", Online},
		{"En ligne", Online},
		{"en ligne", Online},
		{"Offline", Offline},
		{"Hors ligne", Offline},
		{"", Offline},
		{"away", Offline},
	}
	for _, tc := range cases {
		if got := Normalize(tc.raw); got != tc.want {
			t.Errorf("Normalize(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	fake := &fakeAPI{entries: []api.PresenceEntry{
		{Name: "Alice Ventures", Status: "En ligne"},
		{Name: "Bob Capital", Status: "Offline"},
	}}
	poller := New(fake, nil)

	if err := poller.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if poller.Status("Alice Ventures") != Online {
		t.Fatal("localized online value should normalize to Online")
	}
	if poller.Status("Bob Capital") != Offline {
		t.Fatal("expected Bob offline")
	}
	if poller.Status("Unknown Person") != Offline {
		t.Fatal("unknown partners default to Offline")
	}
}

func TestFailedPollRetainsPreviousSnapshot(t *testing.T) {
	fake := &fakeAPI{entries: []api.PresenceEntry{
		{Name: "Alice Ventures", Status: "Online"},
	}}
	poller := New(fake, nil)

	if err := poller.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	fake.err = errors.New("gateway down")
	if err := poller.Refresh(context.Background()); err == nil {
		t.Fatal("expected poll error")
	}

	if poller.Status("Alice Ventures") != Online {
		t.Fatal("failed poll must not blank the previous snapshot")
	}
}
