// Package unread maintains the session-wide cache of per-partner unread
// counts. It is the single authority: consumers read its snapshot and
// subscribe to change notifications instead of polling the gateway
// themselves.
package unread

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/venturesroom/venturechat/client/api"
	"github.com/venturesroom/venturechat/client/signal"
)

// DefaultInterval is the authoritative poll cadence.
const DefaultInterval = 20 * time.Second

// API is the slice of the gateway client the aggregator needs.
type API interface {
	UnreadSummary(ctx context.Context) ([]api.UnreadEntry, error)
	MarkAsRead(ctx context.Context, senderName string) error
}

// Entry is one partner with a nonzero unread count.
type Entry struct {
	PartnerName string
	Count       int
}

// Aggregator owns the unread cache. Only its own methods write the cache;
// consumers are read-only.
type Aggregator struct {
	api      API
	bus      *signal.Bus
	log      *zerolog.Logger
	interval time.Duration

	mu           sync.Mutex
	counts       map[string]int
	fetching     bool
	authNotified bool

	onAuthExpired func()
	onChange      func()
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithInterval overrides the poll cadence. Used by tests.
func WithInterval(d time.Duration) Option {
	return func(a *Aggregator) { a.interval = d }
}

// WithAuthExpired installs a callback invoked once when polling starts
// hitting auth failures. It is re-armed by the next successful refresh.
func WithAuthExpired(fn func()) Option {
	return func(a *Aggregator) { a.onAuthExpired = fn }
}

// WithOnChange installs a callback invoked after the visible summary
// changes. Called without the cache lock held.
func WithOnChange(fn func()) Option {
	return func(a *Aggregator) { a.onChange = fn }
}

// New creates an aggregator publishing on bus.
func New(apiClient API, bus *signal.Bus, logger *zerolog.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	a := &Aggregator{
		api:      apiClient,
		bus:      bus,
		log:      logger,
		interval: DefaultInterval,
		counts:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Refresh replaces the cache from the gateway. Zero-count entries are
// dropped. A failed refresh clears the cache: a missing badge beats a
// stale one. Concurrent calls collapse into the one in flight.
func (a *Aggregator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	if a.fetching {
		a.mu.Unlock()
		return nil
	}
	a.fetching = true
	a.mu.Unlock()

	entries, err := a.api.UnreadSummary(ctx)

	a.mu.Lock()
	a.fetching = false
	if err != nil {
		changed := len(a.counts) > 0
		a.counts = make(map[string]int)
		expired := errors.Is(err, api.ErrAuthExpired)
		notify := expired && !a.authNotified
		if expired {
			a.authNotified = true
		}
		a.mu.Unlock()

		if expired {
			// Every poll tick would hit the same wall; keep the log quiet.
			a.log.Debug().Msg("unread refresh skipped, auth expired")
			if notify && a.onAuthExpired != nil {
				a.onAuthExpired()
			}
		} else {
			a.log.Error().Err(err).Msg("unread refresh failed")
		}
		if changed {
			a.notifyChanged()
		}
		return err
	}

	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		if e.UnreadCount > 0 {
			counts[e.SenderName] = e.UnreadCount
		}
	}
	changed := !equalCounts(a.counts, counts)
	a.counts = counts
	a.authNotified = false
	a.mu.Unlock()

	if changed {
		a.notifyChanged()
	}
	return nil
}

// MarkRead acknowledges one partner's messages. On success the cached
// count is zeroed immediately, ahead of the next poll, and exactly one
// bus signal is published so other consumers re-synchronize. On failure
// the cache entry is left alone and the error goes back to the caller.
func (a *Aggregator) MarkRead(ctx context.Context, partnerName string) error {
	if err := a.api.MarkAsRead(ctx, partnerName); err != nil {
		a.log.Warn().Err(err).Str("partner", partnerName).Msg("mark read failed")
		return err
	}

	a.mu.Lock()
	delete(a.counts, partnerName)
	a.mu.Unlock()

	a.bus.Publish(signal.TopicUnreadChanged)
	a.notifyChanged()
	return nil
}

// Count returns the cached unread count for one partner.
func (a *Aggregator) Count(partnerName string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[partnerName]
}

// Total is the badge number. Always recomputed from the cache so it can
// never drift from the per-partner counts.
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, count := range a.counts {
		total += count
	}
	return total
}

// Snapshot returns the visible summary sorted by partner name.
func (a *Aggregator) Snapshot() []Entry {
	a.mu.Lock()
	entries := make([]Entry, 0, len(a.counts))
	for name, count := range a.counts {
		entries = append(entries, Entry{PartnerName: name, Count: count})
	}
	a.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PartnerName < entries[j].PartnerName
	})
	return entries
}

// Run polls on the authoritative interval and re-polls whenever anything
// publishes an unread-changed signal. Blocks until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	sub := a.bus.Subscribe(signal.TopicUnreadChanged)
	defer sub.Unsubscribe()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Refresh(ctx)
		case <-sub.C:
			a.Refresh(ctx)
		}
	}
}

func (a *Aggregator) notifyChanged() {
	if a.onChange != nil {
		a.onChange()
	}
}

func equalCounts(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for name, count := range a {
		if b[name] != count {
			return false
		}
	}
	return true
}
