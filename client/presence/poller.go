// Package presence tracks partners' online status with a fixed-interval
// poll. The snapshot is inherently stale between ticks.
package presence

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/venturesroom/venturechat/client/api"
)

// DefaultInterval is the poll cadence.
const DefaultInterval = 60 * time.Second

// Status is a normalized presence value.
type Status string

const (
	Online  Status = "Online"
	Offline Status = "Offline"
)

// Normalize maps wire status strings onto the closed Status set. Some
// deployments localize the value, so comparison is never by literal text.
func Normalize(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "online", "en ligne":
		return Online
	default:
		return Offline
	}
}

// API is the slice of the gateway client the poller needs.
type API interface {
	PresenceStatus(ctx context.Context) ([]api.PresenceEntry, error)
}

// Poller owns the partner status snapshot. Only Refresh writes it.
type Poller struct {
	api      API
	log      *zerolog.Logger
	interval time.Duration

	mu       sync.Mutex
	statuses map[string]Status
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the poll cadence. Used by tests.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// New creates a poller with an empty snapshot.
func New(apiClient API, logger *zerolog.Logger, opts ...Option) *Poller {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	p := &Poller{
		api:      apiClient,
		log:      logger,
		interval: DefaultInterval,
		statuses: make(map[string]Status),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Refresh replaces the snapshot wholesale. On failure the previous
// snapshot stays in place until a later tick succeeds.
func (p *Poller) Refresh(ctx context.Context) error {
	entries, err := p.api.PresenceStatus(ctx)
	if err != nil {
		p.log.Debug().Err(err).Msg("presence poll failed, keeping previous snapshot")
		return err
	}

	statuses := make(map[string]Status, len(entries))
	for _, e := range entries {
		statuses[e.Name] = Normalize(e.Status)
	}

	p.mu.Lock()
	p.statuses = statuses
	p.mu.Unlock()
	return nil
}

// Status returns one partner's last known status, Offline if unknown.
func (p *Poller) Status(partnerName string) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status, ok := p.statuses[partnerName]; ok {
		return status
	}
	return Offline
}

// Snapshot returns a copy of the current statuses.
func (p *Poller) Snapshot() map[string]Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshot := make(map[string]Status, len(p.statuses))
	for name, status := range p.statuses {
		snapshot[name] = status
	}
	return snapshot
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}
