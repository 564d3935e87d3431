// Package signal is a small in-process notification bus. Events carry no
// payload; subscribers re-fetch authoritative state instead of trusting a
// producer's copy.
package signal

import "sync"

// TopicUnreadChanged signals that unread counts may have changed and
// consumers should re-synchronize.
const TopicUnreadChanged = "unread-changed"

// Bus fans a topic signal out to its current subscribers. A Bus is scoped
// to one session; it is never a package-level singleton.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan struct{}
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string]map[int]chan struct{})}
}

// Subscription is a registered interest in one topic. Signals are
// coalesced: a pending unconsumed signal absorbs later ones.
type Subscription struct {
	C <-chan struct{}

	bus   *Bus
	topic string
	id    int
}

// Subscribe registers for a topic. The caller must Unsubscribe when done.
func (b *Bus) Subscribe(topic string) *Subscription {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan struct{})
	}
	b.subs[topic][id] = ch

	return &Subscription{C: ch, bus: b, topic: topic, id: id}
}

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if subs, ok := s.bus.subs[s.topic]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.bus.subs, s.topic)
		}
	}
}

// Publish signals every subscriber of the topic without blocking.
func (b *Bus) Publish(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
