package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bondstreet/bondmatch/internal/domain"
)

// AuditStore implements domain.AuditStore and domain.EventFeed. Events are
// append-only, totally ordered by insertion, and fanned out to watchers.
type AuditStore struct {
	mu       sync.Mutex
	events   []domain.AuditEvent
	watchers map[int]chan domain.AuditEvent
	nextID   int
}

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{
		watchers: make(map[int]chan domain.AuditEvent),
	}
}

// Append adds an event to the log and notifies watchers. A missing timestamp
// is stamped at append time. Watchers with full buffers miss the event; the
// compliance log itself never blocks on a slow consumer.
func (s *AuditStore) Append(ctx context.Context, ev domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	s.events = append(s.events, ev)

	for _, ch := range s.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// ListByAuction returns the events owned by an auction, in insertion order.
func (s *AuditStore) ListByAuction(ctx context.Context, auctionID string) ([]domain.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AuditEvent
	for _, ev := range s.events {
		if ev.AuctionID == auctionID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// List returns the full log in insertion order.
func (s *AuditStore) List(ctx context.Context) ([]domain.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.AuditEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}

// Count returns the number of logged events.
func (s *AuditStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events), nil
}

// Watch registers a watcher channel with the given buffer. The returned
// cancel function unregisters it and closes the channel.
func (s *AuditStore) Watch(buffer int) (<-chan domain.AuditEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan domain.AuditEvent, buffer)
	s.watchers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(ch)
		}
	}
	return ch, cancel
}
