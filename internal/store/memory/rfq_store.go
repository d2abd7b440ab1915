package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bondstreet/bondmatch/internal/domain"
)

// RFQStore implements domain.RFQStore, the global RFQ index.
type RFQStore struct {
	mu   sync.RWMutex
	rfqs map[string]*domain.RFQ
}

// NewRFQStore creates an empty RFQStore.
func NewRFQStore() *RFQStore {
	return &RFQStore{
		rfqs: make(map[string]*domain.RFQ),
	}
}

// Create inserts a new RFQ into the index.
func (s *RFQStore) Create(ctx context.Context, r domain.RFQ) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rfqs[r.ID]; ok {
		return fmt.Errorf("memory: rfq %s already exists: %w", r.ID, domain.ErrInvalidArgument)
	}
	stored := cloneRFQ(r)
	s.rfqs[r.ID] = &stored
	return nil
}

// Get returns the RFQ with the given id.
func (s *RFQStore) Get(ctx context.Context, id string) (domain.RFQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rfqs[id]
	if !ok {
		return domain.RFQ{}, fmt.Errorf("memory: rfq %s: %w", id, domain.ErrNotFound)
	}
	return cloneRFQ(*r), nil
}

// Update applies fn to the authoritative record and returns the result. If
// fn errors the record is returned unchanged; fn must not partially mutate.
func (s *RFQStore) Update(ctx context.Context, id string, fn func(r *domain.RFQ) error) (domain.RFQ, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rfqs[id]
	if !ok {
		return domain.RFQ{}, fmt.Errorf("memory: rfq %s: %w", id, domain.ErrNotFound)
	}
	if err := fn(r); err != nil {
		return domain.RFQ{}, err
	}
	return cloneRFQ(*r), nil
}

// List returns RFQs matching the filter, sorted by creation time descending
// and truncated to filter.Limit when positive.
func (s *RFQStore) List(ctx context.Context, filter domain.RFQFilter) ([]domain.RFQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RFQ, 0, len(s.rfqs))
	for _, r := range s.rfqs {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.InstrumentID != "" && r.InstrumentID != filter.InstrumentID {
			continue
		}
		if filter.AuctionID != "" && r.AuctionID != filter.AuctionID {
			continue
		}
		out = append(out, cloneRFQ(*r))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Count returns the number of RFQs in the index.
func (s *RFQStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rfqs), nil
}
