package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bondstreet/bondmatch/internal/domain"
)

// auctionRecord pairs an auction with the mutex that serializes access to
// its status and embedded order list. The map-level lock only guards
// membership; the race that matters is on the record's own fields.
type auctionRecord struct {
	mu sync.Mutex
	a  *domain.Auction
}

// AuctionStore implements domain.AuctionStore with a per-auction lock so
// check-then-mutate sequences are atomic against the auto-close timer.
type AuctionStore struct {
	mu       sync.RWMutex
	auctions map[string]*auctionRecord
}

// NewAuctionStore creates an empty AuctionStore.
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		auctions: make(map[string]*auctionRecord),
	}
}

// Create stores a new auction record.
func (s *AuctionStore) Create(ctx context.Context, a domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[a.ID]; ok {
		return fmt.Errorf("memory: auction %s already exists: %w", a.ID, domain.ErrInvalidArgument)
	}
	stored := cloneAuction(a)
	s.auctions[a.ID] = &auctionRecord{a: &stored}
	return nil
}

func (s *AuctionStore) record(id string) (*auctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.auctions[id]
	if !ok {
		return nil, fmt.Errorf("memory: auction %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

// Get returns a snapshot of the auction with the given id.
func (s *AuctionStore) Get(ctx context.Context, id string) (domain.Auction, error) {
	rec, err := s.record(id)
	if err != nil {
		return domain.Auction{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return cloneAuction(*rec.a), nil
}

// List returns snapshots of all auctions. Order is unspecified.
func (s *AuctionStore) List(ctx context.Context) ([]domain.Auction, error) {
	s.mu.RLock()
	recs := make([]*auctionRecord, 0, len(s.auctions))
	for _, rec := range s.auctions {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]domain.Auction, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, cloneAuction(*rec.a))
		rec.mu.Unlock()
	}
	return out, nil
}

// Update runs fn on the live record under the auction's lock. Everything fn
// does, including reads of Status that gate further writes, happens in one
// critical section.
func (s *AuctionStore) Update(ctx context.Context, id string, fn func(a *domain.Auction) error) error {
	rec, err := s.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return fn(rec.a)
}

// FindOpenByInstrument returns the id of an OPEN auction trading the given
// instrument, if one exists. First match in iteration order wins.
func (s *AuctionStore) FindOpenByInstrument(ctx context.Context, instrumentID string) (string, bool) {
	s.mu.RLock()
	recs := make([]*auctionRecord, 0, len(s.auctions))
	for _, rec := range s.auctions {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	for _, rec := range recs {
		rec.mu.Lock()
		match := rec.a.InstrumentID == instrumentID && rec.a.IsOpen()
		id := rec.a.ID
		rec.mu.Unlock()
		if match {
			return id, true
		}
	}
	return "", false
}

// Count returns the number of auctions.
func (s *AuctionStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.auctions), nil
}
