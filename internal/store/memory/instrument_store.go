package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bondstreet/bondmatch/internal/domain"
)

// InstrumentStore implements domain.InstrumentStore over a plain map.
type InstrumentStore struct {
	mu          sync.RWMutex
	instruments map[string]*domain.Instrument
}

// NewInstrumentStore creates an empty InstrumentStore.
func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{
		instruments: make(map[string]*domain.Instrument),
	}
}

// Create registers a new parent bond.
func (s *InstrumentStore) Create(ctx context.Context, inst domain.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instruments[inst.ID]; ok {
		return fmt.Errorf("memory: instrument %s already exists: %w", inst.ID, domain.ErrInvalidArgument)
	}
	stored := cloneInstrument(inst)
	s.instruments[inst.ID] = &stored
	return nil
}

// Get returns the parent bond with the given id.
func (s *InstrumentStore) Get(ctx context.Context, id string) (domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instruments[id]
	if !ok {
		return domain.Instrument{}, fmt.Errorf("memory: instrument %s: %w", id, domain.ErrNotFound)
	}
	return cloneInstrument(*inst), nil
}

// List returns all parent bonds. Order is unspecified.
func (s *InstrumentStore) List(ctx context.Context) ([]domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Instrument, 0, len(s.instruments))
	for _, inst := range s.instruments {
		out = append(out, cloneInstrument(*inst))
	}
	return out, nil
}

// ReplaceSubUnits swaps the sub-unit list of a parent bond and marks it
// split. Any prior split is overwritten.
func (s *InstrumentStore) ReplaceSubUnits(ctx context.Context, id string, units []domain.SubUnit) (domain.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instruments[id]
	if !ok {
		return domain.Instrument{}, fmt.Errorf("memory: instrument %s: %w", id, domain.ErrNotFound)
	}
	inst.SubUnits = make([]domain.SubUnit, len(units))
	copy(inst.SubUnits, units)
	inst.Status = domain.InstrumentStatusSplit
	return cloneInstrument(*inst), nil
}

// Resolve maps an id naming either a parent bond or a sub-unit back to the
// owning parent. Sub-unit lookup is a linear scan over every parent's
// sub-unit list; fine at demo scale, a known limit beyond it.
func (s *InstrumentStore) Resolve(ctx context.Context, instrumentID string) (domain.Resolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inst, ok := s.instruments[instrumentID]; ok {
		return domain.Resolution{Parent: cloneInstrument(*inst)}, nil
	}
	for _, inst := range s.instruments {
		for _, unit := range inst.SubUnits {
			if unit.ID == instrumentID {
				u := unit
				return domain.Resolution{
					Parent:  cloneInstrument(*inst),
					SubUnit: &u,
				}, nil
			}
		}
	}
	return domain.Resolution{}, fmt.Errorf("memory: instrument %s: %w", instrumentID, domain.ErrNotFound)
}

// Count returns the number of parent bonds.
func (s *InstrumentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instruments), nil
}
