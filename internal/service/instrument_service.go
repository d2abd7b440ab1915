package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bondstreet/bondmatch/internal/domain"
)

// InstrumentService owns the registry of parent bonds and their fractional
// sub-units.
type InstrumentService struct {
	instruments domain.InstrumentStore
	logger      *slog.Logger
}

// NewInstrumentService creates an InstrumentService.
func NewInstrumentService(instruments domain.InstrumentStore, logger *slog.Logger) *InstrumentService {
	return &InstrumentService{
		instruments: instruments,
		logger:      logger.With(slog.String("component", "instrument_service")),
	}
}

// Register lists a new parent bond with the given display name and face
// value.
func (s *InstrumentService) Register(ctx context.Context, name string, faceValue float64) (domain.Instrument, error) {
	if name == "" {
		return domain.Instrument{}, fmt.Errorf("instrument_service: name is required: %w", domain.ErrInvalidArgument)
	}
	if faceValue <= 0 {
		return domain.Instrument{}, fmt.Errorf("instrument_service: face value must be > 0: %w", domain.ErrInvalidArgument)
	}

	inst := domain.Instrument{
		ID:        uuid.NewString(),
		Name:      name,
		FaceValue: faceValue,
		Status:    domain.InstrumentStatusActive,
		SubUnits:  []domain.SubUnit{},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.instruments.Create(ctx, inst); err != nil {
		return domain.Instrument{}, fmt.Errorf("instrument_service: register: %w", err)
	}

	s.logger.InfoContext(ctx, "instrument registered",
		slog.String("instrument_id", inst.ID),
		slog.String("name", inst.Name),
		slog.Float64("face_value", inst.FaceValue),
	)
	return inst, nil
}

// Split partitions a parent bond's face value into parts equal-value
// sub-units and marks the parent split. A prior split is overwritten.
func (s *InstrumentService) Split(ctx context.Context, instrumentID string, parts int) ([]domain.SubUnit, error) {
	if parts <= 0 {
		return nil, fmt.Errorf("instrument_service: parts must be > 0: %w", domain.ErrInvalidArgument)
	}

	inst, err := s.instruments.Get(ctx, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("instrument_service: split: %w", err)
	}

	unitValue := inst.FaceValue / float64(parts)
	units := make([]domain.SubUnit, parts)
	for i := range units {
		units[i] = domain.SubUnit{
			ID:       uuid.NewString(),
			ParentID: instrumentID,
			Value:    unitValue,
			Status:   domain.SubUnitStatusAvailable,
		}
	}

	if _, err := s.instruments.ReplaceSubUnits(ctx, instrumentID, units); err != nil {
		return nil, fmt.Errorf("instrument_service: split: %w", err)
	}

	s.logger.InfoContext(ctx, "instrument split",
		slog.String("instrument_id", instrumentID),
		slog.Int("parts", parts),
		slog.Float64("unit_value", unitValue),
	)
	return units, nil
}

// Resolve maps an id naming either a parent bond or a sub-unit back to the
// owning parent.
func (s *InstrumentService) Resolve(ctx context.Context, instrumentID string) (domain.Resolution, error) {
	res, err := s.instruments.Resolve(ctx, instrumentID)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("instrument_service: resolve: %w", err)
	}
	return res, nil
}

// List returns every registered parent bond.
func (s *InstrumentService) List(ctx context.Context) ([]domain.Instrument, error) {
	return s.instruments.List(ctx)
}
