package service

import (
	"context"
	"fmt"

	"github.com/bondstreet/bondmatch/internal/domain"
)

// Stats is a point-in-time count of every entity class, served by the
// health surface for dashboards.
type Stats struct {
	Instruments int
	Auctions    int
	RFQs        int
	AuditEvents int
}

// StatsService aggregates entity counts across the stores.
type StatsService struct {
	instruments domain.InstrumentStore
	auctions    domain.AuctionStore
	rfqs        domain.RFQStore
	audit       domain.AuditStore
}

// NewStatsService creates a StatsService.
func NewStatsService(
	instruments domain.InstrumentStore,
	auctions domain.AuctionStore,
	rfqs domain.RFQStore,
	audit domain.AuditStore,
) *StatsService {
	return &StatsService{
		instruments: instruments,
		auctions:    auctions,
		rfqs:        rfqs,
		audit:       audit,
	}
}

// Stats returns current entity counts.
func (s *StatsService) Stats(ctx context.Context) (Stats, error) {
	instruments, err := s.instruments.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats_service: instruments: %w", err)
	}
	auctions, err := s.auctions.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats_service: auctions: %w", err)
	}
	rfqs, err := s.rfqs.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats_service: rfqs: %w", err)
	}
	events, err := s.audit.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats_service: audit events: %w", err)
	}
	return Stats{
		Instruments: instruments,
		Auctions:    auctions,
		RFQs:        rfqs,
		AuditEvents: events,
	}, nil
}
