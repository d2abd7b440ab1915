package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bondstreet/bondmatch/internal/domain"
)

// AuctionService owns auction records and the OPEN -> CLOSED transition,
// including the timer-driven auto-close. The timer is the only close path;
// an explicit close is not supported.
type AuctionService struct {
	auctions    domain.AuctionStore
	instruments domain.InstrumentStore
	audit       domain.AuditStore
	logger      *slog.Logger
}

// NewAuctionService creates an AuctionService.
func NewAuctionService(
	auctions domain.AuctionStore,
	instruments domain.InstrumentStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *AuctionService {
	return &AuctionService{
		auctions:    auctions,
		instruments: instruments,
		audit:       audit,
		logger:      logger.With(slog.String("component", "auction_service")),
	}
}

// OpenParams describes a request to open an auction window.
type OpenParams struct {
	InstrumentID string
	RefCode      string
	LPLabel      string
	Window       time.Duration
	BandOverride *float64
}

// Open starts a new auction for the instrument and schedules its auto-close
// timer. It returns as soon as the auction is recorded; the caller is never
// blocked for the window duration.
func (s *AuctionService) Open(ctx context.Context, p OpenParams) (domain.Auction, error) {
	return s.open(ctx, p, domain.EventAuctionStart)
}

// OpenInline starts an auction on behalf of an RFQ creation that found no
// open window. It differs from Open only in the audit event type.
func (s *AuctionService) OpenInline(ctx context.Context, p OpenParams) (domain.Auction, error) {
	return s.open(ctx, p, domain.EventAuctionStartInline)
}

func (s *AuctionService) open(ctx context.Context, p OpenParams, eventType string) (domain.Auction, error) {
	if p.Window <= 0 {
		return domain.Auction{}, fmt.Errorf("auction_service: window must be positive: %w", domain.ErrInvalidArgument)
	}

	res, err := s.instruments.Resolve(ctx, p.InstrumentID)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("auction_service: open: %w", err)
	}

	now := time.Now().UTC()
	a := domain.Auction{
		ID:           uuid.NewString(),
		InstrumentID: p.InstrumentID,
		Meta: domain.AuctionMeta{
			ParentID:  res.Parent.ID,
			FaceValue: res.Parent.FaceValue,
			RefCode:   p.RefCode,
			LPLabel:   p.LPLabel,
		},
		Orders:       []domain.RFQ{},
		Status:       domain.AuctionStatusOpen,
		OpensAt:      now,
		ClosesAt:     now.Add(p.Window),
		BandOverride: p.BandOverride,
	}

	if err := s.auctions.Create(ctx, a); err != nil {
		return domain.Auction{}, fmt.Errorf("auction_service: open: %w", err)
	}
	if err := s.audit.Append(ctx, domain.AuditEvent{
		Type:      eventType,
		AuctionID: a.ID,
		Payload: map[string]any{
			"auctionId":    a.ID,
			"instrumentId": a.InstrumentID,
		},
	}); err != nil {
		return domain.Auction{}, fmt.Errorf("auction_service: open: audit: %w", err)
	}

	s.logger.InfoContext(ctx, "auction opened",
		slog.String("auction_id", a.ID),
		slog.String("instrument_id", a.InstrumentID),
		slog.Duration("window", p.Window),
	)

	go s.autoClose(a.ID, p.Window)

	return a, nil
}

// autoClose fires once after the window and flips a still-open auction to
// CLOSED. The status check and the flip run inside Update, under the
// auction's own lock, so an RFQ admission and the close can never
// interleave. Once scheduled the timer always fires; a vanished auction is
// a silent no-op and the timer never raises past this boundary.
func (s *AuctionService) autoClose(auctionID string, window time.Duration) {
	timer := time.NewTimer(window)
	defer timer.Stop()
	<-timer.C

	ctx := context.Background()
	closed := false
	err := s.auctions.Update(ctx, auctionID, func(a *domain.Auction) error {
		if !a.IsOpen() {
			return nil
		}
		a.Status = domain.AuctionStatusClosed
		closed = true
		return s.audit.Append(ctx, domain.AuditEvent{
			Type:      domain.EventAuctionAutoClose,
			AuctionID: auctionID,
			Payload:   map[string]any{"auctionId": auctionID},
		})
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("auto-close failed",
			slog.String("auction_id", auctionID),
			slog.String("error", err.Error()),
		)
		return
	}
	if closed {
		s.logger.Info("auction auto-closed",
			slog.String("auction_id", auctionID),
		)
	}
}

// Get returns the auction with the given id.
func (s *AuctionService) Get(ctx context.Context, auctionID string) (domain.Auction, error) {
	a, err := s.auctions.Get(ctx, auctionID)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("auction_service: get: %w", err)
	}
	return a, nil
}

// List returns all auctions. Order is unspecified.
func (s *AuctionService) List(ctx context.Context) ([]domain.Auction, error) {
	return s.auctions.List(ctx)
}

// Result returns the clearing summary of a closed auction. The clearing
// fields are always nil: no clearing algorithm runs.
func (s *AuctionService) Result(ctx context.Context, auctionID string) (domain.AuctionResult, error) {
	a, err := s.auctions.Get(ctx, auctionID)
	if err != nil {
		return domain.AuctionResult{}, fmt.Errorf("auction_service: result: %w", err)
	}
	if a.Status != domain.AuctionStatusClosed {
		return domain.AuctionResult{}, fmt.Errorf("auction_service: auction %s still open: %w", auctionID, domain.ErrFailedPrecondition)
	}
	return domain.AuctionResult{
		AuctionID:       a.ID,
		Status:          a.Status,
		ClearingPrice:   a.ClearingPrice,
		MatchedNotional: a.MatchedNotional,
		Fills:           a.Fills,
		CommitmentHash:  a.CommitmentHash,
	}, nil
}

// AuditTrail returns the audit events owned by the auction in insertion
// order. An empty result reports not found, whether the auction id is
// unknown or the auction simply has no events yet.
func (s *AuctionService) AuditTrail(ctx context.Context, auctionID string) ([]domain.AuditEvent, error) {
	events, err := s.audit.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("auction_service: audit trail: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("auction_service: no audit events for auction %s: %w", auctionID, domain.ErrNotFound)
	}
	return events, nil
}
