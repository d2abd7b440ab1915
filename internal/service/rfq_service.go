package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bondstreet/bondmatch/internal/domain"
	"github.com/bondstreet/bondmatch/internal/pricing"
)

const (
	defaultListLimit = 200
	maxListLimit     = 1000

	defaultLPLabel = "LP-DEMO"
)

// RFQService owns RFQ records, their binding to an auction, and their
// OPEN/CANCELLED sub-state machine. Every guard that depends on the owning
// auction being OPEN runs inside the auction store's Update, under the same
// lock the auto-close timer takes, so no mutation is admitted after close.
type RFQService struct {
	rfqs          domain.RFQStore
	auctions      domain.AuctionStore
	instruments   domain.InstrumentStore
	audit         domain.AuditStore
	advisor       *pricing.Advisor
	auctionSvc    *AuctionService
	defaultWindow time.Duration
	logger        *slog.Logger
}

// NewRFQService creates an RFQService. defaultWindow is used when an RFQ
// auto-starts an auction without naming a window.
func NewRFQService(
	rfqs domain.RFQStore,
	auctions domain.AuctionStore,
	instruments domain.InstrumentStore,
	audit domain.AuditStore,
	advisor *pricing.Advisor,
	auctionSvc *AuctionService,
	defaultWindow time.Duration,
	logger *slog.Logger,
) *RFQService {
	return &RFQService{
		rfqs:          rfqs,
		auctions:      auctions,
		instruments:   instruments,
		audit:         audit,
		advisor:       advisor,
		auctionSvc:    auctionSvc,
		defaultWindow: defaultWindow,
		logger:        logger.With(slog.String("component", "rfq_service")),
	}
}

// CreateParams describes a new RFQ request.
type CreateParams struct {
	InstrumentID string
	UserID       string
	Side         string
	Qty          float64
	LimitPrice   *float64 // nil = market
	TimeInForce  string

	// Auto-start: when no auction is open for the instrument, start one
	// inline instead of failing.
	AutoStartWindow bool
	Window          time.Duration // zero = service default
	RefCode         string        // zero = placeholder derived from the parent name
	LPLabel         string        // zero = LP-DEMO
	BandOverride    *float64
}

// Create validates the request, binds the RFQ to an open auction for its
// instrument (starting one inline when asked), stamps price guidance, and
// admits the RFQ. Admission re-checks that the auction is still OPEN under
// the auction's lock: the timer may have closed it between lookup and
// insertion.
func (s *RFQService) Create(ctx context.Context, p CreateParams) (domain.RFQ, error) {
	if p.InstrumentID == "" {
		return domain.RFQ{}, fmt.Errorf("rfq_service: instrument id is required: %w", domain.ErrInvalidArgument)
	}
	if p.UserID == "" {
		return domain.RFQ{}, fmt.Errorf("rfq_service: user id is required: %w", domain.ErrInvalidArgument)
	}
	side, err := domain.ParseSide(p.Side)
	if err != nil {
		return domain.RFQ{}, fmt.Errorf("rfq_service: %w", err)
	}
	tif, err := domain.ParseTimeInForce(p.TimeInForce)
	if err != nil {
		return domain.RFQ{}, fmt.Errorf("rfq_service: %w", err)
	}
	if p.Qty <= 0 {
		return domain.RFQ{}, fmt.Errorf("rfq_service: qty must be > 0: %w", domain.ErrInvalidArgument)
	}

	res, err := s.instruments.Resolve(ctx, p.InstrumentID)
	if err != nil {
		return domain.RFQ{}, fmt.Errorf("rfq_service: create: %w", err)
	}

	auctionID, ok := s.auctions.FindOpenByInstrument(ctx, p.InstrumentID)
	if !ok {
		if !p.AutoStartWindow {
			return domain.RFQ{}, fmt.Errorf(
				"rfq_service: no open auction for instrument %s and auto-start not requested: %w",
				p.InstrumentID, domain.ErrFailedPrecondition,
			)
		}
		a, err := s.auctionSvc.OpenInline(ctx, OpenParams{
			InstrumentID: p.InstrumentID,
			RefCode:      refCodeOrPlaceholder(p.RefCode, res.Parent.Name),
			LPLabel:      labelOrDefault(p.LPLabel),
			Window:       s.windowOrDefault(p.Window),
			BandOverride: p.BandOverride,
		})
		if err != nil {
			return domain.RFQ{}, fmt.Errorf("rfq_service: auto-start auction: %w", err)
		}
		auctionID = a.ID
	}

	guidance := s.advisor.Guidance(res.Parent.FaceValue, side, p.Qty, res.IsSubUnit())

	rfq := domain.RFQ{
		ID:           uuid.NewString(),
		AuctionID:    auctionID,
		InstrumentID: p.InstrumentID,
		ParentID:     res.Parent.ID,
		UserID:       p.UserID,
		Side:         side,
		Qty:          p.Qty,
		LimitPrice:   p.LimitPrice,
		TimeInForce:  tif,
		Status:       domain.RFQStatusOpen,
		CreatedAt:    time.Now().UTC(),
		Guidance:     guidance,
		Quotes:       []domain.Quote{},
	}
	if res.SubUnit != nil {
		rfq.SubUnitID = res.SubUnit.ID
	}

	// Admission is atomic with the open check: the record only enters the
	// global index and the order list while the auction is provably OPEN.
	err = s.auctions.Update(ctx, auctionID, func(a *domain.Auction) error {
		if !a.IsOpen() {
			return fmt.Errorf("rfq_service: auction %s is no longer open: %w", auctionID, domain.ErrFailedPrecondition)
		}
		if err := s.rfqs.Create(ctx, rfq); err != nil {
			return err
		}
		a.Orders = append(a.Orders, rfq)
		return s.audit.Append(ctx, domain.AuditEvent{
			Type:      domain.EventRFQCreated,
			AuctionID: auctionID,
			Payload: map[string]any{
				"rfqId":        rfq.ID,
				"auctionId":    auctionID,
				"instrumentId": p.InstrumentID,
			},
		})
	})
	if err != nil {
		return domain.RFQ{}, err
	}

	s.logger.InfoContext(ctx, "rfq created",
		slog.String("rfq_id", rfq.ID),
		slog.String("auction_id", auctionID),
		slog.String("user_id", p.UserID),
		slog.String("side", string(side)),
	)
	return rfq, nil
}

// Get returns the RFQ with the given id.
func (s *RFQService) Get(ctx context.Context, rfqID string) (domain.RFQ, error) {
	r, err := s.rfqs.Get(ctx, rfqID)
	if err != nil {
		return domain.RFQ{}, fmt.Errorf("rfq_service: get: %w", err)
	}
	return r, nil
}

// Cancel moves an OPEN RFQ to CANCELLED, the only terminal transition. Both
// the RFQ and its owning auction must still be OPEN at the moment of the
// mutation.
func (s *RFQService) Cancel(ctx context.Context, rfqID string) (domain.RFQ, error) {
	r, err := s.rfqs.Get(ctx, rfqID)
	if err != nil {
		return domain.RFQ{}, fmt.Errorf("rfq_service: cancel: %w", err)
	}

	var out domain.RFQ
	err = s.auctions.Update(ctx, r.AuctionID, func(a *domain.Auction) error {
		if !a.IsOpen() {
			return fmt.Errorf("rfq_service: auction %s already closed: %w", a.ID, domain.ErrFailedPrecondition)
		}
		updated, err := s.rfqs.Update(ctx, rfqID, func(r *domain.RFQ) error {
			if r.Status != domain.RFQStatusOpen {
				return fmt.Errorf("rfq_service: rfq %s not cancellable in status %s: %w", rfqID, r.Status, domain.ErrFailedPrecondition)
			}
			now := time.Now().UTC()
			r.Status = domain.RFQStatusCancelled
			r.CancelledAt = &now
			return nil
		})
		if err != nil {
			return err
		}
		mirrorOrder(a, updated)
		out = updated
		return s.audit.Append(ctx, domain.AuditEvent{
			Type:      domain.EventRFQCancelled,
			AuctionID: a.ID,
			Payload: map[string]any{
				"rfqId":     rfqID,
				"auctionId": a.ID,
			},
		})
	})
	if err != nil {
		return domain.RFQ{}, err
	}

	s.logger.InfoContext(ctx, "rfq cancelled", slog.String("rfq_id", rfqID))
	return out, nil
}

// ModifyParams is a partial update of an RFQ. Nil Qty leaves quantity
// unchanged. LimitPrice only applies when LimitPriceSet; a nil value then
// means reset to market.
type ModifyParams struct {
	Qty           *float64
	LimitPrice    *float64
	LimitPriceSet bool
}

// Modify updates quantity and/or limit price under the same guards as
// Cancel.
func (s *RFQService) Modify(ctx context.Context, rfqID string, p ModifyParams) (domain.RFQ, error) {
	if p.Qty != nil && *p.Qty <= 0 {
		return domain.RFQ{}, fmt.Errorf("rfq_service: qty must be > 0: %w", domain.ErrInvalidArgument)
	}

	r, err := s.rfqs.Get(ctx, rfqID)
	if err != nil {
		return domain.RFQ{}, fmt.Errorf("rfq_service: modify: %w", err)
	}

	var out domain.RFQ
	err = s.auctions.Update(ctx, r.AuctionID, func(a *domain.Auction) error {
		if !a.IsOpen() {
			return fmt.Errorf("rfq_service: auction %s already closed: %w", a.ID, domain.ErrFailedPrecondition)
		}
		updated, err := s.rfqs.Update(ctx, rfqID, func(r *domain.RFQ) error {
			if r.Status != domain.RFQStatusOpen {
				return fmt.Errorf("rfq_service: rfq %s not modifiable in status %s: %w", rfqID, r.Status, domain.ErrFailedPrecondition)
			}
			if p.Qty != nil {
				r.Qty = *p.Qty
			}
			if p.LimitPriceSet {
				r.LimitPrice = p.LimitPrice
			}
			now := time.Now().UTC()
			r.ModifiedAt = &now
			return nil
		})
		if err != nil {
			return err
		}
		mirrorOrder(a, updated)
		out = updated
		payload := map[string]any{
			"rfqId":     rfqID,
			"auctionId": a.ID,
			"qty":       updated.Qty,
		}
		if updated.LimitPrice != nil {
			payload["limitPrice"] = *updated.LimitPrice
		}
		return s.audit.Append(ctx, domain.AuditEvent{
			Type:      domain.EventRFQModified,
			AuctionID: a.ID,
			Payload:   payload,
		})
	})
	if err != nil {
		return domain.RFQ{}, err
	}

	s.logger.InfoContext(ctx, "rfq modified", slog.String("rfq_id", rfqID))
	return out, nil
}

// List returns RFQs from the global index matching the filter, newest
// first. The limit defaults to 200 and is capped at 1000.
func (s *RFQService) List(ctx context.Context, filter domain.RFQFilter) ([]domain.RFQ, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.rfqs.List(ctx, filter)
}

// OrdersOf reads the auction's embedded order list, optionally filtered by
// submitter. It deliberately serves the denormalized mirror, not the global
// index.
func (s *RFQService) OrdersOf(ctx context.Context, auctionID, userID string) ([]domain.RFQ, error) {
	a, err := s.auctions.Get(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("rfq_service: orders of: %w", err)
	}
	if userID == "" {
		return a.Orders, nil
	}
	out := make([]domain.RFQ, 0, len(a.Orders))
	for _, r := range a.Orders {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// UpdateGuidance applies an any-subset patch of the guidance fields to the
// RFQ and its order-list mirror. Guidance is advisory, so no OPEN check
// gates it.
func (s *RFQService) UpdateGuidance(ctx context.Context, rfqID string, patch domain.GuidancePatch) (domain.RFQ, error) {
	r, err := s.rfqs.Get(ctx, rfqID)
	if err != nil {
		return domain.RFQ{}, fmt.Errorf("rfq_service: update guidance: %w", err)
	}

	var out domain.RFQ
	err = s.auctions.Update(ctx, r.AuctionID, func(a *domain.Auction) error {
		updated, err := s.rfqs.Update(ctx, rfqID, func(r *domain.RFQ) error {
			applyGuidancePatch(&r.Guidance, patch)
			return nil
		})
		if err != nil {
			return err
		}
		mirrorOrder(a, updated)
		out = updated
		return s.audit.Append(ctx, domain.AuditEvent{
			Type:      domain.EventRFQFairPriceUpdate,
			AuctionID: a.ID,
			Payload: map[string]any{
				"rfqId":     rfqID,
				"fairPrice": updated.Guidance.FairPrice,
				"bandLow":   updated.Guidance.BandLow,
				"bandHigh":  updated.Guidance.BandHigh,
			},
		})
	})
	if err != nil {
		return domain.RFQ{}, err
	}
	return out, nil
}

// RefreshGuidance re-resolves the instrument and recomputes guidance from
// scratch, overwriting all four fields on the RFQ and its mirror.
func (s *RFQService) RefreshGuidance(ctx context.Context, rfqID string) (domain.RFQ, error) {
	r, err := s.rfqs.Get(ctx, rfqID)
	if err != nil {
		return domain.RFQ{}, fmt.Errorf("rfq_service: refresh guidance: %w", err)
	}
	res, err := s.instruments.Resolve(ctx, r.InstrumentID)
	if err != nil {
		return domain.RFQ{}, fmt.Errorf("rfq_service: refresh guidance: %w", err)
	}
	guidance := s.advisor.Guidance(res.Parent.FaceValue, r.Side, r.Qty, res.IsSubUnit())

	var out domain.RFQ
	err = s.auctions.Update(ctx, r.AuctionID, func(a *domain.Auction) error {
		updated, err := s.rfqs.Update(ctx, rfqID, func(r *domain.RFQ) error {
			r.Guidance = guidance
			return nil
		})
		if err != nil {
			return err
		}
		mirrorOrder(a, updated)
		out = updated
		return s.audit.Append(ctx, domain.AuditEvent{
			Type:      domain.EventRFQFairPriceStub,
			AuctionID: a.ID,
			Payload: map[string]any{
				"rfqId":     rfqID,
				"fairPrice": guidance.FairPrice,
				"bandLow":   guidance.BandLow,
				"bandHigh":  guidance.BandHigh,
			},
		})
	})
	if err != nil {
		return domain.RFQ{}, err
	}
	return out, nil
}

// AddQuote appends a dealer's indicative price to the RFQ bulletin. The RFQ
// itself must still be OPEN.
func (s *RFQService) AddQuote(ctx context.Context, rfqID, dealer string, price float64) (domain.RFQ, error) {
	if dealer == "" {
		return domain.RFQ{}, fmt.Errorf("rfq_service: dealer is required: %w", domain.ErrInvalidArgument)
	}

	r, err := s.rfqs.Get(ctx, rfqID)
	if err != nil {
		return domain.RFQ{}, fmt.Errorf("rfq_service: add quote: %w", err)
	}

	var out domain.RFQ
	err = s.auctions.Update(ctx, r.AuctionID, func(a *domain.Auction) error {
		updated, err := s.rfqs.Update(ctx, rfqID, func(r *domain.RFQ) error {
			if r.Status != domain.RFQStatusOpen {
				return fmt.Errorf("rfq_service: rfq %s not open (status=%s): %w", rfqID, r.Status, domain.ErrFailedPrecondition)
			}
			r.Quotes = append(r.Quotes, domain.Quote{
				Dealer:   dealer,
				Price:    price,
				QuotedAt: time.Now().UTC(),
			})
			return nil
		})
		if err != nil {
			return err
		}
		mirrorOrder(a, updated)
		out = updated
		return s.audit.Append(ctx, domain.AuditEvent{
			Type:      domain.EventRFQQuoteAdded,
			AuctionID: a.ID,
			Payload: map[string]any{
				"rfqId":  rfqID,
				"dealer": dealer,
				"price":  price,
			},
		})
	})
	if err != nil {
		return domain.RFQ{}, err
	}
	return out, nil
}

// AcceptQuote marks the first quote from the given dealer as accepted. The
// reference is advisory only; it does not affect clearing, which never
// runs.
func (s *RFQService) AcceptQuote(ctx context.Context, rfqID, dealer string) (domain.RFQ, error) {
	if dealer == "" {
		return domain.RFQ{}, fmt.Errorf("rfq_service: dealer is required: %w", domain.ErrInvalidArgument)
	}

	r, err := s.rfqs.Get(ctx, rfqID)
	if err != nil {
		return domain.RFQ{}, fmt.Errorf("rfq_service: accept quote: %w", err)
	}

	var out domain.RFQ
	err = s.auctions.Update(ctx, r.AuctionID, func(a *domain.Auction) error {
		updated, err := s.rfqs.Update(ctx, rfqID, func(r *domain.RFQ) error {
			for _, q := range r.Quotes {
				if q.Dealer == dealer {
					accepted := q
					r.AcceptedQuote = &accepted
					return nil
				}
			}
			return fmt.Errorf("rfq_service: no quote from dealer %s on rfq %s: %w", dealer, rfqID, domain.ErrNotFound)
		})
		if err != nil {
			return err
		}
		mirrorOrder(a, updated)
		out = updated
		return s.audit.Append(ctx, domain.AuditEvent{
			Type:      domain.EventRFQQuoteAccepted,
			AuctionID: a.ID,
			Payload: map[string]any{
				"rfqId":  rfqID,
				"dealer": dealer,
			},
		})
	})
	if err != nil {
		return domain.RFQ{}, err
	}
	return out, nil
}

// mirrorOrder copies the authoritative RFQ record over its snapshot in the
// auction's embedded order list. Every RFQ mutation funnels through here so
// the two copies cannot diverge. Must be called with the auction lock held,
// i.e. from inside AuctionStore.Update.
func mirrorOrder(a *domain.Auction, r domain.RFQ) {
	for i := range a.Orders {
		if a.Orders[i].ID == r.ID {
			a.Orders[i] = r
			return
		}
	}
}

func applyGuidancePatch(g *domain.Guidance, patch domain.GuidancePatch) {
	if patch.FairPrice != nil {
		g.FairPrice = *patch.FairPrice
	}
	if patch.BandLow != nil {
		g.BandLow = *patch.BandLow
	}
	if patch.BandHigh != nil {
		g.BandHigh = *patch.BandHigh
	}
	if patch.Explanation != nil {
		g.Explanation = *patch.Explanation
	}
}

// refCodeOrPlaceholder derives a demo reference code from the parent name
// when the caller supplied none.
func refCodeOrPlaceholder(refCode, parentName string) string {
	if refCode != "" {
		return refCode
	}
	runes := []rune(parentName)
	if len(runes) > 4 {
		runes = runes[:4]
	}
	return strings.ToUpper(string(runes)) + "-DEMO"
}

func labelOrDefault(label string) string {
	if label != "" {
		return label
	}
	return defaultLPLabel
}

func (s *RFQService) windowOrDefault(w time.Duration) time.Duration {
	if w > 0 {
		return w
	}
	return s.defaultWindow
}
