package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bondstreet/bondmatch/internal/domain"
	"github.com/bondstreet/bondmatch/internal/service"
)

// AuctionService defines the methods that the auction handler requires from
// the service layer.
type AuctionService interface {
	Open(ctx context.Context, p service.OpenParams) (domain.Auction, error)
	Get(ctx context.Context, auctionID string) (domain.Auction, error)
	List(ctx context.Context) ([]domain.Auction, error)
	Result(ctx context.Context, auctionID string) (domain.AuctionResult, error)
	AuditTrail(ctx context.Context, auctionID string) ([]domain.AuditEvent, error)
}

// AuctionHandler serves auction-lifecycle HTTP endpoints.
type AuctionHandler struct {
	auctions AuctionService
	logger   *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(auctions AuctionService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{auctions: auctions, logger: logger}
}

type openAuctionRequest struct {
	InstrumentID  string   `json:"instrument_id"`
	RefCode       string   `json:"ref_code"`
	LPLabel       string   `json:"lp_label"`
	WindowSeconds int      `json:"window_seconds"`
	BandOverride  *float64 `json:"band_override"`
}

// Open starts a new auction window for an instrument.
// POST /api/auctions
func (h *AuctionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.InstrumentID == "" {
		writeError(w, http.StatusBadRequest, "instrument_id is required")
		return
	}

	a, err := h.auctions.Open(r.Context(), service.OpenParams{
		InstrumentID: req.InstrumentID,
		RefCode:      req.RefCode,
		LPLabel:      req.LPLabel,
		Window:       time.Duration(req.WindowSeconds) * time.Second,
		BandOverride: req.BandOverride,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Get returns the full auction record.
// GET /api/auctions/{id}
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing auction id")
		return
	}

	a, err := h.auctions.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// List returns all auctions.
// GET /api/auctions
func (h *AuctionHandler) List(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.auctions.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list auctions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list auctions")
		return
	}
	if auctions == nil {
		auctions = []domain.Auction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"auctions": auctions})
}

// Result returns the clearing summary of a closed auction. The clearing
// fields are always null.
// GET /api/auctions/{id}/result
func (h *AuctionHandler) Result(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing auction id")
		return
	}

	result, err := h.auctions.Result(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// AuditTrail returns the audit events owned by the auction.
// GET /api/auctions/{id}/audit
func (h *AuctionHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing auction id")
		return
	}

	events, err := h.auctions.AuditTrail(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
