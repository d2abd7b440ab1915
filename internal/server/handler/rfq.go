package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bondstreet/bondmatch/internal/domain"
	"github.com/bondstreet/bondmatch/internal/service"
)

// RFQService defines the methods that the RFQ handler requires from the
// service layer.
type RFQService interface {
	Create(ctx context.Context, p service.CreateParams) (domain.RFQ, error)
	Get(ctx context.Context, rfqID string) (domain.RFQ, error)
	Cancel(ctx context.Context, rfqID string) (domain.RFQ, error)
	Modify(ctx context.Context, rfqID string, p service.ModifyParams) (domain.RFQ, error)
	List(ctx context.Context, filter domain.RFQFilter) ([]domain.RFQ, error)
	OrdersOf(ctx context.Context, auctionID, userID string) ([]domain.RFQ, error)
	UpdateGuidance(ctx context.Context, rfqID string, patch domain.GuidancePatch) (domain.RFQ, error)
	RefreshGuidance(ctx context.Context, rfqID string) (domain.RFQ, error)
	AddQuote(ctx context.Context, rfqID, dealer string, price float64) (domain.RFQ, error)
	AcceptQuote(ctx context.Context, rfqID, dealer string) (domain.RFQ, error)
}

// RFQHandler serves RFQ order-book HTTP endpoints.
type RFQHandler struct {
	rfqs   RFQService
	logger *slog.Logger
}

// NewRFQHandler creates an RFQHandler.
func NewRFQHandler(rfqs RFQService, logger *slog.Logger) *RFQHandler {
	return &RFQHandler{rfqs: rfqs, logger: logger}
}

type createRFQRequest struct {
	InstrumentID    string   `json:"instrument_id"`
	UserID          string   `json:"user_id"`
	Side            string   `json:"side"`
	Qty             float64  `json:"qty"`
	LimitPrice      *float64 `json:"limit_price"`
	TimeInForce     string   `json:"time_in_force"`
	AutoStartWindow bool     `json:"auto_start_window"`
	WindowSeconds   int      `json:"window_seconds"`
	RefCode         string   `json:"ref_code"`
	LPLabel         string   `json:"lp_label"`
	BandOverride    *float64 `json:"band_override"`
}

// Create submits a new RFQ, optionally auto-starting an auction window.
// POST /api/rfqs
func (h *RFQHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRFQRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rfq, err := h.rfqs.Create(r.Context(), service.CreateParams{
		InstrumentID:    req.InstrumentID,
		UserID:          req.UserID,
		Side:            req.Side,
		Qty:             req.Qty,
		LimitPrice:      req.LimitPrice,
		TimeInForce:     req.TimeInForce,
		AutoStartWindow: req.AutoStartWindow,
		Window:          time.Duration(req.WindowSeconds) * time.Second,
		RefCode:         req.RefCode,
		LPLabel:         req.LPLabel,
		BandOverride:    req.BandOverride,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rfq)
}

// Get returns the RFQ with the given id.
// GET /api/rfqs/{id}
func (h *RFQHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing rfq id")
		return
	}

	rfq, err := h.rfqs.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfq)
}

// List returns RFQs matching the query filters, newest first.
// GET /api/rfqs?user_id=&status=&instrument_id=&auction_id=&limit=
func (h *RFQHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.RFQFilter{
		UserID:       q.Get("user_id"),
		Status:       domain.RFQStatus(q.Get("status")),
		InstrumentID: q.Get("instrument_id"),
		AuctionID:    q.Get("auction_id"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	rfqs, err := h.rfqs.List(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list rfqs failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list rfqs")
		return
	}
	if rfqs == nil {
		rfqs = []domain.RFQ{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rfqs": rfqs})
}

// Cancel moves an open RFQ to CANCELLED.
// POST /api/rfqs/{id}/cancel
func (h *RFQHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing rfq id")
		return
	}

	rfq, err := h.rfqs.Cancel(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfq)
}

type modifyRFQRequest struct {
	Qty *float64 `json:"qty"`
	// Raw so a present-but-null limit_price (reset to market) is
	// distinguishable from an absent one (leave unchanged). A pointer
	// would not do: the decoder leaves it nil for both JSON null and a
	// missing key. The non-pointer RawMessage stays empty when the key
	// is absent and holds the literal "null" bytes when it is present.
	LimitPrice json.RawMessage `json:"limit_price"`
}

// Modify updates an open RFQ's quantity and/or limit price.
// PATCH /api/rfqs/{id}
func (h *RFQHandler) Modify(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing rfq id")
		return
	}

	var req modifyRFQRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	params := service.ModifyParams{Qty: req.Qty}
	if len(req.LimitPrice) > 0 {
		params.LimitPriceSet = true
		if string(req.LimitPrice) != "null" {
			var price float64
			if err := json.Unmarshal(req.LimitPrice, &price); err != nil {
				writeError(w, http.StatusBadRequest, "limit_price must be a number or null")
				return
			}
			params.LimitPrice = &price
		}
	}

	rfq, err := h.rfqs.Modify(r.Context(), id, params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfq)
}

// ListAuctionOrders reads the auction's embedded order list.
// GET /api/auctions/{id}/orders?user_id=
func (h *RFQHandler) ListAuctionOrders(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing auction id")
		return
	}

	orders, err := h.rfqs.OrdersOf(r.Context(), id, r.URL.Query().Get("user_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.RFQ{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type guidancePatchRequest struct {
	FairPrice   *float64 `json:"fair_price"`
	BandLow     *float64 `json:"band_low"`
	BandHigh    *float64 `json:"band_high"`
	Explanation *string  `json:"explanation"`
}

// PatchGuidance applies a partial update to the RFQ's price guidance.
// PATCH /api/rfqs/{id}/guidance
func (h *RFQHandler) PatchGuidance(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing rfq id")
		return
	}

	var req guidancePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rfq, err := h.rfqs.UpdateGuidance(r.Context(), id, domain.GuidancePatch{
		FairPrice:   req.FairPrice,
		BandLow:     req.BandLow,
		BandHigh:    req.BandHigh,
		Explanation: req.Explanation,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfq)
}

// RefreshGuidance recomputes price guidance from the advisory heuristic.
// POST /api/rfqs/{id}/guidance/refresh
func (h *RFQHandler) RefreshGuidance(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing rfq id")
		return
	}

	rfq, err := h.rfqs.RefreshGuidance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfq)
}

type addQuoteRequest struct {
	Dealer string   `json:"dealer"`
	Price  *float64 `json:"price"`
}

// AddQuote posts a dealer's indicative price on the RFQ bulletin.
// POST /api/rfqs/{id}/quotes
func (h *RFQHandler) AddQuote(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing rfq id")
		return
	}

	var req addQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Dealer == "" || req.Price == nil {
		writeError(w, http.StatusBadRequest, "dealer and price are required")
		return
	}

	rfq, err := h.rfqs.AddQuote(r.Context(), id, req.Dealer, *req.Price)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfq)
}

type acceptQuoteRequest struct {
	Dealer string `json:"dealer"`
}

// AcceptQuote marks a dealer's quote as accepted (advisory only).
// POST /api/rfqs/{id}/quotes/accept
func (h *RFQHandler) AcceptQuote(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing rfq id")
		return
	}

	var req acceptQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Dealer == "" {
		writeError(w, http.StatusBadRequest, "dealer is required")
		return
	}

	rfq, err := h.rfqs.AcceptQuote(r.Context(), id, req.Dealer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfq)
}
