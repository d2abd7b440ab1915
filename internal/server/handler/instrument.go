package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bondstreet/bondmatch/internal/domain"
)

// InstrumentService defines the methods that the instrument handler requires
// from the service layer.
type InstrumentService interface {
	Register(ctx context.Context, name string, faceValue float64) (domain.Instrument, error)
	Split(ctx context.Context, instrumentID string, parts int) ([]domain.SubUnit, error)
	Resolve(ctx context.Context, instrumentID string) (domain.Resolution, error)
	List(ctx context.Context) ([]domain.Instrument, error)
}

// InstrumentHandler serves instrument-registry HTTP endpoints.
type InstrumentHandler struct {
	instruments InstrumentService
	logger      *slog.Logger
}

// NewInstrumentHandler creates an InstrumentHandler.
func NewInstrumentHandler(instruments InstrumentService, logger *slog.Logger) *InstrumentHandler {
	return &InstrumentHandler{instruments: instruments, logger: logger}
}

type registerInstrumentRequest struct {
	Name      string  `json:"name"`
	FaceValue float64 `json:"face_value"`
}

// Register lists a new parent bond.
// POST /api/instruments
func (h *InstrumentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerInstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	inst, err := h.instruments.Register(r.Context(), req.Name, req.FaceValue)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

// List returns every registered parent bond.
// GET /api/instruments
func (h *InstrumentHandler) List(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.instruments.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list instruments failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list instruments")
		return
	}
	if instruments == nil {
		instruments = []domain.Instrument{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"instruments": instruments})
}

// Resolve maps an id naming a parent bond or sub-unit to the owning parent.
// GET /api/instruments/{id}
func (h *InstrumentHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing instrument id")
		return
	}

	res, err := h.instruments.Resolve(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Split partitions a parent bond into N equal-value sub-units.
// POST /api/instruments/{id}/split?parts=N
func (h *InstrumentHandler) Split(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing instrument id")
		return
	}
	parts, err := strconv.Atoi(r.URL.Query().Get("parts"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "parts query parameter must be an integer")
		return
	}

	units, err := h.instruments.Split(r.Context(), id, parts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"parent_id": id,
		"sub_units": units,
	})
}
