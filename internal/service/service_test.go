package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bondstreet/bondmatch/internal/domain"
	"github.com/bondstreet/bondmatch/internal/pricing"
	"github.com/bondstreet/bondmatch/internal/store/memory"
)

// fixture wires the full in-memory service stack for tests.
type fixture struct {
	instruments *memory.InstrumentStore
	auctions    *memory.AuctionStore
	rfqs        *memory.RFQStore
	audit       *memory.AuditStore

	instrumentSvc *InstrumentService
	auctionSvc    *AuctionService
	rfqSvc        *RFQService
	statsSvc      *StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		instruments: memory.NewInstrumentStore(),
		auctions:    memory.NewAuctionStore(),
		rfqs:        memory.NewRFQStore(),
		audit:       memory.NewAuditStore(),
	}
	f.instrumentSvc = NewInstrumentService(f.instruments, logger)
	f.auctionSvc = NewAuctionService(f.auctions, f.instruments, f.audit, logger)
	f.rfqSvc = NewRFQService(
		f.rfqs, f.auctions, f.instruments, f.audit,
		pricing.NewAdvisor(), f.auctionSvc, 3*time.Minute, logger,
	)
	f.statsSvc = NewStatsService(f.instruments, f.auctions, f.rfqs, f.audit)
	return f
}

// registerBond registers a parent bond and returns it.
func (f *fixture) registerBond(t *testing.T, name string, faceValue float64) domain.Instrument {
	t.Helper()
	inst, err := f.instrumentSvc.Register(context.Background(), name, faceValue)
	require.NoError(t, err)
	return inst
}

// openAuction opens an auction window on the instrument.
func (f *fixture) openAuction(t *testing.T, instrumentID string, window time.Duration) domain.Auction {
	t.Helper()
	a, err := f.auctionSvc.Open(context.Background(), OpenParams{
		InstrumentID: instrumentID,
		RefCode:      "REF-1",
		LPLabel:      "LP-TEST",
		Window:       window,
	})
	require.NoError(t, err)
	return a
}

// eventTypes projects an audit slice onto its type names.
func eventTypes(events []domain.AuditEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

// waitClosed polls until the auction reports CLOSED or the deadline expires.
func (f *fixture) waitClosed(t *testing.T, auctionID string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		a, err := f.auctionSvc.Get(context.Background(), auctionID)
		require.NoError(t, err)
		if !a.IsOpen() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("auction %s did not close in time", auctionID)
}
