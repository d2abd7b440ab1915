package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bondstreet/bondmatch/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func TestRFQCreateRequiresOpenAuction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "ACME 2030", 1000)

	_, err := f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID: inst.ID,
		UserID:       "alice",
		Side:         "BUY",
		Qty:          10,
	})
	assert.ErrorIs(t, err, domain.ErrFailedPrecondition)
}

func TestRFQCreateBindsToOpenAuction(t *testing.T) {
	defer leaktest.Check(t)()

	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "ACME 2030", 1000)
	a := f.openAuction(t, inst.ID, 40*time.Millisecond)

	r, err := f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID: inst.ID,
		UserID:       "alice",
		Side:         "buy",
		Qty:          10,
		LimitPrice:   floatPtr(99.5),
		TimeInForce:  "aon",
	})
	require.NoError(t, err)
	assert.Equal(t, a.ID, r.AuctionID)
	assert.Equal(t, domain.SideBuy, r.Side)
	assert.Equal(t, domain.TIFAllOrNone, r.TimeInForce)
	assert.Equal(t, domain.RFQStatusOpen, r.Status)
	assert.Equal(t, inst.ID, r.ParentID)
	assert.Empty(t, r.SubUnitID)
	require.NotNil(t, r.LimitPrice)
	assert.Equal(t, 99.5, *r.LimitPrice)

	// Guidance is stamped at creation: parent bond, small clip.
	assert.Equal(t, 1000.0, r.Guidance.FairPrice)
	assert.Equal(t, 999.5, r.Guidance.BandLow)
	assert.Equal(t, 1000.5, r.Guidance.BandHigh)

	// The auction mirror carries the same snapshot.
	orders, err := f.rfqSvc.OrdersOf(ctx, a.ID, "")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, r, orders[0])

	f.waitClosed(t, a.ID)
}

func TestRFQCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "ACME 2030", 1000)

	cases := []struct {
		name string
		p    CreateParams
	}{
		{"missing instrument", CreateParams{UserID: "alice", Side: "BUY", Qty: 1}},
		{"missing user", CreateParams{InstrumentID: inst.ID, Side: "BUY", Qty: 1}},
		{"bad side", CreateParams{InstrumentID: inst.ID, UserID: "alice", Side: "HOLD", Qty: 1}},
		{"bad tif", CreateParams{InstrumentID: inst.ID, UserID: "alice", Side: "BUY", Qty: 1, TimeInForce: "FOK"}},
		{"zero qty", CreateParams{InstrumentID: inst.ID, UserID: "alice", Side: "BUY", Qty: 0}},
		{"negative qty", CreateParams{InstrumentID: inst.ID, UserID: "alice", Side: "BUY", Qty: -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.rfqSvc.Create(ctx, tc.p)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}

	_, err := f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID: "missing", UserID: "alice", Side: "BUY", Qty: 1,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRFQCreateAutoStartsAuction(t *testing.T) {
	defer leaktest.Check(t)()

	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "Acme Industrial 2030", 1000)

	r, err := f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID:    inst.ID,
		UserID:          "alice",
		Side:            "SELL",
		Qty:             10,
		AutoStartWindow: true,
		Window:          40 * time.Millisecond,
	})
	require.NoError(t, err)

	a, err := f.auctionSvc.Get(ctx, r.AuctionID)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, a.InstrumentID)
	assert.Equal(t, "ACME-DEMO", a.Meta.RefCode)
	assert.Equal(t, "LP-DEMO", a.Meta.LPLabel)

	events, err := f.auctionSvc.AuditTrail(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.EventAuctionStartInline, domain.EventRFQCreated}, eventTypes(events))

	// A second RFQ joins the inline auction instead of starting another.
	r2, err := f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID: inst.ID,
		UserID:       "bob",
		Side:         "BUY",
		Qty:          5,
	})
	require.NoError(t, err)
	assert.Equal(t, a.ID, r2.AuctionID)

	f.waitClosed(t, a.ID)
}

func TestRFQCreateOnSubUnitAppliesDiscount(t *testing.T) {
	defer leaktest.Check(t)()

	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "ACME 2030", 100)
	units, err := f.instrumentSvc.Split(ctx, inst.ID, 4)
	require.NoError(t, err)

	r, err := f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID:    units[0].ID,
		UserID:          "alice",
		Side:            "BUY",
		Qty:             1000,
		AutoStartWindow: true,
		Window:          40 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, units[0].ID, r.InstrumentID)
	assert.Equal(t, inst.ID, r.ParentID)
	assert.Equal(t, units[0].ID, r.SubUnitID)

	// Sub-unit plus oversize clip: 100 - 0.05 - 0.02.
	assert.Equal(t, 99.93, r.Guidance.FairPrice)
	assert.Equal(t, 99.43, r.Guidance.BandLow)
	assert.Equal(t, 100.43, r.Guidance.BandHigh)

	f.waitClosed(t, r.AuctionID)
}

func TestRFQCancel(t *testing.T) {
	defer leaktest.Check(t)()

	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "ACME 2030", 1000)
	a := f.openAuction(t, inst.ID, 60*time.Millisecond)

	r, err := f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID: inst.ID, UserID: "alice", Side: "BUY", Qty: 10,
	})
	require.NoError(t, err)

	cancelled, err := f.rfqSvc.Cancel(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RFQStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	// Mirror reflects the cancellation.
	orders, err := f.rfqSvc.OrdersOf(ctx, a.ID, "")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.RFQStatusCancelled, orders[0].Status)

	// Cancellation is terminal.
	_, err = f.rfqSvc.Cancel(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrFailedPrecondition)

	_, err = f.rfqSvc.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.waitClosed(t, a.ID)
}

func TestRFQModify(t *testing.T) {
	defer leaktest.Check(t)()

	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "ACME 2030", 1000)
	a := f.openAuction(t, inst.ID, 60*time.Millisecond)

	r, err := f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID: inst.ID, UserID: "alice", Side: "BUY", Qty: 10, LimitPrice: floatPtr(99),
	})
	require.NoError(t, err)

	// Qty only: limit price untouched.
	updated, err := f.rfqSvc.Modify(ctx, r.ID, ModifyParams{Qty: floatPtr(25)})
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.Qty)
	require.NotNil(t, updated.LimitPrice)
	assert.Equal(t, 99.0, *updated.LimitPrice)
	require.NotNil(t, updated.ModifiedAt)

	// Explicit nil limit price resets to market.
	updated, err = f.rfqSvc.Modify(ctx, r.ID, ModifyParams{LimitPrice: nil, LimitPriceSet: true})
	require.NoError(t, err)
	assert.Nil(t, updated.LimitPrice)
	assert.Equal(t, 25.0, updated.Qty)

	// Mirror follows.
	orders, err := f.rfqSvc.OrdersOf(ctx, a.ID, "alice")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, updated, orders[0])

	_, err = f.rfqSvc.Modify(ctx, r.ID, ModifyParams{Qty: floatPtr(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	// A cancelled RFQ is immutable.
	_, err = f.rfqSvc.Cancel(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.rfqSvc.Modify(ctx, r.ID, ModifyParams{Qty: floatPtr(5)})
	assert.ErrorIs(t, err, domain.ErrFailedPrecondition)

	f.waitClosed(t, a.ID)
}

func TestRFQMutationsRejectedAfterClose(t *testing.T) {
	defer leaktest.Check(t)()

	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "ACME 2030", 1000)
	a := f.openAuction(t, inst.ID, 30*time.Millisecond)

	r, err := f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID: inst.ID, UserID: "alice", Side: "BUY", Qty: 10,
	})
	require.NoError(t, err)

	f.waitClosed(t, a.ID)

	_, err = f.rfqSvc.Cancel(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrFailedPrecondition)

	_, err = f.rfqSvc.Modify(ctx, r.ID, ModifyParams{Qty: floatPtr(5)})
	assert.ErrorIs(t, err, domain.ErrFailedPrecondition)

	// The RFQ itself stays OPEN: the window closing does not cancel it.
	got, err := f.rfqSvc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RFQStatusOpen, got.Status)
}

// Racing creations against a tight auto-close window must never leave an
// order admitted after the close, and every admitted order must appear in
// the auction's order list.
func TestRFQCreateRacesAutoClose(t *testing.T) {
	defer leaktest.Check(t)()

	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "ACME 2030", 1000)
	a := f.openAuction(t, inst.ID, 20*time.Millisecond)

	var (
		mu       sync.Mutex
		admitted int
		failures []error
	)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := f.rfqSvc.Create(ctx, CreateParams{
					InstrumentID: inst.ID, UserID: "alice", Side: "BUY", Qty: 1,
				})
				if err != nil {
					// The window closed mid-create; admission was refused.
					mu.Lock()
					failures = append(failures, err)
					mu.Unlock()
					return
				}
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for _, err := range failures {
		require.ErrorIs(t, err, domain.ErrFailedPrecondition)
	}

	got, err := f.auctionSvc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionStatusClosed, got.Status)
	assert.Len(t, got.Orders, admitted)

	n, err := f.rfqs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, admitted, n)
}

func TestRFQListClampsLimit(t *testing.T) {
	defer leaktest.Check(t)()

	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "ACME 2030", 1000)
	a := f.openAuction(t, inst.ID, 60*time.Millisecond)

	for i := 0; i < 5; i++ {
		_, err := f.rfqSvc.Create(ctx, CreateParams{
			InstrumentID: inst.ID, UserID: "alice", Side: "BUY", Qty: 1,
		})
		require.NoError(t, err)
	}

	all, err := f.rfqSvc.List(ctx, domain.RFQFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	limited, err := f.rfqSvc.List(ctx, domain.RFQFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	capped, err := f.rfqSvc.List(ctx, domain.RFQFilter{Limit: 10_000})
	require.NoError(t, err)
	assert.Len(t, capped, 5)

	byUser, err := f.rfqSvc.List(ctx, domain.RFQFilter{UserID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, byUser)

	f.waitClosed(t, a.ID)
}

func TestRFQGuidancePatch(t *testing.T) {
	defer leaktest.Check(t)()

	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "ACME 2030", 1000)
	a := f.openAuction(t, inst.ID, 60*time.Millisecond)

	r, err := f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID: inst.ID, UserID: "alice", Side: "BUY", Qty: 10,
	})
	require.NoError(t, err)

	// Partial patch: only fair price moves, the band stays.
	updated, err := f.rfqSvc.UpdateGuidance(ctx, r.ID, domain.GuidancePatch{
		FairPrice: floatPtr(998.7),
	})
	require.NoError(t, err)
	assert.Equal(t, 998.7, updated.Guidance.FairPrice)
	assert.Equal(t, r.Guidance.BandLow, updated.Guidance.BandLow)
	assert.Equal(t, r.Guidance.BandHigh, updated.Guidance.BandHigh)
	assert.Equal(t, r.Guidance.Explanation, updated.Guidance.Explanation)

	// Refresh recomputes everything from the instrument.
	refreshed, err := f.rfqSvc.RefreshGuidance(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Guidance, refreshed.Guidance)

	// The mirror tracks both operations.
	orders, err := f.rfqSvc.OrdersOf(ctx, a.ID, "")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, refreshed.Guidance, orders[0].Guidance)

	events, err := f.auctionSvc.AuditTrail(ctx, a.ID)
	require.NoError(t, err)
	assert.Contains(t, eventTypes(events), domain.EventRFQFairPriceUpdate)
	assert.Contains(t, eventTypes(events), domain.EventRFQFairPriceStub)

	f.waitClosed(t, a.ID)
}

func TestRFQGuidanceSurvivesClose(t *testing.T) {
	defer leaktest.Check(t)()

	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "ACME 2030", 1000)
	a := f.openAuction(t, inst.ID, 25*time.Millisecond)

	r, err := f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID: inst.ID, UserID: "alice", Side: "BUY", Qty: 10,
	})
	require.NoError(t, err)

	f.waitClosed(t, a.ID)

	// Guidance is advisory and not gated on the window.
	updated, err := f.rfqSvc.UpdateGuidance(ctx, r.ID, domain.GuidancePatch{FairPrice: floatPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 5.0, updated.Guidance.FairPrice)

	_, err = f.rfqSvc.RefreshGuidance(ctx, r.ID)
	require.NoError(t, err)
}

func TestRFQQuotes(t *testing.T) {
	defer leaktest.Check(t)()

	f := newFixture(t)
	ctx := context.Background()
	inst := f.registerBond(t, "ACME 2030", 1000)
	a := f.openAuction(t, inst.ID, 60*time.Millisecond)

	r, err := f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID: inst.ID, UserID: "alice", Side: "BUY", Qty: 10,
	})
	require.NoError(t, err)

	_, err = f.rfqSvc.AddQuote(ctx, r.ID, "", 99)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	withQuote, err := f.rfqSvc.AddQuote(ctx, r.ID, "dealer-a", 999.25)
	require.NoError(t, err)
	require.Len(t, withQuote.Quotes, 1)
	assert.Equal(t, "dealer-a", withQuote.Quotes[0].Dealer)
	assert.Equal(t, 999.25, withQuote.Quotes[0].Price)

	_, err = f.rfqSvc.AddQuote(ctx, r.ID, "dealer-b", 999.75)
	require.NoError(t, err)

	_, err = f.rfqSvc.AcceptQuote(ctx, r.ID, "dealer-c")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	accepted, err := f.rfqSvc.AcceptQuote(ctx, r.ID, "dealer-b")
	require.NoError(t, err)
	require.NotNil(t, accepted.AcceptedQuote)
	assert.Equal(t, "dealer-b", accepted.AcceptedQuote.Dealer)
	assert.Equal(t, 999.75, accepted.AcceptedQuote.Price)

	// Quoting a cancelled RFQ is refused.
	_, err = f.rfqSvc.Cancel(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.rfqSvc.AddQuote(ctx, r.ID, "dealer-a", 998)
	assert.ErrorIs(t, err, domain.ErrFailedPrecondition)

	events, err := f.auctionSvc.AuditTrail(ctx, a.ID)
	require.NoError(t, err)
	assert.Contains(t, eventTypes(events), domain.EventRFQQuoteAdded)
	assert.Contains(t, eventTypes(events), domain.EventRFQQuoteAccepted)

	f.waitClosed(t, a.ID)
}

func TestStatsCounts(t *testing.T) {
	defer leaktest.Check(t)()

	f := newFixture(t)
	ctx := context.Background()

	stats, err := f.statsSvc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Instruments)
	assert.Zero(t, stats.Auctions)
	assert.Zero(t, stats.RFQs)
	assert.Zero(t, stats.AuditEvents)

	inst := f.registerBond(t, "ACME 2030", 1000)
	a := f.openAuction(t, inst.ID, 30*time.Millisecond)
	_, err = f.rfqSvc.Create(ctx, CreateParams{
		InstrumentID: inst.ID, UserID: "alice", Side: "BUY", Qty: 10,
	})
	require.NoError(t, err)

	stats, err = f.statsSvc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Instruments)
	assert.Equal(t, 1, stats.Auctions)
	assert.Equal(t, 1, stats.RFQs)
	assert.GreaterOrEqual(t, stats.AuditEvents, 2)

	f.waitClosed(t, a.ID)
}
