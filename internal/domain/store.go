package domain

import "context"

// InstrumentStore owns parent bonds and their fractional sub-units.
type InstrumentStore interface {
	Create(ctx context.Context, inst Instrument) error
	Get(ctx context.Context, id string) (Instrument, error)
	List(ctx context.Context) ([]Instrument, error)
	// ReplaceSubUnits swaps the parent's sub-unit list and flips its status
	// to split, overwriting any prior split. Returns the updated record.
	ReplaceSubUnits(ctx context.Context, id string, units []SubUnit) (Instrument, error)
	// Resolve maps an id that may name either a parent bond or one of its
	// sub-units back to the owning parent.
	Resolve(ctx context.Context, instrumentID string) (Resolution, error)
	Count(ctx context.Context) (int, error)
}

// AuctionStore owns auction records.
//
// Update is the only read-modify-write path: it runs fn under the auction's
// own lock, so a status check and the mutation that depends on it are atomic
// with respect to the auto-close timer and concurrent request handlers. fn
// must not leave the record half-written when it returns an error.
type AuctionStore interface {
	Create(ctx context.Context, a Auction) error
	Get(ctx context.Context, id string) (Auction, error)
	List(ctx context.Context) ([]Auction, error)
	Update(ctx context.Context, id string, fn func(a *Auction) error) error
	// FindOpenByInstrument returns the id of an OPEN auction trading the
	// given instrument. With multiple open auctions for one instrument
	// (a constraint violation, not a supported case) the first match in
	// iteration order wins.
	FindOpenByInstrument(ctx context.Context, instrumentID string) (string, bool)
	Count(ctx context.Context) (int, error)
}

// RFQStore owns the authoritative RFQ records (the global index). The
// auction's embedded order list is only a mirror of these.
type RFQStore interface {
	Create(ctx context.Context, r RFQ) error
	Get(ctx context.Context, id string) (RFQ, error)
	// Update applies fn to the record in place and returns the result.
	Update(ctx context.Context, id string, fn func(r *RFQ) error) (RFQ, error)
	// List returns matching RFQs sorted by creation time descending,
	// truncated to filter.Limit when positive.
	List(ctx context.Context, filter RFQFilter) ([]RFQ, error)
	Count(ctx context.Context) (int, error)
}

// AuditStore is the append-only compliance log. Every state mutation appends
// exactly one event per logical transition.
type AuditStore interface {
	Append(ctx context.Context, ev AuditEvent) error
	// ListByAuction returns the events owned by an auction in insertion
	// order. An empty result is the caller's concern, not an error here.
	ListByAuction(ctx context.Context, auctionID string) ([]AuditEvent, error)
	List(ctx context.Context) ([]AuditEvent, error)
	Count(ctx context.Context) (int, error)
}

// EventFeed lets a consumer watch audit events as they are appended. The
// cancel function releases the watcher; a slow consumer may miss events
// rather than stall the append path.
type EventFeed interface {
	Watch(buffer int) (<-chan AuditEvent, func())
}
