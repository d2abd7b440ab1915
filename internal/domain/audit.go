package domain

import "time"

// Audit event types, one per logical state transition.
const (
	EventAuctionStart       = "AUCTION_START"
	EventAuctionStartInline = "AUCTION_START_INLINE"
	EventAuctionAutoClose   = "AUCTION_AUTO_CLOSE"
	EventRFQCreated         = "RFQ_CREATED"
	EventRFQCancelled       = "RFQ_CANCELLED"
	EventRFQModified        = "RFQ_MODIFIED"
	EventRFQFairPriceUpdate = "RFQ_FAIRPRICE_UPDATE"
	EventRFQFairPriceStub   = "RFQ_FAIRPRICE_STUB"
	EventRFQQuoteAdded      = "RFQ_QUOTE_ADDED"
	EventRFQQuoteAccepted   = "RFQ_QUOTE_ACCEPTED"
)

// AuditEvent is one immutable row of the compliance log. Events are never
// mutated or removed; their total order is insertion order.
type AuditEvent struct {
	At        time.Time
	Type      string
	AuctionID string // empty when the event is not owned by an auction
	Payload   map[string]any
}
