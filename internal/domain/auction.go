package domain

import "time"

// AuctionStatus is the lifecycle state of an auction window.
type AuctionStatus string

const (
	AuctionStatusOpen   AuctionStatus = "OPEN"
	AuctionStatusClosed AuctionStatus = "CLOSED"
)

// AuctionMeta is the instrument snapshot fixed when the auction opens.
type AuctionMeta struct {
	ParentID  string
	FaceValue float64
	RefCode   string // external reference code, e.g. an ISIN
	LPLabel   string // liquidity-provider label
}

// Fill is reserved for a future clearing pass. Nothing populates it.
type Fill struct {
	RFQID string
	Qty   float64
	Price float64
}

// Auction is a time-boxed collection window for RFQs against one instrument.
//
// Orders is a denormalized mirror of the RFQs bound to this auction, kept in
// sync with the authoritative records on every post-creation mutation. It is
// a read optimization, not the source of truth for RFQ state.
//
// Status moves OPEN -> CLOSED exactly once, driven by the auto-close timer.
// ClosesAt is the deadline fixed at creation, not the actual close time.
type Auction struct {
	ID           string
	InstrumentID string
	Meta         AuctionMeta
	Orders       []RFQ
	Status       AuctionStatus
	OpensAt      time.Time
	ClosesAt     time.Time
	BandOverride *float64

	// Clearing outputs, reserved. Permanently nil: no clearing algorithm
	// runs and callers must not read a zero-notional auction out of them.
	ClearingPrice   *float64
	MatchedNotional *float64
	Fills           []Fill
	CommitmentHash  *string
}

// IsOpen reports whether the auction still accepts RFQ mutations.
func (a *Auction) IsOpen() bool {
	return a.Status == AuctionStatusOpen
}

// AuctionResult is the clearing summary exposed once an auction has closed.
// All clearing fields mirror the reserved auction fields and stay nil.
type AuctionResult struct {
	AuctionID       string
	Status          AuctionStatus
	ClearingPrice   *float64
	MatchedNotional *float64
	Fills           []Fill
	CommitmentHash  *string
}
