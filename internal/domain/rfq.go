package domain

import (
	"fmt"
	"strings"
	"time"
)

// Side indicates whether an RFQ is buying or selling.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide normalizes raw input into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("side must be BUY or SELL, got %q: %w", s, ErrInvalidArgument)
	}
}

// TimeInForce is the requested order duration policy. All values are honored
// only for the life of the auction window.
type TimeInForce string

const (
	TIFGoodTillCancel    TimeInForce = "GTC"
	TIFAllOrNone         TimeInForce = "AON"
	TIFImmediateOrCancel TimeInForce = "IOC"
)

// ParseTimeInForce normalizes raw input into a TimeInForce. Empty input
// defaults to GTC.
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch TimeInForce(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return TIFGoodTillCancel, nil
	case TIFGoodTillCancel:
		return TIFGoodTillCancel, nil
	case TIFAllOrNone:
		return TIFAllOrNone, nil
	case TIFImmediateOrCancel:
		return TIFImmediateOrCancel, nil
	default:
		return "", fmt.Errorf("time in force must be GTC, AON or IOC, got %q: %w", s, ErrInvalidArgument)
	}
}

// RFQStatus tracks the RFQ lifecycle. There is no filled state: clearing
// never runs, so cancellation is the only terminal transition.
type RFQStatus string

const (
	RFQStatusOpen      RFQStatus = "OPEN"
	RFQStatusCancelled RFQStatus = "CANCELLED"
)

// Guidance is the advisory fair-price snapshot stamped on an RFQ. It is
// never binding and never read by any clearing step.
type Guidance struct {
	FairPrice   float64
	BandLow     float64
	BandHigh    float64
	Explanation string
}

// GuidancePatch is an any-subset update of guidance fields. Nil fields are
// left unchanged.
type GuidancePatch struct {
	FairPrice   *float64
	BandLow     *float64
	BandHigh    *float64
	Explanation *string
}

// Quote is one dealer's indicative price posted on an RFQ bulletin.
type Quote struct {
	Dealer   string
	Price    float64
	QuotedAt time.Time
}

// RFQ is one participant's buy/sell request bound to an auction. Mutable
// only while both its own status and its owning auction's status are OPEN.
type RFQ struct {
	ID           string
	AuctionID    string
	InstrumentID string // parent bond id or sub-unit id, as submitted
	ParentID     string // always the parent bond id
	SubUnitID    string // empty when the RFQ trades the parent directly
	UserID       string
	Side         Side
	Qty          float64
	LimitPrice   *float64 // nil = market
	TimeInForce  TimeInForce
	Status       RFQStatus
	CreatedAt    time.Time
	ModifiedAt   *time.Time
	CancelledAt  *time.Time

	// Fill tracking, reserved. Always zero/nil since clearing never runs.
	FilledQty    float64
	AvgFillPrice *float64

	Guidance Guidance

	// Dealer quote bulletin.
	Quotes        []Quote
	AcceptedQuote *Quote // advisory only; does not affect clearing
}

// RFQFilter narrows List queries. Zero-value fields are ignored.
type RFQFilter struct {
	UserID       string
	Status       RFQStatus
	InstrumentID string
	AuctionID    string
	Limit        int
}
