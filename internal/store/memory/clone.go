// Package memory implements the domain store interfaces with process-lifetime
// in-memory state. Nothing survives a restart; durability is out of scope.
//
// Records are deep-copied on every read so callers can never alias the maps'
// contents. The auction store additionally carries a per-record mutex that
// serializes status and order-list access between the auto-close timer and
// request handlers.
package memory

import (
	"time"

	"github.com/bondstreet/bondmatch/internal/domain"
)

func cloneInstrument(inst domain.Instrument) domain.Instrument {
	out := inst
	if inst.SubUnits != nil {
		out.SubUnits = make([]domain.SubUnit, len(inst.SubUnits))
		copy(out.SubUnits, inst.SubUnits)
	}
	return out
}

func cloneRFQ(r domain.RFQ) domain.RFQ {
	out := r
	out.LimitPrice = cloneFloat(r.LimitPrice)
	out.ModifiedAt = cloneTime(r.ModifiedAt)
	out.CancelledAt = cloneTime(r.CancelledAt)
	out.AvgFillPrice = cloneFloat(r.AvgFillPrice)
	if r.Quotes != nil {
		out.Quotes = make([]domain.Quote, len(r.Quotes))
		copy(out.Quotes, r.Quotes)
	}
	if r.AcceptedQuote != nil {
		q := *r.AcceptedQuote
		out.AcceptedQuote = &q
	}
	return out
}

func cloneAuction(a domain.Auction) domain.Auction {
	out := a
	out.BandOverride = cloneFloat(a.BandOverride)
	out.ClearingPrice = cloneFloat(a.ClearingPrice)
	out.MatchedNotional = cloneFloat(a.MatchedNotional)
	if a.CommitmentHash != nil {
		h := *a.CommitmentHash
		out.CommitmentHash = &h
	}
	if a.Orders != nil {
		out.Orders = make([]domain.RFQ, len(a.Orders))
		for i, r := range a.Orders {
			out.Orders[i] = cloneRFQ(r)
		}
	}
	if a.Fills != nil {
		out.Fills = make([]domain.Fill, len(a.Fills))
		copy(out.Fills, a.Fills)
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
