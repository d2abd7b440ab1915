// Package pricing computes advisory fair-price guidance for RFQs. The
// numbers are deliberately simple and fixed: the contract is stable,
// reproducible output, not price discovery.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bondstreet/bondmatch/internal/domain"
)

var (
	// subUnitDiscount is the illiquidity haircut applied when the traded
	// instrument is a fractional sub-unit rather than the parent bond.
	subUnitDiscount = decimal.RequireFromString("0.05")

	// sizeDiscount applies when the requested quantity exceeds 10% of the
	// parent's face value.
	sizeDiscount = decimal.RequireFromString("0.02")

	// halfBand is the half-width of the advisory price band.
	halfBand = decimal.RequireFromString("0.50")

	sizeThreshold = decimal.RequireFromString("0.1")
)

// Advisor produces deterministic fair-price guidance. It holds no state and
// has no side effects: identical inputs always yield identical output.
type Advisor struct{}

// NewAdvisor creates an Advisor.
func NewAdvisor() *Advisor {
	return &Advisor{}
}

// Guidance computes the advisory fair price and band for an order context.
// Base is the parent's face value, less the sub-unit discount when trading a
// fraction, less the size discount for clips above 10% of face value. All
// prices are rounded to two decimal places.
func (Advisor) Guidance(faceValue float64, side domain.Side, qty float64, isSubUnit bool) domain.Guidance {
	fv := decimal.NewFromFloat(faceValue)
	base := fv
	if isSubUnit {
		base = base.Sub(subUnitDiscount)
	}
	if decimal.NewFromFloat(qty).GreaterThan(fv.Mul(sizeThreshold)) {
		base = base.Sub(sizeDiscount)
	}

	return domain.Guidance{
		FairPrice:   base.Round(2).InexactFloat64(),
		BandLow:     base.Sub(halfBand).Round(2).InexactFloat64(),
		BandHigh:    base.Add(halfBand).Round(2).InexactFloat64(),
		Explanation: fmt.Sprintf("Near face value with small illiquidity/size adjustments (%s).", side),
	}
}
