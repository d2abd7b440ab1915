package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bondstreet/bondmatch/internal/domain"
)

func TestGuidanceParentSmallClip(t *testing.T) {
	adv := NewAdvisor()

	g := adv.Guidance(100, domain.SideBuy, 5, false)

	assert.Equal(t, 100.0, g.FairPrice)
	assert.Equal(t, 99.5, g.BandLow)
	assert.Equal(t, 100.5, g.BandHigh)
	assert.Contains(t, g.Explanation, "BUY")
}

func TestGuidanceSubUnitDiscount(t *testing.T) {
	adv := NewAdvisor()

	g := adv.Guidance(100, domain.SideSell, 5, true)

	assert.Equal(t, 99.95, g.FairPrice)
	assert.Equal(t, 99.45, g.BandLow)
	assert.Equal(t, 100.45, g.BandHigh)
}

func TestGuidanceSizeDiscount(t *testing.T) {
	adv := NewAdvisor()

	// Threshold is 10% of face value; qty 10 on face 100 is at the
	// boundary and must not trigger the discount.
	atBoundary := adv.Guidance(100, domain.SideBuy, 10, false)
	assert.Equal(t, 100.0, atBoundary.FairPrice)

	above := adv.Guidance(100, domain.SideBuy, 10.01, false)
	assert.Equal(t, 99.98, above.FairPrice)
}

func TestGuidanceBothDiscounts(t *testing.T) {
	adv := NewAdvisor()

	g := adv.Guidance(100, domain.SideBuy, 1000, true)

	assert.Equal(t, 99.93, g.FairPrice)
	assert.Equal(t, 99.43, g.BandLow)
	assert.Equal(t, 100.43, g.BandHigh)
}

func TestGuidanceIsDeterministic(t *testing.T) {
	adv := NewAdvisor()

	first := adv.Guidance(250.5, domain.SideSell, 30, true)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, adv.Guidance(250.5, domain.SideSell, 30, true))
	}
}

func TestGuidanceRoundsToTwoDecimals(t *testing.T) {
	adv := NewAdvisor()

	g := adv.Guidance(99.999, domain.SideBuy, 1, true)

	// 99.999 - 0.05 = 99.949, rounded half up to 99.95.
	assert.Equal(t, 99.95, g.FairPrice)
}
