package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFees_SamePercentBothSides(t *testing.T) {
	f := New(0.1).Fees(1000)
	assert.InDelta(t, 1.0, f.BuyerFee, 1e-9)
	assert.InDelta(t, 1.0, f.SellerFee, 1e-9)
	assert.InDelta(t, 2.0, f.Total(), 1e-9)
}

func TestFees_ZeroValue(t *testing.T) {
	f := New(DefaultPercent).Fees(0)
	assert.Zero(t, f.BuyerFee)
	assert.Zero(t, f.SellerFee)
}

func TestFees_SideOverride(t *testing.T) {
	calc := New(0.1).WithSellerPercent(0.25)
	f := calc.Fees(2000)
	assert.InDelta(t, 2.0, f.BuyerFee, 1e-9)
	assert.InDelta(t, 5.0, f.SellerFee, 1e-9)

	calc = New(0.1).WithBuyerPercent(0)
	assert.Zero(t, calc.Fees(2000).BuyerFee)
}

func TestEstimate(t *testing.T) {
	est := New(0.1).Estimate(180, 10)
	assert.InDelta(t, 1800, est.TradeValue, 1e-9)
	assert.InDelta(t, 1.8, est.Fees.BuyerFee, 1e-9)
	assert.InDelta(t, 1801.8, est.BuyerTotal, 1e-9)
	assert.InDelta(t, 1798.2, est.SellerReceives, 1e-9)
}
