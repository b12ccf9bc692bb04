// Package fees computes the trading fees charged on executed trades.
package fees

import "bourse/internal/common"

// DefaultPercent is the fee charged to each side, as a percentage of the
// trade value.
const DefaultPercent = 0.1

// Calculator charges each side a percentage of the trade value. Both sides
// default to the same rate but can be overridden independently.
type Calculator struct {
	BuyerPercent  float64
	SellerPercent float64
}

func New(feePercent float64) Calculator {
	return Calculator{BuyerPercent: feePercent, SellerPercent: feePercent}
}

func (c Calculator) WithBuyerPercent(p float64) Calculator {
	c.BuyerPercent = p
	return c
}

func (c Calculator) WithSellerPercent(p float64) Calculator {
	c.SellerPercent = p
	return c
}

// Fees returns the fee owed by each party for a trade of the given value.
func (c Calculator) Fees(tradeValue float64) common.Fees {
	return common.Fees{
		BuyerFee:  tradeValue * c.BuyerPercent / 100,
		SellerFee: tradeValue * c.SellerPercent / 100,
	}
}

// Estimate is a pre-trade breakdown of what each side pays or receives.
type Estimate struct {
	TradeValue     float64     `json:"trade_value"`
	Fees           common.Fees `json:"fees"`
	BuyerTotal     float64     `json:"buyer_total"`
	SellerReceives float64     `json:"seller_receives"`
}

func (c Calculator) Estimate(price float64, quantity uint64) Estimate {
	value := price * float64(quantity)
	f := c.Fees(value)
	return Estimate{
		TradeValue:     value,
		Fees:           f,
		BuyerTotal:     value + f.BuyerFee,
		SellerReceives: value - f.SellerFee,
	}
}
