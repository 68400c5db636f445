// Package pricing holds the RFQ pricing core: the volume based margin policy,
// the supplier allocation planner and the decision procedure that turns
// purchase-order history and sourcing cost into a chosen and a final price.
//
// Everything in this package is pure; persistence lives in models and the
// batch driver lives in workflow.
package pricing

import "github.com/shopspring/decimal"

var (
	MinProfit = decimal.RequireFromString("0.10")
	MaxProfit = decimal.RequireFromString("0.50")
)

// same anchors for every product and supplier
const (
	MinAmountForMaxProfit = 1
	MaxAmountForMinProfit = 100
)

// ProfitMargin returns the margin ratio for an order of quantity units.
// The margin shrinks linearly from MaxProfit at MinAmountForMaxProfit units
// to MinProfit at MaxAmountForMinProfit units and stays flat outside that range.
func ProfitMargin(quantity int) decimal.Decimal {
	if quantity > MaxAmountForMinProfit {
		return MinProfit
	}
	if quantity < MinAmountForMaxProfit {
		return MaxProfit
	}
	span := MaxProfit.Sub(MinProfit)
	steps := decimal.NewFromInt(int64(MaxAmountForMinProfit - MinAmountForMaxProfit))
	done := decimal.NewFromInt(int64(quantity - MinAmountForMaxProfit))
	return MaxProfit.Sub(done.Mul(span).Div(steps))
}

// PriceWithMargin marks base up by margin: base + base*margin.
func PriceWithMargin(base, margin decimal.Decimal) decimal.Decimal {
	return base.Add(base.Mul(margin))
}
