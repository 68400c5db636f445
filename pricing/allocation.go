package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Offer is a supplier's current unit price and stock for one product.
type Offer struct {
	ID             int
	SupplierId     int
	Price          decimal.Decimal
	AvailableStock int
}

// Candidate is an offer (partially) consumed to fill an RFQ.
type Candidate struct {
	Offer          Offer
	AvailableStock int
	PurchasedStock int
	RemainingStock int
	Price          decimal.Decimal
	Total          decimal.Decimal
}

// PlanAllocation fills quantity from the cheapest offers first.
//
// Offers are sorted by price with a stable sort, so equal prices keep their
// input order. Only offers that actually contribute stock are returned. When
// the offers cannot cover quantity the rest is left unallocated; callers that
// care can ask Shortfall.
func PlanAllocation(quantity int, offers []Offer) []Candidate {
	sorted := make([]Offer, len(offers))
	copy(sorted, offers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price.LessThan(sorted[j].Price)
	})

	var plan []Candidate
	leftover := quantity
	for _, offer := range sorted {
		if offer.AvailableStock <= 0 || leftover <= 0 {
			continue
		}
		purchased := minInt(leftover, offer.AvailableStock)
		leftover -= purchased
		plan = append(plan, Candidate{
			Offer:          offer,
			AvailableStock: offer.AvailableStock,
			PurchasedStock: purchased,
			RemainingStock: offer.AvailableStock - purchased,
			Price:          offer.Price,
			Total:          offer.Price.Mul(decimal.NewFromInt(int64(purchased))),
		})
	}
	return plan
}

// PurchasedTotal is the quantity covered by plan.
func PurchasedTotal(plan []Candidate) int {
	total := 0
	for _, c := range plan {
		total += c.PurchasedStock
	}
	return total
}

// Shortfall is the part of quantity the plan could not source.
func Shortfall(quantity int, plan []Candidate) int {
	rest := quantity - PurchasedTotal(plan)
	if rest < 0 {
		return 0
	}
	return rest
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
