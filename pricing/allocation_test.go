package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func offer(id int, price int64, stock int) Offer {
	return Offer{ID: id, SupplierId: id, Price: decimal.NewFromInt(price), AvailableStock: stock}
}

func TestPlanAllocation_SpillsOverToNextCheapest(t *testing.T) {
	plan := PlanAllocation(40, []Offer{
		offer(3, 120, 50),
		offer(1, 90, 20),
		offer(2, 100, 30),
	})

	if len(plan) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(plan))
	}
	if plan[0].Offer.ID != 1 || plan[0].PurchasedStock != 20 || plan[0].RemainingStock != 0 {
		t.Fatalf("unexpected first candidate: %+v", plan[0])
	}
	if plan[1].Offer.ID != 2 || plan[1].PurchasedStock != 20 || plan[1].RemainingStock != 10 {
		t.Fatalf("unexpected second candidate: %+v", plan[1])
	}
	if plan[1].Total.String() != "2000" {
		t.Fatalf("expected line total 2000, got %s", plan[1].Total)
	}
	if got := PurchasedTotal(plan); got != 40 {
		t.Fatalf("expected 40 purchased, got %d", got)
	}
}

func TestPlanAllocation_EqualPricesKeepInputOrder(t *testing.T) {
	plan := PlanAllocation(250, []Offer{
		offer(7, 700, 100),
		offer(4, 700, 100),
		offer(9, 650, 100),
		offer(5, 700, 100),
	})

	want := []int{9, 7, 4}
	if len(plan) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(plan))
	}
	for i, id := range want {
		if plan[i].Offer.ID != id {
			t.Fatalf("candidate %d expected offer %d, got %d", i, id, plan[i].Offer.ID)
		}
	}
	if plan[2].PurchasedStock != 50 {
		t.Fatalf("expected last candidate to take 50, got %d", plan[2].PurchasedStock)
	}
}

func TestPlanAllocation_ShortfallIsLeftUnallocated(t *testing.T) {
	offers := []Offer{offer(1, 10, 3), offer(2, 11, 0), offer(3, 12, 4)}
	plan := PlanAllocation(10, offers)

	if len(plan) != 2 {
		t.Fatalf("expected zero-stock offer to be skipped, got %d candidates", len(plan))
	}
	if got := Shortfall(10, plan); got != 3 {
		t.Fatalf("expected shortfall 3, got %d", got)
	}
	if offers[0].ID != 1 || offers[2].ID != 3 {
		t.Fatalf("input offers were reordered")
	}
}

func TestPlanAllocation_Properties(t *testing.T) {
	offers := []Offer{
		offer(1, 500, 7),
		offer(2, 300, 0),
		offer(3, 450, 13),
		offer(4, 300, 5),
		offer(5, 800, 40),
		offer(6, 450, 2),
	}
	available := 0
	for _, o := range offers {
		available += o.AvailableStock
	}

	for q := 1; q <= 80; q++ {
		plan := PlanAllocation(q, offers)

		expected := q
		if available < q {
			expected = available
		}
		if got := PurchasedTotal(plan); got != expected {
			t.Fatalf("q=%d expected %d purchased, got %d", q, expected, got)
		}
		for i, c := range plan {
			if c.PurchasedStock <= 0 || c.PurchasedStock > c.AvailableStock {
				t.Fatalf("q=%d candidate %d purchased %d of %d", q, i, c.PurchasedStock, c.AvailableStock)
			}
			if c.RemainingStock != c.AvailableStock-c.PurchasedStock {
				t.Fatalf("q=%d candidate %d remaining stock mismatch", q, i)
			}
			if i > 0 && c.Price.LessThan(plan[i-1].Price) {
				t.Fatalf("q=%d candidates out of price order at %d", q, i)
			}
		}
	}
}

func TestPlanAllocation_NoOffers(t *testing.T) {
	if plan := PlanAllocation(5, nil); len(plan) != 0 {
		t.Fatalf("expected empty plan, got %d candidates", len(plan))
	}
}
