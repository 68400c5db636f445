package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// HistoricalPrice is one past purchase order of the same customer and product.
type HistoricalPrice struct {
	Quantity int
	Price    decimal.Decimal
}

type Input struct {
	Quantity   int
	History    []HistoricalPrice
	Candidates []Candidate
}

// Branch names the rule of the decision procedure that produced a price.
type Branch string

const (
	BranchSingleHistorySingleBidNotBelow  Branch = "single_history_single_bid_not_below"
	BranchSingleHistorySingleBidBelow     Branch = "single_history_single_bid_below"
	BranchSingleHistoryHigherBids         Branch = "single_history_higher_bids"
	BranchSingleHistoryUniformEqualBids   Branch = "single_history_uniform_equal_bids"
	BranchSingleHistoryLowerBids          Branch = "single_history_lower_bids"
	BranchUniformHistorySingleBidAbove    Branch = "uniform_history_single_bid_above"
	BranchUniformHistorySingleBidBelow    Branch = "uniform_history_single_bid_below"
	BranchHistoryRangeSingleBidAbove      Branch = "history_range_single_bid_above"
	BranchHistoryRangeSingleBidWithin     Branch = "history_range_single_bid_within"
	BranchManyHistoriesCheapestOfManyBids Branch = "many_histories_cheapest_bid"
)

// NoDecisionReason explains why the current policy could not price an RFQ.
// These are known gaps, not failures: the RFQ is skipped and counted.
type NoDecisionReason string

const (
	NoDecisionNoCandidates            NoDecisionReason = "no_candidates"
	NoDecisionUniformBidsBelowHistory NoDecisionReason = "single_history_uniform_bids_below"
	NoDecisionBidEqualsUniformHistory NoDecisionReason = "uniform_history_equal_bid"
	NoDecisionBidBelowHistoryRange    NoDecisionReason = "bid_below_history_range"
	NoDecisionNoHistorySingleBid      NoDecisionReason = "no_history_single_bid"
)

type Decision struct {
	ChosenPrice decimal.Decimal
	FinalPrice  decimal.Decimal
	Margin      decimal.Decimal
	Note        string
	Branch      Branch
}

// Outcome carries either a Decision or a NoDecision reason, never both.
type Outcome struct {
	Decision   *Decision
	NoDecision NoDecisionReason
}

func (o Outcome) Decided() bool {
	return o.Decision != nil
}

func decided(branch Branch, chosen, final, margin decimal.Decimal, note string) (Outcome, error) {
	return Outcome{Decision: &Decision{
		ChosenPrice: chosen,
		FinalPrice:  final,
		Margin:      margin,
		Note:        note,
		Branch:      branch,
	}}, nil
}

// costPlus keeps base as the chosen price and marks it up for the final price.
func costPlus(branch Branch, base, margin decimal.Decimal, note string) (Outcome, error) {
	return decided(branch, base, PriceWithMargin(base, margin), margin, note)
}

func skip(reason NoDecisionReason) (Outcome, error) {
	return Outcome{NoDecision: reason}, nil
}

// Validate rejects records the ratios below cannot be computed from.
func (in Input) Validate() error {
	if in.Quantity <= 0 {
		return &InputError{Field: "rfq quantity", Value: fmt.Sprint(in.Quantity)}
	}
	for _, h := range in.History {
		if !h.Price.IsPositive() {
			return &InputError{Field: "purchase order price", Value: h.Price.String()}
		}
		if h.Quantity <= 0 {
			return &InputError{Field: "purchase order quantity", Value: fmt.Sprint(h.Quantity)}
		}
	}
	for _, c := range in.Candidates {
		if !c.Price.IsPositive() {
			return &InputError{Field: "supplier price", Value: c.Price.String()}
		}
	}
	return nil
}

// ValidateOffers checks offers before they are handed to PlanAllocation.
func ValidateOffers(offers []Offer) error {
	for _, o := range offers {
		if !o.Price.IsPositive() {
			return &InputError{Field: fmt.Sprintf("supplier price #%d", o.ID), Value: o.Price.String()}
		}
		if o.AvailableStock < 0 {
			return &InputError{Field: fmt.Sprintf("available stock #%d", o.ID), Value: fmt.Sprint(o.AvailableStock)}
		}
	}
	return nil
}

// Decide prices one RFQ. It returns an Outcome without a Decision when the
// policy has no rule for the combination of history and bids.
func Decide(in Input) (Outcome, error) {
	if err := in.Validate(); err != nil {
		return Outcome{}, err
	}
	if len(in.Candidates) == 0 {
		return skip(NoDecisionNoCandidates)
	}

	margin := ProfitMargin(in.Quantity)
	if len(in.History) == 1 {
		return decideSingleHistory(in.History[0].Price, in.Candidates, margin)
	}
	return decideManyHistories(in.History, in.Candidates, margin)
}

func decideSingleHistory(past decimal.Decimal, candidates []Candidate, margin decimal.Decimal) (Outcome, error) {
	if len(candidates) == 1 {
		bid := candidates[0].Price
		switch past.Cmp(bid) {
		case -1, 0:
			return costPlus(BranchSingleHistorySingleBidNotBelow, bid, margin,
				"Single PO history, single supplier price, PO history price not above supplier price")
		case 1:
			implied := past.Sub(bid).Div(bid)
			note := "Single PO history, single supplier price, PO history price above supplier price"
			switch {
			case implied.LessThan(MinProfit):
				return decided(BranchSingleHistorySingleBidBelow, bid, PriceWithMargin(bid, MinProfit), MinProfit, note)
			case implied.GreaterThan(MaxProfit):
				return decided(BranchSingleHistorySingleBidBelow, bid, PriceWithMargin(bid, MaxProfit), MaxProfit, note)
			default:
				return decided(BranchSingleHistorySingleBidBelow, past, past, implied, note)
			}
		}
		return Outcome{}, &InvariantError{
			Branch: "single history, single bid",
			Detail: fmt.Sprintf("history %s not comparable with bid %s", past, bid),
		}
	}

	bids := candidatePrices(candidates)
	unique := uniquePrices(bids)
	var higher []decimal.Decimal
	for _, bid := range bids {
		if bid.GreaterThan(past) {
			higher = append(higher, bid)
		}
	}

	if len(higher) > 0 {
		return costPlus(BranchSingleHistoryHigherBids, decimal.Max(higher[0], higher[1:]...), margin,
			fmt.Sprintf("Single PO history, %d supplier prices, %d of them above PO history price", len(candidates), len(higher)))
	}

	if len(unique) == 1 {
		if unique[0].Equal(past) {
			return costPlus(BranchSingleHistoryUniformEqualBids, unique[0], margin,
				fmt.Sprintf("Single PO history, %d supplier prices, one unique supplier price equal to PO history price", len(candidates)))
		}
		return skip(NoDecisionUniformBidsBelowHistory)
	}

	maxBid := decimal.Max(unique[0], unique[1:]...)
	implied := past.Sub(maxBid).Div(maxBid)
	note := fmt.Sprintf("Single PO history, %d supplier prices, %d unique supplier prices all below PO history price", len(candidates), len(unique))
	if implied.LessThan(MinProfit) {
		return decided(BranchSingleHistoryLowerBids, past, PriceWithMargin(past, MinProfit), MinProfit, note)
	}
	return decided(BranchSingleHistoryLowerBids, past, past, implied, note)
}

func decideManyHistories(history []HistoricalPrice, candidates []Candidate, margin decimal.Decimal) (Outcome, error) {
	if len(candidates) > 1 {
		bids := candidatePrices(candidates)
		return costPlus(BranchManyHistoriesCheapestOfManyBids, decimal.Min(bids[0], bids[1:]...), margin,
			fmt.Sprintf("%d PO histories, %d supplier prices, cheapest supplier price chosen", len(history), len(candidates)))
	}

	bid := candidates[0].Price
	pastPrices := make([]decimal.Decimal, 0, len(history))
	for _, h := range history {
		pastPrices = append(pastPrices, h.Price)
	}
	unique := uniquePrices(pastPrices)

	switch len(unique) {
	case 0:
		return skip(NoDecisionNoHistorySingleBid)
	case 1:
		switch bid.Cmp(unique[0]) {
		case 0:
			return skip(NoDecisionBidEqualsUniformHistory)
		case 1:
			return costPlus(BranchUniformHistorySingleBidAbove, bid, margin,
				fmt.Sprintf("%d PO histories with one unique price, single supplier price above it", len(history)))
		case -1:
			return costPlus(BranchUniformHistorySingleBidBelow, bid, margin,
				fmt.Sprintf("%d PO histories with one unique price, single supplier price below it", len(history)))
		}
		return Outcome{}, &InvariantError{
			Branch: "uniform history, single bid",
			Detail: fmt.Sprintf("bid %s not comparable with history %s", bid, unique[0]),
		}
	}

	lowest := decimal.Min(unique[0], unique[1:]...)
	highest := decimal.Max(unique[0], unique[1:]...)
	switch {
	case bid.LessThan(lowest):
		return skip(NoDecisionBidBelowHistoryRange)
	case bid.GreaterThan(highest):
		return costPlus(BranchHistoryRangeSingleBidAbove, bid, margin,
			fmt.Sprintf("%d PO histories, single supplier price above the highest PO history price", len(history)))
	case bid.LessThanOrEqual(highest):
		return costPlus(BranchHistoryRangeSingleBidWithin, bid, margin,
			fmt.Sprintf("%d PO histories, single supplier price within PO history prices", len(history)))
	}
	return Outcome{}, &InvariantError{
		Branch: "history range, single bid",
		Detail: fmt.Sprintf("bid %s outside [%s, %s] guards", bid, lowest, highest),
	}
}

func candidatePrices(candidates []Candidate) []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(candidates))
	for _, c := range candidates {
		prices = append(prices, c.Price)
	}
	return prices
}

// uniquePrices keeps the first occurrence of every numerically equal price.
func uniquePrices(prices []decimal.Decimal) []decimal.Decimal {
	var unique []decimal.Decimal
	for _, p := range prices {
		seen := false
		for _, u := range unique {
			if u.Equal(p) {
				seen = true
				break
			}
		}
		if !seen {
			unique = append(unique, p)
		}
	}
	return unique
}
