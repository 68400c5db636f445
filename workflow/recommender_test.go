package workflow

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/pricing_backend/models"
	"github.com/mmdatafocus/pricing_backend/pricing"
	"github.com/mmdatafocus/pricing_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// fakeStore keeps everything in memory and enforces the (rfq, supplier price)
// uniqueness the database would.
type fakeStore struct {
	mu       sync.Mutex
	rfqs     map[int]*models.RequestForQuotation
	orders   map[[2]int][]models.PurchaseOrder
	prices   map[int][]models.SupplierPrice
	txns     map[[2]int]models.Transaction
	nextTxn  int
	failList bool
	failRFQ  map[int]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rfqs:    map[int]*models.RequestForQuotation{},
		orders:  map[[2]int][]models.PurchaseOrder{},
		prices:  map[int][]models.SupplierPrice{},
		txns:    map[[2]int]models.Transaction{},
		failRFQ: map[int]bool{},
	}
}

func (s *fakeStore) addRFQ(id, customerId, productId, quantity int) {
	s.rfqs[id] = &models.RequestForQuotation{ID: id, CustomerId: customerId, ProductId: productId, Quantity: quantity}
}

func (s *fakeStore) addOrder(customerId, productId, quantity int, price int64) {
	key := [2]int{customerId, productId}
	s.orders[key] = append(s.orders[key], models.PurchaseOrder{
		CustomerId: customerId, ProductId: productId, Quantity: quantity, Price: decimal.NewFromInt(price),
	})
}

func (s *fakeStore) addPrice(id, productId int, price int64, stock int) {
	s.prices[productId] = append(s.prices[productId], models.SupplierPrice{
		ID: id, SupplierId: id, ProductId: productId, Price: decimal.NewFromInt(price), AvailableStock: stock, Latest: true,
	})
}

func (s *fakeStore) ListPendingRFQs(ctx context.Context, afterId int, limit int) ([]models.RequestForQuotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList {
		return nil, errors.New("connection refused")
	}
	var page []models.RequestForQuotation
	for _, rfq := range s.rfqs {
		if rfq.DecidedAt == nil && rfq.ID > afterId {
			page = append(page, *rfq)
		}
	}
	sort.Slice(page, func(i, j int) bool { return page[i].ID < page[j].ID })
	if len(page) > limit {
		page = page[:limit]
	}
	return page, nil
}

func (s *fakeStore) PurchaseOrderHistory(ctx context.Context, customerId int, productId int) ([]models.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PurchaseOrder(nil), s.orders[[2]int{customerId, productId}]...), nil
}

func (s *fakeStore) LatestSupplierPrices(ctx context.Context, productId int) ([]models.SupplierPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SupplierPrice(nil), s.prices[productId]...), nil
}

func (s *fakeStore) InsertTransactionIfAbsent(ctx context.Context, txn *models.Transaction) (models.InsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRFQ[txn.RfqId] {
		return 0, errors.New("deadlock found when trying to get lock")
	}
	key := [2]int{txn.RfqId, txn.SupplierPriceId}
	if _, ok := s.txns[key]; ok {
		return models.InsertOutcomeAlreadyPresent, nil
	}
	s.nextTxn++
	txn.ID = s.nextTxn
	s.txns[key] = *txn
	return models.InsertOutcomeInserted, nil
}

func (s *fakeStore) MarkRFQDecided(ctx context.Context, rfqId int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rfq, ok := s.rfqs[rfqId]; ok && rfq.DecidedAt == nil {
		rfq.DecidedAt = &at
	}
	return nil
}

func (s *fakeStore) transactionsFor(rfqId int) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var txns []models.Transaction
	for key, txn := range s.txns {
		if key[0] == rfqId {
			txns = append(txns, txn)
		}
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].SupplierPriceId < txns[j].SupplierPriceId })
	return txns
}

func (s *fakeStore) reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rfq := range s.rfqs {
		rfq.DecidedAt = nil
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRecommender(store Store, pageSize, workers int) *Recommender {
	return &Recommender{
		Store:    store,
		PageSize: pageSize,
		Workers:  workers,
		Logger:   quietLogger(),
		Now:      func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) },
	}
}

// seedScenarios loads the four reference RFQs:
// 1: single history equal to the single offer
// 2: history above the offer, implied margin clamped to the minimum
// 3: allocation spills over two offers
// 4: several histories and two offers, cheapest wins
func seedScenarios(s *fakeStore) {
	s.addRFQ(1, 1, 100, 500)
	s.addOrder(1, 100, 500, 730000)
	s.addPrice(1001, 100, 730000, 500)

	s.addRFQ(2, 2, 200, 500)
	s.addOrder(2, 200, 500, 800000)
	s.addPrice(2001, 200, 730000, 500)

	s.addRFQ(3, 3, 300, 40)
	s.addPrice(3001, 300, 90, 20)
	s.addPrice(3002, 300, 100, 30)
	s.addPrice(3003, 300, 120, 50)

	s.addRFQ(4, 4, 400, 500)
	s.addOrder(4, 400, 200, 700000)
	s.addOrder(4, 400, 300, 800000)
	s.addPrice(4001, 400, 750000, 300)
	s.addPrice(4002, 400, 730000, 300)
}

func TestRecommender_ReferenceScenarios(t *testing.T) {
	store := newFakeStore()
	seedScenarios(store)

	summary, err := newTestRecommender(store, 100, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Scanned != 4 || summary.Decided != 4 {
		t.Fatalf("expected 4 scanned and decided, got %+v", summary)
	}

	a := store.transactionsFor(1)
	if len(a) != 1 || a[0].ChosenPrice.String() != "730000" || !a[0].FinalPrice.GreaterThan(a[0].ChosenPrice) {
		t.Fatalf("scenario A: unexpected transactions %+v", a)
	}
	if a[0].Status != models.TransactionStatusPending || a[0].Quantity != 500 {
		t.Fatalf("scenario A: unexpected status or quantity %+v", a[0])
	}

	b := store.transactionsFor(2)
	if len(b) != 1 || b[0].ChosenPrice.String() != "730000" || b[0].FinalPrice.StringFixed(5) != "803000.00000" {
		t.Fatalf("scenario B: unexpected transactions %+v", b)
	}
	if !b[0].AnalyzedProfitMargin.Equal(pricing.MinProfit) {
		t.Fatalf("scenario B: expected clamped margin, got %s", b[0].AnalyzedProfitMargin)
	}

	c := store.transactionsFor(3)
	if len(c) != 2 || c[0].SupplierPriceId != 3001 || c[0].Quantity != 20 || c[1].SupplierPriceId != 3002 || c[1].Quantity != 20 {
		t.Fatalf("scenario C: unexpected allocation %+v", c)
	}

	d := store.transactionsFor(4)
	if len(d) != 2 {
		t.Fatalf("scenario D: expected two allocations, got %d", len(d))
	}
	margin := pricing.ProfitMargin(500)
	for _, txn := range d {
		if txn.ChosenPrice.String() != "730000" {
			t.Fatalf("scenario D: expected cheapest bid as chosen price, got %s", txn.ChosenPrice)
		}
		if !txn.FinalPrice.Equal(pricing.PriceWithMargin(decimal.NewFromInt(730000), margin)) {
			t.Fatalf("scenario D: unexpected final price %s", txn.FinalPrice)
		}
	}
	if summary.Inserted != 6 || summary.AlreadyPresent != 0 {
		t.Fatalf("expected 6 inserted, got %+v", summary)
	}
}

func TestRecommender_RerunIsIdempotent(t *testing.T) {
	store := newFakeStore()
	seedScenarios(store)
	r := newTestRecommender(store, 100, 1)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// Simulate a crash between inserting and marking the RFQs decided.
	store.reopen()

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Inserted != 0 || summary.AlreadyPresent != 6 {
		t.Fatalf("expected every allocation to be already present, got %+v", summary)
	}
	if len(store.txns) != 6 {
		t.Fatalf("expected 6 stored transactions, got %d", len(store.txns))
	}

	summary, err = r.Run(context.Background())
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if summary.Scanned != 0 {
		t.Fatalf("expected no pending rfqs left, got %d", summary.Scanned)
	}
}

func TestRecommender_ConcurrentWorkersAndRuns(t *testing.T) {
	store := newFakeStore()
	for id := 1; id <= 57; id++ {
		store.addRFQ(id, id, 1, 10+id%7)
		store.addOrder(id, 1, 5, 1000)
	}
	store.addPrice(1, 1, 900, 15)
	store.addPrice(2, 1, 950, 100)

	var wg sync.WaitGroup
	summaries := make([]RunSummary, 3)
	for i := range summaries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := newTestRecommender(store, 10, 4).Run(context.Background())
			if err != nil {
				t.Errorf("run %d: %v", i, err)
			}
			summaries[i] = s
		}(i)
	}
	wg.Wait()

	inserted := 0
	for _, s := range summaries {
		inserted += s.Inserted
	}
	if inserted != len(store.txns) {
		t.Fatalf("runs reported %d inserts but store holds %d", inserted, len(store.txns))
	}
	for id := 1; id <= 57; id++ {
		txns := store.transactionsFor(id)
		total := 0
		for _, txn := range txns {
			total += txn.Quantity
		}
		if total != 10+id%7 {
			t.Fatalf("rfq %d allocated %d units, want %d", id, total, 10+id%7)
		}
	}
}

func TestRecommender_CountsSkipsInvalidAndFailures(t *testing.T) {
	store := newFakeStore()
	// single history above uniform lower bids: no rule
	store.addRFQ(1, 1, 10, 20)
	store.addOrder(1, 10, 5, 800000)
	store.addPrice(11, 10, 730000, 10)
	store.addPrice(12, 10, 730000, 10)
	// no stock anywhere
	store.addRFQ(2, 2, 20, 5)
	store.addPrice(21, 20, 100, 0)
	// zero quantity RFQ
	store.addRFQ(3, 3, 30, 0)
	store.addPrice(31, 30, 100, 10)
	// negative history price
	store.addRFQ(4, 4, 40, 5)
	store.addOrder(4, 40, 5, -1)
	store.addPrice(41, 40, 100, 10)
	// insert fails
	store.addRFQ(5, 5, 50, 5)
	store.addOrder(5, 50, 5, 100)
	store.addPrice(51, 50, 100, 10)
	store.failRFQ[5] = true
	// priced, only partly in stock
	store.addRFQ(6, 6, 60, 50)
	store.addOrder(6, 60, 50, 100)
	store.addPrice(61, 60, 100, 30)
	// no history and a single offer: no rule
	store.addRFQ(7, 7, 70, 5)
	store.addPrice(71, 70, 100, 10)

	summary, err := newTestRecommender(store, 2, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Scanned != 7 {
		t.Fatalf("expected 7 scanned, got %d", summary.Scanned)
	}
	if summary.NoDecision[pricing.NoDecisionUniformBidsBelowHistory] != 1 ||
		summary.NoDecision[pricing.NoDecisionNoCandidates] != 1 ||
		summary.NoDecision[pricing.NoDecisionNoHistorySingleBid] != 1 {
		t.Fatalf("unexpected no-decision counts %v", summary.NoDecision)
	}
	if summary.Skipped() != 3 || summary.Invalid != 2 || summary.Failed != 1 || summary.Decided != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Shortfalls != 1 {
		t.Fatalf("expected one shortfall, got %d", summary.Shortfalls)
	}
	if len(store.transactionsFor(1)) != 0 || len(store.transactionsFor(5)) != 0 || len(store.transactionsFor(7)) != 0 {
		t.Fatalf("skipped or failed rfqs must not record transactions")
	}
	if summary.Scanned != summary.Decided+summary.Skipped()+summary.Invalid+summary.Failed+summary.Interrupted {
		t.Fatalf("outcome buckets do not add up to scanned: %+v", summary)
	}
	if store.rfqs[1].Decided() || store.rfqs[5].Decided() || store.rfqs[7].Decided() || !store.rfqs[6].Decided() {
		t.Fatalf("only priced rfqs are marked decided")
	}
}

func TestRecommender_InvariantViolationAbortsRun(t *testing.T) {
	store := newFakeStore()
	for id := 1; id <= 5; id++ {
		store.addRFQ(id, id, 1, id)
		store.addOrder(id, 1, id, 100)
	}
	store.addPrice(1, 1, 100, 100)

	r := newTestRecommender(store, 2, 1)
	r.decide = func(in pricing.Input) (pricing.Outcome, error) {
		if in.Quantity == 3 {
			return pricing.Outcome{}, &pricing.InvariantError{Branch: "test", Detail: "forced"}
		}
		return pricing.Decide(in)
	}

	summary, err := r.Run(context.Background())
	if !errors.Is(err, pricing.ErrInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	if summary.Decided != 2 || summary.Scanned != 3 || summary.Interrupted != 1 || summary.Aborted == "" {
		t.Fatalf("expected run to stop at rfq 3, got %+v", summary)
	}
	if summary.Scanned != summary.Decided+summary.Skipped()+summary.Invalid+summary.Failed+summary.Interrupted {
		t.Fatalf("outcome buckets do not add up to scanned: %+v", summary)
	}
	if store.rfqs[3].Decided() || store.rfqs[4].Decided() || store.rfqs[5].Decided() {
		t.Fatalf("rfqs after the violation must stay pending")
	}
}

func TestRecommender_ListFailureAborts(t *testing.T) {
	store := newFakeStore()
	store.addRFQ(1, 1, 1, 5)
	store.failList = true

	summary, err := newTestRecommender(store, 10, 1).Run(context.Background())
	if err == nil {
		t.Fatalf("expected paging error to abort the run")
	}
	if summary.Aborted == "" || summary.FinishedAt.IsZero() {
		t.Fatalf("expected aborted summary, got %+v", summary)
	}
}

func TestRecommender_UsesRunIdFromContext(t *testing.T) {
	store := newFakeStore()
	ctx := utils.SetRunIdInContext(context.Background(), "run-42")
	ctx = utils.SetTriggerInContext(ctx, "cli")

	summary, err := newTestRecommender(store, 10, 1).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.RunId != "run-42" || summary.Trigger != "cli" {
		t.Fatalf("unexpected run identity %+v", summary)
	}
}
