package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/mmdatafocus/pricing_backend/config"
	"github.com/mmdatafocus/pricing_backend/models"
	"github.com/mmdatafocus/pricing_backend/pricing"
	"github.com/mmdatafocus/pricing_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize = 100
	runLockKey      = "lock:pricing-run"
)

var tracer = otel.Tracer("pricing-backend/workflow")

// Store is what a pricing run reads from and writes to.
// *models.PricingStore implements it.
type Store interface {
	ListPendingRFQs(ctx context.Context, afterId int, limit int) ([]models.RequestForQuotation, error)
	PurchaseOrderHistory(ctx context.Context, customerId int, productId int) ([]models.PurchaseOrder, error)
	LatestSupplierPrices(ctx context.Context, productId int) ([]models.SupplierPrice, error)
	InsertTransactionIfAbsent(ctx context.Context, txn *models.Transaction) (models.InsertOutcome, error)
	MarkRFQDecided(ctx context.Context, rfqId int, at time.Time) error
}

type RunSummary struct {
	RunId          string                           `json:"run_id"`
	Trigger        string                           `json:"trigger"`
	StartedAt      time.Time                        `json:"started_at"`
	FinishedAt     time.Time                        `json:"finished_at"`
	Scanned        int                              `json:"scanned"`
	Decided        int                              `json:"decided"`
	NoDecision     map[pricing.NoDecisionReason]int `json:"no_decision"`
	Invalid        int                              `json:"invalid"`
	Failed         int                              `json:"failed"`
	Interrupted    int                              `json:"interrupted"`
	Inserted       int                              `json:"inserted"`
	AlreadyPresent int                              `json:"already_present"`
	Shortfalls     int                              `json:"shortfalls"`
	Aborted        string                           `json:"aborted,omitempty"`
}

// Skipped is the number of RFQs the policy had no rule for.
func (s RunSummary) Skipped() int {
	total := 0
	for _, n := range s.NoDecision {
		total += n
	}
	return total
}

func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

type rfqResult struct {
	decided        bool
	noDecision     pricing.NoDecisionReason
	invalid        bool
	failed         bool
	interrupted    bool
	inserted       int
	alreadyPresent int
	shortfall      bool
}

// Recommender prices every pending RFQ and records one transaction per
// supplier allocation. Runs are safe to repeat: allocations that already
// exist are counted, not duplicated.
type Recommender struct {
	Store    Store
	PageSize int
	// Workers bounds how many RFQs of a page are priced at once; 1 is sequential.
	Workers int
	// Locker is optional. When set, concurrent runs try to take a redis lock
	// first and proceed without it when it cannot be obtained.
	Locker  *redislock.Client
	LockTTL time.Duration
	Logger  *logrus.Logger
	Now     func() time.Time

	decide func(pricing.Input) (pricing.Outcome, error)
}

func NewRecommender(store Store, settings config.PricingSettings) *Recommender {
	return &Recommender{
		Store:    store,
		PageSize: settings.PageSize,
		Workers:  settings.Workers,
		Locker:   config.GetRedisLock(),
		LockTTL:  settings.RunLockTTL(),
		Logger:   config.GetLogger(),
	}
}

func (r *Recommender) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Recommender) logger() *logrus.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return config.GetLogger()
}

// Run walks pending RFQs in id order, one page at a time. It returns the
// summary so far together with an error when the run is aborted.
func (r *Recommender) Run(ctx context.Context) (RunSummary, error) {
	runId, ok := utils.GetRunIdFromContext(ctx)
	if !ok || runId == "" {
		runId = uuid.NewString()
		ctx = utils.SetRunIdInContext(ctx, runId)
	}
	summary := RunSummary{
		RunId:      runId,
		Trigger:    utils.GetTriggerFromContext(ctx),
		StartedAt:  r.now(),
		NoDecision: map[pricing.NoDecisionReason]int{},
	}
	logger := r.logger()
	entry := logger.WithFields(logrus.Fields{"run_id": runId, "trigger": summary.Trigger})

	ctx, span := tracer.Start(ctx, "pricing.run", trace.WithAttributes(attribute.String("run_id", runId)))
	defer span.End()

	if r.Store == nil {
		return r.finish(summary, span, entry, errors.New("pricing run has no store"))
	}
	release := r.obtainRunLock(ctx, entry)
	defer release()

	pageSize := r.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	afterId := 0
	for {
		if err := ctx.Err(); err != nil {
			return r.finish(summary, span, entry, err)
		}

		page, err := r.Store.ListPendingRFQs(ctx, afterId, pageSize)
		if err != nil {
			config.LogError(logger, "recommender.go", "Run", "ListPendingRFQs", afterId, err)
			return r.finish(summary, span, entry, fmt.Errorf("list pending rfqs after %d: %w", afterId, err))
		}
		if len(page) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, rfq := range page {
			rfq := rfq
			g.Go(func() error {
				// An earlier RFQ aborted the run.
				if gctx.Err() != nil {
					return nil
				}
				res, err := r.processRFQ(gctx, entry, rfq)
				if err != nil || (res.failed && gctx.Err() != nil) {
					// left unfinished by the abort, not by its own store errors
					res.failed = false
					res.interrupted = true
				}
				mu.Lock()
				summary.add(res)
				mu.Unlock()
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return r.finish(summary, span, entry, err)
		}

		afterId = page[len(page)-1].ID
		if len(page) < pageSize {
			break
		}
	}
	return r.finish(summary, span, entry, nil)
}

func (s *RunSummary) add(res rfqResult) {
	s.Scanned++
	switch {
	case res.decided:
		s.Decided++
	case res.noDecision != "":
		s.NoDecision[res.noDecision]++
	case res.invalid:
		s.Invalid++
	case res.failed:
		s.Failed++
	case res.interrupted:
		s.Interrupted++
	}
	s.Inserted += res.inserted
	s.AlreadyPresent += res.alreadyPresent
	if res.shortfall {
		s.Shortfalls++
	}
}

func (r *Recommender) finish(summary RunSummary, span trace.Span, entry *logrus.Entry, err error) (RunSummary, error) {
	summary.FinishedAt = r.now()
	fields := logrus.Fields{
		"scanned":         summary.Scanned,
		"decided":         summary.Decided,
		"skipped":         summary.Skipped(),
		"invalid":         summary.Invalid,
		"failed":          summary.Failed,
		"interrupted":     summary.Interrupted,
		"inserted":        summary.Inserted,
		"already_present": summary.AlreadyPresent,
		"shortfalls":      summary.Shortfalls,
		"duration_ms":     summary.Duration().Milliseconds(),
	}
	span.SetAttributes(
		attribute.Int("scanned", summary.Scanned),
		attribute.Int("decided", summary.Decided),
		attribute.Int("inserted", summary.Inserted),
	)
	if err != nil {
		summary.Aborted = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "pricing run aborted")
		entry.WithFields(fields).WithError(err).Error("pricing run aborted")
		return summary, err
	}
	entry.WithFields(fields).Info("pricing run finished")
	return summary, nil
}

// obtainRunLock is best-effort: the unique allocation key keeps concurrent
// runs correct, the lock only saves them from doing the same work twice.
func (r *Recommender) obtainRunLock(ctx context.Context, entry *logrus.Entry) func() {
	noop := func() {}
	if r.Locker == nil {
		entry.Debug("redis lock not ready; proceeding without redis lock")
		return noop
	}
	ttl := r.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	lock, err := r.Locker.Obtain(ctx, runLockKey, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		entry.Warn("another pricing run holds the lock; proceeding without redis lock")
		return noop
	} else if err != nil {
		entry.Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
		return noop
	}
	return func() {
		if releaseErr := lock.Release(context.Background()); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			entry.Warn("failed to release redis lock: " + releaseErr.Error())
		}
	}
}

// processRFQ prices one RFQ. Only an invariant violation is returned as an
// error; every other problem is folded into the result.
func (r *Recommender) processRFQ(ctx context.Context, runEntry *logrus.Entry, rfq models.RequestForQuotation) (rfqResult, error) {
	var res rfqResult
	logger := r.logger()
	entry := runEntry.WithFields(logrus.Fields{"rfq_id": rfq.ID, "product_id": rfq.ProductId, "customer_id": rfq.CustomerId})

	ctx, span := tracer.Start(ctx, "pricing.rfq", trace.WithAttributes(attribute.Int("rfq_id", rfq.ID)))
	defer span.End()

	orders, err := r.Store.PurchaseOrderHistory(ctx, rfq.CustomerId, rfq.ProductId)
	if err != nil {
		config.LogError(logger, "recommender.go", "processRFQ", "PurchaseOrderHistory", rfq.ID, err)
		res.failed = true
		return res, nil
	}
	prices, err := r.Store.LatestSupplierPrices(ctx, rfq.ProductId)
	if err != nil {
		config.LogError(logger, "recommender.go", "processRFQ", "LatestSupplierPrices", rfq.ID, err)
		res.failed = true
		return res, nil
	}

	offers := models.Offers(prices)
	if err := pricing.ValidateOffers(offers); err != nil {
		entry.WithError(err).Warn("rfq rejected")
		res.invalid = true
		return res, nil
	}

	decide := r.decide
	if decide == nil {
		decide = pricing.Decide
	}
	plan := pricing.PlanAllocation(rfq.Quantity, offers)
	outcome, err := decide(pricing.Input{
		Quantity:   rfq.Quantity,
		History:    models.HistoricalPrices(orders),
		Candidates: plan,
	})
	if err != nil {
		switch {
		case pricing.IsInvalidInput(err):
			entry.WithError(err).Warn("rfq rejected")
			res.invalid = true
			return res, nil
		case pricing.IsInvariantViolation(err):
			span.RecordError(err)
			span.SetStatus(codes.Error, "invariant violated")
			return res, fmt.Errorf("rfq %d: %w", rfq.ID, err)
		default:
			config.LogError(logger, "recommender.go", "processRFQ", "Decide", rfq.ID, err)
			res.failed = true
			return res, nil
		}
	}
	if !outcome.Decided() {
		entry.WithField("reason", outcome.NoDecision).Info("rfq skipped, no pricing rule applies")
		res.noDecision = outcome.NoDecision
		return res, nil
	}

	decision := outcome.Decision
	entry = entry.WithField("branch", decision.Branch)
	span.SetAttributes(attribute.String("branch", string(decision.Branch)))
	if short := pricing.Shortfall(rfq.Quantity, plan); short > 0 {
		entry.WithField("shortfall", short).Info("rfq only partially covered by supplier stock")
		res.shortfall = true
	}

	for _, candidate := range plan {
		txn := newTransaction(rfq.ID, candidate, decision)
		inserted, err := r.Store.InsertTransactionIfAbsent(ctx, txn)
		if err != nil {
			config.LogError(logger, "recommender.go", "processRFQ", "InsertTransactionIfAbsent", txn, err)
			res.failed = true
			return res, nil
		}
		switch inserted {
		case models.InsertOutcomeInserted:
			res.inserted++
		case models.InsertOutcomeAlreadyPresent:
			entry.WithField("supplier_price_id", candidate.Offer.ID).Debug("transaction already recorded")
			res.alreadyPresent++
		}
	}

	if err := r.Store.MarkRFQDecided(ctx, rfq.ID, r.now()); err != nil {
		config.LogError(logger, "recommender.go", "processRFQ", "MarkRFQDecided", rfq.ID, err)
		res.failed = true
		return res, nil
	}

	entry.WithFields(logrus.Fields{
		"chosen_price": decision.ChosenPrice.String(),
		"final_price":  decision.FinalPrice.String(),
		"margin":       decision.Margin.String(),
		"candidates":   len(plan),
	}).Info("rfq priced")
	res.decided = true
	return res, nil
}

func newTransaction(rfqId int, candidate pricing.Candidate, decision *pricing.Decision) *models.Transaction {
	return &models.Transaction{
		RfqId:                rfqId,
		SupplierPriceId:      candidate.Offer.ID,
		Status:               models.TransactionStatusPending,
		ChosenPrice:          decision.ChosenPrice.Round(5),
		FinalPrice:           decision.FinalPrice.Round(5),
		AnalyzedProfitMargin: decision.Margin.Round(5),
		Quantity:             candidate.PurchasedStock,
		Note:                 decision.Note,
	}
}
