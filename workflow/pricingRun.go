package workflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pricing_backend/utils"
)

const (
	TriggerCLI    = "cli"
	TriggerAPI    = "api"
	TriggerCron   = "cron"
	TriggerPubSub = "pubsub"
)

// RunPricing runs the recommender once on behalf of trigger and notifies
// about the result, aborted or not.
func RunPricing(ctx context.Context, r *Recommender, n *RunNotifier, trigger string) (RunSummary, error) {
	ctx = utils.SetTriggerInContext(ctx, trigger)
	if _, ok := utils.GetRunIdFromContext(ctx); !ok {
		ctx = utils.SetRunIdInContext(ctx, uuid.NewString())
	}
	ctx, _ = utils.EnsureCorrelationId(ctx)

	summary, err := r.Run(ctx)
	_ = n.Notify(context.WithoutCancel(ctx), summary)
	return summary, err
}
