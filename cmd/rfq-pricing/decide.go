package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/mmdatafocus/pricing_backend/config"
	"github.com/mmdatafocus/pricing_backend/models"
	"github.com/mmdatafocus/pricing_backend/pricing"
	"github.com/mmdatafocus/pricing_backend/workflow"
	"github.com/urfave/cli/v2"
)

var decideCmd = &cli.Command{
	Name:    "decide",
	Usage:   "Price every pending RFQ once",
	Aliases: []string{"d"},
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "page-size",
			Usage: "RFQs loaded per page (default PRICING_PAGE_SIZE)",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "RFQs priced concurrently within a page (default PRICING_WORKERS)",
		},
		&cli.BoolFlag{
			Name:  "redis",
			Usage: "take the run lock and cache the summary in redis",
		},
	},
	Action: func(ctx *cli.Context) error {
		settings, err := config.LoadPricingSettings()
		if err != nil {
			return err
		}
		if n := ctx.Int("page-size"); n > 0 {
			settings.PageSize = n
		}
		if n := ctx.Int("workers"); n > 0 {
			settings.Workers = n
		}

		config.ConnectDatabaseWithRetry()
		if ctx.Bool("redis") {
			config.ConnectRedisWithRetry(3)
		}

		recommender := workflow.NewRecommender(models.NewPricingStore(config.GetDB()), settings)
		notifier := workflow.NewRunNotifier(settings)
		summary, runErr := workflow.RunPricing(ctx.Context, recommender, notifier, workflow.TriggerCLI)
		printSummary(os.Stdout, summary)
		if runErr != nil {
			return cli.Exit(fmt.Sprintf("pricing run aborted: %v", runErr), 1)
		}
		if summary.Failed > 0 {
			return cli.Exit(errors.New("some RFQs failed; see logs"), 2)
		}
		return nil
	},
}

func printSummary(w io.Writer, s workflow.RunSummary) {
	fmt.Fprintf(w, "run %s (%s)\n", s.RunId, s.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  scanned:              %d\n", s.Scanned)
	fmt.Fprintf(w, "  decided:              %d\n", s.Decided)
	fmt.Fprintf(w, "  skipped, no decision: %d\n", s.Skipped())
	reasons := make([]pricing.NoDecisionReason, 0, len(s.NoDecision))
	for reason := range s.NoDecision {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, reason := range reasons {
		fmt.Fprintf(w, "    %s: %d\n", reason, s.NoDecision[reason])
	}
	fmt.Fprintf(w, "  rejected, invalid:    %d\n", s.Invalid)
	fmt.Fprintf(w, "  failed:               %d\n", s.Failed)
	if s.Interrupted > 0 {
		fmt.Fprintf(w, "  interrupted by abort: %d\n", s.Interrupted)
	}
	fmt.Fprintf(w, "  inserted:             %d\n", s.Inserted)
	fmt.Fprintf(w, "  already present:      %d\n", s.AlreadyPresent)
	fmt.Fprintf(w, "  short of stock:       %d\n", s.Shortfalls)
}
