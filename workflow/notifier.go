package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/pricing_backend/config"
	"github.com/sirupsen/logrus"
)

const (
	LastRunCacheKey = "pricing:last_run"
	lastRunCacheTTL = 7 * 24 * time.Hour
)

type publishFunc func(ctx context.Context, topic string, obj interface{}, attrs map[string]string) (string, error)

type cacheFunc func(ctx context.Context, key string, obj interface{}, exp time.Duration) error

// RunNotifier announces finished runs: the summary is cached in redis for
// the API and published to Topic when one is configured.
type RunNotifier struct {
	Topic  string
	Logger *logrus.Logger

	publish publishFunc
	cache   cacheFunc
}

func NewRunNotifier(settings config.PricingSettings) *RunNotifier {
	return &RunNotifier{
		Topic:   settings.RunTopic,
		Logger:  config.GetLogger(),
		publish: config.PublishJSON,
		cache:   config.SetRedisObject,
	}
}

// Notify never fails the run; the returned error is for logging.
func (n *RunNotifier) Notify(ctx context.Context, summary RunSummary) error {
	if n == nil {
		return nil
	}
	var errs []error
	if n.cache != nil {
		if err := n.cache(ctx, LastRunCacheKey, summary, lastRunCacheTTL); err != nil {
			errs = append(errs, fmt.Errorf("cache last run: %w", err))
		}
	}
	if n.Topic != "" && n.publish != nil {
		attrs := map[string]string{
			"run_id":  summary.RunId,
			"trigger": summary.Trigger,
			"aborted": fmt.Sprint(summary.Aborted != ""),
		}
		messageId, err := n.publish(ctx, n.Topic, summary, attrs)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish run summary: %w", err))
		} else if n.Logger != nil {
			n.Logger.WithFields(logrus.Fields{
				"run_id":     summary.RunId,
				"topic":      n.Topic,
				"message_id": messageId,
			}).Debug("run summary published")
		}
	}
	err := errors.Join(errs...)
	if err != nil && n.Logger != nil {
		config.LogError(n.Logger, "notifier.go", "Notify", "notify run", summary.RunId, err)
	}
	return err
}

// LastRunSummary reads the cached summary of the most recent run.
func LastRunSummary(ctx context.Context) (*RunSummary, bool, error) {
	var summary RunSummary
	ok, err := config.GetRedisObject(ctx, LastRunCacheKey, &summary)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &summary, true, nil
}
