package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/logger"
	"github.com/rentiva/rentiva-backend/pkg/metrics"
)

type expiredSubscriptionLister interface {
	ListActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Subscription, error)
}

type subscriptionExpirer interface {
	Expire(ctx context.Context, sub models.Subscription) (bool, error)
}

// SubscriptionExpireJobParams configures the expiry sweep.
type SubscriptionExpireJobParams struct {
	Logger    *logger.Logger
	Repo      expiredSubscriptionLister
	Lifecycle subscriptionExpirer
	Metrics   *metrics.CronJobMetrics
}

// NewSubscriptionExpireJob constructs the subscription expiry cron job.
func NewSubscriptionExpireJob(params SubscriptionExpireJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Lifecycle == nil {
		return nil, fmt.Errorf("subscription lifecycle required")
	}
	return &subscriptionExpireJob{
		logg:      params.Logger,
		repo:      params.Repo,
		lifecycle: params.Lifecycle,
		metrics:   params.Metrics,
		now:       time.Now,
	}, nil
}

type subscriptionExpireJob struct {
	logg      *logger.Logger
	repo      expiredSubscriptionLister
	lifecycle subscriptionExpirer
	metrics   *metrics.CronJobMetrics
	now       func() time.Time
}

func (j *subscriptionExpireJob) Name() string { return "subscription-expire" }

// Run moves every active subscription whose term lapsed to expired. A racer
// (manual renew, a second worker) losing a row is fine; the conditional
// transition makes a re-run a no-op.
func (j *subscriptionExpireJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	subs, err := j.repo.ListActiveEndedBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("query lapsed subscriptions: %w", err)
	}

	var errs error
	count := 0
	for _, sub := range subs {
		transitioned, err := j.lifecycle.Expire(ctx, sub)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
			continue
		}
		if transitioned {
			count++
		}
	}
	j.metrics.AddProcessed(j.Name(), count)

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count, "candidates": len(subs)})
	j.logg.Info(logCtx, "subscription expiry sweep complete")
	return errs
}
