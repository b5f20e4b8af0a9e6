package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/logger"
	"github.com/rentiva/rentiva-backend/pkg/metrics"
)

// invoiceLeadDays opens the billing window ahead of the term end.
const invoiceLeadDays = 7

type activeSubscriptionLister interface {
	ListActive(ctx context.Context) ([]models.Subscription, error)
}

type pendingInvoiceChecker interface {
	HasPendingPayment(ctx context.Context, subscriptionID uuid.UUID) (bool, error)
}

type invoiceGenerator interface {
	GenerateInvoice(ctx context.Context, subscriptionID uuid.UUID) (*models.Payment, error)
}

// InvoiceGenerationJobParams configures the recurring invoice sweep.
type InvoiceGenerationJobParams struct {
	Logger        *logger.Logger
	Subscriptions activeSubscriptionLister
	Payments      pendingInvoiceChecker
	Billing       invoiceGenerator
	Metrics       *metrics.CronJobMetrics
}

// NewInvoiceGenerationJob constructs the recurring invoice cron job.
func NewInvoiceGenerationJob(params InvoiceGenerationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if params.Billing == nil {
		return nil, fmt.Errorf("billing service required")
	}
	return &invoiceGenerationJob{
		logg:          params.Logger,
		subscriptions: params.Subscriptions,
		payments:      params.Payments,
		billing:       params.Billing,
		metrics:       params.Metrics,
		now:           time.Now,
	}, nil
}

type invoiceGenerationJob struct {
	logg          *logger.Logger
	subscriptions activeSubscriptionLister
	payments      pendingInvoiceChecker
	billing       invoiceGenerator
	metrics       *metrics.CronJobMetrics
	now           func() time.Time
}

func (j *invoiceGenerationJob) Name() string { return "invoice-generation" }

// Run generates the next cycle's invoice for every active subscription
// whose term ends within the lead window. A subscription with a pending
// payment is skipped, which keeps the sweep idempotent across reruns and
// enforces at most one open invoice per subscription.
func (j *invoiceGenerationJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	subs, err := j.subscriptions.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("query active subscriptions: %w", err)
	}

	var errs error
	count := 0
	for _, sub := range subs {
		if !inBillingWindow(now, sub.EndDate) {
			continue
		}
		pending, err := j.payments.HasPendingPayment(ctx, sub.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: check pending: %w", sub.ID, err))
			continue
		}
		if pending {
			continue
		}
		if _, err := j.billing.GenerateInvoice(ctx, sub.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: generate invoice: %w", sub.ID, err))
			continue
		}
		count++
	}
	j.metrics.AddProcessed(j.Name(), count)

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count, "candidates": len(subs)})
	j.logg.Info(logCtx, "invoice generation sweep complete")
	return errs
}

// inBillingWindow reports whether now falls within [end - lead, end].
func inBillingWindow(now, end time.Time) bool {
	open := end.AddDate(0, 0, -invoiceLeadDays)
	return !now.Before(open) && !now.After(end)
}
