package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/rentiva/rentiva-backend/internal/companies"
	"github.com/rentiva/rentiva-backend/internal/subscriptions"
	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/enums"
	"github.com/rentiva/rentiva-backend/pkg/logger"
	"github.com/rentiva/rentiva-backend/pkg/metrics"
)

// purgeAfterDays is how long a company may stay suspended before the
// platform writes it off. Ten days past the restore window, so restore
// eligibility has always lapsed first.
const purgeAfterDays = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CompanyPurgeJobParams configures the long-suspended company sweep.
type CompanyPurgeJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Companies     companies.Repository
	Subscriptions subscriptions.Repository
	Metrics       *metrics.CronJobMetrics
}

// NewCompanyPurgeJob constructs the company purge cron job.
func NewCompanyPurgeJob(params CompanyPurgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Companies == nil {
		return nil, fmt.Errorf("company repository required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	return &companyPurgeJob{
		logg:          params.Logger,
		db:            params.DB,
		companies:     params.Companies,
		subscriptions: params.Subscriptions,
		metrics:       params.Metrics,
		now:           time.Now,
	}, nil
}

type companyPurgeJob struct {
	logg          *logger.Logger
	db            txRunner
	companies     companies.Repository
	subscriptions subscriptions.Repository
	metrics       *metrics.CronJobMetrics
	now           func() time.Time
}

func (j *companyPurgeJob) Name() string { return "company-purge" }

// Run soft-deletes companies that have sat suspended past the purge
// threshold, cancelling whatever subscription they still hold. Deletion is
// a status flip; rows are never removed.
func (j *companyPurgeJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-purgeAfterDays * 24 * time.Hour)
	candidates, err := j.companies.ListSuspendedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query suspended companies: %w", err)
	}

	var errs error
	count := 0
	for _, company := range candidates {
		purged, err := j.purgeCompany(ctx, company, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("company %s: %w", company.ID, err))
			continue
		}
		if purged {
			count++
		}
	}
	j.metrics.AddProcessed(j.Name(), count)

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count, "candidates": len(candidates)})
	j.logg.Info(logCtx, "company purge sweep complete")
	return errs
}

func (j *companyPurgeJob) purgeCompany(ctx context.Context, company models.Company, now time.Time) (bool, error) {
	var purged bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := j.subscriptions.WithTx(tx).UpdateByCompanyWhereStatus(ctx, company.ID,
			[]enums.SubscriptionStatus{
				enums.SubscriptionStatusActive,
				enums.SubscriptionStatusSuspended,
				enums.SubscriptionStatusExpired,
			},
			map[string]any{
				"status":       enums.SubscriptionStatusCancelled,
				"cancelled_at": now,
			}); err != nil {
			return fmt.Errorf("cancel subscriptions: %w", err)
		}
		rows, err := j.companies.WithTx(tx).UpdateCompanyWhereStatus(ctx, company.ID,
			[]enums.CompanyStatus{enums.CompanyStatusSuspended},
			map[string]any{"status": enums.CompanyStatusDeleted})
		if err != nil {
			return fmt.Errorf("mark company deleted: %w", err)
		}
		purged = rows > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	if purged {
		logCtx := j.logg.WithCompanyID(ctx, company.ID.String())
		j.logg.Info(logCtx, "company purged")
	}
	return purged, nil
}
