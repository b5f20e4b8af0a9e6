package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentiva/rentiva-backend/internal/companies"
	"github.com/rentiva/rentiva-backend/internal/subscriptions"
	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/enums"
	"github.com/rentiva/rentiva-backend/pkg/logger"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeCompanyStore struct {
	byID map[uuid.UUID]*models.Company
}

func (f *fakeCompanyStore) WithTx(tx *gorm.DB) companies.Repository { return f }
func (f *fakeCompanyStore) CreateCompany(ctx context.Context, company *models.Company) error {
	f.byID[company.ID] = company
	return nil
}
func (f *fakeCompanyStore) FindCompanyByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return f.byID[id], nil
}
func (f *fakeCompanyStore) UpdateCompanyWhereStatus(ctx context.Context, id uuid.UUID, allowed []enums.CompanyStatus, updates map[string]any) (int64, error) {
	company, ok := f.byID[id]
	if !ok {
		return 0, nil
	}
	match := false
	for _, status := range allowed {
		if company.Status == status {
			match = true
			break
		}
	}
	if !match {
		return 0, nil
	}
	if status, ok := updates["status"].(enums.CompanyStatus); ok {
		company.Status = status
	}
	return 1, nil
}
func (f *fakeCompanyStore) ListSuspendedBefore(ctx context.Context, cutoff time.Time) ([]models.Company, error) {
	var out []models.Company
	for _, company := range f.byID {
		if company.Status == enums.CompanyStatusSuspended && company.SuspendedAt != nil && !company.SuspendedAt.After(cutoff) {
			out = append(out, *company)
		}
	}
	return out, nil
}

type fakeSubscriptionStore struct {
	byCompany map[uuid.UUID]*models.Subscription
}

func (f *fakeSubscriptionStore) WithTx(tx *gorm.DB) subscriptions.Repository { return f }
func (f *fakeSubscriptionStore) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	f.byCompany[sub.CompanyID] = sub
	return nil
}
func (f *fakeSubscriptionStore) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return nil, nil
}
func (f *fakeSubscriptionStore) FindSubscriptionByCompany(ctx context.Context, companyID uuid.UUID) (*models.Subscription, error) {
	return f.byCompany[companyID], nil
}
func (f *fakeSubscriptionStore) UpdateSubscriptionWhereStatus(ctx context.Context, id uuid.UUID, allowed []enums.SubscriptionStatus, updates map[string]any) (int64, error) {
	return 0, nil
}
func (f *fakeSubscriptionStore) UpdateByCompanyWhereStatus(ctx context.Context, companyID uuid.UUID, allowed []enums.SubscriptionStatus, updates map[string]any) (int64, error) {
	sub, ok := f.byCompany[companyID]
	if !ok {
		return 0, nil
	}
	match := false
	for _, status := range allowed {
		if sub.Status == status {
			match = true
			break
		}
	}
	if !match {
		return 0, nil
	}
	if status, ok := updates["status"].(enums.SubscriptionStatus); ok {
		sub.Status = status
	}
	if cancelledAt, ok := updates["cancelled_at"].(time.Time); ok {
		sub.CancelledAt = &cancelledAt
	}
	return 1, nil
}
func (f *fakeSubscriptionStore) MarkExpiredIfElapsed(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeSubscriptionStore) ListActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Subscription, error) {
	return nil, nil
}
func (f *fakeSubscriptionStore) ListActive(ctx context.Context) ([]models.Subscription, error) {
	return nil, nil
}

func newPurgeFixture(t *testing.T) (Job, *fakeCompanyStore, *fakeSubscriptionStore) {
	t.Helper()
	companyStore := &fakeCompanyStore{byID: map[uuid.UUID]*models.Company{}}
	subStore := &fakeSubscriptionStore{byCompany: map[uuid.UUID]*models.Subscription{}}
	job, err := NewCompanyPurgeJob(CompanyPurgeJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:            fakeTxRunner{},
		Companies:     companyStore,
		Subscriptions: subStore,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	return job, companyStore, subStore
}

func suspendedCompany(store *fakeCompanyStore, subStore *fakeSubscriptionStore, suspendedAt time.Time) *models.Company {
	company := &models.Company{
		ID:          uuid.New(),
		Name:        "Acme Rentals",
		Status:      enums.CompanyStatusSuspended,
		SuspendedAt: &suspendedAt,
	}
	store.byID[company.ID] = company
	subStore.byCompany[company.ID] = &models.Subscription{
		ID:        uuid.New(),
		CompanyID: company.ID,
		Status:    enums.SubscriptionStatusSuspended,
	}
	return company
}

func TestCompanyPurgeJobDeletesLongSuspended(t *testing.T) {
	job, companyStore, subStore := newPurgeFixture(t)
	now := time.Now().UTC()
	stale := suspendedCompany(companyStore, subStore, now.Add(-101*24*time.Hour))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if companyStore.byID[stale.ID].Status != enums.CompanyStatusDeleted {
		t.Fatal("expected company to be soft-deleted")
	}
	sub := subStore.byCompany[stale.ID]
	if sub.Status != enums.SubscriptionStatusCancelled || sub.CancelledAt == nil {
		t.Fatalf("expected subscription cancelled, got %+v", sub)
	}
}

func TestCompanyPurgeJobLeavesRecentSuspensionsAlone(t *testing.T) {
	job, companyStore, subStore := newPurgeFixture(t)
	now := time.Now().UTC()
	recent := suspendedCompany(companyStore, subStore, now.Add(-99*24*time.Hour))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if companyStore.byID[recent.ID].Status != enums.CompanyStatusSuspended {
		t.Fatal("company inside the grace period must not be deleted")
	}
	if subStore.byCompany[recent.ID].Status != enums.SubscriptionStatusSuspended {
		t.Fatal("subscription must be untouched inside the grace period")
	}
}

func TestCompanyPurgeJobIsIdempotent(t *testing.T) {
	job, companyStore, subStore := newPurgeFixture(t)
	now := time.Now().UTC()
	stale := suspendedCompany(companyStore, subStore, now.Add(-150*24*time.Hour))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstCancelledAt := subStore.byCompany[stale.ID].CancelledAt
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if companyStore.byID[stale.ID].Status != enums.CompanyStatusDeleted {
		t.Fatal("company should remain deleted")
	}
	if subStore.byCompany[stale.ID].CancelledAt != firstCancelledAt {
		t.Fatal("second run must not rewrite the cancellation")
	}
}
