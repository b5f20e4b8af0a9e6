package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/enums"
)

// Repository handles subscription persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindSubscriptionByCompany(ctx context.Context, companyID uuid.UUID) (*models.Subscription, error)
	UpdateSubscriptionWhereStatus(ctx context.Context, id uuid.UUID, allowed []enums.SubscriptionStatus, updates map[string]any) (int64, error)
	UpdateByCompanyWhereStatus(ctx context.Context, companyID uuid.UUID, allowed []enums.SubscriptionStatus, updates map[string]any) (int64, error)
	MarkExpiredIfElapsed(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
	ListActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Subscription, error)
	ListActive(ctx context.Context) ([]models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindSubscriptionByCompany(ctx context.Context, companyID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// UpdateSubscriptionWhereStatus applies updates only when the row still holds
// one of the allowed statuses. RowsAffected tells the caller whether a racing
// transition already moved the row.
func (r *repository) UpdateSubscriptionWhereStatus(ctx context.Context, id uuid.UUID, allowed []enums.SubscriptionStatus, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status IN (?)", id, allowed).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) UpdateByCompanyWhereStatus(ctx context.Context, companyID uuid.UUID, allowed []enums.SubscriptionStatus, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("company_id = ? AND status IN (?)", companyID, allowed).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// MarkExpiredIfElapsed flips an active subscription whose term has lapsed to
// expired. The end_date predicate is re-checked in the WHERE clause so a
// concurrent renew cannot be clobbered.
func (r *repository) MarkExpiredIfElapsed(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND end_date < ?", id, enums.SubscriptionStatusActive, now).
		Updates(map[string]any{"status": enums.SubscriptionStatusExpired})
	return result.RowsAffected, result.Error
}

func (r *repository) ListActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("status = ? AND end_date < ?", enums.SubscriptionStatusActive, cutoff).
		Order("end_date ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.SubscriptionStatusActive).
		Order("end_date ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
