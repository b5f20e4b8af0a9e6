package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/enums"
	"github.com/rentiva/rentiva-backend/pkg/pagination"
)

// Repository handles payment persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	MarkPaymentPaid(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error)
	HasPendingPayment(ctx context.Context, subscriptionID uuid.UUID) (bool, error)
	ListDuePayments(ctx context.Context, cutoff time.Time) ([]models.Payment, error)
	ListCompanyPayments(ctx context.Context, params ListCompanyPaymentsQuery) ([]models.Payment, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// MarkPaymentPaid settles a payment only while it is still pending. Zero
// rows affected means another writer settled it first.
func (r *repository) MarkPaymentPaid(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) HasPendingPayment(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("subscription_id = ? AND status = ?", subscriptionID, enums.PaymentStatusPending).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListDuePayments(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("status = ? AND due_date <= ?", enums.PaymentStatusPending, cutoff).
		Order("due_date ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// ListCompanyPaymentsQuery configures the invoice history listing.
type ListCompanyPaymentsQuery struct {
	CompanyID uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
	Status    *enums.PaymentStatus
}

func (r *repository) ListCompanyPayments(ctx context.Context, params ListCompanyPaymentsQuery) ([]models.Payment, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Payment{}).Where("company_id = ?", params.CompanyID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(due_date, id) < (?, ?)", params.Cursor.Timestamp, params.Cursor.ID)
	}

	var payments []models.Payment
	if err := query.Order("due_date DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&payments).Error; err != nil {
		return nil, nil, err
	}

	if len(payments) > limit {
		next := payments[limit]
		payments = payments[:limit]
		return payments, &pagination.Cursor{
			Timestamp: next.DueDate,
			ID:        next.ID,
		}, nil
	}

	return payments, nil, nil
}
