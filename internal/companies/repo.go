package companies

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/enums"
)

// Repository handles company persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateCompany(ctx context.Context, company *models.Company) error
	FindCompanyByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
	UpdateCompanyWhereStatus(ctx context.Context, id uuid.UUID, allowed []enums.CompanyStatus, updates map[string]any) (int64, error)
	ListSuspendedBefore(ctx context.Context, cutoff time.Time) ([]models.Company, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a company repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateCompany(ctx context.Context, company *models.Company) error {
	return r.db.WithContext(ctx).Create(company).Error
}

func (r *repository) FindCompanyByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&company).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}

// UpdateCompanyWhereStatus applies updates only when the row still holds one
// of the allowed statuses. The caller inspects RowsAffected to detect a
// racing transition.
func (r *repository) UpdateCompanyWhereStatus(ctx context.Context, id uuid.UUID, allowed []enums.CompanyStatus, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Company{}).
		Where("id = ? AND status IN (?)", id, allowed).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) ListSuspendedBefore(ctx context.Context, cutoff time.Time) ([]models.Company, error) {
	var companies []models.Company
	if err := r.db.WithContext(ctx).
		Where("status = ? AND suspended_at IS NOT NULL AND suspended_at <= ?", enums.CompanyStatusSuspended, cutoff).
		Order("suspended_at ASC").
		Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}
