package plans

import (
	"context"

	"gorm.io/gorm"

	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/enums"
)

// Repository reads the plan catalog. The lifecycle never writes plans.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPlanByID(ctx context.Context, id string) (*models.Plan, error)
	ListPlans(ctx context.Context, status *enums.PlanStatus) ([]models.Plan, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plan repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPlanByID(ctx context.Context, id string) (*models.Plan, error) {
	if id == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var plan models.Plan
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ListPlans(ctx context.Context, status *enums.PlanStatus) ([]models.Plan, error) {
	query := r.db.WithContext(ctx).Model(&models.Plan{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var plans []models.Plan
	if err := query.Order("name ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}
