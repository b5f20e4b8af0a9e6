package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentiva/rentiva-backend/pkg/enums"
)

// Subscription is the billing relationship between a Company and a Plan.
// Exactly one row per company (unique index on company_id). EndDate is
// always StartDate plus the billing period, recomputed on every renew.
type Subscription struct {
	ID            uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID     uuid.UUID                `gorm:"column:company_id;type:uuid;not null;uniqueIndex"`
	PlanID        string                   `gorm:"column:plan_id;not null"`
	Status        enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	BillingPeriod enums.BillingPeriod      `gorm:"column:billing_period;type:billing_period;not null"`
	StartDate     time.Time                `gorm:"column:start_date;not null"`
	EndDate       time.Time                `gorm:"column:end_date;not null"`
	RenewedAt     *time.Time               `gorm:"column:renewed_at"`
	CancelledAt   *time.Time               `gorm:"column:cancelled_at"`
	Amount        decimal.Decimal          `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
