package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rentiva/rentiva-backend/pkg/enums"
)

// Company is a paying tenant. Status mirrors the latest subscription
// transition and is updated in the same transaction; DELETED is a soft
// terminal marker, rows are never hard-deleted.
type Company struct {
	ID              uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string              `gorm:"column:name;not null"`
	Status          enums.CompanyStatus `gorm:"column:status;type:company_status;not null;default:'active'"`
	SuspendedAt     *time.Time          `gorm:"column:suspended_at"`
	SuspendedReason *string             `gorm:"column:suspended_reason"`
	MaxAgencies     *int                `gorm:"column:max_agencies"`
	BillingEmail    string              `gorm:"column:billing_email;not null"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
