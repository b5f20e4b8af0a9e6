package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentiva/rentiva-backend/pkg/enums"
)

// Payment is one billing-cycle charge attempt against a subscription.
// Rows mutate once (pending to paid) and are never deleted.
type Payment struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID uuid.UUID           `gorm:"column:subscription_id;type:uuid;not null;index"`
	CompanyID      uuid.UUID           `gorm:"column:company_id;type:uuid;not null;index"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Status         enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	DueDate        time.Time           `gorm:"column:due_date;not null"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`
	InvoiceNumber  string              `gorm:"column:invoice_number;not null;uniqueIndex"`
	InvoiceURL     *string             `gorm:"column:invoice_url"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
