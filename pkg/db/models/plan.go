package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/rentiva/rentiva-backend/pkg/enums"
)

// Plan is a priced catalog offering. Read-only from the lifecycle's
// perspective; supplies the default subscription amount.
type Plan struct {
	ID        string           `gorm:"column:id;primaryKey"`
	Name      string           `gorm:"column:name;not null"`
	Status    enums.PlanStatus `gorm:"column:status;type:plan_status;not null"`
	Price     decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Modules   pq.StringArray   `gorm:"column:modules;type:text[];default:ARRAY[]::text[]"`
	Quotas    json.RawMessage  `gorm:"column:quotas;type:jsonb"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
