package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashSession brackets a sequence of sales for reconciliation. A closed
// session is immutable except for the expected/counted snapshot captured at
// close time.
type CashSession struct {
	ID          string            `gorm:"primaryKey;size:36" json:"id"`
	StoreId     string            `gorm:"size:36;not null;index" json:"store_id"`
	DeviceId    *string           `gorm:"size:36;index" json:"device_id"`
	RegisterTag string            `gorm:"size:60" json:"register_tag"`
	Status      CashSessionStatus `gorm:"size:10;not null;default:'open';index" json:"status"`
	OpenedBy    *string           `gorm:"size:36" json:"opened_by"`
	ClosedBy    *string           `gorm:"size:36" json:"closed_by"`
	OpeningUsd  decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"opening_usd"`
	OpeningBs   decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"opening_bs"`
	ExpectedUsd decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"expected_usd"`
	ExpectedBs  decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"expected_bs"`
	CountedUsd  decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"counted_usd"`
	CountedBs   decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"counted_bs"`
	OpenedAt    time.Time         `gorm:"not null" json:"opened_at"`
	ClosedAt    *time.Time        `json:"closed_at"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
