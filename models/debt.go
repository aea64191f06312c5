package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Debt status is always recomputed from the full payment set, never
// incremented, so duplicate or replayed payment events converge to the same
// state. A rollover closes the original debt and opens a child for the
// remainder; ParentDebtId chains are forward-only, never cyclic.
type Debt struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	StoreId      string          `gorm:"size:36;not null;index" json:"store_id"`
	CustomerId   string          `gorm:"size:36;not null;index" json:"customer_id"`
	SaleId       *string         `gorm:"size:36;index" json:"sale_id"`
	ParentDebtId *string         `gorm:"size:36;index" json:"parent_debt_id"`
	AmountUsd    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_usd"`
	AmountBs     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_bs"`
	Status       DebtStatus      `gorm:"size:10;not null;default:'open';index" json:"status"`
	DueDate      *time.Time      `gorm:"index" json:"due_date"`
	Note         *string         `gorm:"type:text" json:"note"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Payments []DebtPayment `gorm:"foreignKey:DebtId" json:"payments"`
}

type DebtPayment struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	DebtId       string          `gorm:"size:36;not null;index" json:"debt_id"`
	StoreId      string          `gorm:"size:36;not null;index" json:"store_id"`
	AmountUsd    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_usd"`
	AmountBs     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_bs"`
	ExchangeRate decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"exchange_rate"`
	Method       PaymentMethod   `gorm:"size:20" json:"method"`
	PaidAt       time.Time       `gorm:"not null;index" json:"paid_at"`
	EventId      string          `gorm:"size:36;not null;index" json:"event_id"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
