package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale and its SaleItems are created together, atomically, from one
// SaleCreated event. SoldByUserId is never defaulted: a sale without an
// actor is a data-integrity violation, not a gap to paper over.
type Sale struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	StoreId       string          `gorm:"size:36;not null;index" json:"store_id"`
	DeviceId      *string         `gorm:"size:36;index" json:"device_id"`
	CustomerId    *string         `gorm:"size:36;index" json:"customer_id"`
	CashSessionId *string         `gorm:"size:36;index" json:"cash_session_id"`
	SoldByUserId  string          `gorm:"size:36;not null" json:"sold_by_user_id"`
	PaymentMethod PaymentMethod   `gorm:"size:20;not null" json:"payment_method"`
	TotalUsd      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_usd"`
	TotalBs       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_bs"`
	ExchangeRate  decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"exchange_rate"`
	SoldAt        time.Time       `gorm:"not null;index" json:"sold_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Items []SaleItem `gorm:"foreignKey:SaleId" json:"items"`
}

type SaleItem struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	SaleId       string          `gorm:"size:36;not null;index" json:"sale_id"`
	StoreId      string          `gorm:"size:36;not null;index" json:"store_id"`
	ProductId    string          `gorm:"size:36;not null;index" json:"product_id"`
	VariantId    *string         `gorm:"size:36" json:"variant_id"`
	Name         string          `gorm:"size:200" json:"name"`
	Qty          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	UnitPriceUsd decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price_usd"`
	UnitPriceBs  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price_bs"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
