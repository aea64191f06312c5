package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	StoreId   string          `gorm:"size:36;not null;index" json:"store_id"`
	VariantId *string         `gorm:"size:36;index" json:"variant_id"`
	Name      string          `gorm:"size:200;not null" json:"name"`
	Sku       string          `gorm:"size:100;index" json:"sku"`
	Barcode   string          `gorm:"size:100;index" json:"barcode"`
	PriceUsd  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price_usd"`
	PriceBs   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price_bs"`
	IsActive  *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
