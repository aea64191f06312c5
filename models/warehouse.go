package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Warehouse struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	StoreId   string    `gorm:"size:36;not null;index" json:"store_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	IsDefault *bool     `gorm:"not null;default:false;index" json:"is_default"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// WarehouseStock is the authoritative per-warehouse on-hand quantity.
// Unique per (store, warehouse, product, variant); mutated only through
// ApplyStockDeltas inside a fold transaction.
type WarehouseStock struct {
	ID          int             `gorm:"primaryKey" json:"id"`
	StoreId     string          `gorm:"size:36;not null;index:uniq_wh_stock,unique" json:"store_id"`
	WarehouseId string          `gorm:"size:36;not null;index:uniq_wh_stock,unique" json:"warehouse_id"`
	ProductId   string          `gorm:"size:36;not null;index:uniq_wh_stock,unique" json:"product_id"`
	VariantId   string          `gorm:"size:36;not null;default:'';index:uniq_wh_stock,unique" json:"variant_id"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
