package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryMovement is the append-only stock audit trail: a signed quantity
// delta against (product, variant, warehouse) with a movement kind. Rows are
// never updated after creation.
//
// ID is terminal-supplied: the movement id for received/adjust events, the
// sale item id for sold movements (one movement per line item).
type InventoryMovement struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	StoreId     string          `gorm:"size:36;not null;index" json:"store_id"`
	ProductId   string          `gorm:"size:36;not null;index" json:"product_id"`
	VariantId   *string         `gorm:"size:36" json:"variant_id"`
	WarehouseId *string         `gorm:"size:36;index" json:"warehouse_id"`
	Kind        MovementKind    `gorm:"size:10;not null;index" json:"kind"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	Reason      string          `gorm:"size:200" json:"reason"`
	SaleId      *string         `gorm:"size:36;index" json:"sale_id"`
	EventId     string          `gorm:"size:36;not null;index" json:"event_id"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

// BeforeSave keeps the sign convention honest: sold movements are always
// negative, received always positive. Adjustments keep their signed qty.
func (m *InventoryMovement) BeforeSave(tx *gorm.DB) error {
	_ = tx
	if m == nil {
		return nil
	}
	switch m.Kind {
	case MovementKindSold:
		if m.Qty.IsPositive() {
			m.Qty = m.Qty.Neg()
		}
	case MovementKindReceived:
		if m.Qty.IsNegative() {
			m.Qty = m.Qty.Neg()
		}
	}
	return nil
}
