package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EscrowGrant is the append-only record of one quota grant, keyed by the
// terminal-supplied grant id. It is what makes grant application idempotent:
// the additive quota bump happens only when this row is first inserted.
type EscrowGrant struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	StoreId   string          `gorm:"size:36;not null;index" json:"store_id"`
	ProductId string          `gorm:"size:36;not null;index" json:"product_id"`
	DeviceId  string          `gorm:"size:36;not null;index" json:"device_id"`
	Qty       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	ExpiresAt *time.Time      `json:"expires_at"`
	EventId   string          `gorm:"size:36;not null;index" json:"event_id"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// StockEscrow is the quota of stock a specific offline device may sell
// before it must defer to the shared warehouse counter. QtyGranted never
// goes below zero; an exhausted row is kept for audit but contributes
// nothing to further deductions.
type StockEscrow struct {
	ID         int             `gorm:"primaryKey" json:"id"`
	StoreId    string          `gorm:"size:36;not null;index:uniq_escrow,unique" json:"store_id"`
	ProductId  string          `gorm:"size:36;not null;index:uniq_escrow,unique" json:"product_id"`
	DeviceId   string          `gorm:"size:36;not null;index:uniq_escrow,unique" json:"device_id"`
	QtyGranted decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty_granted"`
	ExpiresAt  *time.Time      `gorm:"index" json:"expires_at"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
