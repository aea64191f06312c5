package workflow

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResolveWarehouse picks the physical warehouse a stock change applies to:
// the event's candidate if it belongs to the store, else the store default,
// else the store's oldest warehouse. An empty result is a degraded (not
// fatal) condition: movements are still recorded for audit, stock is not
// decremented anywhere, and the caller logs a warning. Recording the sale
// beats blocking it.
func ResolveWarehouse(tx *gorm.DB, logger *logrus.Logger, storeId string, candidate *string) (string, error) {
	if candidate != nil && *candidate != "" {
		var count int64
		if err := tx.Model(&models.Warehouse{}).
			Where("store_id = ? AND id = ? AND is_active = 1", storeId, *candidate).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count > 0 {
			return *candidate, nil
		}
		logger.WithFields(logrus.Fields{
			"module":       "warehouseResolver",
			"store_id":     storeId,
			"warehouse_id": *candidate,
		}).Warn("candidate warehouse not valid for store; falling back")
	}

	var wh models.Warehouse
	err := tx.Where("store_id = ? AND is_default = 1 AND is_active = 1", storeId).
		First(&wh).Error
	if err == nil {
		return wh.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	err = tx.Where("store_id = ? AND is_active = 1", storeId).
		Order("created_at ASC, id ASC").
		First(&wh).Error
	if err == nil {
		return wh.ID, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return "", err
}

type StockDelta struct {
	ProductId string
	VariantId string
	Qty       decimal.Decimal
}

// ApplyStockDeltas mutates per-warehouse on-hand quantities inside the
// caller's transaction, so the stock update participates in the same atomic
// commit as the fold that produced it. Rows serialize through FOR UPDATE.
func ApplyStockDeltas(tx *gorm.DB, storeId, warehouseId string, deltas []StockDelta) error {
	for _, d := range deltas {
		if d.Qty.IsZero() {
			continue
		}
		var row models.WarehouseStock
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("store_id = ? AND warehouse_id = ? AND product_id = ? AND variant_id = ?",
				storeId, warehouseId, d.ProductId, d.VariantId).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.WarehouseStock{
				StoreId:     storeId,
				WarehouseId: warehouseId,
				ProductId:   d.ProductId,
				VariantId:   d.VariantId,
				Qty:         d.Qty,
			}
			if err := tx.Create(&row).Error; err != nil {
				if !isDuplicateKeyErr(err) {
					return err
				}
				// Lost a create race; retry as an update.
				if err := tx.Model(&models.WarehouseStock{}).
					Where("store_id = ? AND warehouse_id = ? AND product_id = ? AND variant_id = ?",
						storeId, warehouseId, d.ProductId, d.VariantId).
					Update("qty", gorm.Expr("qty + ?", d.Qty)).Error; err != nil {
					return err
				}
			}
			continue
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&models.WarehouseStock{}).
			Where("id = ?", row.ID).
			Update("qty", row.Qty.Add(d.Qty)).Error; err != nil {
			return err
		}
	}
	return nil
}
