package workflow

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// splitEscrowConsumption divides a sale quantity between the device's
// granted quota and the shared warehouse. The escrow side never exceeds the
// quota and the two parts always sum to qty.
func splitEscrowConsumption(granted, qty decimal.Decimal) (fromEscrow, fromWarehouse decimal.Decimal) {
	if granted.IsNegative() {
		granted = decimal.Zero
	}
	fromEscrow = decimal.Min(granted, qty)
	fromWarehouse = qty.Sub(fromEscrow)
	return fromEscrow, fromWarehouse
}

// ConsumeEscrow deducts qty from the (product, device) escrow row, floor 0,
// and returns the remainder that must still be debited from the shared
// warehouse inside the same transaction. Escrow first, warehouse second:
// this ordering is what lets an offline device keep selling against its
// pre-granted quota.
//
// The row is locked FOR UPDATE, so two concurrent sales against the same
// device's escrow serialize on the row. Accepted contention point.
func ConsumeEscrow(tx *gorm.DB, logger *logrus.Logger, storeId, productId, deviceId string, qty decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, nil
	}

	var row models.StockEscrow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND product_id = ? AND device_id = ?", storeId, productId, deviceId).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return qty, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	if row.ExpiresAt != nil && !row.ExpiresAt.After(now) {
		// Expired quota contributes nothing; the whole qty falls through.
		return qty, nil
	}

	fromEscrow, fromWarehouse := splitEscrowConsumption(row.QtyGranted, qty)
	if fromEscrow.IsPositive() {
		remaining := row.QtyGranted.Sub(fromEscrow)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		if err := tx.Model(&models.StockEscrow{}).
			Where("id = ?", row.ID).
			Update("qty_granted", remaining).Error; err != nil {
			return decimal.Zero, err
		}
		logger.WithFields(logrus.Fields{
			"module":     "escrow",
			"store_id":   storeId,
			"product_id": productId,
			"device_id":  deviceId,
			"consumed":   fromEscrow.String(),
			"remaining":  remaining.String(),
		}).Debug("escrow quota consumed")
	}
	return fromWarehouse, nil
}

// GrantEscrow adds qty to the (product, device) quota. Grants are purely
// additive; whether total grants across devices stay within real warehouse
// stock is the grant issuer's responsibility, not enforced here.
func GrantEscrow(tx *gorm.DB, logger *logrus.Logger, storeId, productId, deviceId string, qty decimal.Decimal, expiresAt *time.Time) error {
	if qty.IsNegative() {
		return errors.New("escrow grant qty cannot be negative")
	}

	var row models.StockEscrow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND product_id = ? AND device_id = ?", storeId, productId, deviceId).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = models.StockEscrow{
			StoreId:    storeId,
			ProductId:  productId,
			DeviceId:   deviceId,
			QtyGranted: qty,
			ExpiresAt:  expiresAt,
		}
		if _, cerr := createIfAbsent(tx, &row); cerr != nil {
			return cerr
		}
		return nil
	}
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"qty_granted": row.QtyGranted.Add(qty),
	}
	if expiresAt != nil {
		updates["expires_at"] = expiresAt
	}
	if err := tx.Model(&models.StockEscrow{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"module":     "escrow",
		"store_id":   storeId,
		"product_id": productId,
		"device_id":  deviceId,
		"granted":    qty.String(),
	}).Info("escrow quota granted")
	return nil
}
