package workflow

import (
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"gorm.io/gorm"
)

// CheckSaleArtifacts verifies that every downstream artifact of a SaleCreated
// fold exists: the header, the expected number of line items and one sold
// movement per line item. A shortfall is the signature of a run that crashed
// between steps before folds were single-transaction (or of a storage-engine
// partial write) and means the event must be re-driven; the per-row
// existence checks then fill only the gaps.
func CheckSaleArtifacts(tx *gorm.DB, storeId, saleId string, expectedItems int) (bool, error) {
	var headerCount int64
	if err := tx.Model(&models.Sale{}).
		Where("store_id = ? AND id = ?", storeId, saleId).
		Count(&headerCount).Error; err != nil {
		return false, err
	}
	if headerCount == 0 {
		return false, nil
	}

	var itemCount int64
	if err := tx.Model(&models.SaleItem{}).
		Where("store_id = ? AND sale_id = ?", storeId, saleId).
		Count(&itemCount).Error; err != nil {
		return false, err
	}
	if itemCount != int64(expectedItems) {
		return false, nil
	}

	var movementCount int64
	if err := tx.Model(&models.InventoryMovement{}).
		Where("store_id = ? AND sale_id = ? AND kind = ?", storeId, saleId, models.MovementKindSold).
		Count(&movementCount).Error; err != nil {
		return false, err
	}
	return movementCount == int64(expectedItems), nil
}
