package workflow

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/config"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"gorm.io/gorm"
)

// ProcessProductWorkflow folds ProductCreated and ProductUpdated. Created is
// insert-if-absent; Updated upserts the catalog fields (an update arriving
// before its create, from an out-of-order sync, still lands).
func ProcessProductWorkflow(tx *gorm.DB, logger *logrus.Logger, ev *models.EventRecord) error {
	p, err := models.DecodeProductPayload(ev.Payload)
	if err != nil {
		config.LogError(logger, "productWorkflow.go", "ProcessProductWorkflow", "DecodePayload", ev.ID, err)
		return err
	}

	product := models.Product{
		ID:        p.ProductId,
		StoreId:   ev.StoreId,
		VariantId: p.VariantId,
		Name:      p.Name,
		Sku:       p.Sku,
		Barcode:   p.Barcode,
		PriceUsd:  p.PriceUsd,
		PriceBs:   p.PriceBs,
		IsActive:  p.IsActive,
	}
	if product.IsActive == nil {
		b := true
		product.IsActive = &b
	}

	if ev.Type == models.EventTypeProductCreated {
		_, err := createIfAbsent(tx, &product)
		return err
	}

	var existing models.Product
	err = tx.Where("store_id = ? AND id = ?", ev.StoreId, p.ProductId).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_, cerr := createIfAbsent(tx, &product)
		return cerr
	}
	if err != nil {
		return err
	}
	return tx.Model(&models.Product{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"name":      p.Name,
			"sku":       p.Sku,
			"barcode":   p.Barcode,
			"price_usd": p.PriceUsd,
			"price_bs":  p.PriceBs,
			"is_active": product.IsActive,
		}).Error
}
