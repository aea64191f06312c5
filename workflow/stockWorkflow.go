package workflow

import (
	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/config"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/utils"
	"gorm.io/gorm"
)

// ProcessStockChangeWorkflow folds StockReceived and StockAdjusted events:
// one append-only movement plus the matching warehouse quantity delta.
// Keyed by the terminal-supplied movement id; a duplicate delivery creates
// nothing and deducts nothing.
func ProcessStockChangeWorkflow(tx *gorm.DB, logger *logrus.Logger, ev *models.EventRecord, kind models.MovementKind) error {
	p, err := models.DecodeStockChangePayload(ev.Payload)
	if err != nil {
		config.LogError(logger, "stockWorkflow.go", "ProcessStockChangeWorkflow", "DecodePayload", ev.ID, err)
		return err
	}

	warehouseId, err := ResolveWarehouse(tx, logger, ev.StoreId, p.WarehouseId)
	if err != nil {
		return err
	}
	var whId *string
	if warehouseId != "" {
		whId = &warehouseId
	} else {
		logger.WithFields(logrus.Fields{
			"module":      "stockWorkflow",
			"store_id":    ev.StoreId,
			"movement_id": p.MovementId,
		}).Warn("no warehouse resolved; recording movement without stock mutation")
		config.DegradedWarehouseResolutionTotal.Inc()
	}

	movement := models.InventoryMovement{
		ID:          p.MovementId,
		StoreId:     ev.StoreId,
		ProductId:   p.ProductId,
		VariantId:   p.VariantId,
		WarehouseId: whId,
		Kind:        kind,
		Qty:         p.Qty,
		Reason:      p.Reason,
		EventId:     ev.ID,
	}
	created, err := createIfAbsent(tx, &movement)
	if err != nil {
		return err
	}
	if !created || warehouseId == "" {
		return nil
	}

	qty := movement.Qty
	if kind == models.MovementKindReceived && qty.IsNegative() {
		qty = qty.Neg()
	}
	return ApplyStockDeltas(tx, ev.StoreId, warehouseId, []StockDelta{{
		ProductId: p.ProductId,
		VariantId: utils.DereferencePtr(p.VariantId),
		Qty:       qty,
	}})
}

// ProcessStockQuotaGrantedWorkflow increases the escrow quota an offline
// device may sell against. The additive bump is guarded by the grant's
// append-only audit row: a duplicate delivery inserts nothing and grants
// nothing twice.
func ProcessStockQuotaGrantedWorkflow(tx *gorm.DB, logger *logrus.Logger, ev *models.EventRecord) error {
	p, err := models.DecodeStockQuotaGrantedPayload(ev.Payload)
	if err != nil {
		config.LogError(logger, "stockWorkflow.go", "ProcessStockQuotaGrantedWorkflow", "DecodePayload", ev.ID, err)
		return err
	}

	grant := models.EscrowGrant{
		ID:        p.GrantId,
		StoreId:   ev.StoreId,
		ProductId: p.ProductId,
		DeviceId:  p.DeviceId,
		Qty:       p.Qty,
		ExpiresAt: p.ExpiresAt,
		EventId:   ev.ID,
	}
	created, err := createIfAbsent(tx, &grant)
	if err != nil {
		return err
	}
	if !created {
		// Already applied.
		return nil
	}
	return GrantEscrow(tx, logger, ev.StoreId, p.ProductId, p.DeviceId, p.Qty, p.ExpiresAt)
}
