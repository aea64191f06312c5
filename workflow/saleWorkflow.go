package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/config"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/utils"
	"gorm.io/gorm"
)

// ProcessSaleCreatedWorkflow folds one SaleCreated event: sale header, line
// items, one sold movement per item, escrow-then-warehouse stock
// consumption, and (for credit sales) the opening debt. All inside the
// caller's transaction.
//
// Two invariants fail hard instead of being defaulted:
//   - the event must carry an actor (traceability is business-critical)
//   - a credit ("pay later") sale must reference a customer
func ProcessSaleCreatedWorkflow(tx *gorm.DB, logger *logrus.Logger, ev *models.EventRecord) error {
	p, err := models.DecodeSaleCreatedPayload(ev.Payload)
	if err != nil {
		config.LogError(logger, "saleWorkflow.go", "ProcessSaleCreatedWorkflow", "DecodePayload", ev.ID, err)
		return err
	}

	actor := ""
	if ev.ActorUserId != nil {
		actor = strings.TrimSpace(*ev.ActorUserId)
	}
	if actor == "" {
		return fmt.Errorf("sale %s has no actor user id", p.SaleId)
	}
	if p.PaymentMethod.IsCredit() {
		if p.CustomerId == nil || strings.TrimSpace(*p.CustomerId) == "" {
			return fmt.Errorf("credit sale %s has no customer reference", p.SaleId)
		}
		if p.DebtId == nil || strings.TrimSpace(*p.DebtId) == "" {
			return fmt.Errorf("credit sale %s has no debt id", p.SaleId)
		}
	}

	var existing models.Sale
	err = tx.Where("store_id = ? AND id = ?", ev.StoreId, p.SaleId).First(&existing).Error
	switch {
	case err == nil:
		complete, cerr := CheckSaleArtifacts(tx, ev.StoreId, p.SaleId, len(p.Items))
		if cerr != nil {
			return cerr
		}
		if complete {
			// Already applied in full.
			return nil
		}
		logger.WithFields(logrus.Fields{
			"module":   "saleWorkflow",
			"store_id": ev.StoreId,
			"sale_id":  p.SaleId,
		}).Warn("sale exists with missing artifacts; re-driving projection")
	case errors.Is(err, gorm.ErrRecordNotFound):
		soldAt := p.SoldAt
		if soldAt.IsZero() {
			soldAt = ev.CreatedAt
		}
		sale := models.Sale{
			ID:            p.SaleId,
			StoreId:       ev.StoreId,
			DeviceId:      ev.DeviceId,
			CustomerId:    p.CustomerId,
			CashSessionId: p.CashSessionId,
			SoldByUserId:  actor,
			PaymentMethod: p.PaymentMethod,
			TotalUsd:      p.TotalUsd,
			TotalBs:       p.TotalBs,
			ExchangeRate:  p.ExchangeRate,
			SoldAt:        soldAt,
		}
		if _, cerr := createIfAbsent(tx, &sale); cerr != nil {
			return cerr
		}
	default:
		return err
	}

	warehouseId, err := ResolveWarehouse(tx, logger, ev.StoreId, p.WarehouseId)
	if err != nil {
		return err
	}
	if warehouseId == "" {
		logger.WithFields(logrus.Fields{
			"module":   "saleWorkflow",
			"store_id": ev.StoreId,
			"sale_id":  p.SaleId,
		}).Warn("no warehouse resolved; recording movements without stock deduction")
		config.DegradedWarehouseResolutionTotal.Inc()
	}

	deltas := make([]StockDelta, 0, len(p.Items))
	for _, item := range p.Items {
		saleItem := models.SaleItem{
			ID:           item.ItemId,
			SaleId:       p.SaleId,
			StoreId:      ev.StoreId,
			ProductId:    item.ProductId,
			VariantId:    item.VariantId,
			Name:         item.Name,
			Qty:          item.Qty,
			UnitPriceUsd: item.UnitPriceUsd,
			UnitPriceBs:  item.UnitPriceBs,
		}
		if _, cerr := createIfAbsent(tx, &saleItem); cerr != nil {
			return cerr
		}

		var whId *string
		if warehouseId != "" {
			whId = &warehouseId
		}
		movement := models.InventoryMovement{
			ID:          item.ItemId,
			StoreId:     ev.StoreId,
			ProductId:   item.ProductId,
			VariantId:   item.VariantId,
			WarehouseId: whId,
			Kind:        models.MovementKindSold,
			Qty:         item.Qty.Neg(),
			SaleId:      &p.SaleId,
			EventId:     ev.ID,
		}
		created, cerr := createIfAbsent(tx, &movement)
		if cerr != nil {
			return cerr
		}
		if !created {
			// Movement already recorded by an earlier run; its stock effect
			// was applied then. Skipping keeps replay free of double
			// deductions.
			continue
		}

		fromWarehouse := item.Qty
		if ev.DeviceId != nil && *ev.DeviceId != "" {
			fromWarehouse, cerr = ConsumeEscrow(tx, logger, ev.StoreId, item.ProductId, *ev.DeviceId, item.Qty, ev.CreatedAt)
			if cerr != nil {
				return cerr
			}
		}
		if warehouseId != "" && fromWarehouse.IsPositive() {
			deltas = append(deltas, StockDelta{
				ProductId: item.ProductId,
				VariantId: utils.DereferencePtr(item.VariantId),
				Qty:       fromWarehouse.Neg(),
			})
		}
	}
	if len(deltas) > 0 {
		if err := ApplyStockDeltas(tx, ev.StoreId, warehouseId, deltas); err != nil {
			return err
		}
	}

	if p.PaymentMethod.IsCredit() {
		if err := ensureSaleDebt(tx, logger, ev, p); err != nil {
			return err
		}
	}
	return nil
}

// ensureSaleDebt opens the debt for a credit sale. Keyed by the
// terminal-supplied debt id, so replays are no-ops.
func ensureSaleDebt(tx *gorm.DB, logger *logrus.Logger, ev *models.EventRecord, p models.SaleCreatedPayload) error {
	var count int64
	if err := tx.Model(&models.Customer{}).
		Where("store_id = ? AND id = ?", ev.StoreId, *p.CustomerId).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		// Never forge ledger history by inventing the customer.
		return fmt.Errorf("credit sale %s references unknown customer %s", p.SaleId, *p.CustomerId)
	}

	debt := models.Debt{
		ID:         *p.DebtId,
		StoreId:    ev.StoreId,
		CustomerId: *p.CustomerId,
		SaleId:     &p.SaleId,
		AmountUsd:  p.TotalUsd,
		AmountBs:   p.TotalBs,
		Status:     models.DebtStatusOpen,
		DueDate:    p.DebtDueDate,
	}
	created, err := createIfAbsent(tx, &debt)
	if err != nil {
		return err
	}
	if created {
		logger.WithFields(logrus.Fields{
			"module":      "saleWorkflow",
			"store_id":    ev.StoreId,
			"sale_id":     p.SaleId,
			"debt_id":     *p.DebtId,
			"customer_id": *p.CustomerId,
			"amount_usd":  p.TotalUsd.String(),
		}).Info("credit sale opened debt")
	}
	return nil
}
