package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"gorm.io/gorm"
)

// ProjectEvent is the single entry point of the projection core. One event,
// one transaction: every artifact the fold produces (sale header, items,
// movements, escrow/warehouse mutations, debt rows) commits or rolls back
// together.
func ProjectEvent(ctx context.Context, db *gorm.DB, logger *logrus.Logger, ev *models.EventRecord) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return FoldEvent(tx.WithContext(ctx), logger, ev)
	})
}

// FoldEvent routes an event record to its per-type fold. Callers must supply
// an open transaction; FoldEvent never commits or rolls back itself.
func FoldEvent(tx *gorm.DB, logger *logrus.Logger, ev *models.EventRecord) error {
	switch ev.Type {
	case models.EventTypeProductCreated, models.EventTypeProductUpdated:
		return ProcessProductWorkflow(tx, logger, ev)
	case models.EventTypeCustomerCreated, models.EventTypeCustomerUpdated:
		return ProcessCustomerWorkflow(tx, logger, ev)
	case models.EventTypeStockReceived:
		return ProcessStockChangeWorkflow(tx, logger, ev, models.MovementKindReceived)
	case models.EventTypeStockAdjusted:
		return ProcessStockChangeWorkflow(tx, logger, ev, models.MovementKindAdjust)
	case models.EventTypeStockQuotaGranted:
		return ProcessStockQuotaGrantedWorkflow(tx, logger, ev)
	case models.EventTypeSaleCreated:
		return ProcessSaleCreatedWorkflow(tx, logger, ev)
	case models.EventTypeDebtCreated:
		return ProcessDebtCreatedWorkflow(tx, logger, ev)
	case models.EventTypeDebtPaymentRecorded:
		return ProcessDebtPaymentRecordedWorkflow(tx, logger, ev)
	case models.EventTypeCashSessionOpened:
		return ProcessCashSessionOpenedWorkflow(tx, logger, ev)
	case models.EventTypeCashSessionClosed:
		return ProcessCashSessionClosedWorkflow(tx, logger, ev)
	}
	// Unknown kinds are ignored on purpose: newer terminal software may emit
	// event types this build does not understand yet.
	return nil
}
