package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/config"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessDebtCreatedWorkflow folds a standalone DebtCreated event (credit
// sales open their debt inside the sale fold instead). The referenced
// customer must exist: a missing parent is a fatal error, never auto-created.
func ProcessDebtCreatedWorkflow(tx *gorm.DB, logger *logrus.Logger, ev *models.EventRecord) error {
	p, err := models.DecodeDebtCreatedPayload(ev.Payload)
	if err != nil {
		config.LogError(logger, "debtWorkflow.go", "ProcessDebtCreatedWorkflow", "DecodePayload", ev.ID, err)
		return err
	}

	var count int64
	if err := tx.Model(&models.Customer{}).
		Where("store_id = ? AND id = ?", ev.StoreId, p.CustomerId).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("debt %s references unknown customer %s", p.DebtId, p.CustomerId)
	}

	debt := models.Debt{
		ID:         p.DebtId,
		StoreId:    ev.StoreId,
		CustomerId: p.CustomerId,
		SaleId:     p.SaleId,
		AmountUsd:  p.AmountUsd,
		AmountBs:   p.AmountBs,
		Status:     models.DebtStatusOpen,
		DueDate:    p.DueDate,
		Note:       p.Note,
	}
	_, err = createIfAbsent(tx, &debt)
	return err
}

// ProcessDebtPaymentRecordedWorkflow folds one payment. Even when the
// payment id already exists (duplicate delivery), the parent debt's status
// is recomputed and re-saved: a prior run may have inserted the payment row
// and crashed before updating status, and this healing pass converges it.
func ProcessDebtPaymentRecordedWorkflow(tx *gorm.DB, logger *logrus.Logger, ev *models.EventRecord) error {
	p, err := models.DecodeDebtPaymentRecordedPayload(ev.Payload)
	if err != nil {
		config.LogError(logger, "debtWorkflow.go", "ProcessDebtPaymentRecordedWorkflow", "DecodePayload", ev.ID, err)
		return err
	}

	var debt models.Debt
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND id = ?", ev.StoreId, p.DebtId).
		First(&debt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Retried by the queue; the debt event may simply not have arrived yet.
		return fmt.Errorf("payment %s references unknown debt %s", p.PaymentId, p.DebtId)
	}
	if err != nil {
		return err
	}

	paidAt := p.PaidAt
	if paidAt.IsZero() {
		paidAt = ev.CreatedAt
	}
	payment := models.DebtPayment{
		ID:           p.PaymentId,
		DebtId:       p.DebtId,
		StoreId:      ev.StoreId,
		AmountUsd:    p.AmountUsd,
		AmountBs:     p.AmountBs,
		ExchangeRate: p.ExchangeRate,
		Method:       p.Method,
		PaidAt:       paidAt,
		EventId:      ev.ID,
	}
	if _, err := createIfAbsent(tx, &payment); err != nil {
		return err
	}

	status, paidUsd, err := RecomputeDebtStatus(tx, logger, ev.StoreId, &debt)
	if err != nil {
		return err
	}

	if p.Rollover && status != models.DebtStatusPaid {
		if p.RolloverDebtId == nil || strings.TrimSpace(*p.RolloverDebtId) == "" {
			return fmt.Errorf("payment %s requests rollover without a rollover debt id", p.PaymentId)
		}
		if err := rolloverDebt(tx, logger, ev, &debt, p, paidUsd); err != nil {
			return err
		}
		status = models.DebtStatusPaid
	}

	if debt.Status != status {
		if err := tx.Model(&models.Debt{}).
			Where("id = ?", debt.ID).
			Update("status", status).Error; err != nil {
			return err
		}
	}
	return nil
}

// RecomputeDebtStatus derives the debt's status from the full payment set.
// Never incremented: replaying the same payment event, in any order, always
// converges to the same status. USD is the reference currency; a payment's
// VES amount is re-derived from its exchange rate rather than trusted
// verbatim. Paid is terminal.
func RecomputeDebtStatus(tx *gorm.DB, logger *logrus.Logger, storeId string, debt *models.Debt) (models.DebtStatus, decimal.Decimal, error) {
	var payments []models.DebtPayment
	if err := tx.Where("store_id = ? AND debt_id = ?", storeId, debt.ID).
		Find(&payments).Error; err != nil {
		return debt.Status, decimal.Zero, err
	}

	paidUsd := decimal.Zero
	paidBs := decimal.Zero
	for _, pm := range payments {
		usd := pm.AmountUsd
		if usd.IsZero() && pm.AmountBs.IsPositive() && pm.ExchangeRate.IsPositive() {
			usd = pm.AmountBs.Div(pm.ExchangeRate)
		}
		paidUsd = paidUsd.Add(usd)
		if pm.ExchangeRate.IsPositive() {
			paidBs = paidBs.Add(usd.Mul(pm.ExchangeRate))
		} else {
			paidBs = paidBs.Add(pm.AmountBs)
		}
	}

	status := debtStatusFor(debt.AmountUsd, debt.AmountBs, paidUsd, paidBs)
	if debt.Status == models.DebtStatusPaid {
		// No paid -> * transition.
		return models.DebtStatusPaid, paidUsd, nil
	}
	return status, paidUsd, nil
}

// debtStatusFor compares the payment sums against the debt amounts. USD is
// authoritative whenever the debt carries a USD amount; the VES comparison
// only decides for pure-VES debts.
func debtStatusFor(amountUsd, amountBs, paidUsd, paidBs decimal.Decimal) models.DebtStatus {
	if amountUsd.IsPositive() {
		if paidUsd.GreaterThanOrEqual(amountUsd) {
			return models.DebtStatusPaid
		}
		if paidUsd.IsPositive() || paidBs.IsPositive() {
			return models.DebtStatusPartial
		}
		return models.DebtStatusOpen
	}
	if amountBs.IsPositive() {
		if paidBs.GreaterThanOrEqual(amountBs) {
			return models.DebtStatusPaid
		}
		if paidBs.IsPositive() {
			return models.DebtStatusPartial
		}
		return models.DebtStatusOpen
	}
	// Zero-amount debt is settled by definition.
	return models.DebtStatusPaid
}

// rolloverDebt closes the original debt as paid and opens a child for the
// unpaid remainder. The parent link only ever points backwards in time, so
// chains are acyclic by construction.
func rolloverDebt(tx *gorm.DB, logger *logrus.Logger, ev *models.EventRecord, debt *models.Debt, p models.DebtPaymentRecordedPayload, paidUsd decimal.Decimal) error {
	remainderUsd := debt.AmountUsd.Sub(paidUsd)
	if remainderUsd.IsNegative() {
		remainderUsd = decimal.Zero
	}
	remainderBs := decimal.Zero
	if p.ExchangeRate.IsPositive() {
		remainderBs = remainderUsd.Mul(p.ExchangeRate)
	} else if debt.AmountUsd.IsPositive() && debt.AmountBs.IsPositive() {
		remainderBs = remainderUsd.Mul(debt.AmountBs.Div(debt.AmountUsd))
	}

	child := models.Debt{
		ID:           *p.RolloverDebtId,
		StoreId:      ev.StoreId,
		CustomerId:   debt.CustomerId,
		SaleId:       debt.SaleId,
		ParentDebtId: &debt.ID,
		AmountUsd:    remainderUsd,
		AmountBs:     remainderBs,
		Status:       models.DebtStatusOpen,
		DueDate:      debt.DueDate,
	}
	created, err := createIfAbsent(tx, &child)
	if err != nil {
		return err
	}
	if created {
		logger.WithFields(logrus.Fields{
			"module":        "debtWorkflow",
			"store_id":      ev.StoreId,
			"debt_id":       debt.ID,
			"child_debt_id": child.ID,
			"remainder_usd": remainderUsd.String(),
			"trigger_event": ev.ID,
			"payment_id":    p.PaymentId,
		}).Info("debt rolled over to child")
	}
	return nil
}
