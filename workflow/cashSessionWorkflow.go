package workflow

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/config"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func ProcessCashSessionOpenedWorkflow(tx *gorm.DB, logger *logrus.Logger, ev *models.EventRecord) error {
	p, err := models.DecodeCashSessionOpenedPayload(ev.Payload)
	if err != nil {
		config.LogError(logger, "cashSessionWorkflow.go", "ProcessCashSessionOpenedWorkflow", "DecodePayload", ev.ID, err)
		return err
	}

	openedAt := p.OpenedAt
	if openedAt.IsZero() {
		openedAt = ev.CreatedAt
	}
	session := models.CashSession{
		ID:          p.SessionId,
		StoreId:     ev.StoreId,
		DeviceId:    ev.DeviceId,
		RegisterTag: p.RegisterTag,
		Status:      models.CashSessionStatusOpen,
		OpenedBy:    p.OpenedBy,
		OpeningUsd:  p.OpeningUsd,
		OpeningBs:   p.OpeningBs,
		OpenedAt:    openedAt,
	}
	_, err = createIfAbsent(tx, &session)
	return err
}

// ProcessCashSessionClosedWorkflow closes the bracket and captures the
// expected/counted snapshot. Expected totals are recomputed from the sales
// linked to the session, so a replayed close converges to the same snapshot.
// A session already closed stays closed (immutable after close).
func ProcessCashSessionClosedWorkflow(tx *gorm.DB, logger *logrus.Logger, ev *models.EventRecord) error {
	p, err := models.DecodeCashSessionClosedPayload(ev.Payload)
	if err != nil {
		config.LogError(logger, "cashSessionWorkflow.go", "ProcessCashSessionClosedWorkflow", "DecodePayload", ev.ID, err)
		return err
	}

	var session models.CashSession
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND id = ?", ev.StoreId, p.SessionId).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New("cash session close references unknown session " + p.SessionId)
	}
	if err != nil {
		return err
	}
	if session.Status == models.CashSessionStatusClosed {
		// Already applied.
		return nil
	}

	expectedUsd, expectedBs, err := sessionExpectedTotals(tx, ev.StoreId, p.SessionId, session.OpeningUsd, session.OpeningBs)
	if err != nil {
		return err
	}

	closedAt := p.ClosedAt
	if closedAt.IsZero() {
		closedAt = ev.CreatedAt
	}
	return tx.Model(&models.CashSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"status":       models.CashSessionStatusClosed,
			"closed_by":    p.ClosedBy,
			"expected_usd": expectedUsd,
			"expected_bs":  expectedBs,
			"counted_usd":  p.CountedUsd,
			"counted_bs":   p.CountedBs,
			"closed_at":    &closedAt,
		}).Error
}

func sessionExpectedTotals(tx *gorm.DB, storeId, sessionId string, openingUsd, openingBs decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	var sales []models.Sale
	if err := tx.Where("store_id = ? AND cash_session_id = ?", storeId, sessionId).
		Find(&sales).Error; err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	expectedUsd := openingUsd
	expectedBs := openingBs
	for _, s := range sales {
		// Credit sales collect nothing at the register.
		if s.PaymentMethod.IsCredit() {
			continue
		}
		expectedUsd = expectedUsd.Add(s.TotalUsd)
		expectedBs = expectedBs.Add(s.TotalBs)
	}
	return expectedUsd, expectedBs, nil
}
