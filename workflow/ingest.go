package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"gorm.io/gorm"
)

// IngestEventRecord appends one terminal event. The event id is the
// idempotency key: a redelivered event is acknowledged as already stored,
// not inserted twice. Returns whether this call created the row.
func IngestEventRecord(ctx context.Context, db *gorm.DB, logger *logrus.Logger, rec *models.EventRecord) (bool, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return false, errors.New("event id is required")
	}
	if strings.TrimSpace(string(rec.Type)) == "" {
		return false, errors.New("event type is required")
	}
	if strings.TrimSpace(rec.StoreId) == "" {
		return false, errors.New("event store id is required")
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.ProjectionStatus = models.ProjectionStatusPending
	rec.Attempts = 0
	rec.NextAttemptAt = nil

	err := db.WithContext(ctx).Create(rec).Error
	if err != nil {
		if isDuplicateKeyErr(err) {
			logger.WithFields(logrus.Fields{
				"module":   "ingest",
				"event_id": rec.ID,
				"store_id": rec.StoreId,
			}).Debug("event already ingested")
			return false, nil
		}
		return false, err
	}
	return true, nil
}
