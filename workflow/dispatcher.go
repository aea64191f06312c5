package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/config"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProjectionDispatcher drains pending event records into the read model.
// The events table is the queue: a claim stamps locked_at/locked_by inside
// the claim transaction, so concurrent dispatcher replicas never take the
// same row (SKIP LOCKED), and a crashed worker's rows return to the pool
// once their lock goes stale.
type ProjectionDispatcher struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	DispatcherID   string
	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Concurrency    int
	RatePerSecond  int
	RateBurst      int

	Fiscal   FiscalService
	Notifier Notifier

	limiter *RateLimiter
}

func NewProjectionDispatcher(db *gorm.DB, logger *logrus.Logger) *ProjectionDispatcher {
	return &ProjectionDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
		Concurrency:    10,
		RatePerSecond:  100,
		RateBurst:      100,
		Fiscal:         NoopFiscalService{},
		Notifier:       PubSubNotifier{},
	}
}

// Run blocks until ctx is cancelled. Claimed events are fanned out to a
// bounded worker pool; the shared token bucket caps the global fold rate
// across replicas.
func (d *ProjectionDispatcher) Run(ctx context.Context) {
	d.limiter = NewRateLimiter(config.GetRedisDB(), "projection:rate:global", d.RatePerSecond, d.RateBurst)

	jobs := make(chan models.EventRecord)
	for i := 0; i < d.Concurrency; i++ {
		go func() {
			for ev := range jobs {
				d.processOne(ctx, ev)
			}
		}()
	}
	defer close(jobs)

	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	for {
		batch, err := d.claimBatch(ctx)
		if err != nil {
			config.LogError(d.Logger, "dispatcher.go", "Run", "claimBatch", d.DispatcherID, err)
		}
		for _, ev := range batch {
			if err := d.limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case jobs <- ev:
			case <-ctx.Done():
				return
			}
		}

		if len(batch) == d.BatchSize {
			// Backlog: keep draining without waiting for the tick.
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// claimBatch locks a batch of due events for this dispatcher. Due means
// pending or failed-with-retries-left, past its backoff, and not held by a
// live lock. Oldest first by id keeps replays deterministic.
func (d *ProjectionDispatcher) claimBatch(ctx context.Context) ([]models.EventRecord, error) {
	var claimed []models.EventRecord
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)

	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch []models.EventRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("projection_status IN ?", []models.ProjectionStatus{
				models.ProjectionStatusPending,
				models.ProjectionStatusFailed,
			}).
			Where("(next_attempt_at IS NULL OR next_attempt_at <= ?)", now).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Where("attempts < ?", d.MaxAttempts).
			Order("id ASC").
			Limit(d.BatchSize).
			Find(&batch).Error
		if err != nil {
			return err
		}
		for i := range batch {
			lockedAt := now
			err := tx.Model(&models.EventRecord{}).
				Where("id = ?", batch[i].ID).
				Updates(map[string]interface{}{
					"locked_at": &lockedAt,
					"locked_by": d.DispatcherID,
					"attempts":  gorm.Expr("attempts + 1"),
				}).Error
			if err != nil {
				return err
			}
			batch[i].LockedAt = &lockedAt
			batch[i].Attempts++
		}
		claimed = batch
		return nil
	})
	return claimed, err
}

// processOne folds a single claimed event and records the outcome. A
// per-store redis lock serializes folds of the same store across replicas;
// it is best-effort and skipped when redis is absent.
func (d *ProjectionDispatcher) processOne(ctx context.Context, ev models.EventRecord) {
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "projection:store:"+ev.StoreId, d.LockTimeout, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
		})
		if err == nil {
			defer lock.Release(ctx)
		} else if !errors.Is(err, redislock.ErrNotObtained) {
			config.LogError(d.Logger, "dispatcher.go", "processOne", "ObtainLock", ev.ID, err)
		}
	}

	err := ProjectEvent(ctx, d.DB, d.Logger, &ev)
	if err != nil {
		d.markFailed(ctx, &ev, err)
		return
	}
	d.markProcessed(ctx, &ev)

	config.EventsProcessedTotal.WithLabelValues(string(ev.Type)).Inc()
	runSideEffects(ctx, d.Logger, d.Fiscal, d.Notifier, &ev)
}

func (d *ProjectionDispatcher) markProcessed(ctx context.Context, ev *models.EventRecord) {
	now := time.Now().UTC()
	err := d.DB.WithContext(ctx).Model(&models.EventRecord{}).
		Where("id = ?", ev.ID).
		Updates(map[string]interface{}{
			"projection_status": models.ProjectionStatusProcessed,
			"projection_error":  nil,
			"processed_at":      &now,
			"next_attempt_at":   nil,
			"locked_at":         nil,
			"locked_by":         nil,
		}).Error
	if err != nil {
		config.LogError(d.Logger, "dispatcher.go", "markProcessed", "UpdateStatus", ev.ID, err)
	}
}

func (d *ProjectionDispatcher) markFailed(ctx context.Context, ev *models.EventRecord, foldErr error) {
	config.EventsFailedTotal.WithLabelValues(string(ev.Type)).Inc()

	msg := foldErr.Error()
	updates := map[string]interface{}{
		"projection_status": models.ProjectionStatusFailed,
		"projection_error":  utils.NilIfEmpty(msg),
		"locked_at":         nil,
		"locked_by":         nil,
	}

	if ev.Attempts >= d.MaxAttempts {
		// Out of retries. The event stays failed and visible until an operator
		// replays it; it is never dropped.
		updates["next_attempt_at"] = nil
		config.RetriesExhaustedTotal.WithLabelValues(string(ev.Type)).Inc()
		d.Logger.WithFields(logrus.Fields{
			"module":   "dispatcher",
			"event_id": ev.ID,
			"store_id": ev.StoreId,
			"type":     string(ev.Type),
			"attempts": ev.Attempts,
			"error":    msg,
		}).Error("retries exhausted; event kept failed for manual replay")
	} else {
		next := time.Now().UTC().Add(backoffFor(ev.Attempts, d.InitialBackoff, d.MaxBackoff))
		updates["next_attempt_at"] = &next
		d.Logger.WithFields(logrus.Fields{
			"module":       "dispatcher",
			"event_id":     ev.ID,
			"store_id":     ev.StoreId,
			"type":         string(ev.Type),
			"attempts":     ev.Attempts,
			"next_attempt": next,
			"error":        msg,
		}).Warn("event fold failed; scheduled for retry")
	}

	err := d.DB.WithContext(ctx).Model(&models.EventRecord{}).
		Where("id = ?", ev.ID).
		Updates(updates).Error
	if err != nil {
		config.LogError(d.Logger, "dispatcher.go", "markFailed", "UpdateStatus", ev.ID, err)
	}
}

// backoffFor doubles the delay per attempt, capped. Attempt 1 waits the
// initial delay.
func backoffFor(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
