package workflow

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/config"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
)

// Side effects run after the fold transaction commits. They are best-effort:
// a failure is logged and swallowed, never folded back into the event's
// projection status.

type FiscalService interface {
	ReportSale(ctx context.Context, ev *models.EventRecord) error
}

type Notifier interface {
	Notify(ctx context.Context, ev *models.EventRecord) error
}

// NoopFiscalService stands in until a fiscal printer bridge is configured.
type NoopFiscalService struct{}

func (NoopFiscalService) ReportSale(ctx context.Context, ev *models.EventRecord) error {
	return nil
}

// PubSubNotifier fans processed events out on the notification topic so
// other terminals of the store can refresh their local caches.
type PubSubNotifier struct{}

func (n PubSubNotifier) Notify(ctx context.Context, ev *models.EventRecord) error {
	body, err := json.Marshal(map[string]interface{}{
		"event_id":   ev.ID,
		"event_type": string(ev.Type),
		"store_id":   ev.StoreId,
	})
	if err != nil {
		return err
	}
	attrs := map[string]string{
		"store_id":   ev.StoreId,
		"event_type": string(ev.Type),
	}
	if ev.DeviceId != nil {
		attrs["origin_device_id"] = *ev.DeviceId
	}
	_, err = config.PublishNotification(ctx, body, attrs)
	return err
}

func runSideEffects(ctx context.Context, logger *logrus.Logger, fiscal FiscalService, notifier Notifier, ev *models.EventRecord) {
	if fiscal != nil && ev.Type == models.EventTypeSaleCreated {
		if err := fiscal.ReportSale(ctx, ev); err != nil {
			config.LogError(logger, "sideEffects.go", "runSideEffects", "ReportSale", ev.ID, err)
		}
	}
	if notifier == nil {
		return
	}
	switch ev.Type {
	case models.EventTypeSaleCreated, models.EventTypeDebtPaymentRecorded:
		if err := notifier.Notify(ctx, ev); err != nil {
			config.LogError(logger, "sideEffects.go", "runSideEffects", "Notify", ev.ID, err)
		}
	}
}
