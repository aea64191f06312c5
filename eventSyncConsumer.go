package main

import (
	"context"
	"encoding/json"
	"os"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/config"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/utils"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/workflow"
)

// RunEventSyncConsumer pulls terminal events from the sync subscription and
// appends them to the events table. The dispatcher picks them up from there;
// this consumer never folds anything itself. A storage error nacks the
// message so Pub/Sub redelivers; a duplicate acks quietly.
func RunEventSyncConsumer(ctx context.Context) error {
	logger := config.GetLogger()
	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(ctx, client, os.Getenv("PUBSUB_EVENT_TOPIC"))
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(ctx, client, os.Getenv("PUBSUB_EVENT_SUBSCRIPTION"), topic)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	callback := func(ctx context.Context, msg *pubsub.Message) {
		var rec models.EventRecord
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			config.LogError(logger, "eventSyncConsumer.go", "RunEventSyncConsumer", "Unmarshal event record", msg.Data, err)
			// Poisoned message: ack/drop, retrying cannot fix it.
			msg.Ack()
			return
		}
		if rec.CorrelationId == "" {
			rec.CorrelationId = msg.ID
		}

		ctx = utils.SetStoreIdInContext(ctx, rec.StoreId)
		ctx = utils.SetCorrelationIdInContext(ctx, rec.CorrelationId)
		if _, err := workflow.IngestEventRecord(ctx, config.GetDB(), logger, &rec); err != nil {
			logger.WithFields(logrus.Fields{
				"field":      "EventSyncConsumer",
				"event_id":   rec.ID,
				"store_id":   rec.StoreId,
				"message_id": msg.ID,
			}).Error("pubsub ingest failed: " + err.Error())
			msg.Nack()
			return
		}
		msg.Ack()
	}

	go func() {
		if err := sub.Receive(ctx, callback); err != nil {
			config.LogError(logger, "eventSyncConsumer.go", "RunEventSyncConsumer", "Failed to receive messages", nil, err)
		}
	}()

	return nil
}
