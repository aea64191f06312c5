package config

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

// GetPubSubClient returns a Pub/Sub client, initializing with retries if needed.
// It uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func GetPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	if pubsubClient != nil {
		c := pubsubClient
		pubsubClientMu.Unlock()
		return c, nil
	}
	pubsubClientMu.Unlock()

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var attempt int
	for {
		attempt++

		var (
			c   *pubsub.Client
			err error
		)
		if credJSON != "" {
			c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
		} else {
			// Application Default Credentials (service account or GOOGLE_APPLICATION_CREDENTIALS).
			c, err = pubsub.NewClient(ctx, projectID)
		}
		if err == nil {
			pubsubClientMu.Lock()
			if pubsubClient == nil {
				pubsubClient = c
			} else {
				// Another goroutine won the race; close ours.
				_ = c.Close()
			}
			c2 := pubsubClient
			pubsubClientMu.Unlock()
			return c2, nil
		}

		if attempt >= 5 {
			return nil, err
		}
		log.Printf("failed to create pubsub client (attempt=%d): %v", attempt, err)
		time.Sleep(time.Second * time.Duration(attempt))
	}
}

func CreateTopicIfNotExists(ctx context.Context, client *pubsub.Client, topicName string) (*pubsub.Topic, error) {
	if topicName == "" {
		return nil, errors.New("pubsub topic name is empty")
	}
	topic := client.Topic(topicName)
	ok, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return topic, nil
	}
	return client.CreateTopic(ctx, topicName)
}

func CreateSubscriptionIfNotExists(ctx context.Context, client *pubsub.Client, subName string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	if subName == "" {
		return nil, errors.New("pubsub subscription name is empty")
	}
	sub := client.Subscription(subName)
	ok, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return sub, nil
	}
	return client.CreateSubscription(ctx, subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 60 * time.Second,
	})
}

// PublishNotification publishes a payload on the outbound notification topic.
// Callers treat failures as log-and-swallow; a lost notification never fails
// the event that produced it.
func PublishNotification(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	client, err := GetPubSubClient(ctx)
	if err != nil {
		return "", err
	}
	topicName := os.Getenv("PUBSUB_NOTIFICATION_TOPIC")
	if topicName == "" {
		topicName = "pos-notifications"
	}
	topic, err := CreateTopicIfNotExists(ctx, client, topicName)
	if err != nil {
		return "", err
	}
	res := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return res.Get(ctx)
}
