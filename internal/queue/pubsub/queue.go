// Package pubsub implements the work queue on Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/zap"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
)

// Config identifies the topic and subscription the queue binds to.
type Config struct {
	ProjectID      string
	TopicID        string
	SubscriptionID string
}

// Queue publishes work items to a topic and receives them from a
// subscription. Pub/Sub delivers at-least-once; the scrape pipeline is
// idempotent, so redelivery is safe.
type Queue struct {
	client     *pubsub.Client
	publisher  *pubsub.Publisher
	subscriber *pubsub.Subscriber
	logger     *zap.Logger
}

// New creates a Pub/Sub client and verifies the topic exists, failing
// fast on misconfiguration. Authentication uses Application Default
// Credentials.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topicName := fmt.Sprintf("projects/%s/topics/%s", cfg.ProjectID, cfg.TopicID)
	topic, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topicName})
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close pubsub client after topic lookup failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get pubsub topic %q: %w", cfg.TopicID, err)
	}
	if topic.State != pubsubpb.Topic_ACTIVE {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close pubsub client after topic state check", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub topic %q is not active", cfg.TopicID)
	}

	return &Queue{
		client:     client,
		publisher:  client.Publisher(topicName),
		subscriber: client.Subscriber(cfg.SubscriptionID),
		logger:     logger,
	}, nil
}

// Publish marshals the work item and waits for the server ack, so the
// caller knows the item is durably enqueued.
func (q *Queue) Publish(ctx context.Context, item batch.WorkItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal work item: %w", err)
	}
	result := q.publisher.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish work item: %w", err)
	}
	return nil
}

// Receive streams deliveries to handle until the context finishes. Each
// Pub/Sub message carries one work item; handler errors nack the message
// so the subscription redelivers it.
func (q *Queue) Receive(ctx context.Context, handle func(ctx context.Context, items []batch.WorkItem) error) error {
	err := q.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var item batch.WorkItem
		if err := json.Unmarshal(msg.Data, &item); err != nil {
			// Malformed payloads will never parse; ack so they don't
			// redeliver forever.
			q.logger.Error("drop malformed work item", zap.Error(err))
			msg.Ack()
			return
		}
		if err := handle(ctx, []batch.WorkItem{item}); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	return nil
}

// Close stops the publisher and closes the underlying client.
func (q *Queue) Close() error {
	q.publisher.Stop()
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
