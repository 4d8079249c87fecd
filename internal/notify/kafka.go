package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/intercity-tours/booking/pkg/logger"
	"github.com/intercity-tours/booking/pkg/retry"
)

const (
	// TopicTicketIssued carries one event per issued ticket.
	TopicTicketIssued = "ticket.issued"
	// TopicPurchaseChanged carries purchase lifecycle transitions.
	TopicPurchaseChanged = "purchase.changed"
)

// KafkaNotifierConfig holds configuration for KafkaNotifier.
type KafkaNotifierConfig struct {
	Brokers  []string
	ClientID string
}

// KafkaNotifier publishes booking events to Kafka.
type KafkaNotifier struct {
	client  *kgo.Client
	retrier *retry.Retrier
	dlq     *retry.DLQConfig
}

// NewKafkaNotifier creates a producer and verifies broker connectivity.
func NewKafkaNotifier(ctx context.Context, cfg *KafkaNotifierConfig) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "booking-notifier"
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerBatchMaxBytes(1 << 20),
		kgo.ProduceRequestTimeout(10 * time.Second),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Kafka: %w", err)
	}

	retrier := retry.New(&retry.Config{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	})

	dlq := retry.DefaultDLQConfig()
	dlq.Source = clientID

	return &KafkaNotifier{client: client, retrier: retrier, dlq: dlq}, nil
}

// TicketIssued publishes a ticket.issued event keyed by purchase so
// that all tickets of a purchase land on one partition, in order.
func (n *KafkaNotifier) TicketIssued(ctx context.Context, event TicketIssuedEvent) error {
	return n.publish(ctx, TopicTicketIssued, event.PurchaseID, event)
}

// PurchaseChanged publishes a purchase.changed event.
func (n *KafkaNotifier) PurchaseChanged(ctx context.Context, event PurchaseEvent) error {
	return n.publish(ctx, TopicPurchaseChanged, event.PurchaseID, event)
}

// Close flushes pending records and closes the client.
func (n *KafkaNotifier) Close() {
	n.client.Close()
}

func (n *KafkaNotifier) publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}
	result := n.retrier.Do(ctx, func(ctx context.Context) error {
		err := n.client.ProduceSync(ctx, record).FirstErr()
		if errors.Is(err, kgo.ErrClientClosed) {
			return retry.Permanent(err)
		}
		return err
	})
	if result.Err != nil {
		n.park(ctx, topic, key, value, result)
		err := result.Err
		if result.LastError != nil {
			err = result.LastError
		}
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// park moves an undeliverable event onto the dead-letter topic so it
// can be replayed once the broker recovers. Best effort: if the DLQ
// produce fails too, the event is only preserved in the log.
func (n *KafkaNotifier) park(ctx context.Context, topic, key string, value []byte, result *retry.Result) {
	msg := n.dlq.NewDLQMessage(uuid.New().String(), topic, key, value, result)
	encoded, err := json.Marshal(msg)
	if err != nil {
		logger.Get().Error("failed to encode dead-letter message",
			zap.String("topic", topic), zap.Error(err))
		return
	}
	record := &kgo.Record{
		Topic: n.dlq.Topic(topic),
		Key:   []byte(key),
		Value: encoded,
	}
	if err := n.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		logger.Get().Error("failed to park event on dead-letter topic",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Int("attempts", result.Attempts),
			zap.Error(err))
		return
	}
	logger.Get().Warn("event parked on dead-letter topic",
		zap.String("topic", topic),
		zap.String("dlq_topic", n.dlq.Topic(topic)),
		zap.String("key", key),
		zap.Int("attempts", result.Attempts))
}
