package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/audienceops/traitsync/pkg/events"
	"github.com/audienceops/traitsync/pkg/metrics"
	"github.com/audienceops/traitsync/pkg/syncerrors"
)

// EventHandler runs the sync pipeline for one identify event. The
// consumer acts as the retry host: retryable failures re-invoke the
// handler before the offset is committed.
type EventHandler func(ctx context.Context, ev *events.Event) error

// failurePublisher dead-letters failed syncs. Satisfied by *Producer.
type failurePublisher interface {
	PublishFailure(ctx context.Context, key string, failure *FailedSync) error
}

// Consumer consumes identify events from Kafka.
type Consumer struct {
	reader   *kafka.Reader
	producer failurePublisher
	logger   ectologger.Logger
	config   ConsumerConfig
	handler  EventHandler
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	running  bool
	mu       sync.Mutex
}

// NewConsumer creates a new Kafka consumer. producer may be nil, in which
// case failed events are only logged instead of dead-lettered.
func NewConsumer(config ConsumerConfig, producer *Producer, logger ectologger.Logger) (*Consumer, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if config.GroupID == "" {
		return nil, fmt.Errorf("group ID is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.GroupID,
		MinBytes:       config.MinBytes,
		MaxBytes:       config.MaxBytes,
		MaxWait:        config.MaxWait,
		CommitInterval: config.CommitInterval,
		StartOffset:    config.StartOffset,
	})

	c := &Consumer{
		reader: reader,
		logger: logger,
		config: config,
	}
	if producer != nil {
		c.producer = producer
	}
	return c, nil
}

// Start begins consuming messages in the background
func (c *Consumer) Start(ctx context.Context, handler EventHandler) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer is already running")
	}
	c.running = true
	c.handler = handler
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Infof("Kafka consumer started for topic %s (group: %s)", c.config.Topic, c.config.GroupID)
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}

	c.logger.Info("Kafka consumer stopped")
	return nil
}

// consumeLoop continuously fetches and processes messages
func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // Context cancelled, exit gracefully
			}
			c.logger.WithError(err).Error("Failed to fetch message")
			continue
		}

		received, err := c.parseMessage(msg)
		if err != nil {
			c.logger.WithError(err).Errorf("Failed to parse message at offset %d", msg.Offset)
			metrics.EventsConsumedTotal.WithLabelValues("parse_error").Inc()
			c.deadLetter(ctx, msg, 0, err)
			// Commit to avoid getting stuck on bad messages
			if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
				c.logger.WithError(commitErr).Error("Failed to commit bad message")
			}
			continue
		}

		c.process(ctx, received)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.WithError(err).Errorf("Failed to commit message at offset %d", msg.Offset)
		}
	}
}

// process invokes the handler, re-running retryable failures with
// exponential backoff before giving up and dead-lettering. Non-retryable
// failures are dead-lettered immediately: they need an operator fix, not
// a replay.
func (c *Consumer) process(ctx context.Context, msg *ReceivedMessage) {
	backoff := c.config.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	maxAttempts := c.config.MaxRetryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = c.handler(ctx, msg.Event)
		if err == nil {
			metrics.EventsConsumedTotal.WithLabelValues("synced").Inc()
			return
		}

		if !syncerrors.IsRetryable(err) {
			c.logger.WithContext(ctx).WithError(err).Errorf("Event at offset %d failed and will not be retried", msg.Offset)
			metrics.EventsConsumedTotal.WithLabelValues(string(syncerrors.KindOf(err))).Inc()
			c.deadLetterEvent(ctx, msg, attempt, err)
			return
		}

		if attempt < maxAttempts {
			c.logger.WithContext(ctx).WithError(err).Warnf("Event at offset %d failed, retrying in %s (attempt %d/%d)",
				msg.Offset, backoff, attempt, maxAttempts)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	c.logger.WithContext(ctx).WithError(err).Errorf("Event at offset %d exhausted %d retry attempts", msg.Offset, maxAttempts)
	metrics.EventsConsumedTotal.WithLabelValues("retries_exhausted").Inc()
	c.deadLetterEvent(ctx, msg, maxAttempts, err)
}

func (c *Consumer) deadLetterEvent(ctx context.Context, msg *ReceivedMessage, attempts int, cause error) {
	if c.producer == nil {
		return
	}

	key := msg.Event.UserID
	if key == "" {
		key = msg.Event.Email()
	}

	failure := &FailedSync{
		FailedAt: time.Now().UTC(),
		Kind:     string(syncerrors.KindOf(cause)),
		Error:    cause.Error(),
		Attempts: attempts,
		Event:    msg.Value,
	}

	if err := c.producer.PublishFailure(ctx, key, failure); err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Failed to publish event to error topic")
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, attempts int, cause error) {
	if c.producer == nil {
		return
	}

	failure := &FailedSync{
		FailedAt: time.Now().UTC(),
		Kind:     string(syncerrors.KindFatal),
		Error:    cause.Error(),
		Attempts: attempts,
		Event:    msg.Value,
	}

	if err := c.producer.PublishFailure(ctx, string(msg.Key), failure); err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Failed to publish unparseable message to error topic")
	}
}

// parseMessage parses a raw Kafka message into a ReceivedMessage
func (c *Consumer) parseMessage(msg kafka.Message) (*ReceivedMessage, error) {
	ev, err := events.Parse(msg.Value)
	if err != nil {
		return nil, err
	}

	return &ReceivedMessage{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Event:     ev,
	}, nil
}

// Stats returns consumer statistics
func (c *Consumer) Stats() kafka.ReaderStats {
	return c.reader.Stats()
}

// Lag returns the current consumer lag
func (c *Consumer) Lag() int64 {
	return c.reader.Stats().Lag
}
