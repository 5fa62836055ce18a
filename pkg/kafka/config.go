package kafka

import (
	"time"
)

// ConsumerConfig configures the identify-event consumer.
type ConsumerConfig struct {
	// Brokers is a list of Kafka broker addresses
	Brokers []string

	// Topic is the Kafka topic carrying identify events
	Topic string

	// GroupID is the consumer group ID
	GroupID string

	// MinBytes is the minimum batch size for fetching messages
	MinBytes int

	// MaxBytes is the maximum batch size for fetching messages
	MaxBytes int

	// MaxWait is the maximum time to wait for messages
	MaxWait time.Duration

	// CommitInterval is how often to commit offsets
	CommitInterval time.Duration

	// StartOffset determines where to start reading when there's no committed offset
	StartOffset int64

	// MaxRetryAttempts is how often a retryable batch failure is re-run
	// before the events are dead-lettered
	MaxRetryAttempts int

	// RetryBackoff is the initial wait between retry attempts; it doubles
	// per attempt
	RetryBackoff time.Duration
}

// DefaultConsumerConfig returns a ConsumerConfig with sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "identify-events",
		GroupID:          "traitsync-consumer",
		MinBytes:         1,
		MaxBytes:         10e6, // 10MB
		MaxWait:          3 * time.Second,
		CommitInterval:   time.Second,
		StartOffset:      LastOffset,
		MaxRetryAttempts: 5,
		RetryBackoff:     2 * time.Second,
	}
}

// ProducerConfig configures the error-topic producer.
type ProducerConfig struct {
	// Brokers is a list of Kafka broker addresses
	Brokers []string

	// Topic is the error topic failed batches are dead-lettered to
	Topic string

	// BatchTimeout is the maximum time to wait before sending a batch
	BatchTimeout time.Duration

	// MaxAttempts is the maximum number of write retries
	MaxAttempts int

	// WriteTimeout is the timeout for write operations
	WriteTimeout time.Duration
}

// DefaultProducerConfig returns a ProducerConfig with sensible defaults
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "traitsync-errors",
		BatchTimeout: 100 * time.Millisecond,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
	}
}

// Offset constants
const (
	FirstOffset int64 = -2 // Start from the oldest message
	LastOffset  int64 = -1 // Start from the newest message
)
