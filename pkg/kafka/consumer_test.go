package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audienceops/traitsync/pkg/events"
	"github.com/audienceops/traitsync/pkg/syncerrors"
)

func kafkaMessage(value string) kafka.Message {
	return kafka.Message{Topic: "identify-events", Value: []byte(value)}
}

type fakePublisher struct {
	keys     []string
	failures []*FailedSync
}

func (f *fakePublisher) PublishFailure(ctx context.Context, key string, failure *FailedSync) error {
	f.keys = append(f.keys, key)
	f.failures = append(f.failures, failure)
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newProcessTestConsumer(publisher *fakePublisher, handler EventHandler) *Consumer {
	cfg := DefaultConsumerConfig()
	cfg.MaxRetryAttempts = 3
	cfg.RetryBackoff = time.Millisecond

	return &Consumer{
		producer: publisher,
		logger:   testLogger(),
		config:   cfg,
		handler:  handler,
	}
}

func identifyMessage(userID string) *ReceivedMessage {
	value := []byte(`{"type":"identify","userId":"` + userID + `"}`)
	ev, _ := events.Parse(value)
	return &ReceivedMessage{Topic: "identify-events", Offset: 7, Key: []byte(userID), Value: value, Event: ev}
}

func TestProcessSuccessIsNotRetried(t *testing.T) {
	publisher := &fakePublisher{}
	calls := 0
	c := newProcessTestConsumer(publisher, func(ctx context.Context, ev *events.Event) error {
		calls++
		return nil
	})

	c.process(context.Background(), identifyMessage("u-1"))

	assert.Equal(t, 1, calls)
	assert.Empty(t, publisher.failures)
}

func TestProcessRetryableErrorExhaustsAttemptsThenDeadLetters(t *testing.T) {
	publisher := &fakePublisher{}
	calls := 0
	c := newProcessTestConsumer(publisher, func(ctx context.Context, ev *events.Event) error {
		calls++
		return syncerrors.NewRetryablef(503, "contact store down")
	})

	c.process(context.Background(), identifyMessage("u-1"))

	assert.Equal(t, 3, calls)
	require.Len(t, publisher.failures, 1)

	failure := publisher.failures[0]
	assert.Equal(t, string(syncerrors.KindRetryable), failure.Kind)
	assert.Equal(t, 3, failure.Attempts)
	assert.Equal(t, []string{"u-1"}, publisher.keys)

	// The raw event payload is preserved for replay
	var replay map[string]any
	require.NoError(t, json.Unmarshal(failure.Event, &replay))
	assert.Equal(t, "u-1", replay["userId"])
}

func TestProcessRetryableErrorRecoversMidway(t *testing.T) {
	publisher := &fakePublisher{}
	calls := 0
	c := newProcessTestConsumer(publisher, func(ctx context.Context, ev *events.Event) error {
		calls++
		if calls < 2 {
			return syncerrors.NewRetryablef(429, "rate limited")
		}
		return nil
	})

	c.process(context.Background(), identifyMessage("u-1"))

	assert.Equal(t, 2, calls)
	assert.Empty(t, publisher.failures)
}

func TestProcessNonRetryableErrorDeadLettersImmediately(t *testing.T) {
	publisher := &fakePublisher{}
	calls := 0
	c := newProcessTestConsumer(publisher, func(ctx context.Context, ev *events.Event) error {
		calls++
		return syncerrors.NewValidationf("audience trait malformed")
	})

	c.process(context.Background(), identifyMessage("u-1"))

	assert.Equal(t, 1, calls)
	require.Len(t, publisher.failures, 1)
	assert.Equal(t, string(syncerrors.KindValidation), publisher.failures[0].Kind)
	assert.Equal(t, 1, publisher.failures[0].Attempts)
}

func TestProcessDeadLetterKeyFallsBackToEmail(t *testing.T) {
	publisher := &fakePublisher{}
	c := newProcessTestConsumer(publisher, func(ctx context.Context, ev *events.Event) error {
		return syncerrors.NewFatalf(401, "denied")
	})

	value := []byte(`{"type":"identify","traits":{"email":"a@b.com"}}`)
	ev, err := events.Parse(value)
	require.NoError(t, err)
	c.process(context.Background(), &ReceivedMessage{Value: value, Event: ev})

	require.Len(t, publisher.keys, 1)
	assert.Equal(t, "a@b.com", publisher.keys[0])
}

func TestProcessWithoutPublisherDoesNotPanic(t *testing.T) {
	c := newProcessTestConsumer(&fakePublisher{}, func(ctx context.Context, ev *events.Event) error {
		return syncerrors.NewValidationf("bad")
	})
	c.producer = nil

	c.process(context.Background(), identifyMessage("u-1"))
}

func TestParseMessage(t *testing.T) {
	c := newProcessTestConsumer(&fakePublisher{}, nil)

	msg, err := c.parseMessage(kafkaMessage(`{"type":"identify","userId":"u-9"}`))
	require.NoError(t, err)
	assert.Equal(t, "u-9", msg.Event.UserID)

	_, err = c.parseMessage(kafkaMessage(`{not json`))
	require.Error(t, err)
}
