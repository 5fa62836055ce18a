package kafka

import (
	"encoding/json"
	"time"

	"github.com/audienceops/traitsync/pkg/events"
)

// ReceivedMessage wraps a Kafka message with its parsed identify event.
type ReceivedMessage struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte

	// Event is the parsed event envelope
	Event *events.Event
}

// FailedSync is the message published to the error topic when a batch
// cannot be synced. The raw event payload is preserved so an operator can
// replay it after fixing the destination schema or data.
type FailedSync struct {
	FailedAt time.Time       `json:"failed_at"`
	Kind     string          `json:"kind"`
	Error    string          `json:"error"`
	Attempts int             `json:"attempts"`
	Event    json.RawMessage `json:"event"`
}

// ToJSON serializes the FailedSync to JSON bytes
func (f *FailedSync) ToJSON() ([]byte, error) {
	return json.Marshal(f)
}
