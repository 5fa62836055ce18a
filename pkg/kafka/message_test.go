package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailedSyncToJSON(t *testing.T) {
	failure := &FailedSync{
		FailedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Kind:     "retryable",
		Error:    "contact store upsert retryable error",
		Attempts: 5,
		Event:    json.RawMessage(`{"type":"identify","userId":"u-1"}`),
	}

	data, err := failure.ToJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "retryable", decoded["kind"])
	assert.Equal(t, float64(5), decoded["attempts"])

	// The original event payload round-trips untouched
	event, ok := decoded["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u-1", event["userId"])
}
