package syncerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindRetryable, KindOf(NewRetryablef(503, "down")))
	assert.Equal(t, KindValidation, KindOf(NewValidationf("bad")))
	assert.Equal(t, KindEventNotSupported, KindOf(NewEventNotSupported("track")))
	assert.Equal(t, KindFatal, KindOf(NewFatalf(401, "denied")))
	assert.Equal(t, KindFatal, KindOf(errors.New("untagged")))
}

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("batch failed: %w", NewRetryablef(500, "upstream down"))
	assert.True(t, IsRetryable(err))
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, RetryableStatus(500))
	assert.True(t, RetryableStatus(503))
	assert.True(t, RetryableStatus(429))
	assert.False(t, RetryableStatus(400))
	assert.False(t, RetryableStatus(404))
	assert.False(t, RetryableStatus(200))
}

func TestNewUnmappedFields(t *testing.T) {
	err := NewUnmappedFields(map[string]any{"plan": "gold", "age": 30})

	assert.True(t, IsUnmappedField(err))
	// Names are sorted for a stable message
	assert.Contains(t, err.Error(), "age=30, plan=gold")
	assert.Len(t, err.Fields, 2)
}

func TestErrorMessageIncludesJobID(t *testing.T) {
	err := &Error{Kind: KindValidation, Message: "rejected", JobID: "job-1"}
	assert.Contains(t, err.Error(), "job-1")
}

func TestToHTTPError(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{NewRetryablef(503, "down"), http.StatusServiceUnavailable},
		{NewValidationf("bad"), http.StatusBadRequest},
		{NewUnmappedFields(map[string]any{"plan": "gold"}), http.StatusBadRequest},
		{NewEventNotSupported("track"), http.StatusUnprocessableEntity},
		{NewFatalf(401, "denied"), http.StatusBadGateway},
		{errors.New("untagged"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		httpErr := ToHTTPError(tc.err)
		assert.Equal(t, tc.code, httperror.GetStatusCode(httpErr), "error: %v", tc.err)
	}
}

func TestToHTTPErrorMeta(t *testing.T) {
	err := &Error{Kind: KindValidation, Message: "rejected", JobID: "job-1", StatusCode: 400}
	httpErr := ToHTTPError(err)

	require.NotNil(t, httpErr.Meta)
	assert.Equal(t, "validation", httpErr.Meta["kind"])
	assert.Equal(t, "job-1", httpErr.Meta["job_id"])
	assert.Equal(t, 400, httpErr.Meta["upstream_status"])
}
