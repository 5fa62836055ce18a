// Package syncerrors defines the error taxonomy shared by the sync
// pipeline. Every failure is tagged with a Kind so the host layer can
// decide whether to re-run a batch without inspecting error strings.
package syncerrors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind classifies a sync failure.
type Kind string

const (
	// KindRetryable marks transient upstream failures (HTTP >= 500 or 429).
	// The host should re-run the whole batch.
	KindRetryable Kind = "retryable"

	// KindValidation marks requests the destination rejected as malformed
	// (HTTP 400). Requires an operator or data fix, never retried.
	KindValidation Kind = "validation"

	// KindUnmappedField marks traits that were configured to sync but have
	// no matching custom field in the destination schema. Requires a schema
	// change in the destination, never retried.
	KindUnmappedField Kind = "unmapped_field"

	// KindEventNotSupported marks event types other than identify.
	KindEventNotSupported Kind = "event_not_supported"

	// KindFatal marks every other non-retryable failure.
	KindFatal Kind = "fatal"
)

// Error is a tagged sync error. StatusCode carries the upstream HTTP
// status when the failure came from an API call, JobID the destination
// job identifier when one was returned, and Fields the offending traits
// for unmapped-field failures.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	JobID      string
	Fields     map[string]any
}

func (e *Error) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("%s: %s (job_id: %s)", e.Kind, e.Message, e.JobID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewRetryablef creates a retryable error with a formatted message.
func NewRetryablef(status int, format string, args ...any) *Error {
	return &Error{Kind: KindRetryable, StatusCode: status, Message: fmt.Sprintf(format, args...)}
}

// NewValidationf creates a non-retryable validation error.
func NewValidationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewUnmappedFields creates an error naming every configured trait that has
// no destination field, along with the values that failed to sync.
func NewUnmappedFields(fields map[string]any) *Error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, fields[name]))
	}

	return &Error{
		Kind:    KindUnmappedField,
		Message: "custom fields not found in destination: " + strings.Join(parts, ", "),
		Fields:  fields,
	}
}

// NewEventNotSupported creates an error for an unsupported event type.
func NewEventNotSupported(eventType string) *Error {
	return &Error{Kind: KindEventNotSupported, Message: fmt.Sprintf("%s event is not supported", eventType)}
}

// NewFatalf creates a generic non-retryable error.
func NewFatalf(status int, format string, args ...any) *Error {
	return &Error{Kind: KindFatal, StatusCode: status, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or KindFatal when err carries no tag.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindFatal
}

// IsRetryable reports whether the host should re-run the batch.
func IsRetryable(err error) bool {
	return KindOf(err) == KindRetryable
}

// IsUnmappedField reports whether err is an unmapped-field failure.
func IsUnmappedField(err error) bool {
	return KindOf(err) == KindUnmappedField
}

// IsEventNotSupported reports whether err rejects an event type.
func IsEventNotSupported(err error) bool {
	return KindOf(err) == KindEventNotSupported
}

// RetryableStatus reports whether an upstream HTTP status is worth a
// re-invocation: any server error, or 429 rate limiting.
func RetryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// ToHTTPError projects a sync error onto the HTTP surface of the webhook.
func ToHTTPError(err error) *httperror.HTTPError {
	var se *Error
	if !errors.As(err, &se) {
		return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	code := http.StatusBadGateway
	switch se.Kind {
	case KindRetryable:
		code = http.StatusServiceUnavailable
	case KindValidation, KindUnmappedField:
		code = http.StatusBadRequest
	case KindEventNotSupported:
		code = http.StatusUnprocessableEntity
	}

	httpErr := httperror.NewHTTPError(code, se.Message).AddMetaValue("kind", string(se.Kind))
	if se.JobID != "" {
		httpErr = httpErr.AddMetaValue("job_id", se.JobID)
	}
	if se.StatusCode != 0 {
		httpErr = httpErr.AddMetaValue("upstream_status", se.StatusCode)
	}
	return httpErr
}
