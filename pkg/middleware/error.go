package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/audienceops/traitsync/pkg/appctx"
	"github.com/audienceops/traitsync/pkg/syncerrors"
	"github.com/audienceops/traitsync/pkg/tracing"
)

type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// Error converts sync and HTTP errors into JSON error responses. Sync
// errors carry their kind and upstream context in the meta block;
// retryable ones also get a Retry-After hint so a well-behaved webhook
// caller backs off before re-posting the batch.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		logger.WithContext(ctx).WithError(err).Error("api is returning an error")
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal Server Error"
		meta := map[string]any{}

		var syncErr *syncerrors.Error
		if errors.As(err, &syncErr) {
			httpErr := syncerrors.ToHTTPError(syncErr)
			code = httperror.GetStatusCode(httpErr)
			message = syncErr.Message
			meta = httpErr.Meta
			if syncErr.Kind == syncerrors.KindRetryable {
				c.Response().Header().Set("Retry-After", "30")
			}
		} else if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
		} else if httperror.IsHTTPError(err) {
			httpErr := httperror.ToHTTPError(err)
			code = httperror.GetStatusCode(err)
			message = httpErr.Error()
			meta = httpErr.Meta
		}

		requestID := appctx.GetRequestID(ctx)
		traceID := tracing.GetTraceID(ctx)

		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: requestID,
			TraceID:   traceID,
			Meta:      meta,
		})
	}
}
