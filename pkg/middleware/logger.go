package middleware

import (
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/audienceops/traitsync/pkg/appctx"
	"github.com/audienceops/traitsync/pkg/tracing"
)

// Logger logs every inbound request and stamps a request id into the
// request context.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.New().String()
			}
			res.Header().Set(echo.HeaderXRequestID, id)

			ctx := appctx.SetRequestID(req.Context(), id)
			c.SetRequest(req.WithContext(ctx))

			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}
			stop := time.Now()

			logger.WithContext(ctx).WithFields(map[string]interface{}{
				"request_id":    id,
				"trace_id":      tracing.GetTraceID(ctx),
				"span_id":       tracing.GetSpanID(ctx),
				"method":        req.Method,
				"uri":           req.RequestURI,
				"status":        res.Status,
				"route":         c.Path(),
				"remote_ip":     c.RealIP(),
				"host":          req.Host,
				"user_agent":    req.UserAgent(),
				"response_time": stop.Sub(start),
				"response_size": strconv.FormatInt(res.Size, 10),
			}).Info("Request")

			return nil
		}
	}
}
