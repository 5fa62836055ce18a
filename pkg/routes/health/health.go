// Package health provides health check endpoints for the traitsync service.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// Cached wraps a check so its result is reused for ttl. Keeps frequent
// readiness probes from hammering rate-limited upstreams.
func Cached(ttl time.Duration, check CheckFunc) CheckFunc {
	var (
		mu        sync.Mutex
		lastRun   time.Time
		lastErr   error
		hasResult bool
	)

	return func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()

		if hasResult && time.Since(lastRun) < ttl {
			return lastErr
		}

		lastErr = check(ctx)
		lastRun = time.Now()
		hasResult = true
		return lastErr
	}
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Response represents a health check response
type Response struct {
	Status     Status                 `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime,omitempty"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
	ReportedAt time.Time              `json:"reported_at"`
}

// Checker provides health check functionality
type Checker struct {
	version   string
	startTime time.Time
	checks    map[string]CheckFunc
	mu        sync.RWMutex
	ready     bool
}

// NewChecker creates a new health checker
func NewChecker(version string) *Checker {
	return &Checker{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
	}
}

// AddCheck registers a named dependency probe run on readiness requests.
func (c *Checker) AddCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// SetReady marks the service as ready to serve traffic.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// Register registers the health routes
func (c *Checker) Register(e *echo.Echo) {
	e.GET("/health/live", c.Live)
	e.GET("/health/ready", c.Ready)
}

// Live handles GET /health/live
func (c *Checker) Live(ec echo.Context) error {
	return ec.JSON(http.StatusOK, Response{
		Status:     StatusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).String(),
		ReportedAt: time.Now().UTC(),
	})
}

// Ready handles GET /health/ready
func (c *Checker) Ready(ec echo.Context) error {
	c.mu.RLock()
	ready := c.ready
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	resp := Response{
		Status:     StatusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).String(),
		Checks:     make(map[string]CheckResult, len(checks)),
		ReportedAt: time.Now().UTC(),
	}

	if !ready {
		resp.Status = StatusUnhealthy
		return ec.JSON(http.StatusServiceUnavailable, resp)
	}

	ctx, cancel := context.WithTimeout(ec.Request().Context(), 5*time.Second)
	defer cancel()

	code := http.StatusOK
	for name, check := range checks {
		start := time.Now()
		if err := check(ctx); err != nil {
			resp.Status = StatusUnhealthy
			resp.Checks[name] = CheckResult{
				Status:  StatusUnhealthy,
				Message: err.Error(),
				Latency: time.Since(start).String(),
			}
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = CheckResult{
			Status:  StatusHealthy,
			Latency: time.Since(start).String(),
		}
	}

	return ec.JSON(code, resp)
}
