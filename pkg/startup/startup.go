// Package startup starts and stops the service's long-lived dependencies
// in dependency order.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// Dependency is a long-lived component with a lifecycle, such as the kafka
// consumer or the tracer provider.
type Dependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type status int

const (
	statusPending status = iota
	statusStarted
	statusStopped
	statusFailed
)

// Manager starts registered dependencies in dependency order, retrying the
// whole set with fibonacci backoff until maxAttempts is exhausted.
type Manager struct {
	dependencies map[string]Dependency
	order        []string
	statuses     map[string]status
	logger       ectologger.Logger
	maxAttempts  int
}

func NewManager(logger ectologger.Logger, maxAttempts int) *Manager {
	return &Manager{
		logger:       logger,
		dependencies: make(map[string]Dependency),
		statuses:     make(map[string]status),
		maxAttempts:  maxAttempts,
	}
}

func (m *Manager) Add(dependency Dependency) {
	name := dependency.GetName()
	if _, ok := m.dependencies[name]; !ok {
		m.order = append(m.order, name)
	}
	m.dependencies[name] = dependency
}

func (m *Manager) Start(ctx context.Context) error {
	var lastErr error

	a, b := 1, 1
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		m.logger.WithField("attempt", attempt).Infof("Beginning startup attempt %d", attempt)

		lastErr = nil
		for _, name := range m.order {
			if err := m.startDependency(ctx, m.dependencies[name]); err != nil {
				m.logger.WithError(err).Errorf("Startup dependency '%s' attempt %d failed", name, attempt)
				lastErr = err
				break
			}
		}
		if lastErr == nil {
			return nil
		}

		if attempt >= m.maxAttempts {
			break
		}

		wait := time.Duration(a) * time.Second
		m.logger.Infof("Retrying startup in %s (attempt %d/%d)", wait, attempt, m.maxAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		a, b = b, a+b
	}

	return fmt.Errorf("startup failed after %d attempts: %w", m.maxAttempts, lastErr)
}

func (m *Manager) startDependency(ctx context.Context, dependency Dependency) error {
	name := dependency.GetName()
	if m.statuses[name] == statusStarted {
		return nil
	}

	for _, parent := range dependency.DependsOn() {
		dep, ok := m.dependencies[parent]
		if !ok {
			return fmt.Errorf("dependency '%s' depends on unknown dependency '%s'", name, parent)
		}
		if err := m.startDependency(ctx, dep); err != nil {
			return err
		}
	}

	m.logger.WithField("dependency", name).Infof("Starting dependency '%s'", name)
	m.statuses[name] = statusPending
	if err := dependency.Start(ctx); err != nil {
		m.statuses[name] = statusFailed
		return err
	}
	m.statuses[name] = statusStarted
	return nil
}

// Stop stops started dependencies in reverse registration order. It keeps
// going when one fails and returns the first error.
func (m *Manager) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		if m.statuses[name] != statusStarted {
			continue
		}
		m.logger.WithField("dependency", name).Infof("Stopping dependency '%s'", name)
		if err := m.dependencies[name].Stop(ctx); err != nil {
			m.logger.WithError(err).Errorf("Failed to stop dependency '%s'", name)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		m.statuses[name] = statusStopped
	}
	return firstErr
}
