package startup

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedDependency struct {
	name      string
	dependsOn []string
	startErrs int
	log       *[]string
}

func (d *recordedDependency) GetName() string     { return d.name }
func (d *recordedDependency) DependsOn() []string { return d.dependsOn }

func (d *recordedDependency) Start(ctx context.Context) error {
	if d.startErrs > 0 {
		d.startErrs--
		return errors.New(d.name + " failed")
	}
	*d.log = append(*d.log, "start:"+d.name)
	return nil
}

func (d *recordedDependency) Stop(ctx context.Context) error {
	*d.log = append(*d.log, "stop:"+d.name)
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestManagerStartsInDependencyOrder(t *testing.T) {
	var log []string
	m := NewManager(testLogger(), 1)
	m.Add(&recordedDependency{name: "server", dependsOn: []string{"kafka"}, log: &log})
	m.Add(&recordedDependency{name: "kafka", dependsOn: []string{"tracing"}, log: &log})
	m.Add(&recordedDependency{name: "tracing", log: &log})

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, []string{"start:tracing", "start:kafka", "start:server"}, log)
}

func TestManagerStopsInReverseOrder(t *testing.T) {
	var log []string
	m := NewManager(testLogger(), 1)
	m.Add(&recordedDependency{name: "a", log: &log})
	m.Add(&recordedDependency{name: "b", log: &log})

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, log)
}

func TestManagerRetriesFailedStartup(t *testing.T) {
	var log []string
	m := NewManager(testLogger(), 3)
	m.Add(&recordedDependency{name: "flaky", startErrs: 1, log: &log})

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, []string{"start:flaky"}, log)
}

func TestManagerGivesUpAfterMaxAttempts(t *testing.T) {
	var log []string
	m := NewManager(testLogger(), 2)
	m.Add(&recordedDependency{name: "broken", startErrs: 10, log: &log})

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestManagerRejectsUnknownDependency(t *testing.T) {
	var log []string
	m := NewManager(testLogger(), 1)
	m.Add(&recordedDependency{name: "server", dependsOn: []string{"missing"}, log: &log})

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
