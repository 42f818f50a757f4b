package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/pkg/registry"
	"github.com/sentinelhq/sentinel/pkg/store"
)

func TestCleanRemovesOnlyDeadNonRestartingProcesses(t *testing.T) {
	a := newTestApp(t)

	_, err := a.Registry.AddProcess(store.ProcessRecord{Name: "dead-once", Command: "true", PID: 0, Restart: false})
	require.NoError(t, err)
	_, err = a.Registry.AddProcess(store.ProcessRecord{Name: "dead-restart", Command: "sleep 1", PID: 0, Restart: true})
	require.NoError(t, err)

	removed, err := a.Clean()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	cat := a.Registry.Snapshot()
	_, err = registry.FindProcess(cat, "dead-once")
	assert.Error(t, err)

	rec, err := registry.FindProcess(cat, "dead-restart")
	require.NoError(t, err)
	assert.Equal(t, "dead-restart", rec.Name)
}
