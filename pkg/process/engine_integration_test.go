//go:build integration

package process

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/pkg/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log := logrus.NewEntry(&logrus.Logger{Out: io.Discard, Level: logrus.PanicLevel})
	return New(log, t.TempDir())
}

func TestSpawnAndExists(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Spawn(SpawnInput{Name: "sleeper", Command: "sleep 2"}, nil)
	require.NoError(t, err)
	require.Greater(t, res.PID, 0)

	rec := store.ProcessRecord{PID: res.PID, StartedAt: res.StartedAt}
	assert.True(t, e.Exists(rec))

	outcome, err := e.Stop(rec, true)
	require.NoError(t, err)
	assert.Equal(t, Stopped, outcome)
	assert.False(t, e.Exists(rec))
}

func TestStopGracefulThenEscalates(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Spawn(SpawnInput{Name: "trapper", Command: `sh -c "trap '' TERM; sleep 10"`}, nil)
	require.NoError(t, err)

	rec := store.ProcessRecord{PID: res.PID, StartedAt: res.StartedAt}
	require.True(t, e.Exists(rec))

	outcome, err := e.Stop(rec, false)
	require.NoError(t, err)
	assert.Equal(t, Stopped, outcome)
	assert.False(t, e.Exists(rec))
}

func TestStopOnAlreadyDeadProcessIsNoop(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Spawn(SpawnInput{Name: "quick", Command: "true"}, nil)
	require.NoError(t, err)

	rec := store.ProcessRecord{PID: res.PID, StartedAt: res.StartedAt}
	require.Eventually(t, func() bool { return !e.Exists(rec) }, 2*time.Second, 50*time.Millisecond)

	outcome, err := e.Stop(rec, false)
	require.NoError(t, err)
	assert.Equal(t, AlreadyDead, outcome)
}

func TestExistsDetectsRecycledPID(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Spawn(SpawnInput{Name: "sleeper", Command: "sleep 2"}, nil)
	require.NoError(t, err)

	rec := store.ProcessRecord{PID: res.PID, StartedAt: res.StartedAt.Add(-time.Hour)}
	assert.False(t, e.Exists(rec))

	_, _ = e.Stop(store.ProcessRecord{PID: res.PID, StartedAt: res.StartedAt}, true)
}

func TestStatusReportsMetricsForLiveProcess(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Spawn(SpawnInput{Name: "sleeper", Command: "sleep 2"}, nil)
	require.NoError(t, err)

	rec := store.ProcessRecord{PID: res.PID, StartedAt: res.StartedAt}
	st := e.Status(rec)
	assert.True(t, st.Exists)
	assert.Greater(t, st.Uptime, time.Duration(0))

	_, _ = e.Stop(rec, true)
	assert.False(t, e.Status(rec).Exists)
}
