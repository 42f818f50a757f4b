package supervisor

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/pkg/errs"
	"github.com/sentinelhq/sentinel/pkg/process"
	"github.com/sentinelhq/sentinel/pkg/registry"
	"github.com/sentinelhq/sentinel/pkg/store"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	dir := t.TempDir()
	reg, err := registry.Load(store.New(dir))
	require.NoError(t, err)
	log := logrus.NewEntry(&logrus.Logger{Out: io.Discard, Level: logrus.PanicLevel})
	engine := process.New(log, dir)
	return New(reg, engine, log, dir, 0)
}

func TestNewDefaultsTickWhenZero(t *testing.T) {
	s := newTestSupervisor(t)
	assert.Equal(t, DefaultTick, s.Tick)
}

func TestSweepSkipsNonRestartingProcesses(t *testing.T) {
	s := newTestSupervisor(t)

	_, err := s.Registry.AddProcess(store.ProcessRecord{Name: "once", Command: "sleep 1", Restart: false, PID: 0})
	require.NoError(t, err)

	require.NoError(t, s.Sweep())

	cat := s.Registry.Snapshot()
	rec, err := registry.FindProcess(cat, "once")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.PID)
}

func TestStartTwiceReturnsAlreadyRunning(t *testing.T) {
	s := newTestSupervisor(t)
	require.NoError(t, s.Start())
	defer s.Stop()

	other := newTestSupervisor(t)
	other.StateDir = s.StateDir

	err := other.Start()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindAlreadyRunning))
}

func TestStartStopReportsStatus(t *testing.T) {
	s := newTestSupervisor(t)

	running, _ := s.Status()
	assert.False(t, running)

	require.NoError(t, s.Start())
	running, pid := s.Status()
	assert.True(t, running)
	assert.Greater(t, pid, 0)

	require.NoError(t, s.Stop())
	running, _ = s.Status()
	assert.False(t, running)
}

// TestStopRemoteIsNoopWhenNotRunning exercises the cheap path directly: no
// lock is held, so Status() already reports not-running and StopRemote must
// not try to signal the stale PID it finds. Escalation against a genuinely
// live external process is covered by the integration-tagged tests, which
// need a real process to signal.
func TestStopRemoteIsNoopWhenNotRunning(t *testing.T) {
	s := newTestSupervisor(t)
	require.NoError(t, os.MkdirAll(s.StateDir, 0o700))
	require.NoError(t, os.WriteFile(s.pidFilePath(), []byte("999999"), 0o600))

	require.NoError(t, s.StopRemote())

	_, statErr := os.Stat(s.pidFilePath())
	assert.True(t, os.IsNotExist(statErr))
}
