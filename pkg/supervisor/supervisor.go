// Package supervisor implements the Restart Supervisor of spec §4.7: a
// periodic sweep that respawns processes recorded with restart=true whose
// PID is no longer live, plus the single daemon that runs that sweep on a
// tick. The one-shot and daemon paths share the same Sweep function (spec
// §9 design note), and the daemon's own single-instance enforcement is
// grounded on the steveyegge-gastown daemon's gofrs/flock PID-lock pattern.
package supervisor

import (
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/sentinelhq/sentinel/pkg/errs"
	"github.com/sentinelhq/sentinel/pkg/process"
	"github.com/sentinelhq/sentinel/pkg/registry"
	"github.com/sentinelhq/sentinel/pkg/tasks"
)

// DefaultTick is the daemon's sweep interval (spec §4.7).
const DefaultTick = 5 * time.Second

// stopGrace is the wait between SIGTERM and SIGKILL when stopping a daemon
// running in another process, mirroring the Process Engine's own Stop
// escalation (spec §4.4) applied here to the daemon's recorded PID rather
// than a supervised child's (spec §4.7).
const stopGrace = 5 * time.Second

// Supervisor sweeps the registry for dead, restart-eligible processes and
// respawns them, and can run that sweep on a tick as a background daemon.
type Supervisor struct {
	Registry *registry.Registry
	Engine   *process.Engine
	Log      *logrus.Entry
	StateDir string
	Tick     time.Duration

	tasks *tasks.TaskManager
	lock  *flock.Flock
}

// New returns a Supervisor. Tick defaults to DefaultTick when zero.
func New(reg *registry.Registry, engine *process.Engine, log *logrus.Entry, stateDir string, tick time.Duration) *Supervisor {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Supervisor{
		Registry: reg,
		Engine:   engine,
		Log:      log,
		StateDir: stateDir,
		Tick:     tick,
		tasks:    tasks.NewTaskManager(),
	}
}

func (s *Supervisor) pidFilePath() string  { return s.StateDir + "/daemon.pid" }
func (s *Supervisor) lockFilePath() string { return s.StateDir + "/daemon.lock" }

// Sweep runs one pass: every process with Restart=true whose recorded PID
// is no longer live (per the Process Engine's recycled-PID-aware Exists
// check) is respawned and its record updated in place. Failures are
// collected, not short-circuited, and a respawn loses against a concurrent
// stop/remove the same way any other registry race does — the failing
// UpdateProcess simply surfaces as one more entry in the MultiError.
func (s *Supervisor) Sweep() error {
	cat := s.Registry.Snapshot()

	multi := &errs.MultiError{}
	for i, rec := range cat.Processes {
		if !rec.Restart || s.Engine.Exists(rec) {
			continue
		}

		var groupEnv map[string]string
		if rec.Group != "" {
			if grp, err := registry.FindGroup(cat, rec.Group); err == nil {
				groupEnv = grp.Env
			}
		}

		res, err := s.Engine.Spawn(process.SpawnInput{
			Command: rec.Command,
			Name:    rec.Name,
			Cwd:     rec.Cwd,
			Env:     rec.Env,
			Restart: rec.Restart,
			Group:   rec.Group,
		}, groupEnv)
		if err != nil {
			multi.Add(i, rec.Name, err)
			continue
		}

		pid := res.PID
		startedAt := res.StartedAt
		if err := s.Registry.UpdateProcess(rec.ID, registry.ProcessPatch{
			PID: &pid, StartedAt: &startedAt, Env: res.Env,
		}); err != nil {
			multi.Add(i, rec.Name, err)
			continue
		}

		s.Log.WithFields(logrus.Fields{"name": rec.Name, "pid": pid}).Info("restart supervisor respawned process")
	}
	return multi.ErrorOrNil()
}

// Start acquires the single-instance lock, writes the PID file, and runs
// Sweep on s.Tick until Stop is called or the process exits. It returns
// errs.AlreadyRunning if another daemon already holds the lock.
func (s *Supervisor) Start() error {
	if err := os.MkdirAll(s.StateDir, 0o700); err != nil {
		return errs.IOFailure(s.StateDir, err)
	}

	s.lock = flock.New(s.lockFilePath())
	locked, err := s.lock.TryLock()
	if err != nil {
		return errs.IOFailure(s.lockFilePath(), err)
	}
	if !locked {
		return errs.AlreadyRunning()
	}

	if err := os.WriteFile(s.pidFilePath(), []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		s.lock.Unlock()
		return errs.IOFailure(s.pidFilePath(), err)
	}

	s.tasks.NewTask(func(stop chan struct{}) {
		ticker := time.NewTicker(s.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.Sweep(); err != nil {
					s.Log.WithError(err).Warn("restart supervisor sweep reported failures")
				}
			}
		}
	})

	s.Log.WithField("tick", s.Tick).Info("restart supervisor daemon started")
	return nil
}

// Stop halts the sweep loop, removes the PID file, and releases the lock.
func (s *Supervisor) Stop() error {
	s.tasks.StopCurrent()
	os.Remove(s.pidFilePath())
	if s.lock != nil {
		return s.lock.Unlock()
	}
	return nil
}

// StopRemote stops a daemon running in another OS process: it reads the
// recorded PID, sends SIGTERM, waits up to stopGrace for exit, escalates to
// SIGKILL if the daemon ignored it, waits once more, and removes the PID
// file only once the process is confirmed gone (spec §4.7's "same
// escalation as §4.4"). Unlike Stop, which tears down this process's own
// task loop and lock, StopRemote has neither to release — it acts purely on
// what Status() can observe from disk, the way a separate CLI invocation of
// `daemon stop` must.
func (s *Supervisor) StopRemote() error {
	running, pid := s.Status()
	if !running {
		os.Remove(s.pidFilePath())
		return nil
	}

	if err := signalPID(pid, syscall.SIGTERM); err != nil {
		return errs.StopFailed(err)
	}
	if waitForExit(pid, stopGrace) {
		os.Remove(s.pidFilePath())
		return nil
	}

	if err := signalPID(pid, syscall.SIGKILL); err != nil {
		return errs.StopFailed(err)
	}
	if waitForExit(pid, stopGrace) {
		os.Remove(s.pidFilePath())
		return nil
	}

	return errs.StopFailed(nil)
}

// signalPID sends sig to pid, treating "no such process" as success since
// that just means the daemon already exited between Status() and here.
func signalPID(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(pid, sig); err != nil && err != syscall.ESRCH {
		return err
	}
	return nil
}

// waitForExit polls pid's liveness with signal 0 until it disappears or
// timeout elapses, the same poll-for-death shape as the Process Engine's
// waitUntilDead.
func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if syscall.Kill(pid, 0) != nil {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return syscall.Kill(pid, 0) != nil
}

// Status reports whether a daemon is currently running, per the PID file
// and lock state rather than this process's own in-memory knowledge — so
// it gives a correct answer even when called from a different invocation
// of the CLI than the one that ran Start.
func (s *Supervisor) Status() (running bool, pid int) {
	data, err := os.ReadFile(s.pidFilePath())
	if err != nil {
		return false, 0
	}
	pid, err = strconv.Atoi(string(data))
	if err != nil {
		return false, 0
	}

	lock := flock.New(s.lockFilePath())
	locked, err := lock.TryLock()
	if err != nil {
		// Couldn't even attempt the lock; assume running rather than
		// falsely reporting the daemon dead.
		return true, pid
	}
	if locked {
		lock.Unlock()
		return false, pid
	}
	return true, pid
}
