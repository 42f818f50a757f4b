// Package process implements the Process Engine of spec §4.4: spawning
// detached children, stopping them with signal escalation, and computing
// liveness/CPU/memory/uptime metrics while guarding against the
// recycled-PID hazard.
package process

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/jesseduffield/kill"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"

	"github.com/sentinelhq/sentinel/pkg/errs"
	"github.com/sentinelhq/sentinel/pkg/logsink"
	"github.com/sentinelhq/sentinel/pkg/shell"
	"github.com/sentinelhq/sentinel/pkg/store"
)

// stopGrace is the wait between SIGTERM and SIGKILL escalation (spec §4.4).
const stopGrace = 5 * time.Second

// startTimeTolerance bounds how far an observed process start-time may
// drift from the recorded started_at before we treat the PID as recycled
// (spec §4.4 "Orphan/recycled-PID hazard").
const startTimeTolerance = 1 * time.Second

// Engine spawns, stops, and inspects OS processes on behalf of the
// Registry. It holds no state of its own beyond a logger and the state
// directory used to route logs — every other fact lives in a ProcessRecord.
type Engine struct {
	Log      *logrus.Entry
	StateDir string
}

// New returns a process Engine rooted at stateDir.
func New(log *logrus.Entry, stateDir string) *Engine {
	return &Engine{Log: log, StateDir: stateDir}
}

// SpawnInput captures the spec §4.4 "Spawn" inputs.
type SpawnInput struct {
	Command string
	Name    string
	Cwd     string
	Env     map[string]string
	Restart bool
	Group   string
}

// SpawnResult carries the realized values a caller persists via
// Registry.AddProcess.
type SpawnResult struct {
	PID        int
	StartedAt  time.Time
	Cwd        string
	Env        map[string]string
	StdoutPath string
	StderrPath string
}

// Spawn resolves the effective environment, opens log sinks, and starts a
// detached child. On any failure no record should be created by the caller
// and the sinks are closed here before returning.
func (e *Engine) Spawn(in SpawnInput, groupEnv map[string]string) (SpawnResult, error) {
	if in.Name == "" {
		return SpawnResult{}, errs.InvalidInput("name must not be empty")
	}
	if in.Command == "" {
		return SpawnResult{}, errs.InvalidInput("command must not be empty")
	}

	cwd := in.Cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return SpawnResult{}, errs.SpawnFailed(err)
		}
		cwd = wd
	}

	effectiveEnv := mergeEnv(ambientEnv(), groupEnv, in.Env)

	stdout, stderr, err := logsink.Open(e.StateDir, in.Name)
	if err != nil {
		return SpawnResult{}, err
	}

	cmd, err := shell.DetachedCmd(in.Command, cwd, envSlice(effectiveEnv), stdout, stderr)
	if err != nil {
		stdout.Close()
		stderr.Close()
		return SpawnResult{}, err
	}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return SpawnResult{}, errs.SpawnFailed(err)
	}

	// The child has its own stdio fds now; close our copies so the files
	// aren't held open twice, without affecting the running child.
	stdout.Close()
	stderr.Close()

	// Reap the child asynchronously so it never becomes a zombie once it
	// exits; Sentinel's own liveness checks use gopsutil, not cmd.Wait's
	// bookkeeping, so this goroutine has no other observer.
	go func(c *exec.Cmd) {
		_ = c.Wait()
	}(cmd)

	outPath, errPath := logsink.Paths(e.StateDir, in.Name)

	pid := cmd.Process.Pid
	startedAt := processStartTime(pid)
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	e.Log.WithFields(logrus.Fields{"name": in.Name, "pid": pid}).Info("spawned process")

	return SpawnResult{
		PID:        pid,
		StartedAt:  startedAt,
		Cwd:        cwd,
		Env:        effectiveEnv,
		StdoutPath: outPath,
		StderrPath: errPath,
	}, nil
}

// StopOutcome is the result of a Stop call (spec §4.4 "Stop").
type StopOutcome int

const (
	Stopped StopOutcome = iota
	AlreadyDead
	StopFailedOutcome
)

// Stop signals rec's PID, escalating from SIGTERM to SIGKILL after
// stopGrace unless force is set, in which case SIGKILL is sent immediately.
// Removal from the Registry is the caller's responsibility, not Stop's.
func (e *Engine) Stop(rec store.ProcessRecord, force bool) (StopOutcome, error) {
	if !e.Exists(rec) {
		return AlreadyDead, nil
	}

	if force {
		if err := e.killGroup(rec.PID, syscall.SIGKILL); err != nil {
			return StopFailedOutcome, errs.StopFailed(err)
		}
		e.waitUntilDead(rec, stopGrace)
		if e.pidAlive(rec.PID) {
			return StopFailedOutcome, errs.StopFailed(nil)
		}
		return Stopped, nil
	}

	if err := e.killGroup(rec.PID, syscall.SIGTERM); err != nil {
		return StopFailedOutcome, errs.StopFailed(err)
	}
	if e.waitUntilDead(rec, stopGrace) {
		return Stopped, nil
	}

	if err := e.killGroup(rec.PID, syscall.SIGKILL); err != nil {
		return StopFailedOutcome, errs.StopFailed(err)
	}
	if e.waitUntilDead(rec, stopGrace) {
		return Stopped, nil
	}

	return StopFailedOutcome, errs.StopFailed(nil)
}

// killGroup signals the detached process's whole session/group, falling
// back to the bare PID — the same two-step the teacher's OSCommand.Kill and
// the pack's provisr/pushchain supervisors use for Setsid-detached children.
// SIGKILL goes through the teacher's own jesseduffield/kill helper (told,
// via SysProcAttr.Setpgid, that pid heads its own group); SIGTERM is sent
// directly since that helper only ever escalates to SIGKILL.
func (e *Engine) killGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	if sig == syscall.SIGKILL {
		cmd := &exec.Cmd{
			Process:     &os.Process{Pid: pid},
			SysProcAttr: &syscall.SysProcAttr{Setpgid: true},
		}
		if err := kill.Kill(cmd); err != nil {
			return syscall.Kill(pid, sig)
		}
		return nil
	}
	if err := syscall.Kill(-pid, sig); err != nil {
		return syscall.Kill(pid, sig)
	}
	return nil
}

func (e *Engine) waitUntilDead(rec store.ProcessRecord, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !e.Exists(rec) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return !e.Exists(rec)
}

// Status is the spec §4.4 "Status / metrics" result.
type Status struct {
	Exists      bool
	CPUPercent  float64
	MemoryBytes uint64
	Uptime      time.Duration
}

// Status reports liveness and metrics for rec's PID. A dead PID reports
// Exists=false with all metrics zero.
func (e *Engine) Status(rec store.ProcessRecord) Status {
	if !e.Exists(rec) {
		return Status{}
	}

	p, err := process.NewProcess(int32(rec.PID))
	if err != nil {
		return Status{}
	}

	cpuPct, _ := p.CPUPercent()
	memInfo, _ := p.MemoryInfo()
	var rss uint64
	if memInfo != nil {
		rss = memInfo.RSS
	}

	return Status{
		Exists:      true,
		CPUPercent:  cpuPct,
		MemoryBytes: rss,
		Uptime:      time.Since(rec.StartedAt),
	}
}

// Exists implements the spec §4.4 "Orphan/recycled-PID hazard" check: the
// kernel must still have a non-zombie process at rec.PID AND its observed
// start-time must match rec.StartedAt within startTimeTolerance (a
// different process that happens to reuse the PID will almost certainly
// fail that comparison).
func (e *Engine) Exists(rec store.ProcessRecord) bool {
	if !e.pidAlive(rec.PID) {
		return false
	}
	observed := processStartTime(rec.PID)
	if observed.IsZero() {
		// gopsutil couldn't read create-time (permission, proc-race); fall
		// back to kernel-presence only rather than mis-declaring death.
		return true
	}
	return absDuration(observed.Sub(rec.StartedAt)) <= startTimeTolerance
}

func (e *Engine) pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	status, err := p.Status()
	if err != nil {
		// Process object resolved but status unreadable (common right
		// before a process fully exits); treat as gone.
		return false
	}
	for _, s := range status {
		if s == process.Zombie {
			return false
		}
	}
	running, err := p.IsRunning()
	return err == nil && running
}

func processStartTime(pid int) time.Time {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return time.Time{}
	}
	ms, err := p.CreateTime()
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

var ambientEnvOnce sync.Once
var ambientEnvCache []string

func ambientEnv() []string {
	ambientEnvOnce.Do(func() { ambientEnvCache = os.Environ() })
	return ambientEnvCache
}

// mergeEnv layers ambient -> group overlay -> per-process overlay, later
// layers winning, per spec §4.4 step 1.
func mergeEnv(ambient []string, layers ...map[string]string) map[string]string {
	merged := map[string]string{}
	for _, kv := range ambient {
		if i := indexByte(kv, '='); i >= 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
