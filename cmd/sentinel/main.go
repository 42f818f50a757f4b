// Command sentinel is the presentation layer over the core packages: it
// parses arguments with the teacher's own CLI framework, renders tables and
// colored status, and translates core errors into the exit codes of spec
// §6.3. No core invariant or algorithm lives here.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	throttle "github.com/boz/go-throttle"
	"github.com/fatih/color"
	"github.com/integrii/flaggy"

	"github.com/sentinelhq/sentinel/pkg/app"
	"github.com/sentinelhq/sentinel/pkg/config"
	"github.com/sentinelhq/sentinel/pkg/envfile"
	"github.com/sentinelhq/sentinel/pkg/errs"
	"github.com/sentinelhq/sentinel/pkg/group"
	"github.com/sentinelhq/sentinel/pkg/process"
	"github.com/sentinelhq/sentinel/pkg/registry"
	"github.com/sentinelhq/sentinel/pkg/store"
)

const defaultVersion = "unversioned"

var (
	commit  string
	version = defaultVersion
	date    string
)

func main() {
	updateBuildInfo()

	flaggy.SetName("sentinel")
	flaggy.SetDescription("A lightweight single-host process supervisor")
	flaggy.SetVersion(version)

	runCmd, runArgs := newRunCommand()
	listCmd := newListCommand()
	statusCmd, statusArgs := newStatusCommand()
	stopCmd, stopArgs := newStopCommand()
	restartCmd, restartArgs := newRestartCommand()
	logsCmd, logsArgs := newLogsCommand()
	cleanCmd := newCleanCommand()
	stopallCmd, stopallArgs := newStopallCommand()
	startallCmd := newStartallCommand()
	restartallCmd := newRestartallCommand()
	daemonCmd, daemonStart, daemonStop, daemonStatus, daemonArgs := newDaemonCommand()
	groupCmd, groupSubs, groupArgs := newGroupCommand()
	portCmd, portSubs, portArgs := newPortCommand()

	flaggy.AttachSubcommand(runCmd, 1)
	flaggy.AttachSubcommand(listCmd, 1)
	flaggy.AttachSubcommand(statusCmd, 1)
	flaggy.AttachSubcommand(stopCmd, 1)
	flaggy.AttachSubcommand(restartCmd, 1)
	flaggy.AttachSubcommand(logsCmd, 1)
	flaggy.AttachSubcommand(cleanCmd, 1)
	flaggy.AttachSubcommand(stopallCmd, 1)
	flaggy.AttachSubcommand(startallCmd, 1)
	flaggy.AttachSubcommand(restartallCmd, 1)
	flaggy.AttachSubcommand(daemonCmd, 1)
	flaggy.AttachSubcommand(groupCmd, 1)
	flaggy.AttachSubcommand(portCmd, 1)

	flaggy.Parse()

	cfg, err := config.New(version, commit, date)
	if err != nil {
		fatal(err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		fatal(err)
	}

	switch {
	case runCmd.Used:
		exitWith(cmdRun(a, runArgs))
	case listCmd.Used:
		exitWith(cmdList(a))
	case statusCmd.Used:
		exitWith(cmdStatus(a, *statusArgs))
	case stopCmd.Used:
		exitWith(cmdStop(a, *stopArgs))
	case restartCmd.Used:
		exitWith(cmdRestart(a, *restartArgs))
	case logsCmd.Used:
		exitWith(cmdLogs(a, logsArgs))
	case cleanCmd.Used:
		exitWith(cmdClean(a))
	case stopallCmd.Used:
		exitWith(a.StopAll(*stopallArgs))
	case startallCmd.Used:
		exitWith(a.StartAll())
	case restartallCmd.Used:
		exitWith(a.RestartAll())
	case daemonCmd.Used:
		exitWith(cmdDaemon(a, daemonStart.Used, daemonStop.Used, daemonStatus.Used, daemonArgs))
	case groupCmd.Used:
		exitWith(cmdGroup(a, groupSubs, groupArgs))
	case portCmd.Used:
		exitWith(cmdPort(a, portSubs, portArgs))
	default:
		flaggy.ShowHelp("")
		os.Exit(2)
	}
}

func updateBuildInfo() {
	if version != defaultVersion {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
			if len(commit) >= 7 {
				version = commit[:7]
			}
		case "vcs.time":
			date = setting.Value
		}
	}
}

// --- exit-code handling (spec §6.3) ---

func exitWith(err error) {
	if err == nil {
		os.Exit(0)
	}
	if multi, ok := err.(*errs.MultiError); ok {
		fmt.Fprintln(os.Stderr, multi.Error())
		os.Exit(1)
	}
	switch {
	case errs.Is(err, errs.KindNotFound), errs.Is(err, errs.KindConflict), errs.Is(err, errs.KindInvalidInput):
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(2)
}

// --- run ---

type runArgs struct {
	command string
	name    string
	cwd     string
	group   string
	restart bool
	envFile string
	envKVs  []string
}

func newRunCommand() (*flaggy.Subcommand, *runArgs) {
	cmd := flaggy.NewSubcommand("run")
	cmd.Description = "Spawn a detached command and track it"
	a := &runArgs{}
	cmd.AddPositionalValue(&a.command, "command", 1, true, "the command line to run")
	cmd.String(&a.name, "n", "name", "unique name for the process (defaults to the command)")
	cmd.String(&a.cwd, "", "cwd", "working directory (defaults to the current directory)")
	cmd.String(&a.group, "g", "group", "group to attach this process to")
	cmd.Bool(&a.restart, "r", "restart", "respawn automatically if the process exits")
	cmd.String(&a.envFile, "", "env-file", "path to a KEY=VALUE env file")
	cmd.StringSlice(&a.envKVs, "e", "env", "KEY=VALUE, may be repeated")
	return cmd, a
}

func cmdRun(a *app.App, ra *runArgs) error {
	name := ra.name
	if name == "" {
		name = ra.command
	}

	layers := []map[string]string{}
	home, _ := os.UserHomeDir()
	if home != "" {
		m, err := envfile.Parse(filepath.Join(home, ".sentinel", ".env"))
		if err == nil {
			layers = append(layers, m)
		}
	}
	if m, err := envfile.Parse(".env"); err == nil {
		layers = append(layers, m)
	}
	if ra.envFile != "" {
		m, err := envfile.Parse(ra.envFile)
		if err != nil {
			return err
		}
		layers = append(layers, m)
	}
	kv := map[string]string{}
	for _, pair := range ra.envKVs {
		i := strings.IndexByte(pair, '=')
		if i < 0 {
			continue
		}
		kv[pair[:i]] = pair[i+1:]
	}
	layers = append(layers, kv)
	env := envfile.Merge(layers...)

	var groupEnv map[string]string
	if ra.group != "" {
		cat := a.Registry.Snapshot()
		grp, err := registry.FindGroup(cat, ra.group)
		if err != nil {
			return err
		}
		groupEnv = grp.Env
	}

	res, err := a.Engine.Spawn(process.SpawnInput{
		Command: ra.command,
		Name:    name,
		Cwd:     ra.cwd,
		Env:     env,
		Restart: ra.restart,
		Group:   ra.group,
	}, groupEnv)
	if err != nil {
		return err
	}

	_, err = a.Registry.AddProcess(store.ProcessRecord{
		Name:       name,
		Command:    ra.command,
		PID:        res.PID,
		StartedAt:  res.StartedAt,
		Cwd:        res.Cwd,
		Env:        res.Env,
		Restart:    ra.restart,
		Group:      ra.group,
		StdoutPath: res.StdoutPath,
		StderrPath: res.StderrPath,
	})
	if err != nil {
		return err
	}

	fmt.Printf("started %s (pid %d)\n", name, res.PID)
	return nil
}

// --- list / status (sweep before reporting, per spec §4.7) ---

func newListCommand() *flaggy.Subcommand {
	cmd := flaggy.NewSubcommand("list")
	cmd.Description = "List every tracked process"
	return cmd
}

func cmdList(a *app.App) error {
	a.Supervisor.Sweep()

	cat := a.Registry.Snapshot()
	for _, rec := range cat.Processes {
		st := a.Engine.Status(rec)
		fmt.Printf("%-4d %-20s %-8s %s\n", rec.ID, rec.Name, aliveLabel(st.Exists), rec.Command)
	}
	return nil
}

func newStatusCommand() (*flaggy.Subcommand, *string) {
	cmd := flaggy.NewSubcommand("status")
	cmd.Description = "Show liveness and metrics for one process"
	selector := new(string)
	cmd.AddPositionalValue(selector, "selector", 1, true, "process id or name")
	return cmd, selector
}

func cmdStatus(a *app.App, selector string) error {
	cat := a.Registry.Snapshot()
	rec, err := registry.FindProcess(cat, selector)
	if err != nil {
		return err
	}

	// Target-only sweep: only this record is restarted if dead, instead of
	// the full-catalog sweep `list` performs (spec §9 open question).
	if rec.Restart && !a.Engine.Exists(rec) {
		var groupEnv map[string]string
		if grp, gerr := registry.FindGroup(cat, rec.Group); gerr == nil {
			groupEnv = grp.Env
		}
		res, serr := a.Engine.Spawn(process.SpawnInput{
			Command: rec.Command, Name: rec.Name, Cwd: rec.Cwd,
			Env: rec.Env, Restart: rec.Restart, Group: rec.Group,
		}, groupEnv)
		if serr == nil {
			pid, startedAt := res.PID, res.StartedAt
			if a.Registry.UpdateProcess(rec.ID, registry.ProcessPatch{PID: &pid, StartedAt: &startedAt, Env: res.Env}) == nil {
				rec.PID, rec.StartedAt, rec.Env = pid, startedAt, res.Env
			}
		}
	}

	st := a.Engine.Status(rec)
	fmt.Printf("name:    %s\n", rec.Name)
	fmt.Printf("id:      %d\n", rec.ID)
	fmt.Printf("pid:     %d\n", rec.PID)
	fmt.Printf("alive:   %s\n", aliveLabel(st.Exists))
	if st.Exists {
		fmt.Printf("cpu:     %.1f%%\n", st.CPUPercent)
		fmt.Printf("memory:  %d bytes\n", st.MemoryBytes)
		fmt.Printf("uptime:  %s\n", st.Uptime.Round(time.Second))
	}
	return nil
}

func aliveLabel(exists bool) string {
	if exists {
		return color.GreenString("alive")
	}
	return color.RedString("dead")
}

// --- stop / restart ---

type stopArgs struct {
	selector string
	force    bool
}

func newStopCommand() (*flaggy.Subcommand, *stopArgs) {
	cmd := flaggy.NewSubcommand("stop")
	cmd.Description = "Stop one process"
	a := &stopArgs{}
	cmd.AddPositionalValue(&a.selector, "selector", 1, true, "process id or name")
	cmd.Bool(&a.force, "f", "force", "send SIGKILL immediately")
	return cmd, a
}

func cmdStop(a *app.App, sa stopArgs) error {
	cat := a.Registry.Snapshot()
	rec, err := registry.FindProcess(cat, sa.selector)
	if err != nil {
		return err
	}
	outcome, err := a.Engine.Stop(rec, sa.force)
	if err != nil {
		return err
	}
	switch outcome {
	case process.Stopped:
		fmt.Printf("stopped %s\n", rec.Name)
	case process.AlreadyDead:
		fmt.Printf("%s was already dead\n", rec.Name)
	}
	return nil
}

func newRestartCommand() (*flaggy.Subcommand, *string) {
	cmd := flaggy.NewSubcommand("restart")
	cmd.Description = "Stop and respawn one process"
	selector := new(string)
	cmd.AddPositionalValue(selector, "selector", 1, true, "process id or name")
	return cmd, selector
}

func cmdRestart(a *app.App, selector string) error {
	cat := a.Registry.Snapshot()
	rec, err := registry.FindProcess(cat, selector)
	if err != nil {
		return err
	}
	if _, err := a.Engine.Stop(rec, false); err != nil {
		return err
	}
	var groupEnv map[string]string
	if rec.Group != "" {
		if grp, err := registry.FindGroup(cat, rec.Group); err == nil {
			groupEnv = grp.Env
		}
	}
	res, err := a.Engine.Spawn(process.SpawnInput{
		Command: rec.Command, Name: rec.Name, Cwd: rec.Cwd,
		Env: rec.Env, Restart: rec.Restart, Group: rec.Group,
	}, groupEnv)
	if err != nil {
		return err
	}
	pid, startedAt := res.PID, res.StartedAt
	if err := a.Registry.UpdateProcess(rec.ID, registry.ProcessPatch{
		PID: &pid, StartedAt: &startedAt, Env: res.Env,
	}); err != nil {
		return err
	}
	fmt.Printf("restarted %s (pid %d)\n", rec.Name, res.PID)
	return nil
}

// --- logs ---

type logsCmdArgs struct {
	selector string
	follow   bool
	stderr   bool
}

func newLogsCommand() (*flaggy.Subcommand, *logsCmdArgs) {
	cmd := flaggy.NewSubcommand("logs")
	cmd.Description = "Print or follow a process's log sink"
	a := &logsCmdArgs{}
	cmd.AddPositionalValue(&a.selector, "selector", 1, true, "process id or name")
	cmd.Bool(&a.follow, "f", "follow", "keep printing new output until interrupted")
	cmd.Bool(&a.stderr, "e", "stderr", "show stderr instead of stdout")
	return cmd, a
}

func cmdLogs(a *app.App, la *logsCmdArgs) error {
	cat := a.Registry.Snapshot()
	rec, err := registry.FindProcess(cat, la.selector)
	if err != nil {
		return err
	}
	path := rec.StdoutPath
	if la.stderr {
		path = rec.StderrPath
	}

	f, ferr := os.Open(path)
	if ferr != nil {
		return errs.IOFailure(path, ferr)
	}
	defer f.Close()

	if _, err := io.Copy(os.Stdout, bufio.NewReader(f)); err != nil {
		return errs.IOFailure(path, err)
	}
	if !la.follow {
		return nil
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	printNew := throttle.ThrottleFunc(200*time.Millisecond, true, func() {
		io.Copy(os.Stdout, bufio.NewReader(f))
	})
	defer printNew.Stop()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-interrupt:
			os.Exit(130)
		case <-ticker.C:
			printNew.Trigger()
		}
	}
}

// --- clean / stopall / startall / restartall ---

func newCleanCommand() *flaggy.Subcommand {
	cmd := flaggy.NewSubcommand("clean")
	cmd.Description = "Remove dead, non-restartable records"
	return cmd
}

func cmdClean(a *app.App) error {
	n, err := a.Clean()
	if err != nil {
		return err
	}
	fmt.Printf("removed %d record(s)\n", n)
	return nil
}

func newStopallCommand() (*flaggy.Subcommand, *bool) {
	cmd := flaggy.NewSubcommand("stopall")
	cmd.Description = "Stop every tracked process"
	force := new(bool)
	cmd.Bool(force, "f", "force", "send SIGKILL immediately")
	return cmd, force
}

func newStartallCommand() *flaggy.Subcommand {
	cmd := flaggy.NewSubcommand("startall")
	cmd.Description = "Spawn every tracked process"
	return cmd
}

func newRestartallCommand() *flaggy.Subcommand {
	cmd := flaggy.NewSubcommand("restartall")
	cmd.Description = "Stop and respawn every tracked process"
	return cmd
}

// --- daemon ---

type daemonArgs struct {
	tick int
}

func newDaemonCommand() (*flaggy.Subcommand, *flaggy.Subcommand, *flaggy.Subcommand, *flaggy.Subcommand, *daemonArgs) {
	cmd := flaggy.NewSubcommand("daemon")
	cmd.Description = "Control the restart-supervisor daemon"

	a := &daemonArgs{}
	start := flaggy.NewSubcommand("start")
	start.Description = "Start the daemon"
	start.Int(&a.tick, "t", "tick", "sweep interval in seconds")
	cmd.AttachSubcommand(start, 1)

	stop := flaggy.NewSubcommand("stop")
	stop.Description = "Stop the daemon"
	cmd.AttachSubcommand(stop, 1)

	status := flaggy.NewSubcommand("status")
	status.Description = "Report whether the daemon is running"
	cmd.AttachSubcommand(status, 1)

	return cmd, start, stop, status, a
}

// daemonChildEnv marks a re-exec'd process as the detached daemon child
// rather than the CLI invocation that spawned it, so main() runs the
// foreground sweep loop instead of forking again (spec §4.7 "fork-detach a
// child process").
const daemonChildEnv = "SENTINEL_DAEMON_CHILD"

func cmdDaemon(a *app.App, start, stop, status bool, da *daemonArgs) error {
	switch {
	case start:
		if os.Getenv(daemonChildEnv) == "1" {
			return runDaemonForeground(a, da)
		}
		return spawnDaemonChild(da)
	case stop:
		running, _ := a.Supervisor.Status()
		if !running {
			fmt.Println("daemon is not running")
			return nil
		}
		if err := a.Supervisor.StopRemote(); err != nil {
			return err
		}
		fmt.Println("daemon stopped")
		return nil
	case status:
		running, pid := a.Supervisor.Status()
		if running {
			fmt.Printf("daemon running (pid %d)\n", pid)
		} else {
			fmt.Println("daemon not running")
		}
		return nil
	}
	return errs.InvalidInput("daemon requires start, stop, or status")
}

// runDaemonForeground is what the detached child actually runs: start the
// sweep loop, block until signaled, then tear it down. This is the body
// spawnDaemonChild's re-exec eventually lands in.
func runDaemonForeground(a *app.App, da *daemonArgs) error {
	if da.tick > 0 {
		a.Supervisor.Tick = time.Duration(da.tick) * time.Second
	}
	if err := a.Supervisor.Start(); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return a.Supervisor.Stop()
}

// spawnDaemonChild re-execs this same binary as a detached session leader
// (SysProcAttr.Setsid, stdio on /dev/null) carrying daemonChildEnv, then
// returns immediately — the CLI invocation never blocks on the daemon it
// just started (spec §4.7).
func spawnDaemonChild(da *daemonArgs) error {
	exe, err := os.Executable()
	if err != nil {
		return errs.SpawnFailed(err)
	}

	args := []string{"daemon", "start"}
	if da.tick > 0 {
		args = append(args, "-t", strconv.Itoa(da.tick))
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return errs.IOFailure(os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), daemonChildEnv+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return errs.SpawnFailed(err)
	}

	fmt.Printf("daemon started (pid %d)\n", cmd.Process.Pid)
	return nil
}

// --- group ---

type groupSubcommands struct {
	create, delete, add, remove, list, start, stop, restart *flaggy.Subcommand
}

type groupCmdArgs struct {
	name         string
	stopOnDelete bool
	forceOnStop  bool
	envKVs       []string
	idStrAdd     *string
	idStrRemove  *string
}

func newGroupCommand() (*flaggy.Subcommand, *groupSubcommands, *groupCmdArgs) {
	cmd := flaggy.NewSubcommand("group")
	cmd.Description = "Manage named groups of processes"
	ga := &groupCmdArgs{}
	subs := &groupSubcommands{}

	subs.create = flaggy.NewSubcommand("create")
	subs.create.AddPositionalValue(&ga.name, "name", 1, true, "group name")
	subs.create.StringSlice(&ga.envKVs, "e", "env", "KEY=VALUE, may be repeated")
	cmd.AttachSubcommand(subs.create, 1)

	subs.delete = flaggy.NewSubcommand("delete")
	subs.delete.AddPositionalValue(&ga.name, "name", 1, true, "group name")
	subs.delete.Bool(&ga.stopOnDelete, "", "stop", "stop members before deleting the group")
	cmd.AttachSubcommand(subs.delete, 1)

	subs.add = flaggy.NewSubcommand("add")
	subs.add.AddPositionalValue(&ga.name, "name", 1, true, "group name")
	idStr := new(string)
	subs.add.AddPositionalValue(idStr, "id", 2, true, "process id")
	cmd.AttachSubcommand(subs.add, 1)

	subs.remove = flaggy.NewSubcommand("remove")
	removeIDStr := new(string)
	subs.remove.AddPositionalValue(removeIDStr, "id", 1, true, "process id")
	cmd.AttachSubcommand(subs.remove, 1)

	subs.list = flaggy.NewSubcommand("list")
	cmd.AttachSubcommand(subs.list, 1)

	subs.start = flaggy.NewSubcommand("start")
	subs.start.AddPositionalValue(&ga.name, "name", 1, true, "group name")
	cmd.AttachSubcommand(subs.start, 1)

	subs.stop = flaggy.NewSubcommand("stop")
	subs.stop.AddPositionalValue(&ga.name, "name", 1, true, "group name")
	subs.stop.Bool(&ga.forceOnStop, "f", "force", "send SIGKILL immediately")
	cmd.AttachSubcommand(subs.stop, 1)

	subs.restart = flaggy.NewSubcommand("restart")
	subs.restart.AddPositionalValue(&ga.name, "name", 1, true, "group name")
	cmd.AttachSubcommand(subs.restart, 1)

	ga.idStrAdd = idStr
	ga.idStrRemove = removeIDStr
	return cmd, subs, ga
}

func cmdGroup(a *app.App, subs *groupSubcommands, ga *groupCmdArgs) error {
	mgr := group.New(a.Registry, a.Engine, a.Log)
	switch {
	case subs.create.Used:
		env := map[string]string{}
		for _, pair := range ga.envKVs {
			if i := strings.IndexByte(pair, '='); i >= 0 {
				env[pair[:i]] = pair[i+1:]
			}
		}
		return mgr.Create(ga.name, env)
	case subs.delete.Used:
		return mgr.Delete(ga.name, ga.stopOnDelete)
	case subs.add.Used:
		id, err := strconv.Atoi(*ga.idStrAdd)
		if err != nil {
			return errs.InvalidInput("id must be numeric")
		}
		return mgr.Add(ga.name, id)
	case subs.remove.Used:
		id, err := strconv.Atoi(*ga.idStrRemove)
		if err != nil {
			return errs.InvalidInput("id must be numeric")
		}
		return mgr.Remove(id)
	case subs.list.Used:
		for _, g := range mgr.List() {
			fmt.Printf("%-20s members=%d\n", g.Name, len(g.Members))
		}
		return nil
	case subs.start.Used:
		return mgr.StartAll(ga.name)
	case subs.stop.Used:
		return mgr.StopAll(ga.name, ga.forceOnStop)
	case subs.restart.Used:
		return mgr.RestartAll(ga.name)
	}
	return errs.InvalidInput("group requires a subcommand")
}

// --- port ---

type portSubcommands struct {
	allocate, free, list *flaggy.Subcommand
}

type portCmdArgs struct {
	port     int
	name     string
	freeStr  *string
}

func newPortCommand() (*flaggy.Subcommand, *portSubcommands, *portCmdArgs) {
	cmd := flaggy.NewSubcommand("port")
	cmd.Description = "Manage reserved TCP ports"
	pa := &portCmdArgs{}
	subs := &portSubcommands{}

	subs.allocate = flaggy.NewSubcommand("allocate")
	subs.allocate.Int(&pa.port, "p", "port", "port to reserve (0 picks a free one)")
	subs.allocate.String(&pa.name, "n", "name", "label for this reservation")
	cmd.AttachSubcommand(subs.allocate, 1)

	subs.free = flaggy.NewSubcommand("free")
	freeStr := new(string)
	subs.free.AddPositionalValue(freeStr, "port", 1, true, "port to release")
	cmd.AttachSubcommand(subs.free, 1)

	subs.list = flaggy.NewSubcommand("list")
	cmd.AttachSubcommand(subs.list, 1)

	pa.freeStr = freeStr
	return cmd, subs, pa
}

func cmdPort(a *app.App, subs *portSubcommands, pa *portCmdArgs) error {
	alloc := a.Ports
	switch {
	case subs.allocate.Used:
		got, err := alloc.Allocate(pa.port, pa.name)
		if err != nil {
			return err
		}
		fmt.Printf("allocated port %d\n", got)
		return nil
	case subs.free.Used:
		p, err := strconv.Atoi(*pa.freeStr)
		if err != nil {
			return errs.InvalidInput("port must be numeric")
		}
		return alloc.Free(p)
	case subs.list.Used:
		for _, p := range alloc.List() {
			fmt.Printf("%-6d %s\n", p.Port, p.Name)
		}
		return nil
	}
	return errs.InvalidInput("port requires a subcommand")
}
