// Package shell splits a command line the way a POSIX shell would and
// builds a detached *exec.Cmd from it (spec §4.4 step 3). It is adapted
// from the teacher's pkg/commands/os.go, trimmed to the parts Sentinel
// needs: splitting and quoting a single command string, and attaching a
// child to its own session so it survives the controlling tool's exit.
package shell

import (
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/mgutz/str"
	"github.com/sentinelhq/sentinel/pkg/errs"
)

// Split tokenizes a command line using POSIX shell-family quoting rules,
// exactly as the teacher's OSCommand.ExecutableFromString does for
// docker-compose invocations (str.ToArgv).
func Split(commandLine string) ([]string, error) {
	argv := str.ToArgv(strings.TrimSpace(commandLine))
	if len(argv) == 0 || argv[0] == "" {
		return nil, errs.InvalidInput("empty command")
	}
	return argv, nil
}

// DetachedCmd builds an *exec.Cmd for commandLine that, once started, is
// detached from the controlling tool: it gets its own session/process
// group (so it does not receive signals sent to us), its stdin is the null
// device, and stdout/stderr go to the given sinks (spec §4.4 step 3).
func DetachedCmd(commandLine, cwd string, env []string, stdout, stderr *os.File) (*exec.Cmd, error) {
	argv, err := Split(commandLine)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cwd
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd, nil
}

// Quote wraps a message in POSIX shell quotation marks, escaping characters
// that would otherwise be interpreted by the shell. Nothing else in this
// module calls it; the spawn path never goes through an actual shell.
func Quote(message string) string {
	message = strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		`$`, `\$`,
		"`", "\\`",
	).Replace(message)
	return `"` + message + `"`
}
