// Package logsink creates and opens the per-process stdout/stderr append
// sinks used by the Process Engine (spec §4.3). It mirrors the teacher's
// findOrCreateConfigDir pattern (pkg/config/app_config.go), generalized
// from the top-level config directory to the logs/ subdirectory.
package logsink

import (
	"os"
	"path/filepath"

	"github.com/sentinelhq/sentinel/pkg/errs"
)

// Paths returns the deterministic stdout/stderr log paths for a process
// name, without creating or opening anything (spec §3.4 invariant 5).
func Paths(stateDir, name string) (stdout, stderr string) {
	dir := filepath.Join(stateDir, "logs")
	return filepath.Join(dir, name+".stdout.log"), filepath.Join(dir, name+".stderr.log")
}

// Open creates logs/ with private-user permissions if absent and opens
// fresh append-mode sinks for name, ready to be wired as cmd.Stdout/Stderr.
func Open(stateDir, name string) (stdout, stderr *os.File, err error) {
	dir := filepath.Join(stateDir, "logs")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, errs.IOFailure(dir, err)
	}

	outPath, errPath := Paths(stateDir, name)

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, errs.IOFailure(outPath, err)
	}
	errFile, err := os.OpenFile(errPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		out.Close()
		return nil, nil, errs.IOFailure(errPath, err)
	}
	return out, errFile, nil
}

// Clear truncates both of a process's log files in place.
func Clear(stateDir, name string) error {
	outPath, errPath := Paths(stateDir, name)
	for _, p := range []string{outPath, errPath} {
		if err := os.Truncate(p, 0); err != nil && !os.IsNotExist(err) {
			return errs.IOFailure(p, err)
		}
	}
	return nil
}
