// Package config resolves Sentinel's state directory and daemon tuning
// knobs. It is adapted from the teacher's pkg/config/app_config.go
// (findOrCreateConfigDir / NewAppConfig), trimmed of the Docker/YAML user
// config it carried: Sentinel has no per-user config file, only a state
// directory and a handful of env-overridable defaults.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds the resolved settings a Sentinel process needs: where its
// catalog and logs live, how the daemon ticks, and build metadata for the
// logger (spec §4.7, §5).
type Config struct {
	Debug       bool
	Version     string
	Commit      string
	BuildDate   string
	StateDir    string
	Tick        time.Duration
	StopTimeout time.Duration
}

const (
	defaultTick        = 5 * time.Second
	defaultStopTimeout = 5 * time.Second
)

// New resolves a Config from the environment. version/commit/date are the
// build-time stamped values a CLI main() passes in (spec §5 "version metadata").
func New(version, commit, date string) (*Config, error) {
	stateDir, err := findOrCreateStateDir()
	if err != nil {
		return nil, err
	}

	return &Config{
		Debug:       os.Getenv("DEBUG") == "TRUE",
		Version:     version,
		Commit:      commit,
		BuildDate:   date,
		StateDir:    stateDir,
		Tick:        defaultTick,
		StopTimeout: defaultStopTimeout,
	}, nil
}

// findOrCreateStateDir resolves Sentinel's state directory, preferring
// SENTINEL_HOME the way the teacher's configDirForVendor prefers CONFIG_DIR,
// and falling back to ~/.sentinel.
func findOrCreateStateDir() (string, error) {
	dir := os.Getenv("SENTINEL_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".sentinel")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
