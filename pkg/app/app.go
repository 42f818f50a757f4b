// Package app wires Sentinel's components together, adapted from the
// teacher's pkg/app/app.go NewApp/Close bootstrap pattern: construct the
// Store, Registry, Process Engine, Group Manager, Port Allocator, and
// Restart Supervisor in dependency order and expose them as one aggregate.
package app

import (
	"github.com/sirupsen/logrus"

	"github.com/sentinelhq/sentinel/pkg/config"
	"github.com/sentinelhq/sentinel/pkg/errs"
	"github.com/sentinelhq/sentinel/pkg/group"
	"github.com/sentinelhq/sentinel/pkg/log"
	"github.com/sentinelhq/sentinel/pkg/port"
	"github.com/sentinelhq/sentinel/pkg/process"
	"github.com/sentinelhq/sentinel/pkg/registry"
	"github.com/sentinelhq/sentinel/pkg/store"
	"github.com/sentinelhq/sentinel/pkg/supervisor"
)

// App aggregates every core component over a single loaded catalog. A
// command-line invocation builds one, does its work, and discards it —
// there is no long-lived App except inside the daemon process.
type App struct {
	Config     *config.Config
	Log        *logrus.Entry
	Store      *store.Store
	Registry   *registry.Registry
	Engine     *process.Engine
	Groups     *group.Manager
	Ports      *port.Allocator
	Supervisor *supervisor.Supervisor
}

// NewApp bootstraps an App: opens the Store, loads the Registry from it,
// and constructs every component over that Registry.
func NewApp(cfg *config.Config) (*App, error) {
	logger := log.NewLogger(cfg)

	st := store.New(cfg.StateDir)
	reg, err := registry.Load(st)
	if err != nil {
		return nil, err
	}

	engine := process.New(logger, cfg.StateDir)
	groups := group.New(reg, engine, logger)
	ports := port.New(reg)
	sup := supervisor.New(reg, engine, logger, cfg.StateDir, cfg.Tick)

	return &App{
		Config:     cfg,
		Log:        logger,
		Store:      st,
		Registry:   reg,
		Engine:     engine,
		Groups:     groups,
		Ports:      ports,
		Supervisor: sup,
	}, nil
}

// KnownError maps a handful of low-level failures to messages a CLI user
// can act on, the way the teacher's App.KnownError translates Docker
// socket errors instead of surfacing a raw stack trace.
func (a *App) KnownError(err error) (string, bool) {
	if errs.Is(err, errs.KindAlreadyRunning) {
		return "a sentinel daemon is already running for this state directory", true
	}
	if errs.Is(err, errs.KindCorruptState) {
		return "the process catalog is corrupt; see " + a.Store.Path(), true
	}
	return "", false
}
