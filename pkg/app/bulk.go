package app

import (
	"github.com/sentinelhq/sentinel/pkg/errs"
	"github.com/sentinelhq/sentinel/pkg/process"
	"github.com/sentinelhq/sentinel/pkg/registry"
	"github.com/sentinelhq/sentinel/pkg/store"
)

// StopAll stops every process in the catalog regardless of group,
// collecting per-target failures (spec §6.3 "stopall").
func (a *App) StopAll(force bool) error {
	cat := a.Registry.Snapshot()
	multi := &errs.MultiError{}
	for i, rec := range cat.Processes {
		if _, err := a.Engine.Stop(rec, force); err != nil {
			multi.Add(i, rec.Name, err)
		}
	}
	return multi.ErrorOrNil()
}

// StartAll (re)spawns every process in the catalog using its stored
// command/cwd/env/restart (spec §6.3 "startall").
func (a *App) StartAll() error {
	cat := a.Registry.Snapshot()
	multi := &errs.MultiError{}
	for i, rec := range cat.Processes {
		groupEnv := a.groupEnvFor(cat, rec)
		res, err := a.Engine.Spawn(process.SpawnInput{
			Command: rec.Command, Name: rec.Name, Cwd: rec.Cwd,
			Env: rec.Env, Restart: rec.Restart, Group: rec.Group,
		}, groupEnv)
		if err != nil {
			multi.Add(i, rec.Name, err)
			continue
		}
		pid, startedAt := res.PID, res.StartedAt
		if err := a.Registry.UpdateProcess(rec.ID, registry.ProcessPatch{
			PID: &pid, StartedAt: &startedAt, Env: res.Env,
		}); err != nil {
			multi.Add(i, rec.Name, err)
		}
	}
	return multi.ErrorOrNil()
}

// RestartAll stops and respawns every process in the catalog (spec §6.3
// "restartall").
func (a *App) RestartAll() error {
	cat := a.Registry.Snapshot()
	multi := &errs.MultiError{}
	for i, rec := range cat.Processes {
		if _, err := a.Engine.Stop(rec, false); err != nil {
			multi.Add(i, rec.Name, err)
			continue
		}
		groupEnv := a.groupEnvFor(cat, rec)
		res, err := a.Engine.Spawn(process.SpawnInput{
			Command: rec.Command, Name: rec.Name, Cwd: rec.Cwd,
			Env: rec.Env, Restart: rec.Restart, Group: rec.Group,
		}, groupEnv)
		if err != nil {
			multi.Add(i, rec.Name, err)
			continue
		}
		pid, startedAt := res.PID, res.StartedAt
		if err := a.Registry.UpdateProcess(rec.ID, registry.ProcessPatch{
			PID: &pid, StartedAt: &startedAt, Env: res.Env,
		}); err != nil {
			multi.Add(i, rec.Name, err)
		}
	}
	return multi.ErrorOrNil()
}

// Clean removes every record whose process is dead and whose restart flag
// is false (spec §3.5, §8 boundary behavior) — records the supervisor
// would respawn are never removed, even while currently dead.
func (a *App) Clean() (int, error) {
	cat := a.Registry.Snapshot()
	removed := 0
	for _, rec := range cat.Processes {
		if rec.Restart {
			continue
		}
		if a.Engine.Exists(rec) {
			continue
		}
		if err := a.Registry.RemoveProcess(rec.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (a *App) groupEnvFor(cat store.Catalog, rec store.ProcessRecord) map[string]string {
	if rec.Group == "" {
		return nil
	}
	grp, err := registry.FindGroup(cat, rec.Group)
	if err != nil {
		return nil
	}
	return grp.Env
}
