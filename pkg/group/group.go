// Package group implements the Group Manager of spec §4.5: named sets of
// process IDs with a shared environment overlay, plus bulk lifecycle
// operations that continue past per-member failures.
package group

import (
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/sentinelhq/sentinel/pkg/errs"
	"github.com/sentinelhq/sentinel/pkg/process"
	"github.com/sentinelhq/sentinel/pkg/registry"
	"github.com/sentinelhq/sentinel/pkg/store"
)

// Manager wires the Registry and Process Engine together for group-scoped
// operations. It holds no state beyond those references.
type Manager struct {
	Registry *registry.Registry
	Engine   *process.Engine
	Log      *logrus.Entry
}

// New returns a group Manager over reg/engine.
func New(reg *registry.Registry, engine *process.Engine, log *logrus.Entry) *Manager {
	return &Manager{Registry: reg, Engine: engine, Log: log}
}

// Create makes a new, empty group with the given environment overlay.
func (m *Manager) Create(name string, env map[string]string) error {
	if env == nil {
		env = map[string]string{}
	}
	return m.Registry.AddGroup(name, env)
}

// Delete removes the group. If stopMembers is true, members are stopped
// first (force, per the spec §3.5 "--stop" path); any member already dead
// is simply detached, which still counts as success (spec §8 boundary
// behavior).
func (m *Manager) Delete(name string, stopMembers bool) error {
	cat := m.Registry.Snapshot()
	grp, err := registry.FindGroup(cat, name)
	if err != nil {
		return err
	}

	if stopMembers {
		members := memberRecords(cat, grp)
		multi := &errs.MultiError{}
		for i, rec := range members {
			if _, err := m.Engine.Stop(rec, true); err != nil {
				multi.Add(i, rec.Name, err)
			}
		}
		if multi.HasErrors() {
			m.Log.WithField("group", name).Warn("some members failed to stop during group delete")
		}
	}

	return m.Registry.RemoveGroup(name)
}

// Add assigns processID to the group.
func (m *Manager) Add(name string, processID int) error {
	cat := m.Registry.Snapshot()
	if _, err := registry.FindGroup(cat, name); err != nil {
		return err
	}
	groupName := name
	return m.Registry.UpdateProcess(processID, registry.ProcessPatch{Group: &groupName})
}

// Remove detaches processID from the group (its Group field becomes null).
func (m *Manager) Remove(processID int) error {
	empty := ""
	return m.Registry.UpdateProcess(processID, registry.ProcessPatch{Group: &empty})
}

// List returns every group in the catalog.
func (m *Manager) List() []store.GroupRecord {
	return m.Registry.Snapshot().Groups
}

// ListMembers returns the ProcessRecords belonging to name.
func (m *Manager) ListMembers(name string) ([]store.ProcessRecord, error) {
	cat := m.Registry.Snapshot()
	grp, err := registry.FindGroup(cat, name)
	if err != nil {
		return nil, err
	}
	return memberRecords(cat, grp), nil
}

// StartAll spawns every member using its stored command/cwd/env/restart,
// laying the group's environment overlay underneath each member's own
// overlay (spec §4.4 step 1). Per-member failures are collected, not
// short-circuited (spec §4.5).
func (m *Manager) StartAll(name string) error {
	cat := m.Registry.Snapshot()
	grp, err := registry.FindGroup(cat, name)
	if err != nil {
		return err
	}
	members := memberRecords(cat, grp)

	multi := &errs.MultiError{}
	for i, rec := range members {
		res, err := m.Engine.Spawn(process.SpawnInput{
			Command: rec.Command,
			Name:    rec.Name,
			Cwd:     rec.Cwd,
			Env:     rec.Env,
			Restart: rec.Restart,
			Group:   rec.Group,
		}, grp.Env)
		if err != nil {
			multi.Add(i, rec.Name, err)
			continue
		}
		pid := res.PID
		startedAt := res.StartedAt
		if err := m.Registry.UpdateProcess(rec.ID, registry.ProcessPatch{
			PID: &pid, StartedAt: &startedAt, Env: res.Env,
		}); err != nil {
			multi.Add(i, rec.Name, err)
		}
	}
	return multi.ErrorOrNil()
}

// StopAll stops every member, collecting per-member failures.
func (m *Manager) StopAll(name string, force bool) error {
	cat := m.Registry.Snapshot()
	grp, err := registry.FindGroup(cat, name)
	if err != nil {
		return err
	}
	members := memberRecords(cat, grp)

	multi := &errs.MultiError{}
	for i, rec := range members {
		if _, err := m.Engine.Stop(rec, force); err != nil {
			multi.Add(i, rec.Name, err)
		}
	}
	return multi.ErrorOrNil()
}

// RestartAll stops then respawns every member, collecting per-member
// failures (spec §4.5).
func (m *Manager) RestartAll(name string) error {
	cat := m.Registry.Snapshot()
	grp, err := registry.FindGroup(cat, name)
	if err != nil {
		return err
	}
	members := memberRecords(cat, grp)

	multi := &errs.MultiError{}
	for i, rec := range members {
		if _, err := m.Engine.Stop(rec, false); err != nil {
			multi.Add(i, rec.Name, err)
			continue
		}
		res, err := m.Engine.Spawn(process.SpawnInput{
			Command: rec.Command,
			Name:    rec.Name,
			Cwd:     rec.Cwd,
			Env:     rec.Env,
			Restart: rec.Restart,
			Group:   rec.Group,
		}, grp.Env)
		if err != nil {
			multi.Add(i, rec.Name, err)
			continue
		}
		pid := res.PID
		startedAt := res.StartedAt
		if err := m.Registry.UpdateProcess(rec.ID, registry.ProcessPatch{
			PID: &pid, StartedAt: &startedAt, Env: res.Env,
		}); err != nil {
			multi.Add(i, rec.Name, err)
		}
	}
	return multi.ErrorOrNil()
}

// memberRecords resolves a group's member IDs against a catalog snapshot,
// using samber/lo to filter the process list down to membership — the same
// collection-utility dependency the teacher's go.mod already carries.
func memberRecords(cat store.Catalog, grp store.GroupRecord) []store.ProcessRecord {
	return lo.Filter(cat.Processes, func(p store.ProcessRecord, _ int) bool {
		return grp.HasMember(p.ID)
	})
}
