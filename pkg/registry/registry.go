// Package registry holds the in-memory catalog and is the single entry
// point for all reads and writes, enforcing the invariants of spec §3.4
// and flushing every mutation through the Store (spec §4.2).
package registry

import (
	"sort"
	"strconv"
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
	"github.com/sentinelhq/sentinel/pkg/errs"
	"github.com/sentinelhq/sentinel/pkg/store"
)

// Registry is the single mutator of the persisted catalog. Its lock covers
// the entire catalog for the duration of a logical operation: read current
// state, apply the change, validate invariants, flush through Store, and
// only then release — so observers never see a half-applied mutation
// (spec §4.2 "Concurrency").
type Registry struct {
	mu      deadlock.Mutex
	store   *store.Store
	catalog store.Catalog
}

// Load opens the Registry against the given Store, reading the current
// catalog into memory. The cross-process advisory lock is held only for the
// duration of Load and of each subsequent reload-mutate-flush transaction,
// not for the Registry's entire lifetime, matching spec §5 ("readers...
// need not take the lock").
func Load(st *store.Store) (*Registry, error) {
	unlock, err := st.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	cat, err := st.Load()
	if err != nil {
		return nil, err
	}
	return &Registry{store: st, catalog: cat}, nil
}

// withTx takes the cross-process lock, reloads the catalog from the Store,
// runs fn against that fresh copy, and flushes the result before releasing
// the lock; only if the flush succeeds is it committed to r.catalog. A
// failed flush rolls back the in-memory change (spec §4.2).
func (r *Registry) withTx(fn func(cat *store.Catalog) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.store.Lock()
	if err != nil {
		return err
	}
	defer unlock()

	working, err := r.store.Load()
	if err != nil {
		return err
	}
	if err := fn(&working); err != nil {
		return err
	}
	if err := validate(working); err != nil {
		return err
	}

	if err := r.store.Save(working); err != nil {
		return err
	}
	r.catalog = working
	return nil
}

// validate checks the invariants of spec §3.4 against a candidate catalog.
// It is defensive: withTx's callers are expected to maintain these
// themselves, but a single choke point catches any that slip through.
func validate(cat store.Catalog) error {
	names := map[string]bool{}
	for _, p := range cat.Processes {
		if names[p.Name] {
			return errs.Conflict("process name", p.Name)
		}
		names[p.Name] = true
	}

	groupNames := map[string]bool{}
	for _, g := range cat.Groups {
		if groupNames[g.Name] {
			return errs.Conflict("group name", g.Name)
		}
		groupNames[g.Name] = true
	}

	ports := map[int]bool{}
	for _, p := range cat.Ports {
		if ports[p.Port] {
			return errs.Conflict("port", "")
		}
		ports[p.Port] = true
	}

	idToGroup := map[int]string{}
	for _, p := range cat.Processes {
		if p.Group == "" {
			continue
		}
		if !groupNames[p.Group] {
			return errs.InvalidInput("process " + p.Name + " references unknown group " + p.Group)
		}
		idToGroup[p.ID] = p.Group
	}

	for _, g := range cat.Groups {
		expected := map[int]bool{}
		for id, gn := range idToGroup {
			if gn == g.Name {
				expected[id] = true
			}
		}
		if len(expected) != len(g.Members) {
			return errs.InvalidInput("group " + g.Name + " membership out of sync")
		}
		for _, m := range g.Members {
			if !expected[m] {
				return errs.InvalidInput("group " + g.Name + " membership out of sync")
			}
		}
	}

	return nil
}

// Snapshot returns a deep copy of the full catalog suitable for iteration
// outside the lock (spec §4.2 snapshot()).
func (r *Registry) Snapshot() store.Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.catalog.Clone()
}

// --- process operations ---

// AddProcess assigns the next ID, defaults Group to empty (null), rejects
// on name clash, and persists the new record.
func (r *Registry) AddProcess(rec store.ProcessRecord) (int, error) {
	var id int
	err := r.withTx(func(cat *store.Catalog) error {
		for _, p := range cat.Processes {
			if p.Name == rec.Name {
				return errs.Conflict("process name", rec.Name)
			}
		}
		id = cat.NextID
		cat.NextID++
		rec.ID = id
		cat.Processes = append(cat.Processes, rec)
		if rec.Group != "" {
			addMember(cat, rec.Group, id)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ProcessPatch carries the allowed mutable fields for update_process (spec §4.2).
type ProcessPatch struct {
	PID       *int
	StartedAt *time.Time
	Restart   *bool
	Group     *string
	Env       map[string]string
	Cwd       *string
}

// UpdateProcess applies patch to the process addressed by id.
func (r *Registry) UpdateProcess(id int, patch ProcessPatch) error {
	return r.withTx(func(cat *store.Catalog) error {
		idx := indexOfProcessByID(cat.Processes, id)
		if idx < 0 {
			return errs.NotFound(itoa(id))
		}
		rec := &cat.Processes[idx]

		oldGroup := rec.Group
		if patch.PID != nil {
			rec.PID = *patch.PID
		}
		if patch.StartedAt != nil {
			rec.StartedAt = *patch.StartedAt
		}
		if patch.Restart != nil {
			rec.Restart = *patch.Restart
		}
		if patch.Env != nil {
			rec.Env = patch.Env
		}
		if patch.Cwd != nil {
			rec.Cwd = *patch.Cwd
		}
		if patch.Group != nil {
			rec.Group = *patch.Group
		}

		if rec.Group != oldGroup {
			if oldGroup != "" {
				removeMember(cat, oldGroup, id)
			}
			if rec.Group != "" {
				if indexOfGroupByName(cat.Groups, rec.Group) < 0 {
					return errs.InvalidInput("unknown group " + rec.Group)
				}
				addMember(cat, rec.Group, id)
			}
		}
		return nil
	})
}

// RemoveProcess deletes the record and detaches it from any group membership.
func (r *Registry) RemoveProcess(id int) error {
	return r.withTx(func(cat *store.Catalog) error {
		idx := indexOfProcessByID(cat.Processes, id)
		if idx < 0 {
			return errs.NotFound(itoa(id))
		}
		group := cat.Processes[idx].Group
		cat.Processes = append(cat.Processes[:idx], cat.Processes[idx+1:]...)
		if group != "" {
			removeMember(cat, group, id)
		}
		return nil
	})
}

// FindProcess resolves selector (a decimal ID or an exact name) against a
// snapshot of the catalog.
func FindProcess(cat store.Catalog, selector string) (store.ProcessRecord, error) {
	if id, ok := parseID(selector); ok {
		for _, p := range cat.Processes {
			if p.ID == id {
				return p, nil
			}
		}
		return store.ProcessRecord{}, errs.NotFound(selector)
	}
	for _, p := range cat.Processes {
		if p.Name == selector {
			return p, nil
		}
	}
	return store.ProcessRecord{}, errs.NotFound(selector)
}

// --- group operations ---

// AddGroup creates a new, empty group.
func (r *Registry) AddGroup(name string, env map[string]string) error {
	if name == "" {
		return errs.InvalidInput("group name must not be empty")
	}
	return r.withTx(func(cat *store.Catalog) error {
		if indexOfGroupByName(cat.Groups, name) >= 0 {
			return errs.Conflict("group name", name)
		}
		cat.Groups = append(cat.Groups, store.GroupRecord{Name: name, Env: env, Members: []int{}})
		return nil
	})
}

// UpdateGroupEnv replaces a group's environment overlay. Per spec §9's open
// question, this does not affect already-running members until they are
// respawned.
func (r *Registry) UpdateGroupEnv(name string, env map[string]string) error {
	return r.withTx(func(cat *store.Catalog) error {
		idx := indexOfGroupByName(cat.Groups, name)
		if idx < 0 {
			return errs.NotFound(name)
		}
		cat.Groups[idx].Env = env
		return nil
	})
}

// RemoveGroup deletes the group and clears the Group field of every member.
// It never stops members; the --stop path stops them before calling this.
func (r *Registry) RemoveGroup(name string) error {
	return r.withTx(func(cat *store.Catalog) error {
		idx := indexOfGroupByName(cat.Groups, name)
		if idx < 0 {
			return errs.NotFound(name)
		}
		for i := range cat.Processes {
			if cat.Processes[i].Group == name {
				cat.Processes[i].Group = ""
			}
		}
		cat.Groups = append(cat.Groups[:idx], cat.Groups[idx+1:]...)
		return nil
	})
}

// FindGroup resolves a group by exact name against a snapshot.
func FindGroup(cat store.Catalog, name string) (store.GroupRecord, error) {
	idx := indexOfGroupByName(cat.Groups, name)
	if idx < 0 {
		return store.GroupRecord{}, errs.NotFound(name)
	}
	return cat.Groups[idx], nil
}

// --- port operations ---

// AddPort reserves a port, rejecting on conflict.
func (r *Registry) AddPort(port int, name string) error {
	if port < 1 || port > 65535 {
		return errs.InvalidInput("port out of range")
	}
	if name == "" {
		name = "default"
	}
	return r.withTx(func(cat *store.Catalog) error {
		for _, p := range cat.Ports {
			if p.Port == port {
				return errs.Conflict("port", itoa(port))
			}
		}
		cat.Ports = append(cat.Ports, store.PortRecord{Port: port, Name: name, AllocatedAt: time.Now().UTC()})
		sort.Slice(cat.Ports, func(i, j int) bool { return cat.Ports[i].Port < cat.Ports[j].Port })
		return nil
	})
}

// RemovePort frees a reservation.
func (r *Registry) RemovePort(port int) error {
	return r.withTx(func(cat *store.Catalog) error {
		for i, p := range cat.Ports {
			if p.Port == port {
				cat.Ports = append(cat.Ports[:i], cat.Ports[i+1:]...)
				return nil
			}
		}
		return errs.NotFound(itoa(port))
	})
}

// --- helpers ---

func addMember(cat *store.Catalog, group string, id int) {
	idx := indexOfGroupByName(cat.Groups, group)
	if idx < 0 {
		return
	}
	for _, m := range cat.Groups[idx].Members {
		if m == id {
			return
		}
	}
	cat.Groups[idx].Members = append(cat.Groups[idx].Members, id)
}

func removeMember(cat *store.Catalog, group string, id int) {
	idx := indexOfGroupByName(cat.Groups, group)
	if idx < 0 {
		return
	}
	members := cat.Groups[idx].Members
	for i, m := range members {
		if m == id {
			cat.Groups[idx].Members = append(members[:i], members[i+1:]...)
			return
		}
	}
}

func indexOfProcessByID(procs []store.ProcessRecord, id int) int {
	for i, p := range procs {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func indexOfGroupByName(groups []store.GroupRecord, name string) int {
	for i, g := range groups {
		if g.Name == name {
			return i
		}
	}
	return -1
}

func parseID(selector string) (int, bool) {
	for _, c := range selector {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(selector)
	if err != nil {
		return 0, false
	}
	return n, true
}

func itoa(n int) string { return strconv.Itoa(n) }
