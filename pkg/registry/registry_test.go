package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/pkg/errs"
	"github.com/sentinelhq/sentinel/pkg/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	st := store.New(t.TempDir())
	reg, err := Load(st)
	require.NoError(t, err)
	return reg
}

func TestAddProcessAssignsMonotoneIDs(t *testing.T) {
	reg := newTestRegistry(t)

	id1, err := reg.AddProcess(store.ProcessRecord{Name: "p1", Command: "sleep 1"})
	require.NoError(t, err)
	id2, err := reg.AddProcess(store.ProcessRecord{Name: "p2", Command: "sleep 1"})
	require.NoError(t, err)

	assert.Equal(t, 1, id1)
	assert.Equal(t, 2, id2)
}

func TestAddProcessRejectsNameClash(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.AddProcess(store.ProcessRecord{Name: "dup", Command: "sleep 1"})
	require.NoError(t, err)

	_, err = reg.AddProcess(store.ProcessRecord{Name: "dup", Command: "sleep 1"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConflict))
}

func TestGroupMembershipStaysConsistentAcrossOperations(t *testing.T) {
	reg := newTestRegistry(t)

	require.NoError(t, reg.AddGroup("g", map[string]string{}))
	id1, err := reg.AddProcess(store.ProcessRecord{Name: "p1", Command: "sleep 1", Group: "g"})
	require.NoError(t, err)
	id2, err := reg.AddProcess(store.ProcessRecord{Name: "p2", Command: "sleep 1", Group: "g"})
	require.NoError(t, err)

	cat := reg.Snapshot()
	grp, err := FindGroup(cat, "g")
	require.NoError(t, err)
	assert.True(t, grp.HasMember(id1))
	assert.True(t, grp.HasMember(id2))

	require.NoError(t, reg.RemoveProcess(id1))
	cat = reg.Snapshot()
	grp, err = FindGroup(cat, "g")
	require.NoError(t, err)
	assert.False(t, grp.HasMember(id1))
	assert.True(t, grp.HasMember(id2))

	empty := ""
	require.NoError(t, reg.UpdateProcess(id2, ProcessPatch{Group: &empty}))
	cat = reg.Snapshot()
	grp, err = FindGroup(cat, "g")
	require.NoError(t, err)
	assert.False(t, grp.HasMember(id2))
}

func TestRemoveGroupDetachesMembers(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.AddGroup("g", map[string]string{}))
	id, err := reg.AddProcess(store.ProcessRecord{Name: "p1", Command: "sleep 1", Group: "g"})
	require.NoError(t, err)

	require.NoError(t, reg.RemoveGroup("g"))

	cat := reg.Snapshot()
	rec, err := FindProcess(cat, "p1")
	require.NoError(t, err)
	assert.Empty(t, rec.Group)
	assert.Equal(t, id, rec.ID)
}

func TestPortUniqueness(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.AddPort(8080, "web"))

	err := reg.AddPort(8080, "other")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConflict))
}

func TestFindProcessByIDOrName(t *testing.T) {
	reg := newTestRegistry(t)
	id, err := reg.AddProcess(store.ProcessRecord{Name: "web", Command: "sleep 1"})
	require.NoError(t, err)

	cat := reg.Snapshot()

	byName, err := FindProcess(cat, "web")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)

	byID, err := FindProcess(cat, "1")
	require.NoError(t, err)
	assert.Equal(t, "web", byID.Name)

	_, err = FindProcess(cat, "missing")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestFailedFlushRollsBackInMemoryState(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.AddProcess(store.ProcessRecord{Name: "p1", Command: "sleep 1"})
	require.NoError(t, err)

	before := reg.Snapshot()

	// Force the next flush to fail by pointing the store at an
	// unwritable location while keeping the in-memory catalog intact.
	reg.store = store.New("/nonexistent-root-owned/does-not-exist")

	_, err = reg.AddProcess(store.ProcessRecord{Name: "p2", Command: "sleep 1"})
	require.Error(t, err)

	after := reg.Snapshot()
	assert.Equal(t, before, after)
}

func TestUpdateProcessAppliesPatch(t *testing.T) {
	reg := newTestRegistry(t)
	id, err := reg.AddProcess(store.ProcessRecord{Name: "p1", Command: "sleep 1"})
	require.NoError(t, err)

	pid := 555
	startedAt := time.Now().UTC()
	restart := true
	require.NoError(t, reg.UpdateProcess(id, ProcessPatch{PID: &pid, StartedAt: &startedAt, Restart: &restart}))

	cat := reg.Snapshot()
	rec, err := FindProcess(cat, "p1")
	require.NoError(t, err)
	assert.Equal(t, pid, rec.PID)
	assert.True(t, rec.Restart)
}
