package group

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/pkg/errs"
	"github.com/sentinelhq/sentinel/pkg/registry"
	"github.com/sentinelhq/sentinel/pkg/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	reg, err := registry.Load(store.New(t.TempDir()))
	require.NoError(t, err)
	return New(reg, nil, logrus.NewEntry(logrus.New()))
}

func TestCreateAndDeleteGroup(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Create("web", map[string]string{"STAGE": "prod"}))

	groups := m.List()
	require.Len(t, groups, 1)
	assert.Equal(t, "web", groups[0].Name)
	assert.Equal(t, "prod", groups[0].Env["STAGE"])

	require.NoError(t, m.Delete("web", false))
	assert.Empty(t, m.List())
}

func TestDeleteUnknownGroupIsNotFound(t *testing.T) {
	m := newTestManager(t)
	err := m.Delete("ghost", false)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestAddAndRemoveMembership(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Create("web", nil))

	id, err := m.Registry.AddProcess(store.ProcessRecord{Name: "api", Command: "sleep 1"})
	require.NoError(t, err)

	require.NoError(t, m.Add("web", id))
	members, err := m.ListMembers("web")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, id, members[0].ID)

	require.NoError(t, m.Remove(id))
	members, err = m.ListMembers("web")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestAddToUnknownGroupFails(t *testing.T) {
	m := newTestManager(t)
	id, err := m.Registry.AddProcess(store.ProcessRecord{Name: "api", Command: "sleep 1"})
	require.NoError(t, err)

	err = m.Add("ghost", id)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestDeleteWithStopDetachesDeadMembers(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Create("web", nil))

	// PID 0 can never be "alive", so Stop reports it already dead and the
	// delete-with-stop path succeeds without a real process.
	id, err := m.Registry.AddProcess(store.ProcessRecord{Name: "api", Command: "sleep 1", Group: "web", PID: 0})
	require.NoError(t, err)
	require.NoError(t, m.Add("web", id))

	require.NoError(t, m.Delete("web", true))
	assert.Empty(t, m.List())

	cat := m.Registry.Snapshot()
	rec, err := registry.FindProcess(cat, "api")
	require.NoError(t, err)
	assert.Empty(t, rec.Group)
}
