package port

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/pkg/errs"
	"github.com/sentinelhq/sentinel/pkg/registry"
	"github.com/sentinelhq/sentinel/pkg/store"
)

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	reg, err := registry.Load(store.New(t.TempDir()))
	require.NoError(t, err)
	return New(reg)
}

func TestAllocateExplicitPort(t *testing.T) {
	a := newTestAllocator(t)
	got, err := a.Allocate(9001, "web")
	require.NoError(t, err)
	assert.Equal(t, 9001, got)
}

func TestAllocateConflict(t *testing.T) {
	a := newTestAllocator(t)
	_, err := a.Allocate(9001, "web")
	require.NoError(t, err)

	_, err = a.Allocate(9001, "other")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConflict))
}

func TestAllocateZeroPicksFreePort(t *testing.T) {
	a := newTestAllocator(t)
	got, err := a.Allocate(0, "")
	require.NoError(t, err)
	assert.Greater(t, got, 0)

	list := a.List()
	require.Len(t, list, 1)
	assert.Equal(t, got, list[0].Port)
	assert.Equal(t, "default", list[0].Name)
}

func TestFreeRemovesReservation(t *testing.T) {
	a := newTestAllocator(t)
	_, err := a.Allocate(9002, "web")
	require.NoError(t, err)

	require.NoError(t, a.Free(9002))
	assert.Empty(t, a.List())
}

func TestParsePortValidatesRange(t *testing.T) {
	_, err := ParsePort("70000")
	require.Error(t, err)

	p, err := ParsePort("8080")
	require.NoError(t, err)
	assert.Equal(t, 8080, p)
}
