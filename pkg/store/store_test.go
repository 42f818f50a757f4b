package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmptyCatalog(t *testing.T) {
	s := New(t.TempDir())
	cat, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Empty(), cat)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(t.TempDir())

	cat := Empty()
	cat.NextID = 2
	cat.Processes = []ProcessRecord{{
		ID: 1, Name: "s1", Command: "sleep 60", PID: 4242,
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Cwd:       "/tmp", Env: map[string]string{"A": "1"},
		Restart: true, StdoutPath: "/tmp/s1.stdout.log", StderrPath: "/tmp/s1.stderr.log",
	}}
	cat.Groups = []GroupRecord{{Name: "g", Env: map[string]string{}, Members: []int{1}}}
	cat.Ports = []PortRecord{{Port: 9000, Name: "web", AllocatedAt: time.Now().UTC().Truncate(time.Second)}}

	require.NoError(t, s.Save(cat))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, cat, loaded)
}

func TestLoadCorruptJSONReportsDetail(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0o600))

	_, err := s.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CorruptState")
}

func TestLoadRejectsNewerSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte(`{"version":99,"next_id":1}`), 0o600))

	_, err := s.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CorruptState")
}

func TestLoadPreservesUnknownProcessFieldThroughSave(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	raw := `{"version":1,"next_id":2,"processes":[{"id":1,"name":"s1","command":"sleep 60","pid":1,` +
		`"started_at":"2024-01-01T00:00:00Z","cwd":"/tmp","env":{},"restart":false,` +
		`"stdout_path":"","stderr_path":"","health_check_url":"http://localhost/health"}],` +
		`"groups":[],"ports":[]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte(raw), 0o600))

	cat, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.Save(cat))

	data, err := os.ReadFile(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "health_check_url")
}

func TestSaveRefusesUnknownTopLevelRecordType(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	raw := `{"version":1,"next_id":1,"processes":[],"groups":[],"ports":[],"schedules":[{"cron":"* * * * *"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte(raw), 0o600))

	cat, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"schedules"}, cat.UnknownRecordTypes())

	err = s.Save(cat)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CorruptState")
	assert.Contains(t, err.Error(), "schedules")
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.Save(Empty()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}
