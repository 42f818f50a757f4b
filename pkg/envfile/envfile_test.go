package envfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIgnoresCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\n\nA=1\nB = \"two\"\n  # indented comment\nC='three'\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "two", "C": "three"}, m)
}

func TestParseMissingFileReturnsEmptyMap(t *testing.T) {
	m, err := Parse(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestMergeLaterLayersWin(t *testing.T) {
	out := Merge(
		map[string]string{"A": "1", "B": "1"},
		map[string]string{"B": "2"},
	)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, out)
}
