package shell

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/pkg/errs"
)

func TestSplitHandlesQuoting(t *testing.T) {
	argv, err := Split(`sh -c "echo hello world"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"sh", "-c", "echo hello world"}, argv)
}

func TestSplitRejectsEmptyCommand(t *testing.T) {
	_, err := Split("   ")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindInvalidInput))
}

func TestQuoteEscapesSpecialCharacters(t *testing.T) {
	assert.Equal(t, `"a \"b\" \$c"`, Quote(`a "b" $c`))
}

func TestDetachedCmdIsSetsid(t *testing.T) {
	devNull, err := os.Open(os.DevNull)
	require.NoError(t, err)
	defer devNull.Close()

	cmd, err := DetachedCmd("true", "", nil, devNull, devNull)
	require.NoError(t, err)
	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setsid)
	assert.Nil(t, cmd.Stdin)
}
