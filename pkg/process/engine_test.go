package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeEnvLayersOverrideInOrder(t *testing.T) {
	ambient := []string{"PATH=/usr/bin", "HOME=/root"}
	merged := mergeEnv(ambient,
		map[string]string{"HOME": "/group-home", "X": "1"},
		map[string]string{"X": "2"},
	)

	assert.Equal(t, "/usr/bin", merged["PATH"])
	assert.Equal(t, "/group-home", merged["HOME"])
	assert.Equal(t, "2", merged["X"])
}

func TestEnvSliceRoundTripsThroughMergeEnv(t *testing.T) {
	merged := mergeEnv(nil, map[string]string{"A": "1"})
	slice := envSlice(merged)
	assert.Contains(t, slice, "A=1")
}

func TestAbsDuration(t *testing.T) {
	assert.Equal(t, absDuration(-5), absDuration(5))
}

func TestIndexByte(t *testing.T) {
	assert.Equal(t, 1, indexByte("A=B=C", '='))
	assert.Equal(t, -1, indexByte("noequals", '='))
}
