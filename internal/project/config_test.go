package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	senverrors "github.com/s2e-tools/senv/internal/errors"
)

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := Config{"a": 1, "b": "old"}
	overlay := map[string]any{"b": "new", "c": true}

	merged := base.Merge(overlay)

	assert.Equal(t, "new", merged["b"])
	assert.Equal(t, true, merged["c"])
	assert.Equal(t, 1, merged["a"])

	assert.Equal(t, "old", base["b"], "merge must not write through to the base")
	_, ok := base["c"]
	assert.False(t, ok)
}

func TestRequireNamesFirstMissingKey(t *testing.T) {
	cfg := Config{"project_name": "demo", "target": "demo.elf"}

	err := cfg.Require("project_name", "project_dir", "target")
	require.Error(t, err)
	assert.Equal(t, senverrors.CodeInvalidConfiguration, senverrors.CodeOf(err))
	assert.Contains(t, err.Error(), "project_dir")
}

func TestRequireAllPresent(t *testing.T) {
	cfg := Config{"a": 1, "b": false}
	assert.NoError(t, cfg.Require("a", "b"))
}

func TestTypedAccessors(t *testing.T) {
	cfg := Config{
		"name":  "demo",
		"flag":  true,
		"args":  []string{"x", "y"},
		"bytes": []int{0, 4},
	}

	assert.Equal(t, "demo", cfg.String("name"))
	assert.True(t, cfg.Bool("flag"))
	assert.Equal(t, []string{"x", "y"}, cfg.Strings("args"))
	assert.Equal(t, []int{0, 4}, cfg.Ints("bytes"))

	// Absent and mistyped keys yield zero values, never panics.
	assert.Equal(t, "", cfg.String("missing"))
	assert.False(t, cfg.Bool("name"))
	assert.Nil(t, cfg.Strings("flag"))
}
