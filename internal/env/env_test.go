package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	senverrors "github.com/s2e-tools/senv/internal/errors"
)

func TestInitCreatesLayout(t *testing.T) {
	root := t.TempDir()

	e, err := Init(root, false)
	require.NoError(t, err)
	assert.Equal(t, root, e.Root)

	for _, sub := range []string{"build", "images", "install", "projects", "source"} {
		info, err := os.Stat(filepath.Join(root, sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir())
	}

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, SettingsVersion, loaded.Settings.Version)
}

func TestInitRefusesExistingEnvironment(t *testing.T) {
	root := t.TempDir()

	_, err := Init(root, false)
	require.NoError(t, err)

	_, err = Init(root, false)
	require.Error(t, err)
	assert.Equal(t, senverrors.CodeInvalidConfiguration, senverrors.CodeOf(err))

	_, err = Init(root, true)
	assert.NoError(t, err)
}

func TestLoadWithoutMarker(t *testing.T) {
	root := t.TempDir()
	// A directory full of the right subdirectories is still not an
	// environment without the marker file.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "projects"), 0o755))

	_, err := Load(root)
	require.Error(t, err)
	assert.Equal(t, senverrors.CodeNoEnvironment, senverrors.CodeOf(err))
}

func TestDeletingMarkerInvalidatesEnvironment(t *testing.T) {
	root := t.TempDir()
	_, err := Init(root, false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, MarkerFile)))

	_, err = Load(root)
	assert.Equal(t, senverrors.CodeNoEnvironment, senverrors.CodeOf(err))
}

func TestResolveExplicitPath(t *testing.T) {
	root := t.TempDir()
	_, err := Init(root, false)
	require.NoError(t, err)

	e, err := Resolve(root)
	require.NoError(t, err)
	assert.Equal(t, root, e.Root)
}

func TestResolveEnvVar(t *testing.T) {
	root := t.TempDir()
	_, err := Init(root, false)
	require.NoError(t, err)

	t.Setenv(EnvVar, root)

	e, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, root, e.Root)
}

func TestResolveWalksUpFromWorkingDirectory(t *testing.T) {
	root := t.TempDir()
	_, err := Init(root, false)
	require.NoError(t, err)

	nested := filepath.Join(root, "projects", "demo", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	t.Setenv(EnvVar, "")
	t.Chdir(nested)

	e, err := Resolve("")
	require.NoError(t, err)
	// Resolved root must match the initialized root even when invoked from
	// deep inside the tree. Compare via EvalSymlinks since t.TempDir may
	// live under a symlinked path.
	wantRoot, _ := filepath.EvalSymlinks(root)
	gotRoot, _ := filepath.EvalSymlinks(e.Root)
	assert.Equal(t, wantRoot, gotRoot)
}

func TestResolveNothingFound(t *testing.T) {
	t.Setenv(EnvVar, "")
	t.Chdir(t.TempDir())

	_, err := Resolve("")
	require.Error(t, err)
	assert.Equal(t, senverrors.CodeNoEnvironment, senverrors.CodeOf(err))
}

func TestProjectsListing(t *testing.T) {
	root := t.TempDir()
	e, err := Init(root, false)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(e.ProjectsPath("zeta"), 0o755))
	require.NoError(t, os.MkdirAll(e.ProjectsPath("alpha"), 0o755))
	// Stray files under projects/ are ignored.
	require.NoError(t, os.WriteFile(e.ProjectsPath("notes.txt"), []byte("x"), 0o644))

	names, err := e.Projects()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestSettingsRoundTrip(t *testing.T) {
	root := t.TempDir()
	e, err := Init(root, false)
	require.NoError(t, err)

	e.Settings.Disassembler = "/opt/ida/idat64"
	require.NoError(t, e.WriteSettings())

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "/opt/ida/idat64", loaded.Settings.Disassembler)
}
