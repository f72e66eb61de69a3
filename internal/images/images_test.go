package images

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	senverrors "github.com/s2e-tools/senv/internal/errors"
)

func writeImage(t *testing.T, root, name string, desc Descriptor) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(desc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFile), data, 0o644))
}

func linuxImage(name, arch string) Descriptor {
	return Descriptor{
		Name:      name,
		Memory:    "256M",
		Snapshot:  "ready",
		QEMUBuild: arch,
		OS: OSDesc{
			Name:          "debian",
			Arch:          arch,
			BinaryFormats: []string{"elf"},
		},
	}
}

func TestLoadResolvesDiskPath(t *testing.T) {
	root := t.TempDir()
	writeImage(t, root, "debian-12-x86_64", linuxImage("debian-12-x86_64", "x86_64"))

	desc, err := Load(filepath.Join(root, "debian-12-x86_64"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "debian-12-x86_64", DiskImageFile), desc.Path)
	assert.True(t, desc.OS.Supports("elf"))
	assert.False(t, desc.OS.Supports("pe"))
}

func TestLoadMissingDescriptor(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "empty-image")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Equal(t, senverrors.CodeNoCompatibleImage, senverrors.CodeOf(err))
}

func TestListSortsByNameAndSkipsUnbuilt(t *testing.T) {
	root := t.TempDir()
	writeImage(t, root, "windows-10-x86_64", Descriptor{Name: "windows-10-x86_64"})
	writeImage(t, root, "debian-12-i386", linuxImage("debian-12-i386", "i386"))
	// Directory without a descriptor: a half-built image, skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "in-progress"), 0o755))

	descs, err := List(root)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, "debian-12-i386", descs[0].Name)
	assert.Equal(t, "windows-10-x86_64", descs[1].Name)
}

func TestListMissingDirectory(t *testing.T) {
	descs, err := List(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, descs)
}

func TestSelectCompatiblePicksFirstInNameOrder(t *testing.T) {
	descs := []Descriptor{
		linuxImage("debian-11-x86_64", "x86_64"),
		linuxImage("debian-12-x86_64", "x86_64"),
	}

	picked, err := SelectCompatible(descs, func(d Descriptor) bool {
		return d.OS.Arch == "x86_64"
	})
	require.NoError(t, err)
	assert.Equal(t, "debian-11-x86_64", picked.Name)
}

func TestSelectCompatibleNoneQualifies(t *testing.T) {
	descs := []Descriptor{linuxImage("debian-12-i386", "i386")}

	_, err := SelectCompatible(descs, func(d Descriptor) bool { return false })
	require.Error(t, err)
	assert.Equal(t, senverrors.CodeNoCompatibleImage, senverrors.CodeOf(err))
}

func TestFind(t *testing.T) {
	descs := []Descriptor{linuxImage("a", "i386"), linuxImage("b", "x86_64")}

	desc, err := Find(descs, "b")
	require.NoError(t, err)
	assert.Equal(t, "x86_64", desc.OS.Arch)

	_, err = Find(descs, "c")
	assert.Equal(t, senverrors.CodeNoCompatibleImage, senverrors.CodeOf(err))
}
