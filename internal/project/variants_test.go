package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s2e-tools/senv/internal/binfmt"
)

// testImageKeys stands in for the image-derived layer the resolver merges
// after image selection.
var testImageKeys = map[string]any{
	"image_name":             "debian-12-x86_64",
	"image_arch":             "x86_64",
	"image_path":             "/env/images/debian-12-x86_64/image.raw.s2e",
	"image_memory":           "256M",
	"image_snapshot":         "ready",
	"image_qemu_build":       "x86_64",
	"image_qemu_extra_flags": "",
}

func TestEveryVariantRendersCompleteArtifacts(t *testing.T) {
	e := testEnv(t)

	cases := []struct {
		variant Variant
		cls     binfmt.Classification
	}{
		{newLinuxVariant(), binfmt.Classification{Format: binfmt.FormatELF, Bits: 64, LinkMode: binfmt.LinkDynamic, Path: "/bin/cat"}},
		{newWindowsVariant(), binfmt.Classification{Format: binfmt.FormatPEExe, Bits: 32, Path: "app.exe"}},
		{newWindowsDLLVariant(), binfmt.Classification{Format: binfmt.FormatPEDLL, Bits: 32, Path: "crypto.dll"}},
		{newWindowsDriverVariant(), binfmt.Classification{Format: binfmt.FormatPEExe, Bits: 64, Path: "netio.sys"}},
		{newCGCVariant(), binfmt.Classification{Format: binfmt.FormatCGC, Bits: 32, Path: "CROMU_00001"}},
	}

	for _, tc := range cases {
		t.Run(tc.variant.Name(), func(t *testing.T) {
			cfg, err := tc.variant.Configure(e, tc.cls, Options{})
			require.NoError(t, err)
			cfg = cfg.Merge(testImageKeys)

			renderer, ok := tc.variant.(ArtifactRenderer)
			require.True(t, ok)

			artifacts, err := renderer.RenderArtifacts(cfg)
			require.NoError(t, err)

			names := make([]string, len(artifacts))
			for i, a := range artifacts {
				names[i] = a.Name
				assert.NotEmpty(t, a.Content, a.Name)
			}
			assert.Equal(t,
				[]string{"launch-s2e.sh", "s2e-config.lua", "bootstrap.sh", "project.json"},
				names)

			// Same configuration, same bytes.
			again, err := renderer.RenderArtifacts(cfg)
			require.NoError(t, err)
			for i := range artifacts {
				assert.Equal(t, artifacts[i].Content, again[i].Content, artifacts[i].Name)
			}

			instructions, err := tc.variant.Instructions(cfg)
			require.NoError(t, err)
			assert.NotEmpty(t, instructions)
		})
	}
}

func TestBuiltinFragmentStore(t *testing.T) {
	store := BuiltinFragments()

	src, ok := store.Fragment("s2e-config.linux.lua")
	require.True(t, ok)
	assert.NotEmpty(t, src)

	_, ok = store.Fragment("s2e-config.plan9.lua")
	assert.False(t, ok)
}
