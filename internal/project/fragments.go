package project

import (
	"embed"
	"io/fs"

	"github.com/s2e-tools/senv/internal/compose"
)

//go:embed templates
var templatesFS embed.FS

// embeddedStore serves the builtin fragments shipped in the binary.
type embeddedStore struct {
	fsys fs.FS
}

// Fragment implements compose.FragmentStore.
func (s embeddedStore) Fragment(name string) (string, bool) {
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// BuiltinFragments returns the fragment store backed by the builtin
// templates. Callers wanting per-environment template overrides can layer
// their own store over this one with compose.Layered.
func BuiltinFragments() compose.FragmentStore {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		// The templates directory is embedded at build time; failure
		// here means a broken build, not a runtime condition.
		panic(err)
	}
	return embeddedStore{fsys: sub}
}
