// Package compose renders configuration artifacts from named template
// fragments. A fragment may pull in other fragments with the include
// function and request shared plugin registrations with the plugin
// function; registrations are deduplicated by name, first registration
// wins its position in the output. Rendering the same (root, config) pair
// always produces byte-identical output.
package compose

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	senverrors "github.com/s2e-tools/senv/internal/errors"
)

// FragmentStore provides named fragment sources.
type FragmentStore interface {
	// Fragment returns the source of the named fragment, or false when no
	// such fragment exists.
	Fragment(name string) (string, bool)
}

// MapStore is an in-memory FragmentStore.
type MapStore map[string]string

// Fragment implements FragmentStore.
func (m MapStore) Fragment(name string) (string, bool) {
	src, ok := m[name]
	return src, ok
}

// multiStore consults stores in order; the first hit wins.
type multiStore []FragmentStore

func (s multiStore) Fragment(name string) (string, bool) {
	for _, store := range s {
		if src, ok := store.Fragment(name); ok {
			return src, ok
		}
	}
	return "", false
}

// Layered combines stores so earlier ones shadow later ones.
func Layered(stores ...FragmentStore) FragmentStore {
	return multiStore(stores)
}

// Composer expands fragments against a flat configuration mapping.
type Composer struct {
	store FragmentStore
}

// NewComposer creates a Composer over the given store.
func NewComposer(store FragmentStore) *Composer {
	return &Composer{store: store}
}

// renderState is the per-render mutable state shared by a root fragment
// and everything it transitively includes.
type renderState struct {
	config     map[string]any
	stack      []string
	registered map[string]bool
}

func (st *renderState) onStack(name string) bool {
	for _, active := range st.stack {
		if active == name {
			return true
		}
	}
	return false
}

// missingKeyRe matches the text/template error produced when a template
// references a key absent from the configuration map.
var missingKeyRe = regexp.MustCompile(`map has no entry for key "([^"]+)"`)

// embeddedCodeRe recovers a structured code from an error message when the
// template engine flattened the error instead of wrapping it.
var embeddedCodeRe = regexp.MustCompile(`\[(ERR_[A-Z_]+)\] (.+)$`)

// Render expands the named root fragment with the given configuration.
// Referencing an absent configuration key is a hard error, never a silent
// empty substitution.
func (c *Composer) Render(root string, config map[string]any) (string, error) {
	st := &renderState{
		config:     config,
		registered: make(map[string]bool),
	}

	out, err := c.renderFragment(root, st)
	if err != nil {
		return "", err
	}

	return tidy(out), nil
}

func (c *Composer) renderFragment(name string, st *renderState) (string, error) {
	if st.onStack(name) {
		return "", senverrors.New(senverrors.CodeCyclicInclude,
			"include cycle: %s -> %s", strings.Join(st.stack, " -> "), name)
	}

	src, ok := c.store.Fragment(name)
	if !ok {
		return "", senverrors.New(senverrors.CodeMissingInclude,
			"fragment %q does not exist", name)
	}

	st.stack = append(st.stack, name)
	defer func() { st.stack = st.stack[:len(st.stack)-1] }()

	funcs := template.FuncMap{
		"include": func(sub string) (string, error) {
			return c.renderFragment(sub, st)
		},
		"plugin": func(plugin string) string {
			if st.registered[plugin] {
				return ""
			}
			st.registered[plugin] = true
			return fmt.Sprintf("add_plugin(%q)", plugin)
		},
	}

	tmpl, err := template.New(name).Option("missingkey=error").Funcs(funcs).Parse(src)
	if err != nil {
		return "", senverrors.Wrap(err, senverrors.CodeInternal,
			"fragment %q is malformed", name)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, st.config); err != nil {
		return "", translateExecError(name, err)
	}

	return buf.String(), nil
}

// translateExecError maps a template execution error onto the structured
// taxonomy. Errors raised by the include function already carry a code and
// pass through untouched.
func translateExecError(fragment string, err error) error {
	var structured *senverrors.Error
	if errors.As(err, &structured) {
		return structured
	}

	if m := missingKeyRe.FindStringSubmatch(err.Error()); m != nil {
		return senverrors.New(senverrors.CodeUndefinedVariable,
			"fragment %q references undefined configuration key %q", fragment, m[1])
	}

	if m := embeddedCodeRe.FindStringSubmatch(err.Error()); m != nil {
		return senverrors.New(senverrors.Code(m[1]), "%s", m[2])
	}

	return senverrors.Wrap(err, senverrors.CodeInternal,
		"rendering fragment %q", fragment)
}

// tidy strips trailing whitespace from every line and normalizes the
// artifact to end with exactly one newline.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
}
