// Package env resolves and manages senv analysis environments. An
// environment is a directory tree (projects/, images/, build/, source/,
// install/) whose root carries the s2e.yaml marker file. The marker is the
// sole signal that a directory is a valid environment: every
// environment-scoped command fails when it is absent.
package env

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	senverrors "github.com/s2e-tools/senv/internal/errors"
)

// MarkerFile is the name of the file that identifies an environment root
// and stores environment-local settings.
const MarkerFile = "s2e.yaml"

// EnvVar is the environment variable consulted when no explicit --env path
// is given.
const EnvVar = "S2EDIR"

// SettingsVersion is written into newly created marker files.
const SettingsVersion = 1

// Settings are the environment-local options stored in the marker file.
type Settings struct {
	Version      int    `yaml:"version"`
	Disassembler string `yaml:"disassembler,omitempty"`
	QEMUPath     string `yaml:"qemu_path,omitempty"`
}

// Environment is an on-disk analysis environment, resolved once per
// command invocation and threaded through as a parameter.
type Environment struct {
	Root     string
	Settings Settings
}

// subdirs are created by Init and expected by environment-scoped commands.
var subdirs = []string{"build", "images", "install", "projects", "source"}

// Resolve locates an environment. Precedence: the explicit path, the
// S2EDIR environment variable, then walking up from the current working
// directory looking for the marker file.
func Resolve(explicit string) (*Environment, error) {
	if explicit != "" {
		return Load(explicit)
	}

	if dir := os.Getenv(EnvVar); dir != "" {
		return Load(dir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, senverrors.Wrap(err, senverrors.CodeNoEnvironment,
			"cannot determine working directory")
	}

	for dir := cwd; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, MarkerFile)); err == nil {
			return Load(dir)
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}

	return nil, senverrors.New(senverrors.CodeNoEnvironment,
		"no environment found: set %s, use --env, or run inside an initialized environment",
		EnvVar)
}

// Load opens the environment rooted at dir. The directory must contain the
// s2e.yaml marker file; anything else is not an environment, even if other
// expected subdirectories are present.
func Load(dir string) (*Environment, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, senverrors.Wrap(err, senverrors.CodeNoEnvironment, "invalid environment path %s", dir)
	}

	data, err := os.ReadFile(filepath.Join(root, MarkerFile))
	if err != nil {
		return nil, senverrors.New(senverrors.CodeNoEnvironment,
			"%s does not look like an analysis environment: it does not contain %s", root, MarkerFile)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, senverrors.Wrap(err, senverrors.CodeNoEnvironment,
			"malformed %s in %s", MarkerFile, root)
	}

	return &Environment{Root: root, Settings: settings}, nil
}

// Init creates a new environment at dir: the directory layout plus the
// marker file. An existing marker is refused unless force is set, so that
// two environments are never silently merged.
func Init(dir string, force bool) (*Environment, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, senverrors.Wrap(err, senverrors.CodeInvalidConfiguration, "invalid environment path %s", dir)
	}

	marker := filepath.Join(root, MarkerFile)
	if _, err := os.Stat(marker); err == nil && !force {
		return nil, senverrors.New(senverrors.CodeInvalidConfiguration,
			"%s already contains an environment (%s exists); use --force to reinitialize", root, MarkerFile)
	}

	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, senverrors.Wrap(err, senverrors.CodeInternal, "creating %s", sub)
		}
	}

	e := &Environment{Root: root, Settings: Settings{Version: SettingsVersion}}
	if err := e.WriteSettings(); err != nil {
		return nil, err
	}

	return e, nil
}

// WriteSettings persists the environment settings back into the marker
// file.
func (e *Environment) WriteSettings() error {
	data, err := yaml.Marshal(e.Settings)
	if err != nil {
		return senverrors.Wrap(err, senverrors.CodeInternal, "encoding %s", MarkerFile)
	}

	if err := os.WriteFile(filepath.Join(e.Root, MarkerFile), data, 0o644); err != nil {
		return senverrors.Wrap(err, senverrors.CodeInternal, "writing %s", MarkerFile)
	}

	return nil
}

// Path joins path elements onto the environment root.
func (e *Environment) Path(parts ...string) string {
	return filepath.Join(append([]string{e.Root}, parts...)...)
}

// ProjectsPath joins path elements onto the projects directory.
func (e *Environment) ProjectsPath(parts ...string) string {
	return e.Path(append([]string{"projects"}, parts...)...)
}

// ImagesPath joins path elements onto the images directory.
func (e *Environment) ImagesPath(parts ...string) string {
	return e.Path(append([]string{"images"}, parts...)...)
}

// BuildPath joins path elements onto the engine build directory.
func (e *Environment) BuildPath(parts ...string) string {
	return e.Path(append([]string{"build"}, parts...)...)
}

// SourcePath joins path elements onto the engine source directory.
func (e *Environment) SourcePath(parts ...string) string {
	return e.Path(append([]string{"source"}, parts...)...)
}

// InstallPath joins path elements onto the engine install directory.
func (e *Environment) InstallPath(parts ...string) string {
	return e.Path(append([]string{"install"}, parts...)...)
}

// Projects lists the names of project directories under projects/, sorted
// by name.
func (e *Environment) Projects() ([]string, error) {
	entries, err := os.ReadDir(e.ProjectsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, senverrors.Wrap(err, senverrors.CodeInternal, "reading projects directory")
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}
