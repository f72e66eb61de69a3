package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/s2e-tools/senv/internal/binfmt"
	"github.com/s2e-tools/senv/internal/compose"
	"github.com/s2e-tools/senv/internal/env"
	senverrors "github.com/s2e-tools/senv/internal/errors"
	"github.com/s2e-tools/senv/internal/images"
)

// Builtin variant names, usable with --variant.
const (
	VariantLinux         = "linux"
	VariantWindows       = "windows"
	VariantWindowsDLL    = "windows_dll"
	VariantWindowsDriver = "windows_driver"
	VariantCGC           = "cgc"
)

// symbolicInputMarker in target arguments is substituted with a file that
// receives symbolic content at analysis time.
const symbolicInputMarker = "@@"

// core carries the state and behavior shared by all builtin variants:
// base configuration assembly, artifact rendering, and transactional
// creation. Each variant wraps a core with its own fragments and rules.
type core struct {
	name                 string
	luaFragment          string
	bootstrapFragment    string
	instructionsFragment string
	composer             *compose.Composer
}

func newCore(name, luaFragment, bootstrapFragment, instructionsFragment string) core {
	return core{
		name:                 name,
		luaFragment:          luaFragment,
		bootstrapFragment:    bootstrapFragment,
		instructionsFragment: instructionsFragment,
		composer:             compose.NewComposer(BuiltinFragments()),
	}
}

// Name implements Variant.
func (c *core) Name() string { return c.name }

// baseConfig assembles the variant-independent configuration layers:
// environment defaults, then global configuration, then keys derived from
// the target classification. User overrides are applied later by the
// resolver so they stay the highest-priority layer.
func (c *core) baseConfig(e *env.Environment, cls binfmt.Classification, opts Options) Config {
	targetName := filepath.Base(cls.Path)

	projectName := opts.Name
	if projectName == "" {
		projectName = strings.TrimSuffix(targetName, filepath.Ext(targetName))
	}
	projectDir := e.ProjectsPath(projectName)

	targetArgs := opts.TargetArgs
	if targetArgs == nil {
		targetArgs = []string{}
	}

	symArgs := opts.SymArgs
	if symArgs == nil {
		symArgs = []int{}
	}

	useSymbInput := false
	bootstrapArgs := make([]string, len(targetArgs))
	for i, arg := range targetArgs {
		if arg == symbolicInputMarker {
			useSymbInput = true
			bootstrapArgs[i] = "${SYMB_FILE}"
		} else {
			bootstrapArgs[i] = arg
		}
	}

	defaults := Config{
		"use_cupa":                true,
		"use_test_case_generator": true,
		"use_fault_injection":     false,
		"use_recipes":             false,
		"warn_seeds":              true,
		"warn_input_file":         true,
	}

	detected := map[string]any{
		"creation_time":         time.Now().Format(time.RFC3339),
		"env_dir":               e.Root,
		"project_name":          projectName,
		"project_dir":           projectDir,
		"target":                targetName,
		"target_path":           cls.Path,
		"target_arch":           cls.Arch(),
		"target_args":           targetArgs,
		"bootstrap_args":        bootstrapArgs,
		"target_files":          []string{targetName},
		"modules":               []string{targetName},
		"module_kernel_mode":    false,
		"processes":             []string{targetName},
		"sym_args":              symArgs,
		"use_symb_input_file":   useSymbInput,
		"use_seeds":             opts.UseSeeds,
		"seeds_dir":             filepath.Join(projectDir, "seeds"),
		"recipes_dir":           filepath.Join(projectDir, "recipes"),
		"enable_pov_generation": opts.EnablePovGeneration,
		"dynamically_linked":    cls.LinkMode == binfmt.LinkDynamic,
	}

	return defaults.Merge(opts.Globals).Merge(detected)
}

// Create implements Variant via the transactional materializer.
func (c *core) Create(e *env.Environment, cfg Config, force bool) (string, error) {
	return Materialize(e.ProjectsPath(), cfg.String("project_name"), cfg, c, force)
}

// RenderArtifacts renders every generated file for the project. Nothing
// here touches the file system.
func (c *core) RenderArtifacts(cfg Config) ([]Artifact, error) {
	launch, err := c.composer.Render("launch-s2e.sh", cfg.toMap())
	if err != nil {
		return nil, err
	}

	lua, err := c.composer.Render(c.luaFragment, cfg.toMap())
	if err != nil {
		return nil, err
	}

	bootstrap, err := c.composer.Render(c.bootstrapFragment, cfg.toMap())
	if err != nil {
		return nil, err
	}

	// The JSON description makes the project readable by other commands
	// and by embedding code. Map keys marshal in sorted order, keeping
	// the artifact deterministic.
	desc, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return nil, senverrors.Wrap(err, senverrors.CodeInternal, "encoding project description")
	}

	return []Artifact{
		{Name: "launch-s2e.sh", Content: []byte(launch), Mode: os.FileMode(0o755)},
		{Name: "s2e-config.lua", Content: []byte(lua), Mode: os.FileMode(0o644)},
		{Name: "bootstrap.sh", Content: []byte(bootstrap), Mode: os.FileMode(0o755)},
		{Name: "project.json", Content: append(desc, '\n'), Mode: os.FileMode(0o644)},
	}, nil
}

// Instructions implements Variant.
func (c *core) Instructions(cfg Config) (string, error) {
	return c.composer.Render(c.instructionsFragment, cfg.toMap())
}

// archCompatible rejects 64-bit targets on 32-bit guests. 32-bit targets
// run on either guest width.
func archCompatible(cls binfmt.Classification, img images.Descriptor) bool {
	return !(cls.Bits == 64 && img.OS.Arch != "x86_64")
}

//
// Linux applications
//

type linuxVariant struct{ core }

func newLinuxVariant() *linuxVariant {
	return &linuxVariant{newCore(VariantLinux,
		"s2e-config.linux.lua", "bootstrap.linux.sh", "instructions.linux.txt")}
}

func (v *linuxVariant) Configure(e *env.Environment, cls binfmt.Classification, opts Options) (Config, error) {
	cfg := v.baseConfig(e, cls, opts)
	return cfg.Merge(map[string]any{"project_type": VariantLinux}), nil
}

func (v *linuxVariant) IsValidImage(cls binfmt.Classification, img images.Descriptor) bool {
	return archCompatible(cls, img) && img.OS.Supports("elf")
}

//
// Windows executables
//

type windowsVariant struct{ core }

func newWindowsVariant() *windowsVariant {
	return &windowsVariant{newCore(VariantWindows,
		"s2e-config.windows.lua", "bootstrap.windows.sh", "instructions.windows.txt")}
}

func (v *windowsVariant) Configure(e *env.Environment, cls binfmt.Classification, opts Options) (Config, error) {
	cfg := v.baseConfig(e, cls, opts)
	return cfg.Merge(map[string]any{
		"project_type": VariantWindows,
		// Module names are matched case-insensitively by the guest
		// monitor; store them lower-case.
		"modules": lowercaseAll(cfg.Strings("modules")),
	}), nil
}

func (v *windowsVariant) IsValidImage(cls binfmt.Classification, img images.Descriptor) bool {
	return archCompatible(cls, img) && img.OS.Supports("pe")
}

//
// Windows DLLs
//

type windowsDLLVariant struct{ core }

func newWindowsDLLVariant() *windowsDLLVariant {
	return &windowsDLLVariant{newCore(VariantWindowsDLL,
		"s2e-config.windows.lua", "bootstrap.windows_dll.sh", "instructions.windows.txt")}
}

func (v *windowsDLLVariant) Configure(e *env.Environment, cls binfmt.Classification, opts Options) (Config, error) {
	cfg := v.baseConfig(e, cls, opts)

	// DLLs are driven through an export, not a process, and seeds have
	// no delivery path.
	overlay := map[string]any{
		"project_type": VariantWindowsDLL,
		"modules":      lowercaseAll(cfg.Strings("modules")),
		"processes":    []string{},
		"use_seeds":    false,
	}

	if len(cfg.Strings("target_args")) == 0 {
		overlay["target_args"] = []string{"DllEntryPoint"}
		overlay["bootstrap_args"] = []string{"DllEntryPoint"}
	}

	return cfg.Merge(overlay), nil
}

func (v *windowsDLLVariant) IsValidImage(cls binfmt.Classification, img images.Descriptor) bool {
	return archCompatible(cls, img) && img.OS.Supports("pe")
}

//
// Windows drivers
//

type windowsDriverVariant struct{ core }

func newWindowsDriverVariant() *windowsDriverVariant {
	return &windowsDriverVariant{newCore(VariantWindowsDriver,
		"s2e-config.windows.lua", "bootstrap.windows_driver.sh", "instructions.windows.txt")}
}

func (v *windowsDriverVariant) Configure(e *env.Environment, cls binfmt.Classification, opts Options) (Config, error) {
	cfg := v.baseConfig(e, cls, opts)

	// Only the .sys images are kernel modules the monitor can track;
	// anything else among the target files is support material.
	modules := driverModules(cfg.Strings("target_files"))
	if len(modules) == 0 {
		return nil, senverrors.New(senverrors.CodeInvalidConfiguration,
			"driver projects need a .sys target, got %s", cfg.String("target"))
	}

	return cfg.Merge(map[string]any{
		"project_type":       VariantWindowsDriver,
		"modules":            modules,
		"module_kernel_mode": true,
		"processes":          []string{},
		// Fault injection is how driver entry points get exercised.
		"use_fault_injection": true,
	}), nil
}

func driverModules(files []string) []string {
	var modules []string
	for _, file := range files {
		if strings.EqualFold(filepath.Ext(file), ".sys") {
			modules = append(modules, strings.ToLower(file))
		}
	}
	return modules
}

func (v *windowsDriverVariant) IsValidImage(cls binfmt.Classification, img images.Descriptor) bool {
	// Drivers must match the guest bit-width exactly.
	return img.OS.Name == "windows" && img.OS.Arch == cls.Arch()
}

//
// Decree CGC challenges
//

type cgcVariant struct{ core }

func newCGCVariant() *cgcVariant {
	return &cgcVariant{newCore(VariantCGC,
		"s2e-config.cgc.lua", "bootstrap.cgc.sh", "instructions.cgc.txt")}
}

func (v *cgcVariant) Configure(e *env.Environment, cls binfmt.Classification, opts Options) (Config, error) {
	cfg := v.baseConfig(e, cls, opts)

	if len(cfg.Strings("target_args")) > 0 {
		return nil, senverrors.New(senverrors.CodeInvalidConfiguration,
			"command line arguments are not supported for Decree binaries")
	}

	// Decree analysis always runs seed-driven with recipe-based PoV
	// generation and brings its own test case machinery.
	return cfg.Merge(map[string]any{
		"project_type":            VariantCGC,
		"use_seeds":               true,
		"use_recipes":             true,
		"enable_pov_generation":   true,
		"use_test_case_generator": false,
		"warn_seeds":              false,
		"warn_input_file":         false,
	}), nil
}

func (v *cgcVariant) IsValidImage(cls binfmt.Classification, img images.Descriptor) bool {
	return archCompatible(cls, img) && img.OS.Supports("decree")
}

func lowercaseAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
