package project

import (
	"github.com/s2e-tools/senv/internal/binfmt"
	"github.com/s2e-tools/senv/internal/env"
	senverrors "github.com/s2e-tools/senv/internal/errors"
	"github.com/s2e-tools/senv/internal/images"
)

// Options are the user-supplied knobs for project creation, shared by the
// CLI and by embedding code calling the resolver directly.
type Options struct {
	Name                string
	Image               string
	TargetArgs          []string
	UseSeeds            bool
	EnablePovGeneration bool
	SymArgs             []int

	// Globals is the merged global-defaults configuration layer.
	Globals map[string]any

	// Overrides is the highest-priority configuration layer. The special
	// key "allow_variant_mismatch" acknowledges a classification/variant
	// mismatch that would otherwise be rejected.
	Overrides map[string]any
}

// Variant is the capability set every project implementation exposes.
type Variant interface {
	// Name is the stable variant identifier used by --variant.
	Name() string

	// Configure assembles the project configuration for a classified
	// target by layered merge. The returned Config is complete except for
	// image-derived keys, which the resolver merges after image selection.
	Configure(e *env.Environment, cls binfmt.Classification, opts Options) (Config, error)

	// Create materializes the project directory and returns its path.
	Create(e *env.Environment, cfg Config, force bool) (string, error)

	// IsValidImage reports whether the given image can run the target.
	IsValidImage(cls binfmt.Classification, img images.Descriptor) bool

	// Instructions renders the post-creation usage text for the project.
	Instructions(cfg Config) (string, error)
}

// Predicate decides whether a variant handles a classification.
type Predicate func(binfmt.Classification) bool

// Factory constructs a fresh variant instance.
type Factory func() Variant

type registration struct {
	name string
	// pred drives automatic variant selection from a classification.
	pred Predicate
	// accepts is the broader semantic check used to validate a forced
	// variant. Usually identical to pred; hint-only variants never
	// auto-match but still accept some classifications.
	accepts Predicate
	make    Factory
}

// Registry maps target classifications to project variants. Predicates
// are evaluated in registration order and the first match wins, so
// builtin variants must be registered before any custom variant that
// could shadow them. A variant can always be force-selected by name,
// bypassing predicate matching entirely.
type Registry struct {
	entries []registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a variant. Order matters: first match wins.
func (r *Registry) Register(name string, pred Predicate, factory Factory) {
	r.entries = append(r.entries, registration{name: name, pred: pred, accepts: pred, make: factory})
}

// RegisterHintOnly appends a variant that is never selected automatically
// and must be requested by name. The accepts predicate bounds which
// classifications the forced selection is valid for.
func (r *Registry) RegisterHintOnly(name string, accepts Predicate, factory Factory) {
	never := func(binfmt.Classification) bool { return false }
	r.entries = append(r.entries, registration{name: name, pred: never, accepts: accepts, make: factory})
}

// Resolve selects the variant for a classification, or fails with an
// UnsupportedTargetError when no predicate matches.
func (r *Registry) Resolve(cls binfmt.Classification) (Variant, error) {
	for _, entry := range r.entries {
		if entry.pred(cls) {
			return entry.make(), nil
		}
	}
	return nil, senverrors.New(senverrors.CodeUnsupportedTarget,
		"no project variant supports %s targets (format %s)", cls.Path, cls.Format)
}

// ByName force-selects a variant, bypassing predicates.
func (r *Registry) ByName(name string) (Variant, error) {
	for _, entry := range r.entries {
		if entry.name == name {
			return entry.make(), nil
		}
	}
	return nil, senverrors.New(senverrors.CodeUnsupportedTarget,
		"unknown project variant %q (available: %v)", name, r.Names())
}

// Accepts reports whether the named variant can handle the
// classification. Used for semantic validation of forced variants.
func (r *Registry) Accepts(name string, cls binfmt.Classification) bool {
	for _, entry := range r.entries {
		if entry.name == name {
			return entry.accepts(cls)
		}
	}
	return false
}

// Names lists registered variant names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, entry := range r.entries {
		names[i] = entry.name
	}
	return names
}

// Builtin returns a registry with the builtin variants registered in
// their canonical order. Callers extending senv with custom variants must
// register them after these.
func Builtin() *Registry {
	r := NewRegistry()

	r.Register(VariantCGC,
		func(cls binfmt.Classification) bool { return cls.Format == binfmt.FormatCGC },
		func() Variant { return newCGCVariant() })

	r.Register(VariantLinux,
		func(cls binfmt.Classification) bool { return cls.Format == binfmt.FormatELF },
		func() Variant { return newLinuxVariant() })

	r.Register(VariantWindowsDLL,
		func(cls binfmt.Classification) bool { return cls.Format == binfmt.FormatPEDLL },
		func() Variant { return newWindowsDLLVariant() })

	r.Register(VariantWindows,
		func(cls binfmt.Classification) bool { return cls.Format == binfmt.FormatPEExe },
		func() Variant { return newWindowsVariant() })

	// Drivers cannot be told apart from plain PE images by header
	// classification alone, so this variant is hint-only: it accepts any
	// PE target but is never chosen automatically.
	r.RegisterHintOnly(VariantWindowsDriver,
		func(cls binfmt.Classification) bool {
			return cls.Format == binfmt.FormatPEExe || cls.Format == binfmt.FormatPEDLL
		},
		func() Variant { return newWindowsDriverVariant() })

	return r
}
