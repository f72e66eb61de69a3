package project

import (
	"github.com/s2e-tools/senv/internal/binfmt"
	"github.com/s2e-tools/senv/internal/env"
	senverrors "github.com/s2e-tools/senv/internal/errors"
	"github.com/s2e-tools/senv/internal/images"
	"github.com/s2e-tools/senv/internal/logging"
)

// allowVariantMismatchKey is the override that acknowledges a forced
// variant whose semantic check rejects the classified target.
const allowVariantMismatchKey = "allow_variant_mismatch"

// Resolver turns a target path plus user options into a fully validated
// project resolution: classification, variant, image, and configuration.
type Resolver struct {
	env      *env.Environment
	registry *Registry
	log      logging.Logger
}

// NewResolver creates a resolver over an environment and a variant
// registry. A nil log discards diagnostics.
func NewResolver(e *env.Environment, registry *Registry, log logging.Logger) *Resolver {
	if log == nil {
		log = logging.Discard()
	}
	return &Resolver{env: e, registry: registry, log: log.WithComponent("resolver")}
}

// Resolution is the validated outcome of Resolve. Config contains every
// required key and is ready for materialization.
type Resolution struct {
	Variant        Variant
	Config         Config
	Classification binfmt.Classification
	Image          images.Descriptor
}

// Resolve classifies the target, selects a variant (by hint or by
// classification), picks a compatible image, and assembles the final
// configuration. The target is always classified, even under a variant
// hint, so that a hint contradicting the binary is caught here rather
// than at analysis time.
func (r *Resolver) Resolve(targetPath, variantHint string, opts Options) (*Resolution, error) {
	cls, err := binfmt.Classify(targetPath)
	if err != nil {
		return nil, err
	}

	r.log.Debug("classified target",
		"path", cls.Path, "format", cls.Format.String(), "bits", cls.Bits)

	variant, err := r.selectVariant(cls, variantHint, opts)
	if err != nil {
		return nil, err
	}

	if variant.Name() == VariantWindowsDLL && opts.UseSeeds {
		r.log.Warn("seed files are not supported for DLL targets, ignoring",
			"target", cls.Path)
	}

	cfg, err := variant.Configure(r.env, cls, opts)
	if err != nil {
		return nil, err
	}

	img, err := r.selectImage(variant, cls, opts)
	if err != nil {
		return nil, err
	}

	r.log.Debug("selected image", "image", img.Name, "arch", img.OS.Arch)

	cfg = cfg.Merge(map[string]any{
		"image_name":             img.Name,
		"image_arch":             img.OS.Arch,
		"image_path":             img.Path,
		"image_memory":           img.Memory,
		"image_snapshot":         img.Snapshot,
		"image_qemu_build":       img.QEMUBuild,
		"image_qemu_extra_flags": img.QEMUExtraFlags,
	})

	// User overrides are the last word, above even image-derived keys.
	if len(opts.Overrides) > 0 {
		cfg = cfg.Merge(opts.Overrides)
	}

	if err := cfg.Require(requiredKeys...); err != nil {
		return nil, err
	}

	r.warnSymbolicInputs(cfg)

	return &Resolution{
		Variant:        variant,
		Config:         cfg,
		Classification: cls,
		Image:          img,
	}, nil
}

// warnSymbolicInputs flags configurations that will run but explore
// nothing useful: a target with no symbolic input at all, or seeds that
// have no delivery path. Variants that handle inputs themselves (Decree)
// suppress these via the warn_* keys.
func (r *Resolver) warnSymbolicInputs(cfg Config) {
	hasSymbolicInput := cfg.Bool("use_symb_input_file") || len(cfg.Ints("sym_args")) > 0

	if cfg.Bool("warn_input_file") && !hasSymbolicInput {
		r.log.Warn("target has no symbolic inputs; mark an argument with @@ or use --sym-args",
			"target", cfg.String("target"))
	}

	if cfg.Bool("warn_seeds") && cfg.Bool("use_seeds") && !cfg.Bool("use_symb_input_file") {
		r.log.Warn("seeds are enabled but no argument is marked with @@; seed files will not reach the target",
			"target", cfg.String("target"))
	}
}

func (r *Resolver) selectVariant(cls binfmt.Classification, hint string, opts Options) (Variant, error) {
	if hint == "" {
		return r.registry.Resolve(cls)
	}

	variant, err := r.registry.ByName(hint)
	if err != nil {
		return nil, err
	}

	if !r.registry.Accepts(hint, cls) {
		if overrideBool(opts.Overrides, allowVariantMismatchKey) {
			r.log.Warn("variant does not match the classified target, proceeding on override",
				"variant", hint, "format", cls.Format.String())
			return variant, nil
		}
		return nil, senverrors.New(senverrors.CodeInvalidConfiguration,
			"target %s is a %s binary and cannot be built as a %q project",
			cls.Path, cls.Format, hint)
	}

	return variant, nil
}

func (r *Resolver) selectImage(variant Variant, cls binfmt.Classification, opts Options) (images.Descriptor, error) {
	descs, err := images.List(r.env.ImagesPath())
	if err != nil {
		return images.Descriptor{}, err
	}

	if opts.Image != "" {
		img, err := images.Find(descs, opts.Image)
		if err != nil {
			return images.Descriptor{}, err
		}
		if !variant.IsValidImage(cls, img) {
			return images.Descriptor{}, senverrors.New(senverrors.CodeInvalidConfiguration,
				"image %q cannot run this target (guest %s/%s)",
				img.Name, img.OS.Name, img.OS.Arch)
		}
		return img, nil
	}

	return images.SelectCompatible(descs, func(d images.Descriptor) bool {
		return variant.IsValidImage(cls, d)
	})
}

func overrideBool(overrides map[string]any, key string) bool {
	v, _ := overrides[key].(bool)
	return v
}
