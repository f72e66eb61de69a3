package project

import (
	"os"
	"path/filepath"

	senverrors "github.com/s2e-tools/senv/internal/errors"
)

// Artifact is one generated project file: a name relative to the project
// directory, its content, and its file mode.
type Artifact struct {
	Name    string
	Content []byte
	Mode    os.FileMode
}

// ArtifactRenderer produces the full artifact set for a project
// configuration. Rendering must not touch the file system: the
// materializer calls it before any write so a template failure never
// leaves a half-written project.
type ArtifactRenderer interface {
	RenderArtifacts(cfg Config) ([]Artifact, error)
}

// Materialize writes a project directory transactionally. All artifacts
// are rendered first, then written into a staging directory next to the
// destination together with symlinks to the target files, and the staging
// directory is renamed into place only on full success. On any failure it
// is removed and nothing appears under projectsDir.
func Materialize(projectsDir, name string, cfg Config, renderer ArtifactRenderer, force bool) (string, error) {
	dest := filepath.Join(projectsDir, name)

	switch _, err := os.Stat(dest); {
	case err == nil:
		if !force {
			return "", senverrors.New(senverrors.CodeProjectExists,
				"project %q already exists; remove it or use --force", name)
		}
	case !os.IsNotExist(err):
		return "", senverrors.Wrap(err, senverrors.CodeInternal, "checking project %q", name)
	}

	artifacts, err := renderer.RenderArtifacts(cfg)
	if err != nil {
		return "", senverrors.WithContext(err, "rendering artifacts for project %q", name)
	}

	if err := os.MkdirAll(projectsDir, 0o755); err != nil {
		return "", senverrors.Wrap(err, senverrors.CodeInternal, "creating projects directory")
	}

	// Stage inside projectsDir so the final rename never crosses file
	// systems.
	staging, err := os.MkdirTemp(projectsDir, "."+name+".staging-")
	if err != nil {
		return "", senverrors.Wrap(err, senverrors.CodeInternal, "creating staging directory")
	}

	if err := writeArtifacts(staging, cfg, artifacts); err != nil {
		os.RemoveAll(staging)
		return "", senverrors.WithContext(err, "materializing project %q", name)
	}

	if force {
		if err := os.RemoveAll(dest); err != nil {
			os.RemoveAll(staging)
			return "", senverrors.Wrap(err, senverrors.CodeInternal, "removing existing project %q", name)
		}
	}

	if err := os.Rename(staging, dest); err != nil {
		os.RemoveAll(staging)
		return "", senverrors.Wrap(err, senverrors.CodeInternal, "committing project %q", name)
	}

	return dest, nil
}

func writeArtifacts(staging string, cfg Config, artifacts []Artifact) error {
	for _, a := range artifacts {
		path := filepath.Join(staging, a.Name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return senverrors.Wrap(err, senverrors.CodeInternal, "creating directory for %s", a.Name)
		}
		if err := os.WriteFile(path, a.Content, a.Mode); err != nil {
			return senverrors.Wrap(err, senverrors.CodeInternal, "writing %s", a.Name)
		}
	}

	// The target files must live inside the project directory: the guest
	// bootstrap fetches them through the host file server, which only
	// serves the project tree. Symlinks keep the originals in place.
	if targetPath := cfg.String("target_path"); targetPath != "" {
		srcDir := filepath.Dir(targetPath)
		for _, file := range cfg.Strings("target_files") {
			if err := os.Symlink(filepath.Join(srcDir, file), filepath.Join(staging, file)); err != nil {
				return senverrors.Wrap(err, senverrors.CodeInternal, "linking target file %s", file)
			}
		}
	}

	if cfg.Bool("use_seeds") {
		if err := os.MkdirAll(filepath.Join(staging, "seeds"), 0o755); err != nil {
			return senverrors.Wrap(err, senverrors.CodeInternal, "creating seeds directory")
		}
	}

	if cfg.Bool("use_recipes") {
		if err := os.MkdirAll(filepath.Join(staging, "recipes"), 0o755); err != nil {
			return senverrors.Wrap(err, senverrors.CodeInternal, "creating recipes directory")
		}
	}

	return nil
}
