// Package images reads VM image descriptors from an environment's images
// directory and selects compatible images for analysis targets. Each built
// image lives in images/<name>/ with an image.json descriptor; the raw
// disk file next to it is opaque to senv and consumed only by the external
// engine.
package images

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	senverrors "github.com/s2e-tools/senv/internal/errors"
)

// DescriptorFile is the per-image JSON descriptor name.
const DescriptorFile = "image.json"

// DiskImageFile is the raw disk file the external engine boots.
const DiskImageFile = "image.raw.s2e"

// OSDesc describes the guest operating system of an image.
type OSDesc struct {
	Name          string   `json:"name"`
	Arch          string   `json:"arch"`
	Version       string   `json:"version,omitempty"`
	BinaryFormats []string `json:"binary_formats"`
}

// Supports reports whether the guest OS can load binaries of the given
// container format name (e.g. "elf", "pe", "decree").
func (o OSDesc) Supports(format string) bool {
	for _, f := range o.BinaryFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Descriptor is the parsed image.json of one built image, plus the
// resolved path of its disk file.
type Descriptor struct {
	Name           string `json:"name"`
	Memory         string `json:"memory"`
	Snapshot       string `json:"snapshot"`
	QEMUBuild      string `json:"qemu_build"`
	QEMUExtraFlags string `json:"qemu_extra_flags,omitempty"`
	OS             OSDesc `json:"os"`

	// Path is derived from the descriptor location, not stored in it.
	Path string `json:"path,omitempty"`
}

// Load reads the descriptor of the image in the given directory.
func Load(imageDir string) (Descriptor, error) {
	data, err := os.ReadFile(filepath.Join(imageDir, DescriptorFile))
	if err != nil {
		return Descriptor{}, senverrors.Wrap(err, senverrors.CodeNoCompatibleImage,
			"image %s has no descriptor; was it built or downloaded?", filepath.Base(imageDir))
	}

	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return Descriptor{}, senverrors.Wrap(err, senverrors.CodeNoCompatibleImage,
			"malformed descriptor for image %s", filepath.Base(imageDir))
	}

	if desc.Name == "" {
		desc.Name = filepath.Base(imageDir)
	}
	desc.Path = filepath.Join(imageDir, DiskImageFile)

	return desc, nil
}

// List returns the descriptors of all built images under imagesRoot,
// sorted by name so that downstream selection is deterministic.
// Directories without a descriptor are skipped, not errors: an images
// directory legitimately holds half-built images.
func List(imagesRoot string) ([]Descriptor, error) {
	entries, err := os.ReadDir(imagesRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, senverrors.Wrap(err, senverrors.CodeInternal, "reading images directory")
	}

	var descs []Descriptor
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		desc, err := Load(filepath.Join(imagesRoot, entry.Name()))
		if err != nil {
			continue
		}
		descs = append(descs, desc)
	}

	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })

	return descs, nil
}

// SelectCompatible returns the first image (in name order) accepted by the
// compatibility predicate, or a NoCompatibleImageError when none is.
func SelectCompatible(descs []Descriptor, compatible func(Descriptor) bool) (Descriptor, error) {
	for _, desc := range descs {
		if compatible(desc) {
			return desc, nil
		}
	}
	return Descriptor{}, senverrors.New(senverrors.CodeNoCompatibleImage,
		"no compatible image available for this target; build or download one first")
}

// Find returns the named image from descs.
func Find(descs []Descriptor, name string) (Descriptor, error) {
	for _, desc := range descs {
		if desc.Name == name {
			return desc, nil
		}
	}
	return Descriptor{}, senverrors.New(senverrors.CodeNoCompatibleImage,
		"image %q does not exist in this environment", name)
}
