// Package binfmt classifies analysis targets by inspecting container
// format metadata. Classification branches purely on header bytes (magic
// values, ELF program headers, PE characteristics) and never on file names
// or extensions, and it never looks at instruction content.
package binfmt

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	senverrors "github.com/s2e-tools/senv/internal/errors"
)

// Format is the recognized executable container format of a target.
type Format int

const (
	FormatUnknown Format = iota
	FormatELF
	FormatPEExe
	FormatPEDLL
	FormatCGC
)

// String returns the canonical name of the format.
func (f Format) String() string {
	switch f {
	case FormatELF:
		return "elf"
	case FormatPEExe:
		return "pe_exe"
	case FormatPEDLL:
		return "pe_dll"
	case FormatCGC:
		return "cgc"
	default:
		return "unknown"
	}
}

// LinkMode describes how an ELF target is linked. Non-ELF formats carry
// LinkNone.
type LinkMode int

const (
	LinkNone LinkMode = iota
	LinkStatic
	LinkDynamic
)

// String returns the canonical name of the link mode.
func (m LinkMode) String() string {
	switch m {
	case LinkStatic:
		return "static"
	case LinkDynamic:
		return "dynamic"
	default:
		return "n/a"
	}
}

// Classification is the immutable result of sniffing one target file.
type Classification struct {
	Format   Format
	Bits     int
	LinkMode LinkMode
	Path     string
}

// OS returns the guest operating system implied by the format, or "" for
// unknown targets.
func (c Classification) OS() string {
	switch c.Format {
	case FormatELF:
		return "linux"
	case FormatPEExe, FormatPEDLL:
		return "windows"
	case FormatCGC:
		return "decree"
	default:
		return ""
	}
}

// Arch returns the target architecture name used by image descriptors.
func (c Classification) Arch() string {
	if c.Format == FormatUnknown {
		return ""
	}
	if c.Bits == 64 {
		return "x86_64"
	}
	return "i386"
}

// headerWindow bounds how much of the file identification may read. It
// covers the ELF and PE headers of any real-world binary; program headers
// outside the window are read with explicit offsets.
const headerWindow = 4096

const (
	ptDynamic = 2
	ptInterp  = 3

	imageFileDLL     = 0x2000
	peOptMagic32     = 0x10b
	peOptMagic64     = 0x20b
	elfClass32       = 1
	elfClass64       = 2
	elfDataLittle    = 1
	elfDataBig       = 2
	dosHeaderLfanew  = 0x3c
	coffHeaderSize   = 20
	peSignatureBytes = 4
)

// Classify inspects the file at path and returns its classification. An
// unreadable path is an error; an unrecognized format is not, it yields
// FormatUnknown. Symbolic links are resolved first so that the
// classification reflects the real file.
func Classify(path string) (Classification, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return Classification{}, senverrors.Wrap(err, senverrors.CodeUnreadableFile,
			"cannot resolve target %s", path)
	}

	f, err := os.Open(resolved)
	if err != nil {
		return Classification{}, senverrors.Wrap(err, senverrors.CodeUnreadableFile,
			"cannot open target %s", path)
	}
	defer f.Close()

	header := make([]byte, headerWindow)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Classification{}, senverrors.Wrap(err, senverrors.CodeUnreadableFile,
			"cannot read target %s", path)
	}
	header = header[:n]

	cls := Classification{Format: FormatUnknown, Path: path}

	switch {
	case isCGC(header):
		cls.Format = FormatCGC
		cls.Bits = 32
	case isELF(header):
		classifyELF(f, header, &cls)
	case isPE(header):
		classifyPE(header, &cls)
	}

	return cls, nil
}

func isCGC(header []byte) bool {
	return len(header) >= 4 &&
		header[0] == 0x7f && header[1] == 'C' && header[2] == 'G' && header[3] == 'C'
}

func isELF(header []byte) bool {
	return len(header) >= 4 &&
		header[0] == 0x7f && header[1] == 'E' && header[2] == 'L' && header[3] == 'F'
}

func isPE(header []byte) bool {
	return len(header) >= 2 && header[0] == 'M' && header[1] == 'Z'
}

// classifyELF fills in bit width and link mode. Link mode is derived from
// the program header table: a PT_DYNAMIC or PT_INTERP entry means the
// binary is dynamically linked.
func classifyELF(f io.ReaderAt, header []byte, cls *Classification) {
	if len(header) < 0x3a {
		return
	}

	var order binary.ByteOrder
	switch header[5] {
	case elfDataLittle:
		order = binary.LittleEndian
	case elfDataBig:
		order = binary.BigEndian
	default:
		return
	}

	var (
		phoff     uint64
		phentsize uint16
		phnum     uint16
	)

	switch header[4] {
	case elfClass32:
		cls.Bits = 32
		phoff = uint64(order.Uint32(header[0x1c:]))
		phentsize = order.Uint16(header[0x2a:])
		phnum = order.Uint16(header[0x2c:])
	case elfClass64:
		cls.Bits = 64
		phoff = order.Uint64(header[0x20:])
		phentsize = order.Uint16(header[0x36:])
		phnum = order.Uint16(header[0x38:])
	default:
		return
	}

	cls.Format = FormatELF
	cls.LinkMode = LinkStatic

	if phnum == 0 || phentsize < 4 {
		return
	}

	entry := make([]byte, 4)
	for i := uint16(0); i < phnum; i++ {
		off := int64(phoff) + int64(i)*int64(phentsize)
		if _, err := f.ReadAt(entry, off); err != nil {
			return
		}
		ptype := order.Uint32(entry)
		if ptype == ptDynamic || ptype == ptInterp {
			cls.LinkMode = LinkDynamic
			return
		}
	}
}

// classifyPE fills in bit width and distinguishes EXE from DLL via the
// IMAGE_FILE_DLL characteristics bit.
func classifyPE(header []byte, cls *Classification) {
	if len(header) < dosHeaderLfanew+4 {
		return
	}

	lfanew := binary.LittleEndian.Uint32(header[dosHeaderLfanew:])
	coff := int(lfanew) + peSignatureBytes
	optMagicOff := coff + coffHeaderSize

	if int(lfanew) < 0 || optMagicOff+2 > len(header) {
		return
	}

	if !(header[lfanew] == 'P' && header[lfanew+1] == 'E' &&
		header[lfanew+2] == 0 && header[lfanew+3] == 0) {
		return
	}

	characteristics := binary.LittleEndian.Uint16(header[coff+18:])
	optMagic := binary.LittleEndian.Uint16(header[optMagicOff:])

	switch optMagic {
	case peOptMagic32:
		cls.Bits = 32
	case peOptMagic64:
		cls.Bits = 64
	default:
		return
	}

	if characteristics&imageFileDLL != 0 {
		cls.Format = FormatPEDLL
	} else {
		cls.Format = FormatPEExe
	}
}
