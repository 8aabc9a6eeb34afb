// Package loader reads a bare RV64 ELF image into a hart-visible address
// space, per spec §6's "ELF loader (collaborator)".
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/kelleyrw/rv64run/internal/log"
)

// ErrLoad wraps every failure this package returns.
var ErrLoad = errors.New("loader error")

// Memory is the write side of the address space the loader populates. It is
// satisfied by *bus.Ram; the bus itself is not used here since PT_LOAD
// segments are laid out in physical RAM and never hit a device register.
type Memory interface {
	WriteAt(offset uint64, data []byte) bool
}

// Image is the result of a successful load: where execution should start,
// and the entry point the ELF header itself named (which callers may prefer
// to honour instead, per spec §6).
type Image struct {
	StartPC    uint64
	EntryPoint uint64
}

// Load reads every PT_LOAD segment from r and writes it into mem at
// vaddr-ramBase, zero-filling the bss tail between filesz and memsz. mem
// coordinates map the ELF's virtual addresses directly to RAM offsets
// relative to ramBase; a segment outside [ramBase, ramBase+ramSize) is a
// load failure.
func Load(r io.ReaderAt, mem Memory, ramBase, startPC uint64, logger *log.Logger) (Image, error) {
	if logger == nil {
		logger = log.DefaultLogger()
	}

	f, err := elf.NewFile(r)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 {
		return Image{}, fmt.Errorf("%w: not a 64-bit ELF", ErrLoad)
	}

	if f.Machine != elf.EM_RISCV {
		return Image{}, fmt.Errorf("%w: not a RISC-V ELF", ErrLoad)
	}

	loaded := 0

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}

		if prog.Vaddr < ramBase {
			return Image{}, fmt.Errorf("%w: segment at %#x below RAM base %#x", ErrLoad, prog.Vaddr, ramBase)
		}

		offset := prog.Vaddr - ramBase

		data := make([]byte, prog.Memsz)
		if _, err := io.ReadFull(prog.Open(), data[:prog.Filesz]); err != nil {
			return Image{}, fmt.Errorf("%w: reading segment at %#x: %w", ErrLoad, prog.Vaddr, err)
		}

		// data[prog.Filesz:] is already zero: the bss tail spec §6 requires.
		if !mem.WriteAt(offset, data) {
			return Image{}, fmt.Errorf("%w: segment at %#x out of range", ErrLoad, prog.Vaddr)
		}

		logger.Debug("loaded segment", "vaddr", prog.Vaddr, "filesz", prog.Filesz, "memsz", prog.Memsz)

		loaded++
	}

	if loaded == 0 {
		return Image{}, fmt.Errorf("%w: no PT_LOAD segments", ErrLoad)
	}

	img := Image{StartPC: startPC, EntryPoint: f.Entry}

	logger.Info("image loaded", "segments", loaded, "entry", f.Entry, "start_pc", startPC)

	return img, nil
}

// LoadRaw writes code directly to mem at offset, with no ELF framing. It
// exists for test fixtures that hand-assemble a handful of instructions
// rather than link a full image.
func LoadRaw(mem Memory, offset uint64, code []byte) error {
	if len(code) == 0 {
		return fmt.Errorf("%w: empty code", ErrLoad)
	}

	if !mem.WriteAt(offset, code) {
		return fmt.Errorf("%w: code at %#x out of range", ErrLoad, offset)
	}

	return nil
}
