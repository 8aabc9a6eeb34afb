package hart

// hart.go defines the Hart itself and assembles it from smaller parts:
// register file, CSR file, MMU, and decode cache. See spec §4.7.

import (
	"fmt"

	"github.com/kelleyrw/rv64run/internal/log"
)

// Bus is the address space a hart's MMU resolves physical addresses
// against: RAM and the memory-mapped devices behind it. size is a byte
// count of 1, 2, 4, or 8. A false return means the access failed (unmapped
// address, misaligned device register, or a device-specific failure) and
// the MMU must turn it into the matching access-fault trap.
type Bus interface {
	Load(addr Word, size int) (uint64, bool)
	Store(addr Word, size int, val uint64) bool
}

// decodeCacheSize bounds the fixed-capacity LRU cache of decoded
// instructions, keyed on the raw 32-bit instruction word.
const decodeCacheSize = 1024

// Hart is a single RV64GC-class hardware thread: the integer and (unused)
// floating-point register files, the CSR file, current privilege mode, the
// Sv39 MMU and its TLB, and the decode cache that makes repeated fetches of
// the same word cheap.
type Hart struct {
	PC   ProgramCounter
	X    XRegisters
	F    FRegisters
	Priv Privilege

	csr CSRFile
	mmu mmu

	wfi bool // latched by WFI, cleared when any interrupt line is pending.

	decodeCache decodeCache

	bus Bus
	id  uint64

	log *log.Logger
}

// OptionFn configures a Hart at construction. Each is called once, after
// the register and CSR files are reset but before the hart's first Tick.
type OptionFn func(*Hart)

// WithHartID sets the hart's internal identity, as returned by HartID.
// This is a single-hart emulator (spec.md's multi-hart concurrency is a
// Non-goal), so it has no effect on the mhartid CSR, which always reads 0.
func WithHartID(id uint64) OptionFn {
	return func(h *Hart) {
		h.id = id
	}
}

// WithLogger overrides the hart's logger.
func WithLogger(l *log.Logger) OptionFn {
	return func(h *Hart) { h.log = l }
}

// New creates a hart wired to bus, at the reset PC, with privilege mode M
// per spec §4.7, and applies opts.
func New(bus Bus, resetPC Word, opts ...OptionFn) *Hart {
	h := &Hart{
		bus: bus,
		log: log.DefaultLogger(),
	}

	h.mmu.bus = bus

	h.Reset(resetPC)

	for _, fn := range opts {
		fn(h)
	}

	return h
}

// Reset restores the hart to its power-on state: privilege M, the CSR file
// cleared, the TLB and decode cache flushed, and PC set to resetPC.
func (h *Hart) Reset(resetPC Word) {
	h.X = XRegisters{}
	h.F = FRegisters{}
	h.Priv = Machine
	h.csr.Reset()
	h.mmu.flush()
	h.decodeCache.reset()
	h.wfi = false
	h.PC = ProgramCounter(resetPC)
}

func (h *Hart) String() string {
	return fmt.Sprintf("PC: %s  PRIV: %s  X1(ra): %s  X2(sp): %s",
		h.PC, h.Priv, h.X.Get(X1), h.X.Get(X2))
}

// GetReg and SetReg are the executor's only access to the integer register
// file, per spec §4.7.
func (h *Hart) GetReg(r Reg) Word    { return h.X.Get(r) }
func (h *Hart) SetReg(r Reg, v Word) { h.X.Set(r, v) }

// GetPC and SetPC are the executor's only access to the program counter.
func (h *Hart) GetPC() Word   { return Word(h.PC) }
func (h *Hart) SetPC(pc Word) { h.PC = ProgramCounter(pc) }

// FlushTlb discards all cached address translations. (SFENCE.VMA itself
// flushes only the entries matching its vaddr/asid operands.)
func (h *Hart) FlushTlb() { h.mmu.flush() }

// ReadCSR and WriteCSR give the executor access to the CSR file for the
// CSRRW/CSRRS/CSRRC family. Legality (privilege level, read-only encoding)
// is checked by the executor before calling WriteCSR.
func (h *Hart) ReadCSR(addr uint16) uint64       { return h.csr.Read(addr) }
func (h *Hart) WriteCSR(addr uint16, val uint64) { h.csr.Write(addr, val) }

// HartID returns the hart's internal identity (not CSR-visible; mhartid
// always reads 0 in this single-hart emulator).
func (h *Hart) HartID() uint64 { return h.id }

// Halted reports whether the hart is parked in WFI, per spec §4.8 step 1.
func (h *Hart) Halted() bool { return h.wfi }

// InstRetired returns the instructions-retired counter (minstret).
func (h *Hart) InstRetired() uint64 { return h.csr.minstret }
