package hart

// mmu.go implements the Sv39 memory management unit: TLB lookup, the
// three-level page-table walk, and the Fetch/Load/Store entry points the
// executor drives through the hart's public interface. See spec §4.9.

const tlbSize = 32

// tlbEntry is one cached virtual-to-physical translation.
type tlbEntry struct {
	tag      uint64 // virtual-address prefix, masked to pageSize's width.
	ppn      uint64 // 56-bit physical page number.
	asid     uint16
	pageSize uint8 // 0 = invalid/empty slot, 1/2/3 = 4 KiB / 2 MiB / 1 GiB.
	r, w, x  bool
	u, g     bool
	a, d     bool
}

// pte bit layout (Sv39, 64-bit).
const (
	pteV = uint64(1) << 0
	pteR = uint64(1) << 1
	pteW = uint64(1) << 2
	pteX = uint64(1) << 3
	pteU = uint64(1) << 4
	pteG = uint64(1) << 5
	pteA = uint64(1) << 6
	pteD = uint64(1) << 7

	ptePPNShift = 10
	ptePPNMask  = uint64(1)<<44 - 1

	// pbmtShift/pbmtMask cover the Svpbmt reserved field (bits 62:61),
	// which this implementation requires to be zero.
	pbmtShift = 61
	pbmtMask  = uint64(0x3) << pbmtShift
)

// mmu is the Sv39 translation unit: a TLB and the bus it walks page tables
// and resolves physical accesses against.
type mmu struct {
	bus   Bus
	tlb   [tlbSize]tlbEntry
	index int // next FIFO replacement slot.
}

func (m *mmu) flush() {
	m.tlb = [tlbSize]tlbEntry{}
	m.index = 0
}

// flushMatching invalidates entries matching vaddr/asid per SFENCE.VMA
// semantics: vaddr==0 && asid==0 flushes everything.
func (m *mmu) flushMatching(vaddr Word, asid uint16) {
	if vaddr == 0 && asid == 0 {
		m.flush()
		return
	}

	for i := range m.tlb {
		e := &m.tlb[i]
		if e.pageSize == 0 {
			continue
		}

		if asid != 0 && !e.g && e.asid != asid {
			continue
		}

		if vaddr != 0 {
			width := pageOffsetBits(e.pageSize)
			if (uint64(vaddr)>>width)<<width != e.tag {
				continue
			}
		}

		*e = tlbEntry{}
	}
}

func pageOffsetBits(pageSize uint8) uint64 {
	return 12 + 9*uint64(pageSize-1)
}

func (m *mmu) lookup(vaddr Word, asid uint16) (*tlbEntry, bool) {
	for i := range m.tlb {
		e := &m.tlb[i]
		if e.pageSize == 0 {
			continue
		}

		if !e.g && e.asid != asid {
			continue
		}

		width := pageOffsetBits(e.pageSize)
		if (uint64(vaddr)>>width)<<width == e.tag {
			return e, true
		}
	}

	return nil, false
}

func (m *mmu) install(e tlbEntry) {
	m.tlb[m.index] = e
	m.index = (m.index + 1) % tlbSize
}

// walk performs the three-level Sv39 page-table walk for vaddr, rooted at
// satp.ppn. It returns the resolved entry (not yet installed in the TLB)
// or false if any level's PTE is invalid or malformed.
func (m *mmu) walk(vaddr Word, satpPPN uint64, asid uint16) (tlbEntry, bool) {
	vpn := [3]uint64{
		(uint64(vaddr) >> 12) & 0x1ff,
		(uint64(vaddr) >> 21) & 0x1ff,
		(uint64(vaddr) >> 30) & 0x1ff,
	}

	tableAddr := satpPPN << 12

	for level := 2; level >= 0; level-- {
		entryAddr := tableAddr + vpn[level]*8

		raw, ok := m.bus.Load(Word(entryAddr), 8)
		if !ok {
			return tlbEntry{}, false
		}

		if raw&pteV == 0 || (raw&pteW != 0 && raw&pteR == 0) || raw&pbmtMask != 0 {
			return tlbEntry{}, false
		}

		if raw&(pteR|pteW|pteX) != 0 {
			ppn := (raw >> ptePPNShift) & ptePPNMask

			// Superpage: the lower (2-level) PPN fields must be zero.
			if level > 0 {
				lowMask := uint64(1)<<(9*uint64(level)) - 1
				if ppn&lowMask != 0 {
					return tlbEntry{}, false
				}
			}

			width := 12 + 9*uint64(level)

			return tlbEntry{
				tag:      (uint64(vaddr) >> width) << width,
				ppn:      ppn,
				asid:     asid,
				pageSize: uint8(level + 1),
				r:        raw&pteR != 0,
				w:        raw&pteW != 0,
				x:        raw&pteX != 0,
				u:        raw&pteU != 0,
				g:        raw&pteG != 0,
				a:        raw&pteA != 0,
				d:        raw&pteD != 0,
			}, true
		}

		tableAddr = ((raw >> ptePPNShift) & ptePPNMask) << 12
	}

	return tlbEntry{}, false
}

// translate resolves vaddr to a physical address via the TLB, walking on a
// miss and installing the result. It does not apply permission checks;
// callers (fetch/load/store below) do that against the returned entry.
func (m *mmu) translate(vaddr Word, satpPPN uint64, asid uint16) (*tlbEntry, Word, bool) {
	e, ok := m.lookup(vaddr, asid)
	if !ok {
		walked, ok := m.walk(vaddr, satpPPN, asid)
		if !ok {
			return nil, 0, false
		}

		m.install(walked)

		e, ok = m.lookup(vaddr, asid)
		if !ok {
			return nil, 0, false
		}
	}

	width := pageOffsetBits(e.pageSize)
	offset := uint64(vaddr) &^ (^uint64(0) << width)
	pa := Word(e.ppn<<12 | offset)

	return e, pa, true
}

// pageCrosses reports whether a size-byte access starting at vaddr crosses
// a 4 KiB page boundary.
func pageCrosses(vaddr Word, size int) bool {
	return (uint64(vaddr)&0xfff)+uint64(size) > 0x1000
}

func (h *Hart) satpActive() bool {
	return h.csr.satp>>satpModeShift&0xf == SatpModeSv39
}

func (h *Hart) effectivePrivilege() Privilege {
	if h.csr.mstatus&mstatusMPRV != 0 {
		return Privilege((h.csr.mstatus & mstatusMPP) >> mstatusMPPShift)
	}

	return h.Priv
}

// Fetch reads a 32-bit instruction word at vaddr, per spec §4.9's Fetch
// rule: a word straddling the addr%4==2 half is split into two aligned
// 16-bit fetches so that one legally-mapped half-page doesn't cost a fault
// on the other.
func (h *Hart) Fetch(vaddr Word) (uint32, *Trap) {
	if uint64(vaddr)&0x3 == 2 {
		lo, trap := h.fetchHalf(vaddr)
		if trap != nil {
			return 0, trap
		}

		hi, trap := h.fetchHalf(vaddr + 2)
		if trap != nil {
			return 0, &Trap{Cause: trap.Cause, Tval: vaddr}
		}

		return uint32(lo) | uint32(hi)<<16, nil
	}

	return h.fetchAligned(vaddr)
}

func (h *Hart) fetchHalf(vaddr Word) (uint16, *Trap) {
	v, trap := h.fetchAny(vaddr, 2)
	return uint16(v), trap
}

func (h *Hart) fetchAligned(vaddr Word) (uint32, *Trap) {
	v, trap := h.fetchAny(vaddr, 4)
	return uint32(v), trap
}

func (h *Hart) fetchAny(vaddr Word, size int) (uint64, *Trap) {
	if h.Priv == Machine || !h.satpActive() {
		v, ok := h.bus.Load(vaddr, size)
		if !ok {
			return 0, trapInstrAccessFault(vaddr)
		}

		return v, nil
	}

	if pageCrosses(vaddr, size) {
		return 0, trapInstrMisaligned(vaddr)
	}

	asid := uint16((h.csr.satp >> satpAsidShift) & 0xffff)

	e, pa, ok := h.mmu.translate(vaddr, h.csr.satp&satpPPNMask, asid)
	if !ok {
		return 0, trapInstrPageFault(vaddr)
	}

	if !e.a || !e.x {
		return 0, trapInstrPageFault(vaddr)
	}

	if h.Priv == Supervisor && e.u {
		return 0, trapInstrPageFault(vaddr)
	}

	if h.Priv == User && !e.u {
		return 0, trapInstrPageFault(vaddr)
	}

	v, ok := h.bus.Load(pa, size)
	if !ok {
		return 0, trapInstrAccessFault(vaddr)
	}

	return v, nil
}

// Load reads size bytes (1, 2, 4, or 8) at vaddr, per spec §4.9's Load rule.
func (h *Hart) Load(vaddr Word, size int) (uint64, *Trap) {
	priv := h.effectivePrivilege()

	if !h.satpActive() || (h.Priv == Machine && h.csr.mstatus&mstatusMPRV == 0) {
		v, ok := h.bus.Load(vaddr, size)
		if !ok {
			return 0, trapLoadAccessFault(vaddr)
		}

		return v, nil
	}

	if priv == Machine {
		v, ok := h.bus.Load(vaddr, size)
		if !ok {
			return 0, trapLoadAccessFault(vaddr)
		}

		return v, nil
	}

	if pageCrosses(vaddr, size) {
		return 0, trapLoadMisaligned(vaddr)
	}

	asid := uint16((h.csr.satp >> satpAsidShift) & 0xffff)

	e, pa, ok := h.mmu.translate(vaddr, h.csr.satp&satpPPNMask, asid)
	if !ok {
		return 0, trapLoadPageFault(vaddr)
	}

	mxr := h.csr.mstatus&mstatusMXR != 0
	if !e.a || !(e.r || (mxr && e.x)) {
		return 0, trapLoadPageFault(vaddr)
	}

	if priv == User && !e.u {
		return 0, trapLoadPageFault(vaddr)
	}

	if priv == Supervisor && e.u && h.csr.mstatus&mstatusSUM == 0 {
		return 0, trapLoadPageFault(vaddr)
	}

	v, ok := h.bus.Load(pa, size)
	if !ok {
		return 0, trapLoadAccessFault(vaddr)
	}

	return v, nil
}

// Store writes size bytes (1, 2, 4, or 8) to vaddr, per spec §4.9's Store
// rule (Load's rule plus the dirty-bit requirement).
func (h *Hart) Store(vaddr Word, size int, val uint64) *Trap {
	priv := h.effectivePrivilege()

	if !h.satpActive() || (h.Priv == Machine && h.csr.mstatus&mstatusMPRV == 0) || priv == Machine {
		if !h.bus.Store(vaddr, size, val) {
			return trapStoreAccessFault(vaddr)
		}

		return nil
	}

	if pageCrosses(vaddr, size) {
		return trapStoreMisaligned(vaddr)
	}

	asid := uint16((h.csr.satp >> satpAsidShift) & 0xffff)

	e, pa, ok := h.mmu.translate(vaddr, h.csr.satp&satpPPNMask, asid)
	if !ok {
		return trapStorePageFault(vaddr)
	}

	if !e.a || !e.w || !e.d {
		return trapStorePageFault(vaddr)
	}

	if priv == User && !e.u {
		return trapStorePageFault(vaddr)
	}

	if priv == Supervisor && e.u && h.csr.mstatus&mstatusSUM == 0 {
		return trapStorePageFault(vaddr)
	}

	if !h.bus.Store(pa, size, val) {
		return trapStoreAccessFault(vaddr)
	}

	return nil
}
