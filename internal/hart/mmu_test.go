package hart

import "testing"

// buildSv39Superpage wires a bus with a two-level Sv39 page table that maps
// a single 2 MiB superpage at vpn2=0, vpn1=0 to physical page 0, and writes
// testWord at physical offset dataOffset within that page. It returns the
// root table's PPN for satp.
func buildSv39Superpage(bus *testBus, dataOffset uint64, testWord uint32) uint64 {
	const (
		rootTableAddr  = 0x1000
		level1TableAddr = 0x2000
	)

	nonleafPTE := (uint64(level1TableAddr>>12) << ptePPNShift) | pteV
	bus.Store(Word(rootTableAddr), 8, nonleafPTE)

	superpagePTE := pteV | pteR | pteW | pteX | pteA | pteD // ppn = 0
	bus.Store(Word(level1TableAddr), 8, superpagePTE)

	bus.storeWord(Word(dataOffset), testWord)

	return uint64(rootTableAddr >> 12)
}

func TestMMU_Sv39SuperpageTranslation(t *testing.T) {
	bus := &testBus{}
	rootPPN := buildSv39Superpage(bus, 0x100, 0xdeadbeef)

	h := New(bus, 0)
	h.Priv = Supervisor
	h.WriteCSR(csrSatp, uint64(SatpModeSv39)<<satpModeShift|rootPPN)

	got, trap := h.Load(Word(0x100), 4)
	if trap != nil {
		t.Fatalf("unexpected trap: %s", trap.Error())
	}

	if uint32(got) != 0xdeadbeef {
		t.Fatalf("loaded %#x, want 0xdeadbeef", got)
	}
}

func TestMMU_TLBMissReinstallsAfterFlush(t *testing.T) {
	bus := &testBus{}
	rootPPN := buildSv39Superpage(bus, 0x100, 0xcafef00d)

	h := New(bus, 0)
	h.Priv = Supervisor
	h.WriteCSR(csrSatp, uint64(SatpModeSv39)<<satpModeShift|rootPPN)

	if _, trap := h.Load(Word(0x100), 4); trap != nil {
		t.Fatalf("first load: unexpected trap: %s", trap.Error())
	}

	if _, ok := h.mmu.lookup(Word(0x100), 0); !ok {
		t.Fatal("expected the first load to install a TLB entry")
	}

	h.FlushTlb()

	if _, ok := h.mmu.lookup(Word(0x100), 0); ok {
		t.Fatal("FlushTlb should have evicted the cached translation")
	}

	got, trap := h.Load(Word(0x100), 4)
	if trap != nil {
		t.Fatalf("second load after flush: unexpected trap: %s", trap.Error())
	}

	if uint32(got) != 0xcafef00d {
		t.Fatalf("loaded %#x after reinstall, want 0xcafef00d", got)
	}
}

func TestMMU_UserPageFaultsOnSupervisorOnlyPage(t *testing.T) {
	bus := &testBus{}

	const rootTableAddr = 0x1000
	const level1TableAddr = 0x2000

	nonleafPTE := (uint64(level1TableAddr>>12) << ptePPNShift) | pteV
	bus.Store(Word(rootTableAddr), 8, nonleafPTE)

	// Leaf without pteU: only S/M-mode may use it.
	superpagePTE := pteV | pteR | pteW | pteX | pteA | pteD
	bus.Store(Word(level1TableAddr), 8, superpagePTE)

	h := New(bus, 0)
	h.Priv = User
	h.WriteCSR(csrSatp, uint64(SatpModeSv39)<<satpModeShift|uint64(rootTableAddr>>12))

	_, trap := h.Load(Word(0x100), 4)
	if trap == nil {
		t.Fatal("expected a page fault for U-mode access to a supervisor-only page")
	}

	if trap.Cause != CauseLoadPageFault {
		t.Fatalf("cause = %s, want load page fault", trap.Cause)
	}
}
