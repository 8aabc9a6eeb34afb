package hart

// exec.go drives the fetch/decode/execute/trap cycle described in spec
// §4.8. Tick is the hart's only entry point; everything else in the
// package exists to serve it.

// Tick advances the hart by one instruction (or, if parked in WFI, checks
// whether it should wake). meip, seip, msip, mtip are the machine- and
// supervisor-external, machine-software, and machine-timer interrupt
// lines, sampled once per Tick. updateCounters gates whether mcycle
// advances on a tick that retires nothing (a WFI tick).
func (h *Hart) Tick(meip, seip, msip, mtip bool, updateCounters bool) {
	if h.wfi {
		h.csr.SetExternalLines(meip, seip, msip, mtip)

		if h.csr.mip&h.csr.mie != 0 || meip || seip || msip || mtip {
			h.wfi = false
		}

		// A tick that found wfi set never fetches, even the one that just
		// woke the hart: the wake and the next fetch are separate ticks.
		if updateCounters {
			h.csr.mcycle++
		}

		return
	}

	h.csr.SetExternalLines(meip, seip, msip, mtip)

	instAddr := Word(h.PC)

	word, trap := h.Fetch(instAddr)
	retired := false

	if trap == nil {
		h.PC = ProgramCounter(uint64(instAddr) + 4)

		inst, ok := h.decodeCache.lookup(word)
		if !ok {
			inst = decode(word)
			h.decodeCache.insert(word, inst)
		}

		if inst.Class == ClassUndefined {
			trap = trapIllegalInstruction(word)
		} else {
			trap = h.execute(&inst)
			retired = trap == nil
		}
	}

	if trap != nil {
		h.handleTrap(trap, instAddr)
	}

	if cause, ok := h.pendingInterrupt(); ok {
		h.handleTrap(&Trap{Cause: cause}, Word(h.PC))
	}

	if retired || updateCounters {
		h.csr.mcycle++
	}

	if retired {
		h.csr.minstret++
	}
}

// execute dispatches a decoded instruction by Class, then by Token. It
// returns a non-nil *Trap if the instruction faults; architectural state is
// left unmodified in that case except where noted in spec §7.
func (h *Hart) execute(inst *Instruction) *Trap {
	switch inst.Class {
	case ClassLUI:
		h.SetReg(inst.Rd, inst.Imm)
	case ClassAUIPC:
		h.SetReg(inst.Rd, h.GetPC()-4+inst.Imm)
	case ClassJAL:
		return h.execJump(inst, h.GetPC()-4+inst.Imm)
	case ClassJALR:
		target := (h.GetReg(inst.Rs1) + inst.Imm) &^ 1
		return h.execJump(inst, target)
	case ClassBranch:
		return h.execBranch(inst)
	case ClassLoad:
		return h.execLoad(inst)
	case ClassStore:
		return h.execStore(inst)
	case ClassRI, ClassRR:
		return h.execAlu(inst)
	case ClassRV64W:
		return h.execAluW(inst)
	case ClassFence:
		// FENCE / FENCE.I / PAUSE are no-ops on a single, in-order hart.
	case ClassSystem:
		return h.execSystem(inst)
	}

	return nil
}

// execJump implements JAL/JALR: link register gets the address of the
// following instruction (already in PC, since PC was advanced
// speculatively), then control transfers to target.
func (h *Hart) execJump(inst *Instruction, target Word) *Trap {
	if target&0x3 != 0 {
		return trapInstrMisaligned(target)
	}

	link := h.GetPC()
	h.SetPC(target)
	h.SetReg(inst.Rd, link)

	return nil
}
