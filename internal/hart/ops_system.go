package hart

// ops_system.go implements the SYSTEM-opcode instructions: CSR access,
// ECALL/EBREAK, MRET/SRET, WFI, and SFENCE.VMA. See spec §4.7's rules for
// "CSR instructions", "MRET / SRET", "WFI", and "SFENCE.VMA".

func (h *Hart) execSystem(inst *Instruction) *Trap {
	switch inst.Token {
	case TokECALL:
		return ecallTrap(h.Priv, h.GetPC()-4)
	case TokEBREAK:
		return &Trap{Cause: CauseBreakpoint, Tval: h.GetPC() - 4}
	case TokMRET:
		return h.execMret()
	case TokSRET:
		return h.execSret()
	case TokWFI:
		h.wfi = true
		return nil
	case TokSFENCEVMA:
		h.mmu.flushMatching(h.GetReg(inst.Rs1), uint16(h.GetReg(inst.Rs2)))
		return nil
	case TokCSRRW, TokCSRRS, TokCSRRC, TokCSRRWI, TokCSRRSI, TokCSRRCI:
		return h.execCSR(inst)
	}

	return trapIllegalInstruction(inst.Word)
}

func ecallTrap(priv Privilege, pc Word) *Trap {
	switch priv {
	case User:
		return &Trap{Cause: CauseEnvironmentCallFromU, Tval: pc}
	case Supervisor:
		return &Trap{Cause: CauseEnvironmentCallFromS, Tval: pc}
	default:
		return &Trap{Cause: CauseEnvironmentCallFromM, Tval: pc}
	}
}

// execMret implements MRET: restore pc from mepc, pop the privilege stack,
// and re-enable interrupts at the level they were before the trap.
func (h *Hart) execMret() *Trap {
	if h.Priv != Machine {
		return trapIllegalInstruction(0x30200073)
	}

	mpp := Privilege((h.csr.mstatus & mstatusMPP) >> mstatusMPPShift)

	mpie := h.csr.mstatus&mstatusMPIE != 0
	h.csr.mstatus &^= mstatusMIE
	if mpie {
		h.csr.mstatus |= mstatusMIE
	}

	h.csr.mstatus |= mstatusMPIE
	h.csr.mstatus &^= mstatusMPP // MPP set to U (0) after the return.

	if mpp != Machine {
		h.csr.mstatus &^= mstatusMPRV
	}

	h.Priv = mpp
	h.SetPC(Word(h.csr.mepc))

	return nil
}

// execSret implements SRET: restore pc from sepc, pop S/U, re-enable
// interrupts at the level they were before the trap.
func (h *Hart) execSret() *Trap {
	if h.Priv == User {
		return trapIllegalInstruction(0x10200073)
	}

	if h.Priv == Supervisor && h.csr.mstatus&mstatusTSR != 0 {
		return trapIllegalInstruction(0x10200073)
	}

	var spp Privilege
	if h.csr.mstatus&mstatusSPP != 0 {
		spp = Supervisor
	} else {
		spp = User
	}

	spie := h.csr.mstatus&mstatusSPIE != 0
	h.csr.mstatus &^= mstatusSIE
	if spie {
		h.csr.mstatus |= mstatusSIE
	}

	h.csr.mstatus |= mstatusSPIE
	h.csr.mstatus &^= mstatusSPP // SPP set to U (0) after the return.
	h.csr.mstatus &^= mstatusMPRV

	h.Priv = spp
	h.SetPC(Word(h.csr.sepc))

	return nil
}

// execCSR implements the CSRRW/CSRRS/CSRRC family's read-then-write
// semantics: the old value is always read into rd, then (if the
// instruction has a write side effect) the new value is written.
func (h *Hart) execCSR(inst *Instruction) *Trap {
	if h.Priv < PrivilegeLevel(inst.CSR) {
		return trapIllegalInstruction(inst.Word)
	}

	old := h.ReadCSR(inst.CSR)

	var writes bool
	var newVal uint64

	switch inst.Token {
	case TokCSRRW:
		newVal = uint64(h.GetReg(inst.Rs1))
		writes = true
	case TokCSRRWI:
		newVal = uint64(inst.Imm)
		writes = true
	case TokCSRRS:
		newVal = old | uint64(h.GetReg(inst.Rs1))
		writes = inst.Rs1 != X0
	case TokCSRRSI:
		newVal = old | uint64(inst.Imm)
		writes = inst.Imm != 0
	case TokCSRRC:
		newVal = old &^ uint64(h.GetReg(inst.Rs1))
		writes = inst.Rs1 != X0
	case TokCSRRCI:
		newVal = old &^ uint64(inst.Imm)
		writes = inst.Imm != 0
	}

	if writes {
		if ReadOnly(inst.CSR) {
			return trapIllegalInstruction(inst.Word)
		}

		h.WriteCSR(inst.CSR, newVal)
	}

	h.SetReg(inst.Rd, Word(old))

	return nil
}
