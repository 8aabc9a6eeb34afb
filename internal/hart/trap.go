package hart

// trap.go defines exception and interrupt causes and the trap-dispatch
// routine that redirects control flow on either. See spec §4.8 and §7.

import (
	"fmt"
)

// Cause identifies why a trap occurred. Interrupt causes have the top bit
// (bit 63) set; exception causes do not.
type Cause uint64

// InterruptBit marks a Cause as an interrupt rather than a synchronous
// exception.
const InterruptBit Cause = 1 << 63

// Exception causes (bit 63 clear).
const (
	CauseInstructionAddressMisaligned Cause = 0
	CauseInstructionAccessFault       Cause = 1
	CauseIllegalInstruction           Cause = 2
	CauseBreakpoint                   Cause = 3
	CauseLoadAddressMisaligned        Cause = 4
	CauseLoadAccessFault              Cause = 5
	CauseStoreAddressMisaligned       Cause = 6
	CauseStoreAccessFault             Cause = 7
	CauseEnvironmentCallFromU         Cause = 8
	CauseEnvironmentCallFromS         Cause = 9
	CauseEnvironmentCallFromM         Cause = 11
	CauseInstructionPageFault         Cause = 12
	CauseLoadPageFault                Cause = 13
	CauseStorePageFault               Cause = 15
)

// Interrupt causes (bit 63 set, low bits per the privileged spec).
const (
	CauseSupervisorSoftwareInterrupt Cause = InterruptBit | 1
	CauseMachineSoftwareInterrupt    Cause = InterruptBit | 3
	CauseSupervisorTimerInterrupt    Cause = InterruptBit | 5
	CauseMachineTimerInterrupt       Cause = InterruptBit | 7
	CauseSupervisorExternalInterrupt Cause = InterruptBit | 9
	CauseMachineExternalInterrupt    Cause = InterruptBit | 11
)

// IsInterrupt reports whether the cause is an interrupt, rather than a
// synchronous exception.
func (c Cause) IsInterrupt() bool { return c&InterruptBit != 0 }

// Code returns the low bits of the cause, with the interrupt bit masked off.
func (c Cause) Code() uint64 { return uint64(c &^ InterruptBit) }

func (c Cause) String() string {
	if c.IsInterrupt() {
		switch c {
		case CauseSupervisorSoftwareInterrupt:
			return "supervisor software interrupt"
		case CauseMachineSoftwareInterrupt:
			return "machine software interrupt"
		case CauseSupervisorTimerInterrupt:
			return "supervisor timer interrupt"
		case CauseMachineTimerInterrupt:
			return "machine timer interrupt"
		case CauseSupervisorExternalInterrupt:
			return "supervisor external interrupt"
		case CauseMachineExternalInterrupt:
			return "machine external interrupt"
		default:
			return fmt.Sprintf("interrupt %d", c.Code())
		}
	}

	switch c {
	case CauseInstructionAddressMisaligned:
		return "instruction address misaligned"
	case CauseInstructionAccessFault:
		return "instruction access fault"
	case CauseIllegalInstruction:
		return "illegal instruction"
	case CauseBreakpoint:
		return "breakpoint"
	case CauseLoadAddressMisaligned:
		return "load address misaligned"
	case CauseLoadAccessFault:
		return "load access fault"
	case CauseStoreAddressMisaligned:
		return "store address misaligned"
	case CauseStoreAccessFault:
		return "store access fault"
	case CauseEnvironmentCallFromU:
		return "environment call from U-mode"
	case CauseEnvironmentCallFromS:
		return "environment call from S-mode"
	case CauseEnvironmentCallFromM:
		return "environment call from M-mode"
	case CauseInstructionPageFault:
		return "instruction page fault"
	case CauseLoadPageFault:
		return "load page fault"
	case CauseStorePageFault:
		return "store page fault"
	default:
		return fmt.Sprintf("exception %d", c.Code())
	}
}

// Trap is an architectural fault or interrupt: a first-class value produced
// by the MMU or executor and consumed only by the hart's trap-dispatch
// routine. It is never returned to a caller outside the hart.
type Trap struct {
	Cause Cause
	Tval  Word
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap: %s (tval=%s)", t.Cause, t.Tval)
}

// trap constructors for the access faults and misalignment/page faults the
// MMU and executor raise. Each names the cause directly so call sites read
// as what went wrong, not as a generic "fault(kind)".
func trapInstrMisaligned(addr Word) *Trap {
	return &Trap{Cause: CauseInstructionAddressMisaligned, Tval: addr}
}

func trapInstrAccessFault(addr Word) *Trap {
	return &Trap{Cause: CauseInstructionAccessFault, Tval: addr}
}

func trapInstrPageFault(addr Word) *Trap {
	return &Trap{Cause: CauseInstructionPageFault, Tval: addr}
}

func trapIllegalInstruction(word uint32) *Trap {
	return &Trap{Cause: CauseIllegalInstruction, Tval: Word(word)}
}

func trapLoadMisaligned(addr Word) *Trap {
	return &Trap{Cause: CauseLoadAddressMisaligned, Tval: addr}
}

func trapLoadAccessFault(addr Word) *Trap {
	return &Trap{Cause: CauseLoadAccessFault, Tval: addr}
}

func trapLoadPageFault(addr Word) *Trap {
	return &Trap{Cause: CauseLoadPageFault, Tval: addr}
}

func trapStoreMisaligned(addr Word) *Trap {
	return &Trap{Cause: CauseStoreAddressMisaligned, Tval: addr}
}

func trapStoreAccessFault(addr Word) *Trap {
	return &Trap{Cause: CauseStoreAccessFault, Tval: addr}
}

func trapStorePageFault(addr Word) *Trap {
	return &Trap{Cause: CauseStorePageFault, Tval: addr}
}

// medelegMask is the set of exception causes that may legally be delegated
// to S-mode: codes 0-9, 12, 13 and 15, i.e. every defined cause except the
// environment-call-from-M cause 11 (which cannot be delegated below M),
// with the reserved codes 10 and 14 also excluded.
const medelegMask = 0xb3ff

// midelegMask is the set of interrupt causes that may legally be delegated:
// the three S-mode interrupt lines.
const midelegMask = uint64(1<<1 | 1<<5 | 1<<9)

// interrupt priority, highest first, per spec §4.8 step 6.
var interruptPriority = [...]Cause{
	CauseMachineExternalInterrupt,
	CauseMachineSoftwareInterrupt,
	CauseMachineTimerInterrupt,
	CauseSupervisorExternalInterrupt,
	CauseSupervisorSoftwareInterrupt,
	CauseSupervisorTimerInterrupt,
}

// handleTrap redirects control flow for a trap (exception or interrupt),
// computing the destination privilege level from delegation registers and
// writing the trap CSRs at that level, per spec §4.8 step 5.
func (h *Hart) handleTrap(trap *Trap, instAddr Word) {
	dest := Machine

	if h.Priv != Machine {
		var delegated bool

		if trap.Cause.IsInterrupt() {
			delegated = h.csr.mideleg&(1<<trap.Cause.Code()) != 0 && midelegMask&(1<<trap.Cause.Code()) != 0
		} else {
			delegated = h.csr.medeleg&(1<<trap.Cause.Code()) != 0 && medelegMask&(1<<trap.Cause.Code()) != 0
		}

		if delegated {
			dest = Supervisor
		}
	}

	if dest == Supervisor {
		h.csr.sepc = uint64(instAddr)
		h.csr.scause = uint64(trap.Cause)
		h.csr.stval = uint64(trap.Tval)

		spie := h.csr.mstatus&mstatusSIE != 0
		h.csr.mstatus &^= mstatusSPIE
		if spie {
			h.csr.mstatus |= mstatusSPIE
		}

		h.csr.mstatus &^= mstatusSIE

		h.csr.mstatus &^= mstatusSPP
		if h.Priv == Supervisor {
			h.csr.mstatus |= mstatusSPP
		}

		h.Priv = Supervisor
		h.PC = ProgramCounter(trapPC(h.csr.stvec, trap.Cause))
	} else {
		h.csr.mepc = uint64(instAddr)
		h.csr.mcause = uint64(trap.Cause)
		h.csr.mtval = uint64(trap.Tval)

		mie := h.csr.mstatus&mstatusMIE != 0
		h.csr.mstatus &^= mstatusMPIE
		if mie {
			h.csr.mstatus |= mstatusMPIE
		}

		h.csr.mstatus &^= mstatusMIE

		h.csr.mstatus &^= mstatusMPP
		h.csr.mstatus |= uint64(h.Priv) << mstatusMPPShift

		h.Priv = Machine
		h.PC = ProgramCounter(trapPC(h.csr.mtvec, trap.Cause))
	}

	h.log.Debug("trap taken", "cause", trap.Cause.String(), "tval", trap.Tval, "dest", dest.String(), "pc", h.PC)
}

// trapPC computes the destination PC from a *tvec CSR value and the trap's
// cause, per spec §4.8 step 5: direct mode (low bits 0) always jumps to the
// base; vectored mode (low bits 1) adds 4*cause for interrupts only when
// dispatch came from an interrupt (the cause's own low bits already encode
// that since only interrupts have non-zero "cause_low" meaning here: the
// low bits of the cause code).
func trapPC(tvec uint64, cause Cause) uint64 {
	base := tvec &^ 0x3
	mode := tvec & 0x3

	if mode == 1 && cause.IsInterrupt() {
		return base + 4*cause.Code()
	}

	return base
}

// pendingInterrupt returns the highest-priority interrupt that is both
// pending and enabled for dispatch, or (0, false) if none qualifies. See
// spec §4.8 step 6.
func (h *Hart) pendingInterrupt() (Cause, bool) {
	pending := h.csr.mip & h.csr.mie

	for _, c := range interruptPriority {
		bit := uint64(1) << c.Code()
		if pending&bit == 0 {
			continue
		}

		delegatedToS := midelegMask&bit != 0 && h.csr.mideleg&bit != 0

		if !delegatedToS {
			// Handled in M-mode if enabled: M-mode IE set, or current
			// privilege is below M.
			if h.Priv != Machine || h.csr.mstatus&mstatusMIE != 0 {
				return c, true
			}
		} else {
			// Handled in S-mode if enabled: S-mode IE set, or current
			// privilege is below S (i.e. U-mode).
			if h.Priv == User || (h.Priv == Supervisor && h.csr.mstatus&mstatusSIE != 0) {
				return c, true
			}
		}
	}

	return 0, false
}
