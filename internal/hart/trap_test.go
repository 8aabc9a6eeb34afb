package hart

import "testing"

func TestHandleTrap_DelegatedExceptionGoesToSupervisor(t *testing.T) {
	h, _ := newTestHart(0)
	h.Priv = Supervisor
	h.csr.medeleg = medelegMask // delegate every legal exception cause

	trap := trapIllegalInstruction(0xdeadbeef)
	h.handleTrap(trap, 0x1000)

	if h.Priv != Supervisor {
		t.Fatalf("priv = %s, want S (trap was delegated)", h.Priv)
	}

	if h.csr.scause != uint64(CauseIllegalInstruction) {
		t.Fatalf("scause = %d, want illegal instruction", h.csr.scause)
	}

	if h.csr.sepc != 0x1000 {
		t.Fatalf("sepc = %#x, want 0x1000", h.csr.sepc)
	}
}

func TestHandleTrap_UndelegatedExceptionStaysInMachine(t *testing.T) {
	h, _ := newTestHart(0)
	h.Priv = Supervisor
	h.csr.medeleg = 0 // nothing delegated

	trap := trapIllegalInstruction(0xdeadbeef)
	h.handleTrap(trap, 0x1000)

	if h.Priv != Machine {
		t.Fatalf("priv = %s, want M (exception wasn't delegated)", h.Priv)
	}

	if h.csr.mcause != uint64(CauseIllegalInstruction) {
		t.Fatalf("mcause = %d, want illegal instruction", h.csr.mcause)
	}
}

// TestHandleTrap_InterruptDelegationUsesMidelegNotMedeleg guards the fix
// called out in DESIGN.md: interrupts must consult mideleg, exceptions must
// consult medeleg. Setting only medeleg's matching bit must NOT delegate a
// supervisor-timer interrupt; only mideleg controls that.
func TestHandleTrap_InterruptDelegationUsesMidelegNotMedeleg(t *testing.T) {
	h, _ := newTestHart(0)
	h.Priv = Supervisor

	stiBit := CauseSupervisorTimerInterrupt.Code()
	h.csr.medeleg = uint64(1) << stiBit // wrong register; should have no effect
	h.csr.mideleg = 0

	trap := &Trap{Cause: CauseSupervisorTimerInterrupt}
	h.handleTrap(trap, 0x2000)

	if h.Priv != Machine {
		t.Fatalf("priv = %s, want M: mideleg is clear so this must not delegate despite medeleg", h.Priv)
	}

	h.Priv = Supervisor
	h.csr.mideleg = uint64(1) << stiBit

	h.handleTrap(trap, 0x2000)

	if h.Priv != Supervisor {
		t.Fatalf("priv = %s, want S once mideleg actually delegates it", h.Priv)
	}
}

func TestPendingInterrupt_PriorityOrder(t *testing.T) {
	h, _ := newTestHart(0)
	h.Priv = Machine
	h.csr.mstatus |= mstatusMIE
	h.csr.mie = interruptMask
	h.csr.mip = mipMSIP | mipMEIP // both pending; MEIP has higher priority

	cause, ok := h.pendingInterrupt()
	if !ok {
		t.Fatal("expected a pending interrupt")
	}

	if cause != CauseMachineExternalInterrupt {
		t.Fatalf("cause = %s, want machine external (highest priority)", cause)
	}
}
