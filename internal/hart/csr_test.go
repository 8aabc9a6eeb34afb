package hart

import "testing"

func TestCSRFile_SstatusAliasesMstatus(t *testing.T) {
	var c CSRFile
	c.Reset()

	c.Write(csrMstatus, mstatusSIE|mstatusMIE|mstatusSPP)

	sstatus := c.Read(csrSstatus)
	if sstatus&mstatusSIE == 0 {
		t.Fatal("sstatus should see SIE set via mstatus")
	}

	if sstatus&mstatusMIE != 0 {
		t.Fatal("sstatus must not expose MIE, which is M-mode only")
	}
}

func TestCSRFile_SieMaskedToSBits(t *testing.T) {
	var c CSRFile
	c.Reset()

	c.Write(csrSie, interruptMask) // attempt to set every bit through the S-mode view
	if c.mie&^sInterruptMask != 0 {
		t.Fatalf("sie write leaked non-S-mode bits into mie: %#x", c.mie)
	}

	if c.mie&sInterruptMask != sInterruptMask {
		t.Fatalf("sie write should set all S-mode bits in mie, got %#x", c.mie)
	}
}

func TestCSRFile_MipTimerExternalAreReadOnlyToSoftware(t *testing.T) {
	var c CSRFile
	c.Reset()

	c.SetExternalLines(true, false, false, true)
	c.Write(csrMip, 0) // software clears every writable bit it can

	if c.mip&mipMEIP == 0 {
		t.Fatal("MEIP should survive a software write to mip; it's device-driven")
	}

	if c.mip&mipMTIP == 0 {
		t.Fatal("MTIP should survive a software write to mip; it's device-driven")
	}
}

func TestCSRFile_ReadOnlyIdentificationRegisters(t *testing.T) {
	if !ReadOnly(csrMhartid) {
		t.Fatal("mhartid should be classified read-only by its address encoding")
	}

	var c CSRFile
	c.Reset()

	c.Write(csrMhartid, 7) // must be silently ignored; this is a single-hart emulator

	if got := c.Read(csrMhartid); got != 0 {
		t.Fatalf("mhartid = %d, want 0 (always zero in a single-hart emulator)", got)
	}
}

func TestCSRFile_FcsrFflagsFrmAliasing(t *testing.T) {
	var c CSRFile
	c.Reset()

	c.Write(csrFflags, 0x1f)
	c.Write(csrFrm, 0x5)

	if got := c.Read(csrFcsr); got != (0x5<<5 | 0x1f) {
		t.Fatalf("fcsr = %#x, want combined fflags/frm view", got)
	}
}

func TestCSRFile_PrivilegeLevelFromAddress(t *testing.T) {
	if PrivilegeLevel(csrMstatus) != Machine {
		t.Fatal("mstatus should require M-mode")
	}

	if PrivilegeLevel(csrSstatus) != Supervisor {
		t.Fatal("sstatus should require S-mode")
	}
}
