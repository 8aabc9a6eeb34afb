package hart

// csr.go implements the control-and-status register file: a 4096-entry
// address space backing the architectural CSRs, with per-address read/write
// masking and aliasing (sstatus/sie/sip view mstatus/mie/mip; fflags/frm
// view fcsr). See spec §3 (CSR mapping) and §4.10.

// CSR addresses, abridged to those this hart implements. Unlisted addresses
// in [0, 4096) read/write the generic backing cell, which always reads back
// whatever was last written (used by nothing in this ISA subset but kept so
// the 4096-entry model in spec §3 holds for every address).
const (
	csrFflags = 0x001
	csrFrm    = 0x002
	csrFcsr   = 0x003

	csrSstatus = 0x100
	csrSie     = 0x104
	csrStvec   = 0x105
	csrSscratch = 0x140
	csrSepc    = 0x141
	csrScause  = 0x142
	csrStval   = 0x143
	csrSip     = 0x144
	csrSatp    = 0x180

	csrMstatus = 0x300
	csrMisa    = 0x301
	csrMedeleg = 0x302
	csrMideleg = 0x303
	csrMie     = 0x304
	csrMtvec   = 0x305
	csrMscratch = 0x340
	csrMepc    = 0x341
	csrMcause  = 0x342
	csrMtval   = 0x343
	csrMip     = 0x344

	csrMcycle   = 0xb00
	csrMinstret = 0xb02

	csrTselect = 0x7a0
	csrTdata1  = 0x7a1

	csrMvendorid   = 0xf11
	csrMarchid     = 0xf12
	csrMimpid      = 0xf13
	csrMhartid     = 0xf14
	csrMconfigptr  = 0xf15
)

// mstatus / sstatus bit layout.
const (
	mstatusSIE       = uint64(1) << 1
	mstatusMIE       = uint64(1) << 3
	mstatusSPIE      = uint64(1) << 5
	mstatusUBE       = uint64(1) << 6
	mstatusMPIE      = uint64(1) << 7
	mstatusSPP       = uint64(1) << 8
	mstatusVSShift   = 9
	mstatusMPPShift  = 11
	mstatusMPP       = uint64(0x3) << mstatusMPPShift
	mstatusFSShift   = 13
	mstatusFS        = uint64(0x3) << mstatusFSShift
	mstatusXSShift   = 15
	mstatusXS        = uint64(0x3) << mstatusXSShift
	mstatusMPRV      = uint64(1) << 17
	mstatusSUM       = uint64(1) << 18
	mstatusMXR       = uint64(1) << 19
	mstatusTVM       = uint64(1) << 20
	mstatusTW        = uint64(1) << 21
	mstatusTSR       = uint64(1) << 22
	mstatusUXLShift  = 32
	mstatusUXL       = uint64(0x3) << mstatusUXLShift
	mstatusSXLShift  = 34
	mstatusSXL       = uint64(0x3) << mstatusSXLShift
	mstatusSD        = uint64(1) << 63

	// sstatusMask is the subset of mstatus bits visible through sstatus.
	sstatusMask = mstatusSIE | mstatusSPIE | mstatusUBE | mstatusSPP |
		mstatusFS | mstatusXS | mstatusSUM | mstatusMXR | mstatusUXL | mstatusSD

	// mstatusWriteMask is the set of mstatus bits software may modify
	// directly; SXL/UXL are pinned to RV64 (2) and re-normalised on write.
	mstatusWriteMask = mstatusSIE | mstatusMIE | mstatusSPIE | mstatusUBE | mstatusMPIE |
		mstatusSPP | mstatusMPP | mstatusFS | mstatusMPRV | mstatusSUM | mstatusMXR |
		mstatusTVM | mstatusTW | mstatusTSR
)

// mie / mip bit layout. Only S- and M-level lines are defined; U-level
// (N-extension) interrupts are not implemented.
const (
	mipSSIP = uint64(1) << 1
	mipMSIP = uint64(1) << 3
	mipSTIP = uint64(1) << 5
	mipMTIP = uint64(1) << 7
	mipSEIP = uint64(1) << 9
	mipMEIP = uint64(1) << 11

	interruptMask = mipSSIP | mipMSIP | mipSTIP | mipMTIP | mipSEIP | mipMEIP
	sInterruptMask = mipSSIP | mipSTIP | mipSEIP
)

// satp field layout.
const (
	satpModeShift = 60
	satpAsidShift = 44
	satpAsidMask  = uint64(0xffff) << satpAsidShift
	satpPPNMask   = uint64(1)<<44 - 1

	// SatpModeSv39 is the only paging mode this MMU implements.
	SatpModeSv39 = uint64(8)
)

// misa value: RV64 ("MXL"=2 in the top two bits), with I, M, S, U set, every
// other extension bit clear (A, C, D, F are declared off per spec §1).
const (
	misaMXLShift = 62
	misaValue    = uint64(2)<<misaMXLShift | 1<<8 /*I*/ | 1<<12 /*M*/ | 1<<18 /*S*/ | 1<<20 /*U*/
)

// CSRFile is the hart's 4096-entry CSR address space. Most addresses are
// never written by this ISA subset and fall through to a generic backing
// cell; the CSRs with defined architectural behaviour are masked and
// aliased explicitly in Read/Write.
type CSRFile struct {
	mstatus  uint64
	medeleg  uint64
	mideleg  uint64
	mie      uint64
	mip      uint64
	mtvec    uint64
	mscratch uint64
	mepc     uint64
	mcause   uint64
	mtval    uint64
	mcycle   uint64
	minstret uint64

	stvec    uint64
	sscratch uint64
	sepc     uint64
	scause   uint64
	stval    uint64
	satp     uint64

	fcsr uint64

	cells [4096]uint64
}

// Reset restores the CSR file to its power-on values.
func (c *CSRFile) Reset() {
	*c = CSRFile{}
	c.mstatus = 2<<mstatusUXLShift | 2<<mstatusSXLShift
}

// ReadOnly reports whether addr names a read-only CSR per its address
// encoding (bits 11:10 == 0b11).
func ReadOnly(addr uint16) bool {
	return addr&0xc00 == 0xc00
}

// PrivilegeLevel returns the minimum privilege required to access addr,
// encoded in bits 9:8 of the CSR address.
func PrivilegeLevel(addr uint16) Privilege {
	return Privilege((addr >> 8) & 0x3)
}

// Read returns the value visible at addr, applying aliasing for the
// composed views (sstatus, sie, sip, fflags, frm).
func (c *CSRFile) Read(addr uint16) uint64 {
	switch addr {
	case csrMstatus:
		return c.mstatus
	case csrSstatus:
		return c.mstatus & sstatusMask
	case csrMisa:
		return misaValue
	case csrMedeleg:
		return c.medeleg
	case csrMideleg:
		return c.mideleg
	case csrMie:
		return c.mie
	case csrSie:
		return c.mie & sInterruptMask
	case csrMip:
		return c.mip
	case csrSip:
		return c.mip & sInterruptMask
	case csrMtvec:
		return c.mtvec
	case csrStvec:
		return c.stvec
	case csrMscratch:
		return c.mscratch
	case csrSscratch:
		return c.sscratch
	case csrMepc:
		return c.mepc
	case csrSepc:
		return c.sepc
	case csrMcause:
		return c.mcause
	case csrScause:
		return c.scause
	case csrMtval:
		return c.mtval
	case csrStval:
		return c.stval
	case csrSatp:
		return c.satp
	case csrMcycle:
		return c.mcycle
	case csrMinstret:
		return c.minstret
	case csrFcsr:
		return c.fcsr & 0xff
	case csrFflags:
		return c.fcsr & 0x1f
	case csrFrm:
		return (c.fcsr >> 5) & 0x7
	case csrTselect, csrTdata1:
		return 0
	case csrMhartid, csrMvendorid, csrMarchid, csrMimpid, csrMconfigptr:
		return 0
	default:
		return c.cells[addr]
	}
}

// Write updates addr, applying the defined write mask for the CSR it names.
// Hard-wired and debug-trigger CSRs silently ignore the write, matching
// spec §4.10.
func (c *CSRFile) Write(addr uint16, val uint64) {
	switch addr {
	case csrMstatus:
		c.mstatus = (c.mstatus &^ mstatusWriteMask) | (val & mstatusWriteMask)
		c.normalizeXL()
	case csrSstatus:
		c.mstatus = (c.mstatus &^ (sstatusMask & mstatusWriteMask)) | (val & sstatusMask & mstatusWriteMask)
		c.normalizeXL()
	case csrMisa:
		// Treated as read-only in this implementation; writes ignored.
	case csrMedeleg:
		c.medeleg = val & medelegMask
	case csrMideleg:
		c.mideleg = val & midelegMask
	case csrMie:
		c.mie = val & interruptMask
	case csrSie:
		c.mie = (c.mie &^ sInterruptMask) | (val & sInterruptMask)
	case csrMip:
		// Only the software-interrupt-pending bits are writable by software;
		// timer/external bits are driven by the hart from device inputs.
		c.mip = (c.mip &^ mipSSIP) | (val & mipSSIP)
	case csrSip:
		c.mip = (c.mip &^ mipSSIP) | (val & mipSSIP & sInterruptMask)
	case csrMtvec:
		c.mtvec = val &^ 0x2 // mode bit 1 is reserved; only direct(0)/vectored(1) are legal.
	case csrStvec:
		c.stvec = val &^ 0x2
	case csrMscratch:
		c.mscratch = val
	case csrSscratch:
		c.sscratch = val
	case csrMepc:
		c.mepc = val &^ 0x1
	case csrSepc:
		c.sepc = val &^ 0x1
	case csrMcause:
		c.mcause = val
	case csrScause:
		c.scause = val
	case csrMtval:
		c.mtval = val
	case csrStval:
		c.stval = val
	case csrSatp:
		c.satp = val & (uint64(0xf)<<satpModeShift | satpAsidMask | satpPPNMask)
	case csrMcycle:
		c.mcycle = val
	case csrMinstret:
		c.minstret = val
	case csrFcsr:
		c.fcsr = val & 0xff
	case csrFflags:
		c.fcsr = (c.fcsr &^ 0x1f) | (val & 0x1f)
	case csrFrm:
		c.fcsr = (c.fcsr &^ 0xe0) | ((val & 0x7) << 5)
	case csrTselect, csrTdata1:
		// Debug triggers are unimplemented; writes are ignored.
	case csrMvendorid, csrMarchid, csrMimpid, csrMhartid, csrMconfigptr:
		// Read-only identification registers.
	default:
		c.cells[addr] = val
	}
}

// normalizeXL re-pins SXL and UXL to RV64 (2) after any mstatus write, per
// spec §4.10.
func (c *CSRFile) normalizeXL() {
	c.mstatus &^= mstatusUXL | mstatusSXL
	c.mstatus |= 2<<mstatusUXLShift | 2<<mstatusSXLShift
}

// SetExternalLines updates the MEIP/SEIP/MSIP/MTIP bits in mip from the
// hart's four sampled interrupt inputs, per spec §4.8 step 2.
func (c *CSRFile) SetExternalLines(meip, seip, msip, mtip bool) {
	c.mip = setBit(c.mip, mipMEIP, meip)
	c.mip = setBit(c.mip, mipSEIP, seip)
	c.mip = setBit(c.mip, mipMSIP, msip)
	c.mip = setBit(c.mip, mipMTIP, mtip)
}

func setBit(v, bit uint64, set bool) uint64 {
	if set {
		return v | bit
	}

	return v &^ bit
}
