package bus

// clint.go implements the Core Local Interruptor: per-hart msip and
// mtimecmp registers, plus a global mtime, per spec §4.3.

import "sync/atomic"

const (
	clintMsipSize     = 0x4
	clintMtimecmpSize = 0x8
	clintMtimecmpBase = 0x4000
	clintMtimeOffset  = 0xbff8
)

// Clint is the timer and inter-processor-interrupt device. mtime is kept
// as an atomic value since CLINT.Tick (the external ticker) and hart-side
// reads of mtime run on different goroutines per spec §5.
type Clint struct {
	hartCount int
	msip      []uint32
	mtimecmp  []uint64
	mtime     atomic.Uint64
}

// NewClint creates a CLINT sized for hartCount harts.
func NewClint(hartCount int) *Clint {
	return &Clint{
		hartCount: hartCount,
		msip:      make([]uint32, hartCount),
		mtimecmp:  make([]uint64, hartCount),
	}
}

// Tick advances mtime by one, per spec §4.3's "Tick() increments mtime by
// one".
func (c *Clint) Tick() {
	c.mtime.Add(1)
}

// MachineTimerIrq reports whether hart h's timer interrupt is pending.
func (c *Clint) MachineTimerIrq(h int) bool {
	return c.mtime.Load() > atomic.LoadUint64(&c.mtimecmp[h])
}

// MachineSoftwareIrq reports whether hart h's software interrupt is pending.
func (c *Clint) MachineSoftwareIrq(h int) bool {
	return atomic.LoadUint32(&c.msip[h])&1 != 0
}

// Load implements Device.
func (c *Clint) Load(offset uint64, size int) (uint64, bool) {
	switch {
	case offset < uint64(c.hartCount)*clintMsipSize:
		h := offset / clintMsipSize
		if offset%clintMsipSize+uint64(size) > clintMsipSize {
			return 0, false
		}

		return uint64(atomic.LoadUint32(&c.msip[h])), true

	case offset >= clintMtimecmpBase && offset < clintMtimecmpBase+uint64(c.hartCount)*clintMtimecmpSize:
		rel := offset - clintMtimecmpBase
		h := rel / clintMtimecmpSize

		if rel%clintMtimecmpSize+uint64(size) > clintMtimecmpSize {
			return 0, false
		}

		return atomic.LoadUint64(&c.mtimecmp[h]), true

	case offset == clintMtimeOffset && size == 8:
		return c.mtime.Load(), true
	}

	return 0, false
}

// Store implements Device.
func (c *Clint) Store(offset uint64, size int, val uint64) bool {
	switch {
	case offset < uint64(c.hartCount)*clintMsipSize:
		h := offset / clintMsipSize
		if offset%clintMsipSize+uint64(size) > clintMsipSize {
			return false
		}

		// Only bit 0 of each per-hart cell is retained, per spec §4.3.
		atomic.StoreUint32(&c.msip[h], uint32(val)&1)

		return true

	case offset >= clintMtimecmpBase && offset < clintMtimecmpBase+uint64(c.hartCount)*clintMtimecmpSize:
		rel := offset - clintMtimecmpBase
		h := rel / clintMtimecmpSize

		if rel%clintMtimecmpSize+uint64(size) > clintMtimecmpSize {
			return false
		}

		atomic.StoreUint64(&c.mtimecmp[h], val)

		return true

	case offset == clintMtimeOffset && size == 8:
		c.mtime.Store(val)
		return true
	}

	return false
}
