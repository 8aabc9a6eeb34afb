// Package bus implements the memory-mapped address space a hart's MMU
// resolves physical accesses against: RAM and the platform devices behind
// it, routed by address range. See spec §6's memory map.
package bus

import (
	"fmt"

	"github.com/kelleyrw/rv64run/internal/hart"
	"github.com/kelleyrw/rv64run/internal/log"
)

// Device is anything the bus can route a physical access to. offset is
// relative to the device's mapped base; size is a byte count of 1, 2, 4, or
// 8. A false return is a platform error (unmapped register, misaligned
// access that crosses a register family) and becomes an access fault at
// the hart, per spec §7.
type Device interface {
	Load(offset uint64, size int) (uint64, bool)
	Store(offset uint64, size int, val uint64) bool
}

type region struct {
	name       string
	base, size uint64
	dev        Device
}

// Bus routes loads and stores by address range to the mapped device, and
// implements hart.Bus so a *Bus can be passed directly to hart.New.
type Bus struct {
	regions []region
	log     *log.Logger
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{log: log.DefaultLogger()}
}

// Map registers dev at [base, base+size). Overlapping regions are a
// configuration error and panic at startup, not a runtime condition.
func (b *Bus) Map(name string, base, size uint64, dev Device) {
	for _, r := range b.regions {
		if base < r.base+r.size && base+size > r.base {
			panic(fmt.Sprintf("bus: %s overlaps %s", name, r.name))
		}
	}

	b.regions = append(b.regions, region{name: name, base: base, size: size, dev: dev})
}

func (b *Bus) find(addr uint64) (*region, bool) {
	for i := range b.regions {
		r := &b.regions[i]
		if addr >= r.base && addr < r.base+r.size {
			return r, true
		}
	}

	return nil, false
}

// Load implements hart.Bus.
func (b *Bus) Load(addr hart.Word, size int) (uint64, bool) {
	r, ok := b.find(uint64(addr))
	if !ok {
		b.log.Debug("load: unmapped", "addr", addr, "size", size)
		return 0, false
	}

	return r.dev.Load(uint64(addr)-r.base, size)
}

// Store implements hart.Bus.
func (b *Bus) Store(addr hart.Word, size int, val uint64) bool {
	r, ok := b.find(uint64(addr))
	if !ok {
		b.log.Debug("store: unmapped", "addr", addr, "size", size)
		return false
	}

	return r.dev.Store(uint64(addr)-r.base, size, val)
}

var _ hart.Bus = (*Bus)(nil)
