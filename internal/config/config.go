// Package config wires a Hart to a Bus and its platform devices, applying
// the reference memory map from spec.md §6.
package config

import (
	"github.com/kelleyrw/rv64run/internal/bus"
	"github.com/kelleyrw/rv64run/internal/hart"
	"github.com/kelleyrw/rv64run/internal/log"
)

// Reference memory map, spec §6.
const (
	ClintBase = 0x0200_0000
	ClintSize = 0xC000

	PlicBase = 0x0C00_0000
	PlicSize = 64 * 1024 * 1024

	UartBase = 0x1000_0000
	UartSize = 0x10

	RAMBase = 0x8000_0000
	RAMSize = 8 * 1024 * 1024
)

const (
	plicNumSources = 2 // UART, then room for one more platform source.
	plicNumContexts = 1 // single hart, M-mode context only.

	uartIrqSource = 1
)

// Options configure a System before it's built.
type Options struct {
	RAMSize  uint64
	HartID   uint64
	Logger   *log.Logger
}

// OptionFn customizes Options.
type OptionFn func(*Options)

// WithRAMSize overrides the default RAM size.
func WithRAMSize(size uint64) OptionFn {
	return func(o *Options) { o.RAMSize = size }
}

// WithHartID sets the hart's internal identity (hart.WithHartID). It does not
// change the mhartid CSR, which always reads 0.
func WithHartID(id uint64) OptionFn {
	return func(o *Options) { o.HartID = id }
}

// WithLogger sets the logger shared by the hart and its devices.
func WithLogger(l *log.Logger) OptionFn {
	return func(o *Options) { o.Logger = l }
}

// System is a fully wired single-hart machine: a Hart plus the Bus and
// devices it executes against.
type System struct {
	Hart  *hart.Hart
	Bus   *bus.Bus
	RAM   *bus.Ram
	Clint *bus.Clint
	Plic  *bus.Plic
	Uart  *bus.Uart
}

// New builds a System with the reference memory map, starting the hart's pc
// at resetPC.
func New(resetPC hart.Word, opts ...OptionFn) *System {
	o := Options{
		RAMSize: RAMSize,
		Logger:  log.DefaultLogger(),
	}

	for _, fn := range opts {
		fn(&o)
	}

	b := bus.New()

	ram := bus.NewRam(o.RAMSize)
	clint := bus.NewClint(1)
	plic := bus.NewPlic(plicNumSources, plicNumContexts)
	uart := bus.NewUart()

	b.Map("clint", ClintBase, ClintSize, clint)
	b.Map("plic", PlicBase, PlicSize, plic)
	b.Map("uart", UartBase, UartSize, uart)
	b.Map("ram", RAMBase, o.RAMSize, ram)

	h := hart.New(b, resetPC, hart.WithHartID(o.HartID), hart.WithLogger(o.Logger))

	return &System{
		Hart:  h,
		Bus:   b,
		RAM:   ram,
		Clint: clint,
		Plic:  plic,
		Uart:  uart,
	}
}

// Tick advances the system by one cycle: the CLINT's mtime, the PLIC's view
// of the UART's interrupt line, and the hart's fetch/decode/execute step,
// per spec §5's tick ordering (devices update before the hart samples their
// lines).
func (s *System) Tick(updateCounters bool) {
	s.Clint.Tick()
	s.Plic.UpdateExt(uartIrqSource, s.Uart.Irq())

	meip := s.Plic.GetInterrupt(0)
	msip := s.Clint.MachineSoftwareIrq(0)
	mtip := s.Clint.MachineTimerIrq(0)

	s.Hart.Tick(meip, false, msip, mtip, updateCounters)
}
