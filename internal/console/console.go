// Package console adapts a terminal to the emulated UART, the way
// internal/tty adapts one to the LC-3's keyboard and display. It also
// implements spec §6's double-SIGINT-to-exit, single-SIGINT-injects-ETX
// behaviour.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/kelleyrw/rv64run/internal/bus"
	"github.com/kelleyrw/rv64run/internal/log"
)

// etx is the byte a single SIGINT injects into UART rx, per spec §6.
const etx = 0x03

// doubleSIGINTWindow bounds how close together two SIGINTs must land to
// exit immediately rather than inject ETX.
const doubleSIGINTWindow = time.Second

// ErrNoTTY is returned when standard input is not a terminal (or cannot be
// put in raw mode); the console then reads it as-is, without raw mode.
var ErrNoTTY = errors.New("console: not a TTY")

// Console wires a terminal to a *bus.Uart: bytes typed at the terminal
// become UART rx bytes, and UART tx bytes are drained to the terminal.
type Console struct {
	in  *os.File
	out io.Writer
	fd  int

	state *term.State
	raw   bool

	uart *bus.Uart
	log  *log.Logger

	lastSIGINT time.Time
}

// New creates a Console over uart using os.Stdin/os.Stdout. If stdin is not
// a terminal, the console still works but does not put the tty in raw mode;
// Run's SIGINT handling is the same either way (ErrNoTTY is returned
// alongside a usable Console).
func New(uart *bus.Uart, logger *log.Logger) (*Console, error) {
	if logger == nil {
		logger = log.DefaultLogger()
	}

	c := &Console{
		in:   os.Stdin,
		out:  os.Stdout,
		fd:   int(os.Stdin.Fd()),
		uart: uart,
		log:  logger,
	}

	if !term.IsTerminal(c.fd) {
		return c, ErrNoTTY
	}

	saved, err := term.MakeRaw(c.fd)
	if err != nil {
		return c, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	c.state = saved
	c.raw = true

	if err := c.setTerminosBlocking(); err != nil {
		return c, err
	}

	return c, nil
}

// Restore returns the terminal to its state before New, if it was put into
// raw mode.
func (c *Console) Restore() {
	if c.raw {
		_ = term.Restore(c.fd, c.state)
	}
}

// Run drives the console until ctx is cancelled: a reader goroutine copies
// terminal bytes into the UART rx FIFO (translating SIGINT per spec §6),
// and a writer goroutine drains the UART tx FIFO to the terminal. Run
// blocks until ctx is done or the terminal read fails.
func (c *Console) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)

	go c.readLoop(ctx, sigCh, errCh)
	go c.writeLoop(ctx)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// readLoop copies terminal input to UART rx, exiting the process on a
// second SIGINT within doubleSIGINTWindow and otherwise injecting ETX.
func (c *Console) readLoop(ctx context.Context, sigCh <-chan os.Signal, errCh chan<- error) {
	buf := bufio.NewReader(c.in)
	keyCh := make(chan byte, 1)

	// Reads block from here on; setTerminosBlocking left the fd nonblocking
	// only to let MakeRaw/ioctl calls land without a pending read.
	_ = syscall.SetNonblock(c.fd, false)

	go func() {
		for {
			b, err := buf.ReadByte()
			if err != nil {
				select {
				case errCh <- err:
				default:
				}

				return
			}

			select {
			case <-ctx.Done():
				return
			case keyCh <- b:
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-sigCh:
			now := time.Now()
			if !c.lastSIGINT.IsZero() && now.Sub(c.lastSIGINT) < doubleSIGINTWindow {
				c.log.Info("second SIGINT within window, exiting")
				os.Exit(130)
			}

			c.lastSIGINT = now
			c.uart.Putc(etx)

		case b := <-keyCh:
			c.uart.Putc(b)
		}
	}
}

// writeLoop drains UART tx to the terminal at a steady poll rate; there is
// no tx-ready signal on the device, only TxBufferNotEmpty/Getc, per spec
// §4.5.
func (c *Console) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for c.uart.TxBufferNotEmpty() {
				b, ok := c.uart.Getc()
				if !ok {
					break
				}

				_, _ = fmt.Fprintf(c.out, "%c", b)
			}
		}
	}
}

func (c *Console) setTerminosBlocking() error {
	_ = syscall.SetNonblock(c.fd, true)

	termIO, err := unix.IoctlGetTermios(c.fd, getTermiosIoctl)
	if err != nil {
		return err
	}

	termIO.Cc[unix.VMIN] = 1
	termIO.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(c.fd, setTermiosIoctl, termIO); err != nil {
		return err
	}

	_ = os.Stdin.SetReadDeadline(time.Time{})

	return nil
}
