// cmd/rv64run is the command-line interface to the RV64GC-class emulator:
// load a bare ELF image and run it to completion or until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelleyrw/rv64run/internal/config"
	"github.com/kelleyrw/rv64run/internal/console"
	"github.com/kelleyrw/rv64run/internal/hart"
	"github.com/kelleyrw/rv64run/internal/loader"
	"github.com/kelleyrw/rv64run/internal/log"
)

// Exit codes, per spec §6: 0 is clean termination, specific non-zero codes
// name ELF-load failure and internal decode/plic errors.
const (
	exitOK         = 0
	exitUsage      = 1
	exitLoadError  = 2
	exitInternal   = 3
	exitInterrupt  = 130
)

// tickInterval is the external ticker's rate for CLINT.Tick, per spec §5's
// "e.g. every millisecond in the reference configuration".
const tickInterval = time.Millisecond

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := log.DefaultLogger()
	log.SetDefault(logger)

	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: rv64run <elf-image>")
		return exitUsage
	}

	f, err := os.Open(args[0])
	if err != nil {
		logger.Error("opening image", "err", err)
		return exitLoadError
	}
	defer f.Close()

	sys := config.New(config.RAMBase, config.WithLogger(logger))

	img, err := loader.Load(f, sys.RAM, config.RAMBase, config.RAMBase, logger)
	if err != nil {
		logger.Error("loading image", "err", err)
		return exitLoadError
	}

	sys.Hart.SetPC(hart.Word(img.StartPC))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	cons, consErr := console.New(sys.Uart, logger)
	defer cons.Restore()

	if consErr != nil && !errors.Is(consErr, console.ErrNoTTY) {
		logger.Error("console init", "err", consErr)
		return exitInternal
	}

	go func() {
		if err := cons.Run(ctx); err != nil {
			logger.Debug("console stopped", "err", err)
		}
	}()

	return runLoop(ctx, sys)
}

// runLoop drives the hart one tick per tickInterval until the context is
// cancelled. It does not stop when the hart parks in WFI; such ticks only
// poll the interrupt lines.
func runLoop(ctx context.Context, sys *config.System) int {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return exitOK
		case <-ticker.C:
			sys.Tick(true)
		}
	}
}
