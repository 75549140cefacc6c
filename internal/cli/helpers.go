package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// errInterrupted marks a read cut short by a signal.
var errInterrupted = errors.New("interrupted")

// SignalContext is cancelled by SIGINT/SIGTERM and remembers which signal fired.
type SignalContext struct {
	context.Context
	Cancel context.CancelFunc

	received atomic.Value
}

// NewSignalContext starts watching for termination signals until parent ends
// or Cancel is called.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{Context: ctx, Cancel: cancel}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			sc.received.Store(sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return sc
}

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sig, _ := sc.received.Load().(os.Signal)
	return sig
}

// InterruptibleReader stops yielding input once done is closed, so a scanner
// over stdin notices Ctrl+C between lines.
type InterruptibleReader struct {
	r    io.Reader
	done <-chan struct{}
}

func NewInterruptibleReader(r io.Reader, done <-chan struct{}) *InterruptibleReader {
	return &InterruptibleReader{r: r, done: done}
}

func (ir *InterruptibleReader) Read(p []byte) (int, error) {
	if ir.stopped() {
		return 0, errInterrupted
	}
	n, err := ir.r.Read(p)
	if ir.stopped() {
		return 0, errInterrupted
	}
	return n, err
}

func (ir *InterruptibleReader) stopped() bool {
	select {
	case <-ir.done:
		return true
	default:
		return false
	}
}

// handleExecutionError treats EOF, cancellation and interrupts as a clean exit.
func handleExecutionError(err error) error {
	switch {
	case err == nil,
		errors.Is(err, errInterrupted),
		errors.Is(err, context.Canceled),
		errors.Is(err, io.EOF):
		return nil
	}
	return err
}
