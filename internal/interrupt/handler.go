// Package interrupt turns SIGINT/SIGTERM into a two-step shutdown for
// long-running commands. The first signal stops intake of new work and lets
// the current item finish; a second one cancels the work in flight.
package interrupt

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Phase is the shutdown progress of a Handler.
type Phase int

const (
	// Running means no signal was received.
	Running Phase = iota
	// Draining means intake stopped; work in flight continues.
	Draining
	// Aborted means work in flight was canceled.
	Aborted
)

// String returns the string representation of the Phase.
func (p Phase) String() string {
	switch p {
	case Running:
		return "Running"
	case Draining:
		return "Draining"
	case Aborted:
		return "Aborted"
	default:
		return fmt.Sprintf("Phase(%d)", p)
	}
}

// ExitInterrupt is the exit code for interrupt (130 = 128 + SIGINT).
const ExitInterrupt = 130

const (
	drainMessage = "\nFinishing the current recording. Press Ctrl+C again to abort."
	abortMessage = "\nAborted."
)

// Handler owns two contexts: Intake, canceled on the first signal, and
// Work, canceled on the second. Intake is derived from Work, so aborting
// also stops intake.
type Handler struct {
	mu      sync.Mutex
	phase   Phase
	stopped bool
	done    chan struct{} // Signals listen goroutine to exit

	// notifyCh is the channel registered with signal.Notify, if any.
	notifyCh chan os.Signal

	intake       context.Context
	work         context.Context
	cancelIntake context.CancelFunc
	cancelWork   context.CancelFunc

	// Stderr receives user-facing messages.
	stderr io.Writer
}

// Options holds injectable dependencies for testing.
type Options struct {
	SigCh <-chan os.Signal
	// Stderr is the writer for user-facing messages.
	// Must be safe for concurrent writes from multiple goroutines.
	// Defaults to os.Stderr which is safe at the OS level.
	Stderr io.Writer
}

// NewHandler creates a handler that listens for SIGINT/SIGTERM.
func NewHandler(parent context.Context) *Handler {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	h := newHandler(parent, Options{SigCh: sigCh})
	h.notifyCh = sigCh
	return h
}

// NewHandlerWithOptions creates a handler with injectable dependencies.
func NewHandlerWithOptions(parent context.Context, opts Options) *Handler {
	return newHandler(parent, opts)
}

func newHandler(parent context.Context, opts Options) *Handler {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	h := &Handler{done: make(chan struct{}), stderr: stderr}
	h.work, h.cancelWork = context.WithCancel(parent)
	h.intake, h.cancelIntake = context.WithCancel(h.work)

	if opts.SigCh != nil {
		go h.listen(opts.SigCh)
	}
	return h
}

// Intake is canceled once no new work should start.
func (h *Handler) Intake() context.Context { return h.intake }

// Work is canceled once work in flight must stop.
func (h *Handler) Work() context.Context { return h.work }

// listen advances the phase on each incoming signal.
func (h *Handler) listen(sigCh <-chan os.Signal) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sigCh:
			if !ok {
				return // Channel closed
			}

			h.mu.Lock()
			if h.stopped {
				h.mu.Unlock()
				return
			}
			switch h.phase {
			case Running:
				h.phase = Draining
				h.cancelIntake()
				h.mu.Unlock()
				_, _ = fmt.Fprintln(h.stderr, drainMessage)
			default:
				h.phase = Aborted
				h.cancelWork()
				h.mu.Unlock()
				_, _ = fmt.Fprintln(h.stderr, abortMessage)
				return
			}
		}
	}
}

// Phase returns the current shutdown phase.
func (h *Handler) Phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

// WasInterrupted returns true if at least one signal was received.
func (h *Handler) WasInterrupted() bool {
	return h.Phase() != Running
}

// Stop releases the contexts and the handler's own signal registration.
// Other listeners in the process keep theirs. Should be called when done.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	if h.notifyCh != nil {
		signal.Stop(h.notifyCh)
	}
	h.cancelIntake()
	h.cancelWork()
	close(h.done) // Signal listen goroutine to exit
}
