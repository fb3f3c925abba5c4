package interrupt_test

// Notes:
// - Tests use black-box approach via interrupt_test package
// - All tests inject a signal channel via NewHandlerWithOptions, except the
//   Stop registration test, which sends a real SIGINT and is not parallel
// - Signal synchronization: context Done channels confirm each signal was processed
//
// Thread-safety note:
// - The listener writes to stderr from its own goroutine
// - bytes.Buffer is NOT thread-safe, so we use syncBuffer in tests

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-meetsync/internal/interrupt"
)

// syncBuffer is a thread-safe bytes.Buffer for testing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Contains(substr string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Contains(b.buf.Bytes(), []byte(substr))
}

func waitDone(t *testing.T, ctx context.Context, what string) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("%s should be canceled", what)
	}
}

func notDone(t *testing.T, ctx context.Context, what string) {
	t.Helper()
	select {
	case <-ctx.Done():
		t.Fatalf("%s should not be canceled", what)
	default:
	}
}

// ---------------------------------------------------------------------------
// TestNewHandler - Default constructor
// ---------------------------------------------------------------------------

func TestNewHandler(t *testing.T) {
	t.Parallel()

	h := interrupt.NewHandler(context.Background())
	if h == nil {
		t.Fatal("NewHandler returned nil handler")
	}
	notDone(t, h.Intake(), "intake")
	notDone(t, h.Work(), "work")
	if h.WasInterrupted() {
		t.Error("WasInterrupted should be false before any signal")
	}

	h.Stop()
	waitDone(t, h.Work(), "work after Stop")
}

// ---------------------------------------------------------------------------
// TestHandler_Phases - first signal drains, second aborts
// ---------------------------------------------------------------------------

func TestHandler_FirstSignalDrains(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal, 2)
	var stderr syncBuffer
	h := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{SigCh: sigCh, Stderr: &stderr})
	defer h.Stop()

	sigCh <- os.Interrupt
	waitDone(t, h.Intake(), "intake")
	notDone(t, h.Work(), "work")

	if h.Phase() != interrupt.Draining {
		t.Errorf("Phase() = %v, want Draining", h.Phase())
	}
	if !h.WasInterrupted() {
		t.Error("WasInterrupted should be true after first signal")
	}
}

func TestHandler_SecondSignalAborts(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal, 2)
	var stderr syncBuffer
	h := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{SigCh: sigCh, Stderr: &stderr})
	defer h.Stop()

	sigCh <- os.Interrupt
	waitDone(t, h.Intake(), "intake")
	sigCh <- os.Interrupt
	waitDone(t, h.Work(), "work")

	if h.Phase() != interrupt.Aborted {
		t.Errorf("Phase() = %v, want Aborted", h.Phase())
	}
	deadline := time.Now().Add(time.Second)
	for !stderr.Contains("Aborted.") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !stderr.Contains("Aborted.") {
		t.Error("abort message not written")
	}
}

func TestHandler_ParentCanceled(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithCancel(context.Background())
	h := interrupt.NewHandlerWithOptions(parent, interrupt.Options{})
	defer h.Stop()

	cancel()
	waitDone(t, h.Work(), "work")
	waitDone(t, h.Intake(), "intake")
	if h.WasInterrupted() {
		t.Error("parent cancellation is not a signal")
	}
}

func TestHandler_ChannelClosed(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal)
	h := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{SigCh: sigCh})
	close(sigCh)
	h.Stop()
	h.Stop() // idempotent
}

// Not parallel: delivers a real SIGINT to the test process.
func TestHandler_StopKeepsOtherListeners(t *testing.T) {
	other := make(chan os.Signal, 1)
	signal.Notify(other, os.Interrupt)
	defer signal.Stop(other)

	h := interrupt.NewHandler(context.Background())
	h.Stop()

	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Signal(os.Interrupt); err != nil {
		t.Skipf("cannot signal self: %v", err)
	}
	select {
	case <-other:
	case <-time.After(2 * time.Second):
		t.Fatal("other listener lost its registration after Stop")
	}
	if h.WasInterrupted() {
		t.Error("stopped handler should not observe the signal")
	}
}

func TestPhase_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		p    interrupt.Phase
		want string
	}{
		{interrupt.Running, "Running"},
		{interrupt.Draining, "Draining"},
		{interrupt.Aborted, "Aborted"},
		{interrupt.Phase(9), "Phase(9)"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
