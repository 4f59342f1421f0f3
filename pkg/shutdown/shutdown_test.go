package shutdown

import (
	"context"
	"errors"
	"slices"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) step(name string, err error) func(context.Context) error {
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, name)
		return err
	}
}

func TestShutdownOrder(t *testing.T) {
	var r recorder
	m := NewManager()
	m.RegisterFunc("readiness", r.step("readiness", nil))
	m.RegisterFunc("observer", r.step("observer", nil))
	m.RegisterFunc("nats", r.step("nats", nil))
	m.Register("nil", nil)
	m.RegisterFunc("nil func", nil)

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if want := []string{"readiness", "observer", "nats"}; !slices.Equal(r.order, want) {
		t.Errorf("order = %v, want %v", r.order, want)
	}

	// Only the first call runs the sequence.
	if err := m.Shutdown(); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
	if len(r.order) != 3 {
		t.Errorf("sequence ran again: %v", r.order)
	}
}

func TestShutdownErrorsContinue(t *testing.T) {
	var r recorder
	boom := errors.New("boom")
	m := NewManager()
	m.RegisterFunc("first", r.step("first", boom))
	m.RegisterFunc("second", r.step("second", nil))

	err := m.Shutdown()
	if !errors.Is(err, boom) {
		t.Fatalf("Shutdown() error = %v, want %v", err, boom)
	}
	if len(r.order) != 2 {
		t.Errorf("order = %v, want both steps", r.order)
	}
}

func TestShutdownTimeout(t *testing.T) {
	var r recorder
	m := NewManager().WithTimeout(50 * time.Millisecond)
	m.RegisterFunc("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	m.RegisterFunc("skipped", r.step("skipped", nil))

	err := m.Shutdown()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown() error = %v, want deadline exceeded", err)
	}
	if len(r.order) != 0 {
		t.Errorf("step after timeout ran: %v", r.order)
	}
}

func TestWaitContextCancel(t *testing.T) {
	var r recorder
	m := NewManager().WithSignals(syscall.SIGUSR1)
	m.RegisterFunc("a", r.step("a", nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Wait(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return")
	}
	if len(r.order) != 1 {
		t.Errorf("order = %v", r.order)
	}
}
