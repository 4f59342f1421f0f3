package observer

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestExecutorOrder(t *testing.T) {
	e := newExecutor(4)
	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 100 {
		if !e.dispatch(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}) {
			t.Fatalf("dispatch(%d) rejected", i)
		}
	}
	if err := e.shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}

	if len(got) != 100 {
		t.Fatalf("ran %d tasks, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestExecutorDispatchWait(t *testing.T) {
	e := newExecutor(1)
	defer e.shutdown(context.Background())

	ran := false
	if !e.dispatchWait(context.Background(), func() { ran = true }) {
		t.Fatal("dispatchWait() = false")
	}
	if !ran {
		t.Error("task did not run before dispatchWait returned")
	}
}

func TestExecutorRejectsAfterShutdown(t *testing.T) {
	e := newExecutor(1)
	if err := e.shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	if e.dispatch(func() {}) {
		t.Error("dispatch() accepted a task after shutdown")
	}
	if e.dispatchWait(context.Background(), func() {}) {
		t.Error("dispatchWait() accepted a task after shutdown")
	}
}

func TestExecutorShutdownTimeout(t *testing.T) {
	e := newExecutor(1)
	block := make(chan struct{})
	e.dispatch(func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.shutdown(ctx); err == nil {
		t.Error("shutdown() should time out while a task blocks")
	}
	close(block)
	if err := e.shutdown(context.Background()); err != nil {
		t.Errorf("second shutdown() error = %v", err)
	}
}

func TestExecutorDispatchWaitHonorsContext(t *testing.T) {
	e := newExecutor(1)
	block := make(chan struct{})
	e.dispatch(func() { <-block })
	e.dispatch(func() {})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if e.dispatchWait(ctx, func() {}) {
		t.Error("dispatchWait() = true while the queue is full")
	}

	close(block)
	if err := e.shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}
