package observer

import (
	"context"
	"sync"
)

// executor runs closures one at a time, in submission order, on a single
// goroutine. It is the observer's serialized delivery context.
type executor struct {
	tasks    chan func()
	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once
}

func newExecutor(queueSize int) *executor {
	e := &executor{
		tasks: make(chan func(), queueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *executor) run() {
	defer close(e.done)
	for {
		select {
		case task := <-e.tasks:
			task()
		case <-e.quit:
			// Run whatever was queued before quit.
			for {
				select {
				case task := <-e.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// dispatch queues task. It returns false once the executor is shutting down.
func (e *executor) dispatch(task func()) bool {
	select {
	case <-e.quit:
		return false
	default:
	}
	select {
	case e.tasks <- task:
		return true
	case <-e.quit:
		return false
	}
}

// dispatchWait queues task and waits until it has run or ctx is done. A task
// abandoned after queueing still runs later.
func (e *executor) dispatchWait(ctx context.Context, task func()) bool {
	ran := make(chan struct{})
	wrapped := func() {
		defer close(ran)
		task()
	}
	select {
	case <-e.quit:
		return false
	default:
	}
	select {
	case e.tasks <- wrapped:
	case <-e.quit:
		return false
	case <-ctx.Done():
		return false
	}
	select {
	case <-ran:
		return true
	case <-e.done:
		// The drain in run may still have executed it.
		select {
		case <-ran:
			return true
		default:
			return false
		}
	case <-ctx.Done():
		return false
	}
}

// shutdown stops accepting tasks, drains the queue and waits for the goroutine to exit.
func (e *executor) shutdown(ctx context.Context) error {
	e.quitOnce.Do(func() { close(e.quit) })
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
