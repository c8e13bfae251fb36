// Package host provides the minimal runtime location event entities live in:
// a cooperative task loop, a lifecycle event bus, and an entity registry.
package host

import (
	"context"
	"log/slog"
	"sync"
)

// Task is a unit of work executed on the loop goroutine.
type Task func(ctx context.Context)

// Poster schedules tasks on a loop.
type Poster interface {
	Post(task Task)
}

// Loop runs posted tasks one at a time, in posting order. State owned by
// loop tasks needs no further locking as long as it is only touched from
// tasks.
type Loop struct {
	mu     sync.Mutex
	queue  []Task
	wake   chan struct{}
	logger *slog.Logger
}

// NewLoop creates an idle loop. Call Run to start executing tasks.
func NewLoop(logger *slog.Logger) *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Post enqueues a task. It never blocks, so tasks may post further tasks.
func (l *Loop) Post(task Task) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes tasks until ctx is cancelled. Tasks still queued at
// cancellation are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("host loop started")
	for {
		for {
			task, ok := l.next()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				break
			}
			l.exec(ctx, task)
		}

		select {
		case <-ctx.Done():
			l.logger.Info("host loop stopped", "dropped", l.Pending())
			return nil
		case <-l.wake:
		}
	}
}

// Drain runs queued tasks on the calling goroutine until the queue is empty,
// including tasks posted while draining. It must not be used while Run is
// active. Returns the number of tasks executed.
func (l *Loop) Drain(ctx context.Context) int {
	n := 0
	for {
		task, ok := l.next()
		if !ok {
			return n
		}
		l.exec(ctx, task)
		n++
	}
}

// Call posts fn and waits for it to finish on the loop.
func (l *Loop) Call(ctx context.Context, fn Task) error {
	done := make(chan struct{})
	l.Post(func(ctx context.Context) {
		defer close(done)
		fn(ctx)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) next() (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

// exec runs one task. A panicking task is logged and does not stop the loop.
func (l *Loop) exec(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("host task panicked", "panic", r)
		}
	}()
	task(ctx)
}
