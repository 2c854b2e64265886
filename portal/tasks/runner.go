// Package tasks runs cancellable periodic jobs keyed by the subject they poll for, so that
// changing the subject (an address, a chain pair) replaces the old loop instead of stacking
// a new one beside it.
package tasks

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "tasks").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "tasks").Logger()
}

// Func is one run of a periodic task.
type Func func(ctx context.Context)

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Runner owns a set of periodic tasks. The zero value is not usable, use NewRunner.
type Runner struct {
	parent context.Context

	mu    sync.Mutex
	tasks map[string]*task
}

// NewRunner creates a runner whose tasks all stop when ctx is cancelled.
func NewRunner(ctx context.Context) *Runner {
	return &Runner{parent: ctx, tasks: make(map[string]*task)}
}

// Start runs fn now and then every interval until stopped. A task already running under key
// is stopped first and has returned by the time the new one starts.
func (r *Runner) Start(key string, interval time.Duration, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.tasks[key]; ok {
		old.cancel()
		<-old.done
	}

	ctx, cancel := context.WithCancel(r.parent)
	t := &task{cancel: cancel, done: make(chan struct{})}
	r.tasks[key] = t

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			fn(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	log.Debug().Str("task", key).Dur("interval", interval).Msg("Task started")
}

// Stop cancels the task under key and waits for it to return. It reports whether one was running.
func (r *Runner) Stop(key string) bool {
	r.mu.Lock()
	t, ok := r.tasks[key]
	delete(r.tasks, key)
	r.mu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	<-t.done
	log.Debug().Str("task", key).Msg("Task stopped")
	return true
}

// StopAll cancels every task and waits for them.
func (r *Runner) StopAll() {
	r.mu.Lock()
	running := r.tasks
	r.tasks = make(map[string]*task)
	r.mu.Unlock()

	for _, t := range running {
		t.cancel()
	}
	for _, t := range running {
		<-t.done
	}
}

// Running reports whether a task is registered under key.
func (r *Runner) Running(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[key]
	return ok
}
