// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package task runs named background jobs that can be inspected and killed.
package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrKilled is the error of a task stopped through Kill
var ErrKilled = errors.New("task killed")

// Status is the lifecycle stage of a task
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusKilled    Status = "killed"
)

// Func is the body of a task. It should return promptly once ctx is done.
type Func func(ctx context.Context, t *Task) error

// Task is a single background job
type Task struct {
	started  time.Time
	finished time.Time
	state    any
	err      error
	cancel   context.CancelFunc
	done     chan struct{}
	id       string
	name     string
	status   Status
	mu       sync.RWMutex
	killed   atomic.Bool
}

func (t *Task) ID() string {
	return t.id
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) Started() time.Time {
	return t.started
}

// Kill asks the task to stop. It does not wait for it to do so.
func (t *Task) Kill() {
	t.killed.Store(true)
	t.cancel()
}

// Done is closed when the task has returned
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task returns or ctx is done, and returns the task error
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetState replaces the progress value reported by State
func (t *Task) SetState(state any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
}

// State returns the last progress value set by the task
func (t *Task) State() any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Err returns the error the task finished with
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Finished returns when the task returned, or the zero time while it runs
func (t *Task) Finished() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.finished
}

// finish records the outcome of the task body. A nil error always completes
// the task, even when it was killed or its runner stopped meanwhile.
func (t *Task) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = time.Now()
	switch {
	case err == nil:
		t.status = StatusCompleted
	case t.killed.Load() || errors.Is(err, context.Canceled):
		t.status = StatusKilled
		if errors.Is(err, context.Canceled) {
			err = ErrKilled
		}
	default:
		t.status = StatusFailed
	}
	t.err = err
}

// RunnerConfig configures a Runner
type RunnerConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Retention is how long finished tasks stay listed. Zero keeps them
	// until the runner stops.
	Retention time.Duration
}

// Runner launches tasks and keeps track of them. It does not limit how many
// tasks run at once.
type Runner struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
	metrics *runnerMetrics
	tasks   map[string]*Task
	config  RunnerConfig
	wg      sync.WaitGroup
	mu      sync.RWMutex
}

// NewRunner returns a Runner. Tasks launched on it are killed by Stop.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		ctx:    ctx,
		cancel: cancel,
		config: cfg,
		logger: cfg.Logger.With("component", "task"),
		tasks:  make(map[string]*Task),
	}
	if cfg.PromRegistry != nil {
		r.metrics = newRunnerMetrics(cfg.PromRegistry)
	}
	return r
}

// Launch starts fn in the background under name
func (r *Runner) Launch(name string, fn Func) *Task {
	ctx, cancel := context.WithCancel(r.ctx)
	t := &Task{
		id:      uuid.NewString(),
		name:    name,
		started: time.Now(),
		status:  StatusRunning,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	r.mu.Lock()
	r.pruneLocked()
	r.tasks[t.id] = t
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.running.WithLabelValues(name).Inc()
	}
	r.logger.Debug("task started", "task", name, "id", t.id)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(t.done)
		defer cancel()
		err := r.run(ctx, t, fn)
		t.finish(err)
		if r.metrics != nil {
			r.metrics.running.WithLabelValues(name).Dec()
			r.metrics.finished.WithLabelValues(name, string(t.Status())).Inc()
		}
		if err := t.Err(); err != nil && t.Status() == StatusFailed {
			r.logger.Error("task failed", "task", name, "id", t.id, "error", err)
		} else {
			r.logger.Debug("task finished", "task", name, "id", t.id, "status", t.Status())
		}
	}()
	return t
}

// run calls fn, turning a panic into a task error
func (r *Runner) run(ctx context.Context, t *Task, fn Func) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p}
		}
	}()
	return fn(ctx, t)
}

// Get returns a task by id
func (r *Runner) Get(id string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Running reports whether a task with the given name is still running
func (r *Runner) Running(name string) bool {
	return len(r.RunningTasks(name)) > 0
}

// RunningTasks returns the running tasks with the given name
func (r *Runner) RunningTasks(name string) []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ret []*Task
	for _, t := range r.tasks {
		if t.name == name && t.Status() == StatusRunning {
			ret = append(ret, t)
		}
	}
	return ret
}

// List returns every known task
func (r *Runner) List() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		ret = append(ret, t)
	}
	return ret
}

// Stop kills every task and waits for them to return
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) pruneLocked() {
	if r.config.Retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-r.config.Retention)
	for id, t := range r.tasks {
		finished := t.Finished()
		if !finished.IsZero() && finished.Before(cutoff) {
			delete(r.tasks, id)
		}
	}
}
