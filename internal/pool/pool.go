// Package pool runs submitted tasks on a fixed set of workers with an
// unbounded in-memory backlog. Submission never blocks the caller; backlog
// depth past the high-water mark is surfaced as a warning so operators can
// see when producers outpace the workers.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LukeVan/frame-io-max-activation/internal/logging"
	"github.com/LukeVan/frame-io-max-activation/internal/services"
)

// Task is a unit of work executed by a pool worker.
type Task interface {
	// Describe returns a short human-readable label used in logs.
	Describe() string
	// Execute performs the work. The context is cancelled when the pool is
	// stopped past its grace period.
	Execute(ctx context.Context) error
}

// Result reports the outcome of one executed task to the pool's observer.
type Result struct {
	Task     Task
	Err      error
	Duration time.Duration
}

// Options configures a Pool.
type Options struct {
	// Workers is the number of concurrent workers. Must be at least 1.
	Workers int
	// HighWaterMark triggers a backlog warning when queued tasks reach it.
	// Zero disables the warning.
	HighWaterMark int
	// Logger receives pool lifecycle and backlog logs. Nil means no logging.
	Logger *slog.Logger
	// Observer, when set, is called after every task completes. Called from
	// worker goroutines.
	Observer func(Result)
}

// Pool dispatches tasks to workers in submission order.
type Pool struct {
	opts Options

	mu      sync.Mutex
	cond    *sync.Cond
	backlog []Task
	running bool
	closing bool

	inFlight sync.WaitGroup
	workers  sync.WaitGroup
	cancel   context.CancelFunc
}

// New builds a pool from options. Workers below 1 is an error.
func New(opts Options) (*Pool, error) {
	if opts.Workers < 1 {
		return nil, fmt.Errorf("pool requires at least one worker, got %d", opts.Workers)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	p := &Pool{opts: opts}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

// Start launches the workers. Starting a running pool is an error.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("pool already running")
	}
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.running = true
	p.closing = false

	p.workers.Add(p.opts.Workers)
	for i := 0; i < p.opts.Workers; i++ {
		go p.runWorker(taskCtx, i)
	}
	p.opts.Logger.Info("worker pool started",
		logging.Int("workers", p.opts.Workers),
		logging.String(logging.FieldEventType, "pool_start"))
	return nil
}

// Submit queues a task for execution. It never blocks; when the pool is
// stopping the task is rejected.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return fmt.Errorf("nil task")
	}
	p.mu.Lock()
	if !p.running || p.closing {
		p.mu.Unlock()
		return fmt.Errorf("pool not accepting tasks")
	}
	p.backlog = append(p.backlog, task)
	depth := len(p.backlog)
	p.cond.Signal()
	p.mu.Unlock()

	if p.opts.HighWaterMark > 0 && depth >= p.opts.HighWaterMark {
		p.opts.Logger.Warn("task backlog above high-water mark",
			logging.Int("depth", depth),
			logging.Int("high_water_mark", p.opts.HighWaterMark),
			logging.String(logging.FieldEventType, "pool_backlog"),
			logging.Bool(logging.FieldAlert, true))
	}
	return nil
}

// Depth returns the number of queued (not yet started) tasks.
func (p *Pool) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.backlog)
}

// Stop shuts the pool down. New submissions are rejected immediately and
// the backlog is abandoned; tasks already executing get up to grace to
// finish before their context is cancelled. Stop waits for the workers to
// exit.
func (p *Pool) Stop(grace time.Duration) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.closing = true
	abandoned := len(p.backlog)
	p.backlog = nil
	cancel := p.cancel
	p.cond.Broadcast()
	p.mu.Unlock()

	if abandoned > 0 {
		p.opts.Logger.Info("abandoning queued tasks on shutdown",
			logging.Int("abandoned", abandoned),
			logging.String(logging.FieldEventType, "pool_stop"))
	}

	done := make(chan struct{})
	go func() {
		p.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		p.opts.Logger.Warn("grace period elapsed; cancelling in-flight tasks",
			logging.Duration("grace", grace),
			logging.String(logging.FieldEventType, "pool_force_stop"))
		cancel()
		<-done
	}
	cancel()

	p.workers.Wait()
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	p.opts.Logger.Info("worker pool stopped",
		logging.String(logging.FieldEventType, "pool_stop"))
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.workers.Done()
	for {
		task, ok := p.next()
		if !ok {
			return
		}
		p.execute(ctx, id, task)
	}
}

func (p *Pool) next() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.backlog) == 0 && !p.closing {
		p.cond.Wait()
	}
	if len(p.backlog) == 0 {
		return nil, false
	}
	task := p.backlog[0]
	p.backlog = p.backlog[1:]
	p.inFlight.Add(1)
	return task, true
}

func (p *Pool) execute(ctx context.Context, workerID int, task Task) {
	defer p.inFlight.Done()
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = services.Wrap(services.ErrProcessingFailed, "pool", "execute",
					fmt.Sprintf("task panicked: %v", r), nil)
			}
		}()
		return task.Execute(ctx)
	}()

	elapsed := time.Since(start)
	if err != nil {
		p.opts.Logger.Error("task failed",
			logging.String("task", task.Describe()),
			logging.Int("worker", workerID),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
			logging.String(logging.FieldEventType, "task_failed"))
	} else {
		p.opts.Logger.Info("task completed",
			logging.String("task", task.Describe()),
			logging.Int("worker", workerID),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldEventType, "task_complete"))
	}
	if p.opts.Observer != nil {
		p.opts.Observer(Result{Task: task, Err: err, Duration: elapsed})
	}
}
