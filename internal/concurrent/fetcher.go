package concurrent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Task is one independent fetch dispatched to the pool.
type Task struct {
	Name    string
	Timeout time.Duration // zero uses the pool default
	Fn      func(ctx context.Context) (interface{}, error)
}

// Result represents the result of a concurrent operation
type Result struct {
	Name     string
	Data     interface{}
	Error    error
	TimedOut bool
	Latency  time.Duration
}

// Pool runs tasks on a bounded set of workers. Each task gets its own
// deadline; when it passes the worker stops waiting and moves on, and the
// task's late result is dropped.
type Pool struct {
	workers      int
	rateLimit    *rate.Limiter
	timeout      time.Duration
	backoff      time.Duration
	errorHandler ErrorHandler
	observer     func(Result)
}

// PoolConfig holds configuration for the pool
type PoolConfig struct {
	Workers      int           // Number of concurrent workers
	RateLimit    rate.Limit    // Task starts per second, zero disables
	Timeout      time.Duration // Default timeout per task
	Backoff      time.Duration // Base delay between retries
	ErrorHandler ErrorHandler  // Custom retry policy
	Observer     func(Result)  // Called once per finished task
}

// ErrorHandler decides whether a failed task is retried.
type ErrorHandler func(task string, err error, attempt int) bool

const (
	DefaultWorkers = 4
	maxWorkers     = 10
	maxAttempts    = 3
)

// NewPool creates a new worker pool
func NewPool(config PoolConfig) *Pool {
	workers := config.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	backoff := config.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	p := &Pool{
		workers:      workers,
		timeout:      timeout,
		backoff:      backoff,
		errorHandler: config.ErrorHandler,
		observer:     config.Observer,
	}
	if config.RateLimit > 0 {
		p.rateLimit = rate.NewLimiter(config.RateLimit, workers)
	}
	return p
}

// Run executes tasks and blocks until every one has either finished or hit
// its deadline. Results are returned in task order.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	results := make([]Result, len(tasks))
	jobs := make(chan int, len(tasks))
	for i := range tasks {
		jobs <- i
	}
	close(jobs)

	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go p.worker(ctx, tasks, jobs, results, &wg)
	}
	wg.Wait()

	return results
}

// worker processes jobs from the jobs channel
func (p *Pool) worker(ctx context.Context, tasks []Task, jobs <-chan int, results []Result, wg *sync.WaitGroup) {
	defer wg.Done()

	for idx := range jobs {
		task := tasks[idx]

		if ctx.Err() != nil {
			results[idx] = p.finish(Result{Name: task.Name, Error: ctx.Err(), TimedOut: true})
			continue
		}

		if p.rateLimit != nil {
			if err := p.rateLimit.Wait(ctx); err != nil {
				results[idx] = p.finish(Result{Name: task.Name, Error: fmt.Errorf("rate limit: %w", err)})
				continue
			}
		}

		results[idx] = p.finish(p.runWithTimeout(ctx, task))
	}
}

// runWithTimeout starts the task and waits for it or its deadline,
// whichever comes first.
func (p *Pool) runWithTimeout(ctx context.Context, task Task) Result {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1) // buffered so an abandoned task never blocks

	go func() {
		done <- p.attempt(timeoutCtx, task)
	}()

	select {
	case r := <-done:
		r.Latency = time.Since(start)
		return r
	case <-timeoutCtx.Done():
		return Result{
			Name:     task.Name,
			Error:    timeoutCtx.Err(),
			TimedOut: errors.Is(timeoutCtx.Err(), context.DeadlineExceeded),
			Latency:  time.Since(start),
		}
	}
}

// attempt calls the task, retrying with exponential backoff while the
// error handler allows it.
func (p *Pool) attempt(ctx context.Context, task Task) (r Result) {
	r.Name = task.Name

	defer func() {
		if rec := recover(); rec != nil {
			r.Data = nil
			r.Error = fmt.Errorf("task %s panicked: %v", task.Name, rec)
		}
	}()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		data, err := task.Fn(ctx)
		if err == nil {
			r.Data = data
			return r
		}
		lastErr = err

		if p.errorHandler == nil || attempt == maxAttempts-1 || !p.errorHandler(task.Name, err, attempt) {
			break
		}

		backoff := time.Duration(1<<uint(attempt)) * p.backoff
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			r.Error = ctx.Err()
			return r
		}
	}

	r.Error = lastErr
	return r
}

func (p *Pool) finish(r Result) Result {
	if p.observer != nil {
		p.observer(r)
	}
	return r
}

// DefaultErrorHandler retries timeouts and transient network errors.
func DefaultErrorHandler(task string, err error, attempt int) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary") ||
		strings.Contains(msg, "connection reset") {
		return attempt < 2
	}
	return false
}
