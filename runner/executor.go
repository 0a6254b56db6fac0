package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/thalesfsp/adaptive"
)

// Executor runs evaluation tasks.
//
// Implementation notes:
//   - Submit may block until a slot is free and must honour ctx while doing
//     so
//   - A submitted task is always called, with a context that may already
//     be cancelled
//   - Capacity is the number of tasks that may run at once
//   - Submit after Close returns ErrExecutorExhausted.
type Executor interface {
	Submit(ctx context.Context, task func(ctx context.Context)) error
	Capacity() int
	Close() error
}

//////
// PoolExecutor.
//////

// PoolConfig configures a PoolExecutor.
type PoolConfig struct {
	// Workers is the number of tasks run at once.
	Workers int

	// RateLimit caps tasks started per second. Zero means unlimited.
	RateLimit float64

	// Burst is the rate limiter's bucket size. Defaults to 1.
	Burst int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// PoolExecutor runs every task on its own goroutine, bounded by a weighted
// semaphore and optionally paced by a token bucket.
type PoolExecutor struct {
	workers int
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Submit waits for a free worker and starts task on it.
func (p *PoolExecutor) Submit(ctx context.Context, task func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("%w: pool is closed", adaptive.ErrExecutorExhausted)
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				p.logger.Debug("rate limiter wait aborted", slog.String("error", err.Error()))
			}
		}

		task(ctx)
	}()

	return nil
}

// Capacity returns the number of workers.
func (p *PoolExecutor) Capacity() int {
	return p.workers
}

// Close refuses further tasks and waits for the running ones.
func (p *PoolExecutor) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()

	return nil
}

// NewPoolExecutor creates a pool.
//
// Returns:
//   - error: ErrInvalidInput if Workers is not positive or RateLimit is
//     negative.
func NewPoolExecutor(cfg PoolConfig) (*PoolExecutor, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("%w: workers must be positive, got %d", adaptive.ErrInvalidInput, cfg.Workers)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("%w: rate limit must not be negative, got %v", adaptive.ErrInvalidInput, cfg.RateLimit)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &PoolExecutor{
		workers: cfg.Workers,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		logger:  logger.With(slog.String("component", "pool_executor")),
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}

		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return p, nil
}

//////
// InlineExecutor.
//////

// InlineExecutor runs each task on the caller's goroutine before Submit
// returns. Runs driven by it are deterministic.
type InlineExecutor struct {
	capacity int

	mu     sync.Mutex
	closed bool
}

// Submit runs task to completion.
func (e *InlineExecutor) Submit(ctx context.Context, task func(ctx context.Context)) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return fmt.Errorf("%w: inline executor is closed", adaptive.ErrExecutorExhausted)
	}

	task(ctx)

	return nil
}

// Capacity returns the batch size the runner asks for at once.
func (e *InlineExecutor) Capacity() int {
	return e.capacity
}

// Close refuses further tasks.
func (e *InlineExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true

	return nil
}

// NewInlineExecutor creates an inline executor that lets the runner ask for
// batch inputs at once. A batch below 1 means 1.
func NewInlineExecutor(batch int) *InlineExecutor {
	if batch < 1 {
		batch = 1
	}

	return &InlineExecutor{capacity: batch}
}

var (
	_ Executor = (*PoolExecutor)(nil)
	_ Executor = (*InlineExecutor)(nil)
)
