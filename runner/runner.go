package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thalesfsp/adaptive"
)

//////
// Const, vars, types.
//////

// ErrAlreadyStarted is returned when a runner is run a second time.
var ErrAlreadyStarted = errors.New("runner already started")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Done reports whether s is terminal.
func (s Status) Done() bool {
	return s == StatusFinished || s == StatusCancelled || s == StatusFailed
}

// Func evaluates the function being learned at x. A returned error marks x
// as failed; the run goes on.
type Func[X comparable, Y any] func(ctx context.Context, x X) (Y, error)

// Saver persists the ordered samples of a learner. checkpoint stores
// implement it.
type Saver[X comparable, Y any] interface {
	Save(ctx context.Context, samples []adaptive.Sample[X, Y]) error
}

// Option customises a Runner.
type Option[X comparable, Y any] func(r *Runner[X, Y])

// WithExecutor runs evaluations on e instead of a PoolExecutor built from
// the config. The caller keeps ownership of e and closes it.
func WithExecutor[X comparable, Y any](e Executor) Option[X, Y] {
	return func(r *Runner[X, Y]) {
		r.executor = e
	}
}

// WithPredicate adds a custom goal, checked after the configured ones.
func WithPredicate[X comparable, Y any](p func(l adaptive.Learner[X, Y]) bool) Option[X, Y] {
	return func(r *Runner[X, Y]) {
		r.predicate = p
	}
}

// WithCheckpoint saves the learner's samples to s on the configured
// triggers and once more when the run ends.
func WithCheckpoint[X comparable, Y any](s Saver[X, Y]) Option[X, Y] {
	return func(r *Runner[X, Y]) {
		r.saver = s
	}
}

// Runner drives one learner until a goal is met.
//
// Loop:
//  1. Stop if a goal is met or the context is done
//  2. Ask the learner for one input per free executor slot and submit them
//  3. Stop with ReasonExhausted if nothing is in flight
//  4. Wait for at least one result, tell every ready result
//
// Thread safety:
//   - The loop runs on a single goroutine; only it touches the learner's
//     mutating methods. Status, Info and Failures are safe from any
//     goroutine.
type Runner[X comparable, Y any] struct {
	id    string
	label string
	cfg   Config

	learner   adaptive.Learner[X, Y]
	fn        Func[X, Y]
	executor  Executor
	ownsExec  bool
	predicate func(l adaptive.Learner[X, Y]) bool
	saver     Saver[X, Y]

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	// sinceSave counts tells since the last checkpoint. Loop only.
	sinceSave int

	mu       sync.RWMutex
	status   Status
	reason   Reason
	err      error
	failures int
	firstErr error
	started  time.Time
	finished time.Time
}

// result is one finished evaluation.
type result[X comparable, Y any] struct {
	x   X
	y   Y
	err error
	dur time.Duration
}

//////
// Exported functionalities.
//////

// Run drives the learner until a goal is met, the context is done or too
// many evaluations fail.
//
// Returns:
//   - nil: a goal was met or the learner was exhausted; see Reason
//   - error: ErrCancelled when ctx ended the run, ErrEvaluation once more
//     than MaxFailures evaluations failed, ErrExecutorExhausted when the
//     executor refused work, ErrAlreadyStarted on a second call.
func (r *Runner[X, Y]) Run(ctx context.Context) error {
	if err := r.begin(); err != nil {
		return err
	}

	return r.run(ctx)
}

// Start runs the learner on a new goroutine and returns its handle.
func (r *Runner[X, Y]) Start(ctx context.Context) *Task[X, Y] {
	ctx, cancel := context.WithCancel(ctx)

	t := &Task[X, Y]{
		runner: r,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if err := r.begin(); err != nil {
		t.err = err

		cancel()
		close(t.done)

		return t
	}

	go func() {
		defer close(t.done)
		defer cancel()

		t.err = r.run(ctx)
	}()

	return t
}

// ID returns the run's unique identifier.
func (r *Runner[X, Y]) ID() string {
	return r.id
}

// Learner returns the driven learner.
func (r *Runner[X, Y]) Learner() adaptive.Learner[X, Y] {
	return r.learner
}

// Status returns the lifecycle state.
func (r *Runner[X, Y]) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.status
}

// Reason returns the goal that finished the run, empty until it finishes.
func (r *Runner[X, Y]) Reason() Reason {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.reason
}

// Err returns the terminal error, nil while running or after a clean
// finish.
func (r *Runner[X, Y]) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.err
}

// Failures returns the number of failed evaluations.
func (r *Runner[X, Y]) Failures() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.failures
}

// Elapsed returns the time spent running, up to now or to the finish.
func (r *Runner[X, Y]) Elapsed() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.elapsed()
}

// Info returns a snapshot of the run.
func (r *Runner[X, Y]) Info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info := Info{
		ID:       r.id,
		Name:     r.label,
		Status:   r.status,
		Reason:   r.reason,
		Points:   r.learner.NPoints(),
		Loss:     r.learner.Loss(),
		Failures: r.failures,
		Started:  r.started,
		Elapsed:  r.elapsed(),
	}

	if r.err != nil {
		info.Error = r.err.Error()
	}

	return info
}

//////
// Helper functions.
//////

func (r *Runner[X, Y]) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusCreated {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyStarted, r.id, r.status)
	}

	r.status = StatusRunning
	r.started = time.Now()

	return nil
}

func (r *Runner[X, Y]) run(ctx context.Context) error {
	register(r)
	defer deregister(r)

	r.logger.Info("run started",
		slog.Int("capacity", r.executor.Capacity()),
		slog.Int("points", r.learner.NPoints()),
	)

	reason, err := r.loop(ctx)

	r.learner.RemoveUnfinished()

	if r.ownsExec {
		if cerr := r.executor.Close(); cerr != nil {
			r.logger.Warn("closing executor", slog.String("error", cerr.Error()))
		}
	}

	r.checkpoint(context.WithoutCancel(ctx), "final")

	r.finish(reason, err)

	return err
}

func (r *Runner[X, Y]) finish(reason Reason, err error) {
	r.mu.Lock()

	r.finished = time.Now()
	r.reason = reason
	r.err = err

	switch {
	case err == nil:
		r.status = StatusFinished
	case errors.Is(err, adaptive.ErrCancelled):
		r.status = StatusCancelled
	default:
		r.status = StatusFailed
	}

	status, failures, elapsed := r.status, r.failures, r.elapsed()

	r.mu.Unlock()

	attrs := []any{
		slog.String("status", string(status)),
		slog.Int("points", r.learner.NPoints()),
		slog.Float64("loss", r.learner.Loss()),
		slog.Int("failures", failures),
		slog.Duration("elapsed", elapsed),
	}

	if reason != "" {
		attrs = append(attrs, slog.String("reason", string(reason)))
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	r.logger.Info("run finished", attrs...)
}

func (r *Runner[X, Y]) elapsed() time.Duration {
	switch {
	case r.started.IsZero():
		return 0
	case r.finished.IsZero():
		return time.Since(r.started)
	default:
		return r.finished.Sub(r.started)
	}
}

func (r *Runner[X, Y]) loop(ctx context.Context) (Reason, error) {
	capacity := r.executor.Capacity()
	results := make(chan result[X, Y], capacity)
	inFlight := make(map[X]context.CancelFunc, capacity)

	defer func() {
		for x, cancel := range inFlight {
			cancel()
			delete(inFlight, x)
			r.metrics.InFlight.WithLabelValues(r.label).Dec()
		}
	}()

	var deadline <-chan time.Time

	if d := r.cfg.Goal.Duration; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()

		deadline = timer.C
	}

	var tick <-chan time.Time

	if iv := r.cfg.Checkpoint.Interval; iv > 0 && r.saver != nil {
		ticker := time.NewTicker(iv)
		defer ticker.Stop()

		tick = ticker.C
	}

	for {
		if reason, ok := r.goalReached(); ok {
			return reason, nil
		}

		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %w", adaptive.ErrCancelled, err)
		}

		if free := capacity - len(inFlight); free > 0 {
			xs, _ := r.learner.Ask(free)

			for _, x := range xs {
				if err := r.submit(ctx, x, results, inFlight); err != nil {
					return "", err
				}
			}
		}

		if len(inFlight) == 0 {
			return ReasonExhausted, nil
		}

		select {
		case <-ctx.Done():
		case <-deadline:
		case <-tick:
			r.checkpoint(ctx, "interval")
		case res := <-results:
			if err := r.handle(ctx, res, inFlight); err != nil {
				return "", err
			}

		drain:
			for {
				select {
				case res := <-results:
					if err := r.handle(ctx, res, inFlight); err != nil {
						return "", err
					}
				default:
					break drain
				}
			}
		}
	}
}

func (r *Runner[X, Y]) goalReached() (Reason, bool) {
	if reason, ok := r.cfg.Goal.reached(r.learner.NPoints(), r.learner.Loss, r.Elapsed()); ok {
		return reason, true
	}

	if r.predicate != nil && r.predicate(r.learner) {
		return ReasonPredicate, true
	}

	return "", false
}

func (r *Runner[X, Y]) submit(
	ctx context.Context,
	x X,
	results chan<- result[X, Y],
	inFlight map[X]context.CancelFunc,
) error {
	evalCtx, cancel := context.WithCancel(ctx)

	inFlight[x] = cancel
	r.metrics.InFlight.WithLabelValues(r.label).Inc()

	err := r.executor.Submit(evalCtx, func(taskCtx context.Context) {
		results <- r.evaluate(taskCtx, x)
	})
	if err == nil {
		return nil
	}

	cancel()
	delete(inFlight, x)
	r.metrics.InFlight.WithLabelValues(r.label).Dec()

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", adaptive.ErrCancelled, ctx.Err())
	}

	if errors.Is(err, adaptive.ErrExecutorExhausted) {
		return err
	}

	return fmt.Errorf("%w: submitting %v: %w", adaptive.ErrExecutorExhausted, x, err)
}

// evaluate calls the function on x, converting panics into failures.
func (r *Runner[X, Y]) evaluate(ctx context.Context, x X) (res result[X, Y]) {
	res.x = x

	if r.cfg.EvalTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.cfg.EvalTimeout)
		defer cancel()
	}

	ctx, span := r.tracer.Start(ctx, "adaptive.evaluate",
		trace.WithAttributes(
			attribute.String("adaptive.runner_id", r.id),
			attribute.String("adaptive.input", fmt.Sprint(x)),
		),
	)
	defer span.End()

	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			res.err = fmt.Errorf("%w: panic evaluating %v: %v", adaptive.ErrEvaluation, x, p)
		}

		res.dur = time.Since(start)

		if res.err != nil {
			span.RecordError(res.err)
			span.SetStatus(codes.Error, res.err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}()

	if err := ctx.Err(); err != nil {
		res.err = err

		return res
	}

	y, err := r.fn(ctx, x)
	if err != nil {
		res.err = fmt.Errorf("%w: %w", adaptive.ErrEvaluation, err)

		return res
	}

	res.y = y

	return res
}

// handle tells one result to the learner.
func (r *Runner[X, Y]) handle(ctx context.Context, res result[X, Y], inFlight map[X]context.CancelFunc) error {
	if cancel, ok := inFlight[res.x]; ok {
		cancel()
		delete(inFlight, res.x)
		r.metrics.InFlight.WithLabelValues(r.label).Dec()
	}

	// Evaluations cut short by the end of the run stay pending.
	if res.err != nil && ctx.Err() != nil {
		return nil
	}

	r.metrics.EvaluationDuration.WithLabelValues(r.label).Observe(res.dur.Seconds())

	err := res.err
	if err == nil {
		err = r.learner.Tell(res.x, res.y)
	} else if ferr := r.learner.TellFailed(res.x); ferr != nil {
		r.logger.Warn("recording failure", slog.Any("input", res.x), slog.String("error", ferr.Error()))
	}

	defer r.afterTell(ctx, len(inFlight))

	if err == nil {
		r.metrics.Evaluations.WithLabelValues(r.label, "ok").Inc()

		return nil
	}

	return r.fail(res.x, err)
}

// fail tallies a failed evaluation and ends the run once too many failed.
func (r *Runner[X, Y]) fail(x X, err error) error {
	r.metrics.Evaluations.WithLabelValues(r.label, "failed").Inc()

	r.mu.Lock()

	r.failures++
	if r.firstErr == nil {
		r.firstErr = fmt.Errorf("input %v: %w", x, err)
	}

	failures, first := r.failures, r.firstErr

	r.mu.Unlock()

	r.logger.Warn("evaluation failed",
		slog.Any("input", x),
		slog.Int("failures", failures),
		slog.String("error", err.Error()),
	)

	if r.cfg.MaxFailures >= 0 && failures > r.cfg.MaxFailures {
		return fmt.Errorf("%w: %d evaluations failed, first: %w", adaptive.ErrEvaluation, failures, first)
	}

	return nil
}

func (r *Runner[X, Y]) afterTell(ctx context.Context, inFlight int) {
	points, loss := r.learner.NPoints(), r.learner.Loss()

	r.metrics.Points.WithLabelValues(r.label).Set(float64(points))
	r.metrics.Loss.WithLabelValues(r.label).Set(loss)

	r.logger.Debug("told", slog.Int("points", points), slog.Float64("loss", loss), slog.Int("in_flight", inFlight))

	sendProgress(r.cfg.ProgressChan, ProgressUpdate{
		RunnerID: r.id,
		Points:   points,
		InFlight: inFlight,
		Failures: r.Failures(),
		Loss:     loss,
		Elapsed:  r.Elapsed(),
	})

	r.sinceSave++

	if n := r.cfg.Checkpoint.EveryPoints; n > 0 && r.sinceSave >= n {
		r.checkpoint(ctx, "points")
	}
}

func (r *Runner[X, Y]) checkpoint(ctx context.Context, trigger string) {
	if r.saver == nil {
		return
	}

	samples := r.learner.Samples()

	// A failed save is retried on the next trigger, not on the next tell.
	r.sinceSave = 0

	if err := r.saver.Save(ctx, samples); err != nil {
		r.metrics.Checkpoints.WithLabelValues(r.label, "error").Inc()
		r.logger.Warn("checkpoint failed", slog.String("trigger", trigger), slog.String("error", err.Error()))

		return
	}

	r.metrics.Checkpoints.WithLabelValues(r.label, "ok").Inc()
	r.logger.Debug("checkpoint saved", slog.String("trigger", trigger), slog.Int("samples", len(samples)))
}

//////
// Factory.
//////

// New creates a runner for l and fn.
//
// Without WithExecutor, the runner builds a PoolExecutor from cfg.Workers,
// cfg.RateLimit and cfg.Burst and closes it when the run ends.
//
// Returns:
//   - error: ErrGoalMisconfigured if no goal can ever be met,
//     ErrInvalidInput for a nil learner or function or a bad pool config.
func New[X comparable, Y any](l adaptive.Learner[X, Y], fn Func[X, Y], cfg Config, opts ...Option[X, Y]) (*Runner[X, Y], error) {
	if l == nil || fn == nil {
		return nil, fmt.Errorf("%w: learner and function are required", adaptive.ErrInvalidInput)
	}

	r := &Runner[X, Y]{
		id:      uuid.NewString(),
		cfg:     cfg,
		learner: l,
		fn:      fn,
		status:  StatusCreated,
		tracer:  otel.Tracer("github.com/thalesfsp/adaptive/runner"),
	}

	for _, opt := range opts {
		opt(r)
	}

	if err := cfg.Goal.Validate(r.predicate != nil); err != nil {
		return nil, err
	}

	r.label = cfg.Name
	if r.label == "" {
		r.label = r.id
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.logger = logger.With(
		slog.String("component", "runner"),
		slog.String("runner_id", r.id),
		slog.String("runner", r.label),
	)

	r.metrics = cfg.Metrics
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}

	if r.executor == nil {
		pool, err := NewPoolExecutor(PoolConfig{
			Workers:   cfg.Workers,
			RateLimit: cfg.RateLimit,
			Burst:     cfg.Burst,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}

		r.executor = pool
		r.ownsExec = true
	}

	return r, nil
}
