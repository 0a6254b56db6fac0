package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/thalesfsp/adaptive"
	"github.com/thalesfsp/adaptive/checkpoint"
	"github.com/thalesfsp/adaptive/internal/testfunc"
	"github.com/thalesfsp/adaptive/learner"
	"github.com/thalesfsp/adaptive/runner"
)

//////
// Const, vars, types.
//////

// defaultPoints is the point budget of a run given no goal at all.
const defaultPoints = 200

// runOptions holds the flags of the run command.
type runOptions struct {
	learner    string
	function   string
	min, max   float64
	configPath string

	workers     int
	points      int
	loss        float64
	duration    time.Duration
	maxFailures int

	mean, sd float64
	atol     float64
	tol      float64

	checkpointDir string
	key           string
	every         int

	metricsAddr string
	progress    bool
}

// session is what one run needs beyond its learner and function.
type session struct {
	opts   *runOptions
	cfg    runner.Config
	logger *slog.Logger
	out    io.Writer
}

//////
// Command.
//////

func newRunCmd(logs *logOptions) *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample a built-in function until a goal is reached",
		Long: `Runs a learner against one of the built-in functions.

Learners:
  1d          interval refinement, functions: ` + fmt.Sprint(testfunc.Names1D()) + `
  2d          triangle refinement over [min,max]², functions: ` + fmt.Sprint(testfunc.Names2D()) + `
  average     mean of normal samples (--mean, --sd) to tolerance --atol
  integrator  Gauss-Kronrod integral of a 1d function to tolerance --tol

Goals (--points, --loss, --duration) may be combined; the first one reached
ends the run. Flags override values from --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logs.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			cfg, err := o.config(cmd)
			if err != nil {
				return err
			}

			cfg.Logger = logger

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runSession(ctx, &session{opts: o, cfg: cfg, logger: logger, out: cmd.OutOrStdout()})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.learner, "learner", "l", "1d", "Learner: 1d, 2d, average, integrator")
	f.StringVarP(&o.function, "func", "f", "tanh", "Function to sample")
	f.Float64Var(&o.min, "min", -1, "Lower bound of the domain")
	f.Float64Var(&o.max, "max", 1, "Upper bound of the domain")
	f.StringVarP(&o.configPath, "config", "c", "", "YAML runner configuration")
	f.IntVarP(&o.workers, "workers", "w", 0, "Concurrent evaluations (default one per CPU)")
	f.IntVarP(&o.points, "points", "n", 0, "Stop after this many points")
	f.Float64Var(&o.loss, "loss", 0, "Stop once the loss is at or below this")
	f.DurationVarP(&o.duration, "duration", "d", 0, "Stop after this long")
	f.IntVar(&o.maxFailures, "max-failures", 10, "Failed evaluations tolerated, negative for unlimited")
	f.Float64Var(&o.mean, "mean", 0, "Mean of the average learner's samples")
	f.Float64Var(&o.sd, "sd", 1, "Standard deviation of the average learner's samples")
	f.Float64Var(&o.atol, "atol", 0.01, "Absolute tolerance of the average learner")
	f.Float64Var(&o.tol, "tol", 1e-8, "Tolerance of the integrator")
	f.StringVar(&o.checkpointDir, "checkpoint", "", "BadgerDB directory to save and resume samples")
	f.StringVar(&o.key, "key", "", "Checkpoint key (default <learner>/<func>)")
	f.IntVar(&o.every, "checkpoint-every", 50, "Save the checkpoint every this many points")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.BoolVar(&o.progress, "progress", false, "Log progress after every point")

	return cmd
}

// config merges the YAML configuration, if any, with the flags that were
// set explicitly.
func (o *runOptions) config(cmd *cobra.Command) (runner.Config, error) {
	cfg := runner.DefaultConfig()

	if o.configPath != "" {
		loaded, err := runner.LoadConfig(o.configPath)
		if err != nil {
			return runner.Config{}, err
		}

		cfg = loaded
	}

	f := cmd.Flags()

	if f.Changed("workers") {
		if o.workers <= 0 {
			return runner.Config{}, fmt.Errorf("%w: --workers must be positive", adaptive.ErrInvalidInput)
		}

		cfg.Workers = o.workers
	}

	if f.Changed("points") {
		cfg.Goal.Points = o.points
	}

	if f.Changed("loss") {
		cfg.Goal = cfg.Goal.WithLoss(o.loss)
	}

	if f.Changed("duration") {
		cfg.Goal.Duration = o.duration
	}

	if f.Changed("max-failures") {
		cfg.MaxFailures = o.maxFailures
	}

	if o.checkpointDir != "" && cfg.Checkpoint.EveryPoints == 0 && cfg.Checkpoint.Interval == 0 {
		cfg.Checkpoint.EveryPoints = o.every
	}

	if cfg.Name == "" {
		cfg.Name = o.learner + "-" + o.function
	}

	return cfg, nil
}

func (o *runOptions) checkpointKey() string {
	if o.key != "" {
		return o.key
	}

	if o.learner == "average" {
		return "average"
	}

	return o.learner + "/" + o.function
}

//////
// Helper functions.
//////

// runSession builds the learner named by the flags and runs it.
func runSession(ctx context.Context, s *session) error {
	reg := prometheus.NewRegistry()
	s.cfg.Metrics = runner.NewMetrics(reg)

	if s.opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              s.opts.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Warn("metrics server stopped", slog.String("error", err.Error()))
			}
		}()

		defer srv.Close()
	}

	if s.opts.progress {
		ch := make(chan runner.ProgressUpdate, 16)
		s.cfg.ProgressChan = ch

		go logProgress(s.logger, ch)

		defer close(ch)
	}

	bounds := adaptive.Bounds[float64]{Min: s.opts.min, Max: s.opts.max}

	switch s.opts.learner {
	case "1d":
		f, err := testfunc.Lookup1D(s.opts.function)
		if err != nil {
			return err
		}

		l, err := learner.NewLearner1D(learner.DefaultLearner1DConfig(bounds))
		if err != nil {
			return err
		}

		return execute[float64](ctx, s, l, scalar[float64](f), nil, func() {
			fmt.Fprintf(s.out, "intervals: %d\n", len(l.Intervals()))
		})

	case "2d":
		f, err := testfunc.Lookup2D(s.opts.function)
		if err != nil {
			return err
		}

		l, err := learner.NewLearner2D(learner.DefaultLearner2DConfig(bounds, bounds))
		if err != nil {
			return err
		}

		return execute[adaptive.Point2](ctx, s, l, scalar[adaptive.Point2](f), nil, func() {
			fmt.Fprintf(s.out, "triangles: %d\n", len(l.Triangles()))
		})

	case "average":
		cfg := learner.DefaultAverageConfig()
		cfg.Atol = s.opts.atol

		l, err := learner.NewAverageLearner(cfg)
		if err != nil {
			return err
		}

		if s.cfg.Goal.IsZero() {
			s.cfg.Goal = s.cfg.Goal.WithLoss(1)
		}

		return execute[int](ctx, s, l, scalar[int](testfunc.Normal(s.opts.mean, s.opts.sd)), nil, func() {
			fmt.Fprintf(s.out, "mean: %g ± %g (sd %g)\n", l.Mean(), l.StandardError(), l.StdDev())
		})

	case "integrator":
		f, err := testfunc.Lookup1D(s.opts.function)
		if err != nil {
			return err
		}

		cfg := learner.DefaultIntegratorConfig(bounds)
		cfg.Tol = s.opts.tol

		l, err := learner.NewIntegratorLearner(cfg)
		if err != nil {
			return err
		}

		done := runner.WithPredicate[float64, float64](func(adaptive.Learner[float64, float64]) bool { return l.Done() })

		return execute[float64](ctx, s, l, scalar[float64](f), []runner.Option[float64, float64]{done}, func() {
			fmt.Fprintf(s.out, "integral: %.15g (done: %t)\n", l.Integral(), l.Done())
		})

	default:
		return fmt.Errorf("%w: unknown learner %q", adaptive.ErrInvalidInput, s.opts.learner)
	}
}

// execute resumes l from the checkpoint, if one is configured, runs it and
// prints a summary.
func execute[X comparable](
	ctx context.Context,
	s *session,
	l adaptive.Learner[X, float64],
	fn runner.Func[X, float64],
	opts []runner.Option[X, float64],
	report func(),
) error {
	if s.cfg.Goal.IsZero() && len(opts) == 0 {
		s.cfg.Goal.Points = defaultPoints
		s.logger.Info("no goal set, using the point budget", slog.Int("points", defaultPoints))
	}

	if s.opts.checkpointDir != "" {
		store, err := checkpoint.OpenBadger[X, float64](checkpoint.BadgerConfig{
			Path:       s.opts.checkpointDir,
			SyncWrites: true,
			Key:        s.opts.checkpointKey(),
			Logger:     s.logger,
		})
		if err != nil {
			return err
		}

		defer store.Close()

		n, err := checkpoint.Restore[X, float64](ctx, l, store)
		if err != nil {
			return fmt.Errorf("resuming from %s: %w", s.opts.checkpointDir, err)
		}

		if n > 0 {
			s.logger.Info("resumed from checkpoint",
				slog.String("key", s.opts.checkpointKey()),
				slog.Int("samples", n),
			)
		}

		opts = append(opts, runner.WithCheckpoint[X, float64](store))
	}

	r, err := runner.New[X, float64](l, fn, s.cfg, opts...)
	if err != nil {
		return err
	}

	err = r.Run(ctx)

	info := r.Info()
	fmt.Fprintf(s.out, "status: %s\nreason: %s\npoints: %d\nloss: %g\nfailures: %d\nelapsed: %s\n",
		info.Status, info.Reason, info.Points, info.Loss, info.Failures, info.Elapsed.Round(time.Millisecond))

	if err != nil && !errors.Is(err, adaptive.ErrCancelled) {
		return err
	}

	report()

	return nil
}

// scalar adapts a pure function to the runner, reporting non-finite
// outputs as evaluation errors.
func scalar[X comparable](f func(X) float64) runner.Func[X, float64] {
	return func(_ context.Context, x X) (float64, error) {
		y := f(x)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return 0, fmt.Errorf("%w: f(%v) = %v", adaptive.ErrEvaluation, x, y)
		}

		return y, nil
	}
}

func logProgress(logger *slog.Logger, ch <-chan runner.ProgressUpdate) {
	for u := range ch {
		logger.Info("progress",
			slog.Int("points", u.Points),
			slog.Int("in_flight", u.InFlight),
			slog.Int("failures", u.Failures),
			slog.Float64("loss", u.Loss),
			slog.Duration("elapsed", u.Elapsed),
		)
	}
}
