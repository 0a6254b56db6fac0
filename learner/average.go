package learner

import (
	"fmt"
	"math"
	"sync"

	"github.com/thalesfsp/adaptive"
)

//////
// Const, vars, types.
//////

// AverageConfig configures an AverageLearner.
//
// The loss is max(se/Atol, se/(Rtol*|mean|)), where se is the standard
// error of the mean. With the defaults (Atol 1, Rtol 0) it is the standard
// error itself.
type AverageConfig struct {
	// Atol is the absolute tolerance on the mean.
	Atol float64 `json:"atol" yaml:"atol"`

	// Rtol is the relative tolerance on the mean. Zero disables it.
	Rtol float64 `json:"rtol" yaml:"rtol"`
}

// DefaultAverageConfig returns Atol 1 and no relative tolerance.
func DefaultAverageConfig() AverageConfig {
	return AverageConfig{Atol: 1}
}

// AverageLearner estimates the mean of a stochastic function. Inputs are
// integer seeds handed out in increasing order; the function is expected to
// draw one sample per seed.
//
// Thread safety:
//   - All exported methods are safe for concurrent use.
type AverageLearner struct {
	mu sync.RWMutex

	atol float64
	rtol float64

	store *pointStore[int, float64]
	next  int

	// Welford accumulators over the evaluated samples.
	count int
	mean  float64
	m2    float64
}

//////
// Exported functionalities.
//////

// Ask returns the next n unused seeds. Each improvement is the loss drop
// expected from one more sample, given the samples already evaluated or
// pending; it is +Inf until two samples are evaluated.
func (a *AverageLearner) Ask(n int) ([]int, []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n <= 0 {
		return nil, nil
	}

	seeds := make([]int, 0, n)
	improvements := make([]float64, 0, n)

	std := a.stdDev()
	k := a.count + len(a.store.pending)

	for len(seeds) < n {
		for a.store.known(a.next) {
			a.next++
		}

		seeds = append(seeds, a.next)
		a.store.markPending(a.next)
		a.next++

		if a.count < 2 {
			improvements = append(improvements, math.Inf(1))
		} else {
			improvements = append(improvements, a.lossAt(std, k)-a.lossAt(std, k+1))
		}

		k++
	}

	return seeds, improvements
}

// Tell records the sample drawn with seed. A non-finite y is recorded as a
// failure and reported as ErrEvaluation.
func (a *AverageLearner) Tell(seed int, y float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if math.IsNaN(y) || math.IsInf(y, 0) {
		if err := a.tellFailed(seed); err != nil {
			return err
		}

		return fmt.Errorf("%w: non-finite sample %v for seed %d", adaptive.ErrEvaluation, y, seed)
	}

	duplicate, err := a.store.checkTell(seed, y)
	if duplicate {
		return err
	}

	a.store.record(seed, y)

	a.count++
	delta := y - a.mean
	a.mean += delta / float64(a.count)
	a.m2 += delta * (y - a.mean)

	return nil
}

// TellFailed records that drawing the sample for seed failed.
func (a *AverageLearner) TellFailed(seed int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.tellFailed(seed)
}

// Loss returns the normalised standard error, +Inf with fewer than two
// samples.
func (a *AverageLearner) Loss() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.count < 2 {
		return math.Inf(1)
	}

	return a.lossAt(a.stdDev(), a.count)
}

// RemoveUnfinished forgets every pending seed. They may be handed out again.
func (a *AverageLearner) RemoveUnfinished() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, seed := range a.store.clearPending() {
		if seed < a.next {
			a.next = seed
		}
	}
}

// NPoints returns the number of evaluated samples.
func (a *AverageLearner) NPoints() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.count
}

// Samples returns every told sample in tell order.
func (a *AverageLearner) Samples() []adaptive.Sample[int, float64] {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.store.samples()
}

// Mean returns the sample mean, or NaN without samples.
func (a *AverageLearner) Mean() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.count == 0 {
		return math.NaN()
	}

	return a.mean
}

// StdDev returns the sample standard deviation, or NaN with fewer than two
// samples.
func (a *AverageLearner) StdDev() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.count < 2 {
		return math.NaN()
	}

	return a.stdDev()
}

// StandardError returns the standard error of the mean, or +Inf with fewer
// than two samples.
func (a *AverageLearner) StandardError() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.count < 2 {
		return math.Inf(1)
	}

	return a.stdDev() / math.Sqrt(float64(a.count))
}

// Confidence returns the probability, under a normal approximation, that
// the true mean lies within tol of the sample mean.
func (a *AverageLearner) Confidence(tol float64) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.count < 2 {
		return 0
	}

	se := a.stdDev() / math.Sqrt(float64(a.count))
	if se == 0 {
		return 1
	}

	return 2*normalCDF(tol/se) - 1
}

//////
// Helper functions.
//////

func (a *AverageLearner) tellFailed(seed int) error {
	duplicate, err := a.store.checkFailed(seed)
	if duplicate {
		return err
	}

	a.store.recordFailed(seed)

	return nil
}

func (a *AverageLearner) stdDev() float64 {
	if a.count < 2 {
		return 0
	}

	return math.Sqrt(a.m2 / float64(a.count-1))
}

// lossAt is the loss k samples of standard deviation std would have.
func (a *AverageLearner) lossAt(std float64, k int) float64 {
	se := std / math.Sqrt(float64(k))

	loss := se / a.atol
	if a.rtol > 0 && a.mean != 0 {
		loss = math.Max(loss, se/(a.rtol*math.Abs(a.mean)))
	}

	return loss
}

// normalCDF is the cumulative distribution function of the standard normal
// distribution.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

//////
// Factory.
//////

// NewAverageLearner creates an empty learner.
//
// Returns:
//   - error: If Atol is not positive or Rtol is negative.
func NewAverageLearner(cfg AverageConfig) (*AverageLearner, error) {
	if !(cfg.Atol > 0) || math.IsInf(cfg.Atol, 0) {
		return nil, fmt.Errorf("%w: atol must be positive and finite, got %v", adaptive.ErrInvalidInput, cfg.Atol)
	}

	if cfg.Rtol < 0 || math.IsNaN(cfg.Rtol) {
		return nil, fmt.Errorf("%w: rtol must not be negative, got %v", adaptive.ErrInvalidInput, cfg.Rtol)
	}

	return &AverageLearner{
		atol:  cfg.Atol,
		rtol:  cfg.Rtol,
		store: newPointStore[int, float64](),
	}, nil
}

var _ adaptive.Learner[int, float64] = (*AverageLearner)(nil)
