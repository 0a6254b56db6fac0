package learner

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cast"

	"github.com/thalesfsp/adaptive"
)

// Picker extracts the scalar a learner works on from a richer output.
type Picker[Y any] func(y Y) (float64, error)

// KeyPicker returns a Picker reading key from map outputs. The value may be
// any type cast can convert to float64, including numeric strings.
func KeyPicker(key string) Picker[map[string]any] {
	return func(y map[string]any) (float64, error) {
		v, ok := y[key]
		if !ok {
			return 0, fmt.Errorf("key %q missing from output", key)
		}

		f, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, fmt.Errorf("key %q: %w", key, err)
		}

		return f, nil
	}
}

// DataSaver keeps the full output of every evaluation while the wrapped
// learner only sees the scalar chosen by a Picker. Only Tell is
// intercepted; everything else is forwarded.
//
// An output the picker rejects is told to the wrapped learner as a failure.
type DataSaver[X comparable, Y any] struct {
	inner adaptive.Learner[X, float64]
	pick  Picker[Y]

	mu    sync.RWMutex
	extra map[X]Y
	order []X
	log   tellLog[X, Y]
}

// Ask forwards to the wrapped learner.
func (d *DataSaver[X, Y]) Ask(n int) ([]X, []float64) {
	return d.inner.Ask(n)
}

// Tell stores y and tells the wrapped learner the picked scalar.
func (d *DataSaver[X, Y]) Tell(x X, y Y) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.pick(y)
	if err != nil {
		if ferr := d.inner.TellFailed(x); ferr != nil {
			return ferr
		}

		d.log.failed(x)

		return fmt.Errorf("%w: picking output for %v: %v", adaptive.ErrEvaluation, x, err)
	}

	err = d.inner.Tell(x, v)

	switch {
	case err == nil:
		if _, ok := d.extra[x]; !ok {
			d.order = append(d.order, x)
			d.extra[x] = y
		}

		d.log.told(x, y)
	case errors.Is(err, adaptive.ErrEvaluation):
		d.log.failed(x)
	}

	return err
}

// TellFailed forwards to the wrapped learner.
func (d *DataSaver[X, Y]) TellFailed(x X) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.inner.TellFailed(x); err != nil {
		return err
	}

	d.log.failed(x)

	return nil
}

// Loss forwards to the wrapped learner.
func (d *DataSaver[X, Y]) Loss() float64 {
	return d.inner.Loss()
}

// RemoveUnfinished forwards to the wrapped learner.
func (d *DataSaver[X, Y]) RemoveUnfinished() {
	d.inner.RemoveUnfinished()
}

// NPoints forwards to the wrapped learner.
func (d *DataSaver[X, Y]) NPoints() int {
	return d.inner.NPoints()
}

// Samples returns every told point with its full output, in tell order.
func (d *DataSaver[X, Y]) Samples() []adaptive.Sample[X, Y] {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.log.samples()
}

// Extra returns the full output of every successful evaluation, in the
// order the inputs were first told.
func (d *DataSaver[X, Y]) Extra() []adaptive.Sample[X, Y] {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]adaptive.Sample[X, Y], 0, len(d.order))
	for _, x := range d.order {
		out = append(out, adaptive.Sample[X, Y]{X: x, Y: d.extra[x]})
	}

	return out
}

// Lookup returns the full output stored for x.
func (d *DataSaver[X, Y]) Lookup(x X) (Y, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	y, ok := d.extra[x]

	return y, ok
}

// Inner returns the wrapped learner.
func (d *DataSaver[X, Y]) Inner() adaptive.Learner[X, float64] {
	return d.inner
}

// NewDataSaver wraps inner, which learns from pick(y).
func NewDataSaver[X comparable, Y any](inner adaptive.Learner[X, float64], pick Picker[Y]) *DataSaver[X, Y] {
	return &DataSaver[X, Y]{
		inner: inner,
		pick:  pick,
		extra: make(map[X]Y),
	}
}

var _ adaptive.Learner[float64, map[string]any] = (*DataSaver[float64, map[string]any])(nil)
