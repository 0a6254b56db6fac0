package runner

import (
	"context"

	"github.com/thalesfsp/adaptive"
)

// Task is the handle of a run started with Runner.Start.
type Task[X comparable, Y any] struct {
	runner *Runner[X, Y]
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed when the run ends.
func (t *Task[X, Y]) Done() <-chan struct{} {
	return t.done
}

// Cancel asks the run to stop. It returns at once; use Wait or Done to
// observe the end of the run.
func (t *Task[X, Y]) Cancel() {
	t.cancel()
}

// Wait blocks until the run ends and returns its error.
func (t *Task[X, Y]) Wait() error {
	<-t.done

	return t.err
}

// Err returns the run's error, nil while it is still running.
func (t *Task[X, Y]) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Status returns the run's lifecycle state.
func (t *Task[X, Y]) Status() Status {
	return t.runner.Status()
}

// Info returns a snapshot of the run.
func (t *Task[X, Y]) Info() Info {
	return t.runner.Info()
}

// Learner returns the driven learner.
func (t *Task[X, Y]) Learner() adaptive.Learner[X, Y] {
	return t.runner.Learner()
}
