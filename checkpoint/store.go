package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thalesfsp/adaptive"
)

// Store saves and loads the samples of one learner.
type Store[X comparable, Y any] interface {
	// Save replaces the stored samples with samples.
	Save(ctx context.Context, samples []adaptive.Sample[X, Y]) error

	// Load returns the stored samples in order, or none if nothing was
	// saved yet.
	Load(ctx context.Context) ([]adaptive.Sample[X, Y], error)

	// Close releases the store.
	Close() error
}

// Loader is the read side of a Store.
type Loader[X comparable, Y any] interface {
	Load(ctx context.Context) ([]adaptive.Sample[X, Y], error)
}

// Meta describes a saved checkpoint.
type Meta struct {
	// Count is the number of saved samples.
	Count int `json:"count" yaml:"count"`

	// Failed is the number of saved failures.
	Failed int `json:"failed" yaml:"failed"`

	// Updated is the time of the last save.
	Updated time.Time `json:"updated" yaml:"updated"`
}

// Replay tells samples to l in order. Outputs the learner rejects as
// unusable were recorded as failures when they were first told and are
// accepted again.
//
// Returns:
//   - error: The first other rejection, wrapped with the sample's position.
func Replay[X comparable, Y any](l adaptive.Learner[X, Y], samples []adaptive.Sample[X, Y]) error {
	for i, s := range samples {
		var err error

		if s.Failed {
			err = l.TellFailed(s.X)
		} else {
			err = l.Tell(s.X, s.Y)
		}

		if err != nil && !errors.Is(err, adaptive.ErrEvaluation) {
			return fmt.Errorf("replaying sample %d (%v): %w", i, s.X, err)
		}
	}

	return nil
}

// Restore loads the samples from src and replays them on l.
//
// Returns:
//   - int: The number of replayed samples
//   - error: Any load or replay error.
func Restore[X comparable, Y any](ctx context.Context, l adaptive.Learner[X, Y], src Loader[X, Y]) (int, error) {
	samples, err := src.Load(ctx)
	if err != nil {
		return 0, err
	}

	if err := Replay(l, samples); err != nil {
		return 0, err
	}

	return len(samples), nil
}

func metaOf[X comparable, Y any](samples []adaptive.Sample[X, Y]) Meta {
	m := Meta{Count: len(samples), Updated: time.Now().UTC()}

	for _, s := range samples {
		if s.Failed {
			m.Failed++
		}
	}

	return m
}
