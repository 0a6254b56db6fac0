package runner

import (
	"fmt"
	"math"
	"time"

	"github.com/thalesfsp/adaptive"
)

// Reason tells which goal ended a run.
type Reason string

const (
	// ReasonPoints means the learner reached the point budget.
	ReasonPoints Reason = "points"

	// ReasonLoss means the learner's loss dropped to the tolerance.
	ReasonLoss Reason = "loss"

	// ReasonDuration means the run used up its time budget.
	ReasonDuration Reason = "duration"

	// ReasonPredicate means the custom predicate was satisfied.
	ReasonPredicate Reason = "predicate"

	// ReasonExhausted means the learner had nothing left to ask and nothing
	// was in flight.
	ReasonExhausted Reason = "exhausted"
)

// GoalConfig holds the stopping goals of a run. Unset goals are ignored; at
// least one goal, or a predicate, is required.
type GoalConfig struct {
	// Points stops the run once the learner has this many evaluated inputs.
	Points int `json:"points,omitempty" yaml:"points,omitempty"`

	// Loss stops the run once the learner's loss is at or below it.
	Loss *float64 `json:"loss,omitempty" yaml:"loss,omitempty"`

	// Duration stops the run once it has been running this long.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// WithLoss returns a copy of g with the loss goal set to tol.
func (g GoalConfig) WithLoss(tol float64) GoalConfig {
	g.Loss = &tol

	return g
}

// IsZero reports whether no goal is set.
func (g GoalConfig) IsZero() bool {
	return g.Points == 0 && g.Loss == nil && g.Duration == 0
}

// Validate checks the goals. A run with no goal and no predicate could
// only end by cancellation or by exhausting the learner.
func (g GoalConfig) Validate(hasPredicate bool) error {
	if g.Points < 0 {
		return fmt.Errorf("%w: points goal %d is negative", adaptive.ErrGoalMisconfigured, g.Points)
	}

	if g.Loss != nil && (*g.Loss < 0 || math.IsNaN(*g.Loss)) {
		return fmt.Errorf("%w: loss goal %v is not a tolerance", adaptive.ErrGoalMisconfigured, *g.Loss)
	}

	if g.Duration < 0 {
		return fmt.Errorf("%w: duration goal %v is negative", adaptive.ErrGoalMisconfigured, g.Duration)
	}

	if g.IsZero() && !hasPredicate {
		return fmt.Errorf("%w: no goal set", adaptive.ErrGoalMisconfigured)
	}

	return nil
}

// reached returns the first satisfied goal, in the order points, loss,
// duration.
func (g GoalConfig) reached(points int, loss func() float64, elapsed time.Duration) (Reason, bool) {
	if g.Points > 0 && points >= g.Points {
		return ReasonPoints, true
	}

	if g.Loss != nil && loss() <= *g.Loss {
		return ReasonLoss, true
	}

	if g.Duration > 0 && elapsed >= g.Duration {
		return ReasonDuration, true
	}

	return "", false
}
