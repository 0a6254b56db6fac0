package runner

import "time"

// ProgressUpdate is sent on Config.ProgressChan after every tell.
type ProgressUpdate struct {
	// RunnerID identifies the run.
	RunnerID string

	// Points is the learner's number of evaluated inputs.
	Points int

	// InFlight is the number of evaluations still running.
	InFlight int

	// Failures is the number of failed evaluations so far.
	Failures int

	// Loss is the learner's loss.
	Loss float64

	// Elapsed is the time since the run started.
	Elapsed time.Duration
}

// sendProgress never blocks; an update is dropped when ch is full.
func sendProgress(ch chan<- ProgressUpdate, u ProgressUpdate) {
	if ch == nil {
		return
	}

	select {
	case ch <- u:
	default:
	}
}
