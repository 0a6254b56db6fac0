package runner

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thalesfsp/adaptive"
)

//////
// Const, vars, types.
//////

// CheckpointConfig sets how often a run saves the learner's samples. Both
// triggers may be combined; a final checkpoint is always written when a
// saver is configured.
type CheckpointConfig struct {
	// Interval saves every period of wall-clock time. Zero disables it.
	Interval time.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`

	// EveryPoints saves after this many told points. Zero disables it.
	EveryPoints int `json:"every_points,omitempty" yaml:"every_points,omitempty"`
}

// Config controls a run.
type Config struct {
	// Name labels the run in logs and metrics. Defaults to the run ID.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Workers is the number of concurrent evaluations of the default
	// executor.
	Workers int `json:"workers" yaml:"workers"`

	// RateLimit caps evaluations started per second by the default
	// executor. Zero means unlimited.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	// Burst is the rate limiter's bucket size.
	Burst int `json:"burst,omitempty" yaml:"burst,omitempty"`

	// MaxFailures is the number of failed evaluations tolerated. The run
	// fails on the next one. Negative means unlimited.
	MaxFailures int `json:"max_failures" yaml:"max_failures"`

	// EvalTimeout bounds each evaluation. Zero means no timeout.
	EvalTimeout time.Duration `json:"eval_timeout,omitempty" yaml:"eval_timeout,omitempty"`

	// Goal holds the stopping goals.
	Goal GoalConfig `json:"goal" yaml:"goal"`

	// Checkpoint holds the checkpoint triggers.
	Checkpoint CheckpointConfig `json:"checkpoint" yaml:"checkpoint"`

	// Logger defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`

	// Metrics defaults to an unregistered set.
	Metrics *Metrics `json:"-" yaml:"-"`

	// ProgressChan receives an update after every tell. Updates are dropped
	// when the channel is full.
	ProgressChan chan<- ProgressUpdate `json:"-" yaml:"-"`
}

//////
// Exported functionalities.
//////

// DefaultConfig returns one worker per CPU, ten tolerated failures and no
// goal.
func DefaultConfig() Config {
	return Config{
		Workers:     runtime.GOMAXPROCS(0),
		Burst:       1,
		MaxFailures: 10,
	}
}

// ParseConfig decodes a YAML document over DefaultConfig. Durations are Go
// duration strings such as "90s".
//
// Example:
//
//	name: sweep
//	workers: 8
//	max_failures: 3
//	goal:
//	  loss: 0.01
//	  duration: 10m
//	checkpoint:
//	  interval: 30s
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decoding runner config: %w", adaptive.ErrInvalidInput, err)
	}

	if cfg.Workers <= 0 {
		return Config{}, fmt.Errorf("%w: workers must be positive, got %d", adaptive.ErrInvalidInput, cfg.Workers)
	}

	return cfg, nil
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading runner config: %w", err)
	}

	return ParseConfig(data)
}
