// Command adaptive samples the built-in test functions with any of the
// learners, concurrently, and keeps the samples in a BadgerDB checkpoint so
// a run can be resumed.
//
// Usage:
//
//	adaptive run --learner 1d --func tanh --min -1 --max 1 --loss 0.01
//	adaptive run --learner 2d --func ring --points 500 --checkpoint ./ckpt
//	adaptive run --learner average --mean 3 --sd 0.5 --atol 0.01
//	adaptive run --learner integrator --func sin --tol 1e-10
//	adaptive inspect ./ckpt
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// logOptions are the flags shared by every command.
type logOptions struct {
	level  string
	format string
}

func (o *logOptions) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(o.level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", o.level, err)
	}

	hopts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(o.format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q, want text or json", o.format)
	}
}

func newRootCmd() *cobra.Command {
	logs := &logOptions{}

	root := &cobra.Command{
		Use:           "adaptive",
		Short:         "Adaptively sample functions with a concurrent runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&logs.level, "log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logs.format, "log-format", "text", "Log format: text or json")

	root.AddCommand(newRunCmd(logs), newInspectCmd(logs))

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
