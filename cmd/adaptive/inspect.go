package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thalesfsp/adaptive/checkpoint"
)

func newInspectCmd(logs *logOptions) *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "inspect DIR",
		Short: "List the checkpoints saved in a BadgerDB directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logs.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			db, err := checkpoint.OpenBadgerDB(checkpoint.BadgerConfig{Path: args[0], Logger: logger})
			if err != nil {
				return err
			}

			defer db.Close()

			entries, err := checkpoint.List(cmd.Context(), db)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if asYAML {
				return yaml.NewEncoder(out).Encode(entries)
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "no checkpoints")

				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSAMPLES\tFAILED\tUPDATED")

			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", e.Key, e.Meta.Count, e.Meta.Failed, e.Meta.Updated.Format(time.RFC3339))
			}

			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the checkpoints as YAML")

	return cmd
}
