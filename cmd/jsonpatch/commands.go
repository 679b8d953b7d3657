package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// cli carries the state shared by all subcommands.
type cli struct {
	verbose bool
	format  string
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{logger: slog.New(slog.DiscardHandler)}

	rootCmd := &cobra.Command{
		Use:   "jsonpatch",
		Short: "Apply, compute, validate and watch RFC 6902 JSON patches",
		Long: `jsonpatch works on JSON and YAML documents. The format of every input
is taken from its file extension (.yaml and .yml are YAML, anything else is
JSON) unless --format is given. "-" reads from stdin.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseFormat(c.format); err != nil {
				return err
			}
			level := slog.LevelInfo
			if c.verbose {
				level = slog.LevelDebug
			}
			c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&c.format, "format", "", "input format: json or yaml (default: by file extension)")

	rootCmd.AddCommand(
		c.newApplyCmd(),
		c.newDiffCmd(),
		c.newValidateCmd(),
		c.newWatchCmd(),
	)
	return rootCmd
}
