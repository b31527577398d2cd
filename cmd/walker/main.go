package main

import (
	"os"

	"github.com/Mshel/randomwalker/internal/walker"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	opts := walker.DefaultOptions()
	logLevel := "info"

	cmd := &cobra.Command{
		Use:   "walker",
		Short: "Random walker agent: one JSON tick per line in, one move per line out",
		Long: `walker reads newline delimited JSON ticks on stdin and answers each with
one of N, S, E or W on stdout. The first tick's config (width, height) is
announced once on stderr. Moves are uniformly random from a generator seeded
with --seed, so equal seeds give equal games.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			diag := walker.NewDiagnosticLogger(cmd.ErrOrStderr())
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			diag.SetLevel(level)

			agent, err := walker.NewAgent(cmd.OutOrStdout(), diag, opts)
			if err != nil {
				return err
			}
			defer agent.Close()

			return agent.Run(cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", opts.Name, "implementation name shown in the launch banner")
	cmd.Flags().Int64Var(&opts.Seed, "seed", opts.Seed, "seed of the move generator")
	cmd.Flags().StringVar(&opts.StrategyPath, "strategy", "", "lua script defining next_move(turn)")
	cmd.Flags().BoolVar(&opts.Lenient, "lenient", false, "warn about malformed ticks and keep moving instead of exiting")
	cmd.Flags().StringVar(&logLevel, "log-level", logLevel, "diagnostic log level (debug, info, warn, error)")
	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Error("walker stopped", "error", err)
		os.Exit(1)
	}
}
