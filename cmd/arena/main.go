package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mshel/randomwalker/internal/arena"
	"github.com/Mshel/randomwalker/internal/ui"
	"github.com/Mshel/randomwalker/internal/walker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	var (
		configPath string
		headless   bool
		dbPath     string
		flagCfg    = arena.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "arena [flags] [-- agent command...]",
		Short: "Run an agent on an open grid and record the matches",
		Long: `arena plays a single match: it sends the agent one JSON tick per line,
reads one command per line (N, S, E, W or WAIT) and moves the agent on an
open width x height grid. Without an agent command the built-in random
walker runs in-process. Finished matches are stored in a SQLite database.
With --rounds n the match is replayed n times on derived seeds and the
coverage statistics of the series are printed.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := arena.LoadConfig(configPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("width") {
				cfg.Width = flagCfg.Width
			}
			if flags.Changed("height") {
				cfg.Height = flagCfg.Height
			}
			if flags.Changed("max-ticks") {
				cfg.MaxTicks = flagCfg.MaxTicks
			}
			if flags.Changed("seed") {
				cfg.Seed = flagCfg.Seed
			}
			if flags.Changed("rounds") {
				cfg.Rounds = flagCfg.Rounds
			}
			if flags.Changed("interval") {
				cfg.TickInterval = flagCfg.TickInterval
			}
			if flags.Changed("db") {
				cfg.DBPath = dbPath
			}
			if len(args) > 0 {
				cfg.Agent = args
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runSeries(cmd.OutOrStdout(), cfg, headless)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.IntVar(&flagCfg.Width, "width", flagCfg.Width, "map width")
	flags.IntVar(&flagCfg.Height, "height", flagCfg.Height, "map height")
	flags.IntVar(&flagCfg.MaxTicks, "max-ticks", flagCfg.MaxTicks, "ticks to play")
	flags.Int64Var(&flagCfg.Seed, "seed", flagCfg.Seed, "arena seed, the agent gets a seed derived from it")
	flags.IntVar(&flagCfg.Rounds, "rounds", flagCfg.Rounds, "rounds to play, each on a seed derived from --seed")
	flags.DurationVar(&flagCfg.TickInterval, "interval", flagCfg.TickInterval, "delay between ticks in the live view")
	flags.StringVar(&dbPath, "db", arena.DefaultDBPath, "SQLite database for match history")
	flags.BoolVar(&headless, "headless", false, "play as fast as possible without the live view")

	cmd.AddCommand(historyCmd())
	return cmd
}

func runSeries(out io.Writer, cfg arena.Config, headless bool) error {
	// the live view owns the terminal, so logs are held back until it exits
	var heldLogs bytes.Buffer
	var logOutput io.Writer = os.Stderr
	if !headless {
		logOutput = &heldLogs
	}
	logger := log.NewWithOptions(logOutput, log.Options{ReportTimestamp: true, Prefix: "arena"})
	defer func() {
		if heldLogs.Len() > 0 {
			_, _ = heldLogs.WriteTo(os.Stderr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seeds := []int64{cfg.Seed}
	if cfg.Rounds > 1 {
		seeds = arena.RoundSeeds(cfg.Seed, cfg.Rounds)
	}

	var results []arena.Result
	for i, seed := range seeds {
		round := cfg
		round.Seed = seed
		roundLogger := logger
		if len(seeds) > 1 {
			roundLogger = logger.With("round", i+1)
		}

		result, quit, err := runMatch(ctx, round, headless, roundLogger)
		if result.Ticks > 0 {
			results = append(results, result)
		}
		if err != nil {
			return err
		}
		if quit || ctx.Err() != nil {
			break
		}
	}

	if len(seeds) > 1 {
		summary := arena.Summarize(results)
		logger.Info("Series finished", "rounds", summary.Rounds, "mean coverage", fmt.Sprintf("%.1f%%", summary.MeanCoverage))
		fmt.Fprintln(out, ui.RenderSummary(summary))
	}
	return nil
}

// runMatch plays one match, stores it and reports whether the user quit.
func runMatch(ctx context.Context, cfg arena.Config, headless bool, logger *log.Logger) (arena.Result, bool, error) {
	conn, err := openConn(ctx, cfg, logger)
	if err != nil {
		return arena.Result{}, false, err
	}

	match := arena.NewMatch(cfg, conn, logger)
	logger.Info("Match starting", "id", match.ID, "agent", cfg.AgentLabel(), "map", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height), "ticks", cfg.MaxTicks, "seed", cfg.Seed)

	var runErr error
	var quit bool
	if headless {
		_, runErr = match.Run(ctx)
	} else {
		final, err := tea.NewProgram(ui.NewMatchModel(ctx, match, cfg.TickInterval)).Run()
		if err != nil {
			_ = conn.Close()
			return arena.Result{}, false, fmt.Errorf("live view: %w", err)
		}
		model := final.(ui.MatchModel)
		runErr = model.Err()
		quit = model.Interrupted()
		if quit {
			match.Abort()
		}
	}

	// a stuck child is killed here once its grace period runs out
	if closeErr := conn.Close(); closeErr != nil && runErr == nil && !quit {
		logger.Warn("Agent did not shut down cleanly", "error", closeErr)
	}

	result := match.Result()
	if result.Ticks > 0 {
		if err := saveResult(cfg.DBPath, result); err != nil {
			logger.Error("Could not store match", "error", err)
		}
	}

	logger.Info("Match finished",
		"id", result.ID,
		"ticks", result.Ticks,
		"final", fmt.Sprintf("%d,%d", result.Final.X, result.Final.Y),
		"explored", fmt.Sprintf("%.1f%%", result.Coverage()),
		"invalid", result.Invalid,
	)
	return result, quit, runErr
}

func openConn(ctx context.Context, cfg arena.Config, logger *log.Logger) (arena.Conn, error) {
	if len(cfg.Agent) > 0 {
		return arena.StartProcess(ctx, cfg.Agent, logger)
	}
	return arena.StartLocal(walker.DefaultOptions(), logger.WithPrefix("walker"))
}

func saveResult(dbPath string, result arena.Result) error {
	store, err := arena.NewMatchStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(result)
}

func historyCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded matches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := arena.NewMatchStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := store.Recent(limit)
			if err != nil {
				return err
			}
			total, err := store.Count()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderHistory(results))
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d matches\n", len(results), total)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", arena.DefaultDBPath, "SQLite database for match history")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of matches to show")
	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Error("arena stopped", "error", err)
		os.Exit(1)
	}
}
