package cli

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"upbit-trader/internal/config"
	"upbit-trader/internal/store"
	"upbit-trader/internal/trading"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Engine *trading.Engine
	Store  store.DataStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	engine, err := trading.NewEngine(cfg.Engine, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid engine configuration")
	}
	app.Engine = engine

	dataStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("store unavailable, history-backed commands disabled")
	} else {
		app.Store = dataStore
		app.replayLearning(context.Background())
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Upbit Trader - adaptive crypto decision engine CLI",
		Long: `Upbit Trader combines weighted technical indicators into explainable
buy/sell/hold decisions, learns indicator trust from realized trades,
sizes positions with a capped Kelly Criterion, and enforces adaptive
per-market trade cooldowns.

It also replays historical candles for backtesting and computes
portfolio risk (VaR, CVaR, stress tests) on demand.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		Version: Version,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newRiskCmd(app))
	rootCmd.AddCommand(newWeightsCmd(app))
	rootCmd.AddCommand(newCooldownCmd(app))
	rootCmd.AddCommand(newRecordCmd(app))
	rootCmd.AddCommand(newDataCmd(app))
	rootCmd.AddCommand(newStatsCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))

	return rootCmd
}

// replayLearning drives stored trade outcomes through the engine so
// learned weights and cooldown adaptation survive restarts. The engine
// itself never touches the store.
func (app *App) replayLearning(ctx context.Context) {
	outcomes, err := app.Store.GetAllOutcomes(ctx)
	if err != nil {
		app.Logger.Warn().Err(err).Msg("could not replay stored outcomes")
		return
	}
	for _, outcome := range outcomes {
		app.Engine.RecordTradeOutcome(outcome)
	}
	if len(outcomes) > 0 {
		app.Logger.Info().Int("outcomes", len(outcomes)).Msg("learning state replayed from store")
	}
}
