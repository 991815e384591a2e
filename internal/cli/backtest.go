package cli

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"upbit-trader/internal/config"
	"upbit-trader/internal/models"
	"upbit-trader/internal/trading"
	"upbit-trader/pkg/utils"
)

func newBacktestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest <market>",
		Short: "Replay stored candles through the decision pipeline",
		Long: `Run a deterministic backtest over candles stored for a market. The
simulation uses an isolated cooldown manager and a fixed weights
snapshot; live learning state is read but never modified.`,
		Example: `  trader backtest KRW-BTC --from 2024-01-01 --to 2024-06-30
  trader backtest KRW-ETH --from 2024-01-01 --preset aggressive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if app.Store == nil {
				return fmt.Errorf("store unavailable, import candles first")
			}
			market, err := utils.NormalizeMarket(args[0])
			if err != nil {
				return err
			}

			from, to, err := parseDateRange(cmd)
			if err != nil {
				return err
			}

			engineCfg := app.Config.Engine
			if preset, _ := cmd.Flags().GetString("preset"); preset != "" {
				engineCfg = config.Preset(config.PresetName(preset))
			}

			candles, err := app.Store.GetCandles(ctx, market, from, to)
			if err != nil {
				return err
			}
			if len(candles) == 0 {
				return fmt.Errorf("no candles stored for %s in range", market)
			}

			backtester, err := trading.NewBacktester(app.Config.Backtest, engineCfg, app.Logger)
			if err != nil {
				return err
			}

			result, err := backtester.Run(ctx, market, candles, momentumProvider(), app.Engine.Weights(market))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			printBacktestResult(output, result, app.Config.Backtest.InitialBalance)
			return nil
		},
	}

	cmd.Flags().String("from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "end date (YYYY-MM-DD), default today")
	cmd.Flags().String("preset", "", "engine preset: conservative, balanced, aggressive")
	return cmd
}

// momentumProvider stands in for the external indicator worker during
// backtests: it derives a trend score and a volume-ratio reading from
// the visible candle history.
func momentumProvider() trading.IndicatorProvider {
	return trading.IndicatorProviderFunc(func(candles []models.Candle, index int) []models.IndicatorReading {
		at := candles[index].Timestamp
		readings := make([]models.IndicatorReading, 0, 2)

		const window = 5
		if index >= window && candles[index-window].Close > 0 {
			change := (candles[index].Close - candles[index-window].Close) / candles[index-window].Close
			score := math.Max(-1, math.Min(1, change*10))
			readings = append(readings, models.IndicatorReading{Name: "trend", Score: score, SampledAt: at})
		}

		if index >= window {
			var avg float64
			for i := index - window; i < index; i++ {
				avg += candles[i].Volume
			}
			avg /= window
			if avg > 0 {
				ratio := candles[index].Volume / avg
				score := math.Max(-1, math.Min(1, (ratio-1)/2))
				readings = append(readings, models.IndicatorReading{Name: "volume_ratio", Score: score, SampledAt: at})
			}
		}
		return readings
	})
}

func parseDateRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")

	to := time.Now()
	from := to.AddDate(0, -6, 0)
	var err error
	if fromStr != "" {
		if from, err = time.Parse("2006-01-02", fromStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if toStr != "" {
		if to, err = time.Parse("2006-01-02", toStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from must be before --to")
	}
	return from, to, nil
}

func printBacktestResult(output *Output, result *trading.BacktestResult, initialBalance float64) {
	color.Cyan("🧪 Backtest - %s (%s → %s)", result.Market,
		result.PeriodStart.Format("2006-01-02"), result.PeriodEnd.Format("2006-01-02"))

	perf := result.Performance
	output.Printf("Trades:        %d\n", perf.TotalTrades)
	output.Printf("Total return:  %s\n", utils.FormatPercent(perf.TotalReturnPercent))
	output.Printf("Win rate:      %.1f%%\n", perf.WinRatePercent)
	output.Printf("Max drawdown:  %.2f%%\n", perf.MaxDrawdownPercent)
	output.Printf("Sharpe ratio:  %.2f (%s)\n", perf.SharpeRatio, result.SharpeNote)
	output.Printf("Final balance: %s (from %s)\n",
		utils.FormatKRW(result.FinalBalance), utils.FormatKRW(initialBalance))

	output.Bold("By market regime:")
	printRegime(output, "bull", result.Bull)
	printRegime(output, "bear", result.Bear)
	printRegime(output, "sideways", result.Sideways)

	for _, w := range result.Warnings {
		output.Warning("⚠ %s", w)
	}
}

func printRegime(output *Output, name string, stats trading.RegimeStats) {
	if stats.Trades == 0 {
		output.Dim("  %-8s no trades", name)
		return
	}
	output.Printf("  %-8s %d trades, %.1f%% wins, avg %s\n",
		name, stats.Trades, stats.WinRatePercent, utils.FormatPercent(stats.AvgReturnPercent))
}
