package cli

import (
	"context"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"upbit-trader/pkg/utils"
)

func newWeightsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Inspect learned indicator weights",
	}
	cmd.AddCommand(newWeightsShowCmd(app))
	cmd.AddCommand(newWeightsReportCmd(app))
	return cmd
}

func newWeightsShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <market>",
		Short: "Learning state for a market's scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			market, err := utils.NormalizeMarket(args[0])
			if err != nil {
				return err
			}

			info := app.Engine.WeightLearningInfo(market)
			if output.IsJSON() {
				return output.JSON(info)
			}

			color.Cyan("⚖  Weight Learning - scope %s (%s mode, gate %d trades)",
				info.Scope, info.Mode, info.MinTradesRequired)
			if len(info.Indicators) == 0 {
				output.Dim("No outcomes recorded yet, base weights apply.")
				return nil
			}

			names := make([]string, 0, len(info.Indicators))
			for name := range info.Indicators {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				ind := info.Indicators[name]
				output.Printf("%-16s base %.2f  learned %.2f  %d trades, %.0f%% wins, avg %s",
					name, ind.BaseWeight, ind.LearnedWeight,
					ind.Stats.Trades, ind.SuccessRate*100, utils.FormatPercent(ind.Stats.AvgProfit))
				if ind.InsufficientData {
					output.Warning("  insufficient data: base weight in effect")
				} else {
					output.Println()
				}
			}

			if save, _ := cmd.Flags().GetBool("save"); save && app.Store != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := app.Store.SaveWeightSnapshot(ctx, market, app.Engine.Weights(market)); err != nil {
					output.Warning("Could not save snapshot: %v", err)
				} else {
					output.Success("Snapshot saved")
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("save", false, "persist the applied weights as a snapshot")
	return cmd
}

func newWeightsReportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Indicator performance pooled across all markets",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			rows := app.Engine.IndicatorReport()
			if output.IsJSON() {
				return output.JSON(rows)
			}

			color.Cyan("📊 Indicator Performance")
			if len(rows) == 0 {
				output.Dim("No outcomes recorded yet.")
				return nil
			}
			output.Bold("%-16s %7s %6s %8s %9s %7s", "indicator", "trades", "wins", "rate", "avg", "weight")
			for _, r := range rows {
				output.Printf("%-16s %7d %6d %7.0f%% %9s %7.2f\n",
					r.Indicator, r.Trades, r.Wins, r.SuccessRate*100,
					utils.FormatPercent(r.AvgProfit), r.Weight)
			}
			return nil
		},
	}
}
