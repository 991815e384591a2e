package cli

import (
	"fmt"
	"math"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"upbit-trader/internal/performance"
	"upbit-trader/pkg/utils"
)

func newStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise recorded trade outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("no data store configured")
			}

			outcomes, err := app.Store.GetAllOutcomes(cmd.Context())
			if err != nil {
				return err
			}
			summary := performance.Summarize(outcomes, app.Config.Engine.Learning.WinThreshold)

			if output.IsJSON() {
				return output.JSON(summary)
			}

			color.Cyan("📊 Trade Performance")
			if summary.TotalTrades == 0 {
				output.Dim("No recorded trades yet. Use `trader record` after closing a position.")
				return nil
			}

			output.Printf("Trades:        %d (%d wins, %d losses)\n",
				summary.TotalTrades, summary.Wins, summary.Losses)
			output.Printf("Win rate:      %.1f%%\n", summary.WinRate*100)
			output.Printf("Avg return:    %s\n", utils.FormatPnL(summary.AvgReturnPct))
			output.Printf("Total return:  %s\n", utils.FormatPnL(summary.TotalReturnPct))
			output.Printf("Best / worst:  %s / %s\n",
				utils.FormatPnL(summary.BestTradePct), utils.FormatPnL(summary.WorstTradePct))
			if math.IsInf(summary.ProfitFactor, 1) {
				output.Printf("Profit factor: ∞ (no losses)\n")
			} else {
				output.Printf("Profit factor: %.2f\n", summary.ProfitFactor)
			}
			if summary.AvgHold > 0 {
				output.Printf("Avg hold:      %s\n", summary.AvgHold)
			}

			if len(summary.ByMarket) > 1 {
				output.Println()
				output.Bold("%-12s %8s %8s %10s", "MARKET", "TRADES", "WIN%", "AVG RET")
				for _, m := range summary.ByMarket {
					output.Printf("%-12s %8d %7.1f%% %10s\n",
						m.Market, m.Trades, m.WinRate*100, utils.FormatPnL(m.AvgReturnPct))
				}
			}
			return nil
		},
	}
}
