package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"upbit-trader/internal/cooldown"
	"upbit-trader/internal/models"
	"upbit-trader/pkg/utils"
)

func newCooldownCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cooldown",
		Short: "Inspect and reset per-market trade cooldowns",
	}
	cmd.AddCommand(newCooldownStatusCmd(app))
	cmd.AddCommand(newCooldownResetCmd(app))
	return cmd
}

func newCooldownStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <market>",
		Short: "Cooldown state for a market",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			market, err := utils.NormalizeMarket(args[0])
			if err != nil {
				return err
			}

			buy := app.Engine.CheckCooldown(market, models.SideBuy, 0)
			sell := app.Engine.CheckCooldown(market, models.SideSell, 0)
			state, known := app.Engine.CooldownSnapshot(market)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"market": market,
					"buy":    buy,
					"sell":   sell,
					"state":  state,
					"known":  known,
				})
			}

			color.Cyan("⏳ Cooldown - %s", market)
			printSide(output, "BUY", buy)
			printSide(output, "SELL", sell)
			if known {
				output.Printf("Consecutive losses: %d\n", state.ConsecutiveLosses)
				output.Printf("Recent volatility:  %.2f%%\n", state.RecentVolatility)
				if state.DynamicBuyMinutes > 0 {
					output.Printf("Dynamic durations:  buy %dm / sell %dm\n",
						state.DynamicBuyMinutes, state.DynamicSellMinutes)
				}
			} else {
				output.Dim("No trade history for this market yet.")
			}
			return nil
		},
	}
}

func printSide(output *Output, side string, st cooldown.Status) {
	if st.Allowed {
		output.Success("%-4s allowed", side)
	} else {
		output.Warning("%-4s blocked, %d minutes remaining", side, st.RemainingMinutes)
	}
}

func newCooldownResetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <market>",
		Short: "Clear a market's cooldown state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			market, err := utils.NormalizeMarket(args[0])
			if err != nil {
				return err
			}
			app.Engine.ResetCooldown(market)
			output.Success("Cooldown state cleared for %s", market)
			return nil
		},
	}
}
