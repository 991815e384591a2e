package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"upbit-trader/internal/models"
	"upbit-trader/pkg/utils"
)

// newRecordCmd registers a closed trade so the learner and cooldown
// manager see it. Outcomes are persisted when a store is configured,
// which lets a restart replay them.
func newRecordCmd(app *App) *cobra.Command {
	var (
		side       string
		entry      float64
		exit       float64
		hold       time.Duration
		indicators []string
	)

	cmd := &cobra.Command{
		Use:   "record <market>",
		Short: "Record a closed trade outcome",
		Long: `Record a closed trade so indicator weights and cooldowns adapt to it.

The indicator snapshot should hold the normalized scores that were
present when the position was opened, e.g. -i rsi=0.7 -i macd=-0.2.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			market, err := utils.NormalizeMarket(args[0])
			if err != nil {
				return err
			}
			if entry <= 0 || exit <= 0 {
				return fmt.Errorf("entry and exit prices must be positive")
			}
			tradeSide := models.Side(strings.ToUpper(side))
			if tradeSide != models.SideBuy && tradeSide != models.SideSell {
				return fmt.Errorf("side must be BUY or SELL, got %q", side)
			}

			snapshot, err := parseIndicatorFlags(indicators)
			if err != nil {
				return err
			}

			returnPct := (exit - entry) / entry * 100
			if tradeSide == models.SideSell {
				returnPct = -returnPct
			}

			outcome := models.TradeOutcome{
				Market:                market,
				Side:                  tradeSide,
				EntryPrice:            entry,
				ExitPrice:             exit,
				RealizedReturnPercent: returnPct,
				HoldingDuration:       hold,
				ClosedAt:              time.Now(),
				IndicatorSnapshot:     snapshot,
			}

			if app.Store != nil {
				if err := app.Store.SaveOutcome(cmd.Context(), outcome); err != nil {
					return fmt.Errorf("saving outcome: %w", err)
				}
			}
			app.Engine.RecordTradeOutcome(outcome)

			if output.IsJSON() {
				return output.JSON(outcome)
			}

			color.Cyan("📒 Recorded %s %s", outcome.Side, market)
			output.Printf("Entry:  %s\n", utils.FormatKRW(entry))
			output.Printf("Exit:   %s\n", utils.FormatKRW(exit))
			output.Printf("Return: %s\n", utils.FormatPnL(returnPct))
			if hold > 0 {
				output.Printf("Held:   %s\n", hold)
			}
			if len(snapshot) > 0 {
				output.Printf("Snapshot indicators: %d\n", len(snapshot))
			} else {
				output.Warning("No indicator snapshot given; weights will not adapt from this trade")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&side, "side", "s", "BUY", "trade side (BUY or SELL)")
	cmd.Flags().Float64Var(&entry, "entry", 0, "entry price in KRW")
	cmd.Flags().Float64Var(&exit, "exit", 0, "exit price in KRW")
	cmd.Flags().DurationVar(&hold, "hold", 0, "holding duration, e.g. 3h20m")
	cmd.Flags().StringArrayVarP(&indicators, "indicator", "i", nil, "indicator snapshot entry name=score (repeatable)")
	_ = cmd.MarkFlagRequired("entry")
	_ = cmd.MarkFlagRequired("exit")

	return cmd
}
