package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"upbit-trader/internal/analysis"
	"upbit-trader/internal/decision"
	"upbit-trader/internal/models"
	"upbit-trader/pkg/utils"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <market>",
		Short: "Run one decision tick for a market",
		Long: `Normalize the supplied raw indicator values, combine them with the
currently learned weights and print the resulting decision with its
per-indicator contribution breakdown, cooldown status and a proposed
position size.

Raw values follow the indicator worker's conventions: rsi and
stochastic_rsi in [0,100], adx in [0,100], volume_ratio around 1.0,
bb_position and obv_trend already signed in [-1,1].`,
		Example: `  trader analyze KRW-BTC -i rsi=72 -i macd=15 -i volume_ratio=1.8
  trader analyze KRW-ETH -i rsi=35 -i bb_position=-0.6 --balance 2000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			market, err := utils.NormalizeMarket(args[0])
			if err != nil {
				return err
			}
			rawFlags, _ := cmd.Flags().GetStringArray("indicator")
			balance, _ := cmd.Flags().GetFloat64("balance")
			maxPos, _ := cmd.Flags().GetFloat64("max-position")

			raw, err := parseIndicatorFlags(rawFlags)
			if err != nil {
				return err
			}
			if len(raw) == 0 {
				return fmt.Errorf("no indicator values supplied, use -i name=value")
			}

			readings, err := computeReadings(ctx, app, market, raw)
			if err != nil {
				output.Error("Analysis failed: %v", err)
				return err
			}

			d := app.Engine.Decide(market, readings)
			cooldownStatus := app.Engine.CheckCooldown(market, models.Side(d.Action), d.Confidence)
			account := models.Account{Balance: balance, MaxPositionSize: maxPos}
			size := app.Engine.ProposeSize(d, account, app.Engine.SizingStats(market))

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"decision":     d,
					"cooldown":     cooldownStatus,
					"proposedSize": size,
				})
			}

			color.Cyan("📈 Decision - %s", market)
			printDecision(output, d)

			if d.Action != models.ActionHold {
				if cooldownStatus.Allowed {
					if cooldownStatus.Overridden {
						output.Warning("Cooldown bypassed on high confidence")
					}
					output.Printf("Proposed size: %s\n", utils.FormatKRW(size))
				} else {
					output.Warning("Blocked by cooldown: %d minutes remaining", cooldownStatus.RemainingMinutes)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayP("indicator", "i", nil, "raw indicator value as name=value (repeatable)")
	cmd.Flags().Float64("balance", 1_000_000, "available balance in KRW")
	cmd.Flags().Float64("max-position", 0, "per-position cap in KRW (0 = no cap)")
	return cmd
}

// computeReadings routes the raw values through the analysis worker so
// the CLI exercises the same offload protocol the live scheduler uses.
func computeReadings(ctx context.Context, app *App, market string, raw map[string]float64) ([]models.IndicatorReading, error) {
	analyzer := analysis.AnalyzerFunc(func(ctx context.Context, market string, progress func(string, float64)) ([]models.IndicatorReading, error) {
		progress("normalize", 0.5)
		return decision.NormalizeBatch(raw, time.Now()), nil
	})
	worker := analysis.NewWorker(analyzer, app.Logger)
	worker.Start(ctx)
	defer worker.Stop()

	worker.Submit(analysis.Request{ID: "cli", Type: analysis.RequestAnalyze, Market: market})
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-worker.Messages():
			if !ok {
				return nil, fmt.Errorf("worker stopped before terminal message")
			}
			switch msg.Type {
			case analysis.MessageResult:
				return msg.Results[0].Readings, nil
			case analysis.MessageError:
				return nil, fmt.Errorf("%s", msg.Err)
			}
		}
	}
}

func parseIndicatorFlags(flags []string) (map[string]float64, error) {
	out := make(map[string]float64, len(flags))
	for _, f := range flags {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid indicator %q, want name=value", f)
		}
		v, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", parts[0], err)
		}
		out[strings.ToLower(strings.TrimSpace(parts[0]))] = v
	}
	return out, nil
}

func printDecision(output *Output, d models.Decision) {
	switch d.Action {
	case models.ActionBuy:
		output.Success("Action: BUY  (confidence %.0f%%)", d.Confidence*100)
	case models.ActionSell:
		output.Error("Action: SELL (confidence %.0f%%)", d.Confidence*100)
	default:
		output.Dim("Action: HOLD")
	}
	output.Printf("Buy score %.3f / Sell score %.3f\n", d.BuyScore, d.SellScore)

	if len(d.Reasons) > 0 {
		output.Bold("Contributions:")
		for _, r := range d.Reasons {
			direction := "→"
			if r.Contribution > 0 {
				direction = "↑"
			} else if r.Contribution < 0 {
				direction = "↓"
			}
			output.Printf("  %s %-16s score %+.2f × weight %.2f = %+.3f\n",
				direction, r.Indicator, r.Score, r.Weight, r.Contribution)
		}
	}
	if len(d.Dropped) > 0 {
		output.Warning("Dropped readings (bad data): %s", strings.Join(d.Dropped, ", "))
	}
}
