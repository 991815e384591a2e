package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"upbit-trader/internal/models"
	"upbit-trader/internal/risk"
	"upbit-trader/pkg/utils"
)

func newRiskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Portfolio risk report (VaR, CVaR, stress tests)",
		Long: `Compute Value-at-Risk over daily, weekly and monthly horizons,
Conditional VaR, and stress-test scenarios for the given positions.
Daily return history comes from stored candles, weighted by position
value. The report names the VaR methodology used.`,
		Example: `  trader risk -p KRW-BTC=600000 -p KRW-ETH=400000
  trader risk -p KRW-BTC=1000000 --days 180 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			if app.Store == nil {
				return fmt.Errorf("store unavailable, import candles first")
			}
			positionFlags, _ := cmd.Flags().GetStringArray("position")
			days, _ := cmd.Flags().GetInt("days")
			if len(positionFlags) == 0 {
				return fmt.Errorf("no positions supplied, use -p market=value")
			}

			portfolio, err := parsePositions(positionFlags)
			if err != nil {
				return err
			}

			returns, err := portfolioReturns(ctx, app, portfolio, days)
			if err != nil {
				return err
			}

			analyzer := risk.NewAnalyzer(app.Config.Risk, app.Logger)
			report, err := analyzer.Analyze(ctx, portfolio, returns)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(report)
			}
			printRiskReport(output, report)
			return nil
		},
	}

	cmd.Flags().StringArrayP("position", "p", nil, "position as market=value-in-KRW (repeatable)")
	cmd.Flags().Int("days", 90, "days of return history to use")
	return cmd
}

func parsePositions(flags []string) (models.Portfolio, error) {
	var portfolio models.Portfolio
	for _, f := range flags {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) != 2 {
			return portfolio, fmt.Errorf("invalid position %q, want market=value", f)
		}
		market, err := utils.NormalizeMarket(parts[0])
		if err != nil {
			return portfolio, err
		}
		value, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || value <= 0 {
			return portfolio, fmt.Errorf("invalid value for %s: %q", market, parts[1])
		}
		portfolio.Positions = append(portfolio.Positions, models.Position{Market: market, Value: value})
	}
	total := portfolio.TotalValue()
	for i := range portfolio.Positions {
		portfolio.Positions[i].Weight = portfolio.Positions[i].Value / total
	}
	return portfolio, nil
}

// portfolioReturns builds the value-weighted daily return series of
// the whole portfolio from each market's stored candles.
func portfolioReturns(ctx context.Context, app *App, portfolio models.Portfolio, days int) ([]float64, error) {
	perMarket := make(map[string][]float64, len(portfolio.Positions))
	shortest := -1
	for _, pos := range portfolio.Positions {
		rs, err := app.Store.GetDailyReturns(ctx, pos.Market, days)
		if err != nil {
			return nil, fmt.Errorf("returns for %s: %w", pos.Market, err)
		}
		perMarket[pos.Market] = rs
		if shortest < 0 || len(rs) < shortest {
			shortest = len(rs)
		}
	}
	if shortest <= 0 {
		return nil, fmt.Errorf("no stored return history for the given markets")
	}

	// Align on the most recent `shortest` days.
	combined := make([]float64, shortest)
	for _, pos := range portfolio.Positions {
		rs := perMarket[pos.Market]
		offset := len(rs) - shortest
		for i := 0; i < shortest; i++ {
			combined[i] += rs[offset+i] * pos.Weight
		}
	}
	return combined, nil
}

func printRiskReport(output *Output, report *risk.Report) {
	color.Cyan("🛡  Risk Report (%s VaR, %d samples)", report.Methodology, report.SampleSize)
	output.Printf("Portfolio value: %s\n", utils.FormatKRW(report.PortfolioValue))
	output.Printf("VaR 95%% daily:   %s\n", utils.FormatKRW(report.VaR95Daily))
	output.Printf("VaR 99%% daily:   %s\n", utils.FormatKRW(report.VaR99Daily))
	output.Printf("VaR 95%% weekly:  %s\n", utils.FormatKRW(report.VaR95Weekly))
	output.Printf("VaR 95%% monthly: %s\n", utils.FormatKRW(report.VaR95Monthly))
	output.Printf("CVaR:            %s\n", utils.FormatKRW(report.CVaR))

	output.Bold("Stress scenarios:")
	for _, sc := range report.StressScenarios {
		output.Printf("  %-14s loss %s (%.0f%%)\n", sc.Name, utils.FormatKRW(sc.LossAmount), sc.LossPercent)
	}
}
