// Package risk computes portfolio Value-at-Risk, Conditional VaR and
// stress-test scenarios from current holdings and historical returns.
package risk

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"upbit-trader/internal/config"
	"upbit-trader/internal/errors"
	"upbit-trader/internal/models"
)

// z-scores for the parametric methodology.
const (
	z95 = 1.645
	z99 = 2.326
)

// StressScenario is one market-wide shock applied to current holdings.
type StressScenario struct {
	Name        string
	ShockPct    float64
	LossAmount  float64
	LossPercent float64
}

// Report is the result of one risk analysis. Losses are positive
// quote-currency amounts. Methodology names how VaR was computed,
// since historical and parametric figures differ materially.
type Report struct {
	Methodology    string
	PortfolioValue float64

	VaR95Daily   float64
	VaR99Daily   float64
	VaR95Weekly  float64
	VaR95Monthly float64
	CVaR         float64

	StressScenarios []StressScenario
	SampleSize      int
	GeneratedAt     time.Time
}

// Analyzer computes risk reports on demand. Reports are value objects;
// nothing is incrementally maintained.
type Analyzer struct {
	cfg    config.RiskConfig
	logger zerolog.Logger
}

// NewAnalyzer creates a risk analyzer.
func NewAnalyzer(cfg config.RiskConfig, logger zerolog.Logger) *Analyzer {
	return &Analyzer{cfg: cfg, logger: logger.With().Str("component", "risk").Logger()}
}

// Analyze computes a full risk report for the portfolio given its
// historical daily returns in percent. Fewer returns than the
// configured minimum is an insufficient-data error, not a silent
// wrong answer. The context is checked between computation stages.
func (a *Analyzer) Analyze(ctx context.Context, portfolio models.Portfolio, dailyReturns []float64) (*Report, error) {
	if len(dailyReturns) < a.cfg.MinHistory {
		return nil, fmt.Errorf("%w: %d daily returns, need at least %d",
			errors.ErrInsufficientData, len(dailyReturns), a.cfg.MinHistory)
	}

	value := portfolio.TotalValue()
	report := &Report{
		Methodology:    string(a.cfg.Methodology),
		PortfolioValue: value,
		SampleSize:     len(dailyReturns),
		GeneratedAt:    time.Now(),
	}

	var var95Pct, var99Pct, cvarPct float64
	switch a.cfg.Methodology {
	case config.RiskParametric:
		var95Pct, var99Pct, cvarPct = parametricVaR(dailyReturns)
	default:
		var95Pct, var99Pct, cvarPct = historicalVaR(dailyReturns)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.VaR95Daily = value * var95Pct / 100
	report.VaR99Daily = value * var99Pct / 100
	report.VaR95Weekly = report.VaR95Daily * math.Sqrt(7)
	report.VaR95Monthly = report.VaR95Daily * math.Sqrt(30)
	report.CVaR = value * cvarPct / 100

	for _, shock := range a.cfg.StressShocksPct {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loss := value * -shock / 100
		report.StressScenarios = append(report.StressScenarios, StressScenario{
			Name:        fmt.Sprintf("market %+.0f%%", shock),
			ShockPct:    shock,
			LossAmount:  loss,
			LossPercent: -shock,
		})
	}

	a.logger.Debug().
		Str("methodology", report.Methodology).
		Float64("portfolio_value", value).
		Float64("var95_daily", report.VaR95Daily).
		Msg("risk report generated")
	return report, nil
}

// historicalVaR reads loss quantiles straight from the sorted return
// sample. CVaR is the mean loss at or beyond the 95% quantile.
func historicalVaR(returns []float64) (var95, var99, cvar float64) {
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	n := len(sorted)
	q95 := sorted[int(float64(n)*0.05)]
	q99 := sorted[int(float64(n)*0.01)]

	var95 = lossPct(q95)
	var99 = lossPct(q99)

	var tailSum float64
	var tailN int
	for _, r := range sorted {
		if r > q95 {
			break
		}
		tailSum += r
		tailN++
	}
	if tailN > 0 {
		cvar = lossPct(tailSum / float64(tailN))
	}
	return var95, var99, cvar
}

// parametricVaR assumes normally distributed returns. CVaR for a
// normal tail is sigma * phi(z) / alpha above the mean loss.
func parametricVaR(returns []float64) (var95, var99, cvar float64) {
	mean, sd := meanStdev(returns)

	var95 = lossPct(mean - z95*sd)
	var99 = lossPct(mean - z99*sd)

	// E[loss | loss > VaR95] under normality.
	phi := math.Exp(-z95*z95/2) / math.Sqrt(2*math.Pi)
	cvar = lossPct(mean - sd*phi/0.05)
	return var95, var99, cvar
}

// lossPct maps a signed return percent onto a non-negative loss
// percent. Profitable quantiles mean zero value at risk.
func lossPct(returnPct float64) float64 {
	if returnPct >= 0 {
		return 0
	}
	return -returnPct
}

func meanStdev(xs []float64) (mean, sd float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	if len(xs) > 1 {
		sd = math.Sqrt(ss / float64(len(xs)-1))
	}
	return mean, sd
}
