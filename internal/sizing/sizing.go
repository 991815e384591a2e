// Package sizing converts decisions into trade amounts, either as a
// fixed fraction of available funds or with a capped Kelly Criterion.
package sizing

import (
	"math"

	"github.com/rs/zerolog"

	"upbit-trader/internal/config"
	"upbit-trader/internal/models"
)

// Sizer computes position sizes. It is stateless; configuration and
// performance statistics arrive per call.
type Sizer struct {
	cfg    config.SizingConfig
	logger zerolog.Logger
}

// NewSizer creates a position sizer.
func NewSizer(cfg config.SizingConfig, logger zerolog.Logger) *Sizer {
	return &Sizer{cfg: cfg, logger: logger.With().Str("component", "sizing").Logger()}
}

// Size returns the quote-currency amount to trade for a decision.
// HOLD decisions size to zero. Kelly mode needs at least minTrades
// closed trades and a positive payoff ratio, otherwise the fixed-ratio
// fallback applies. The result never exceeds the smaller of the
// account balance and the configured per-position cap.
func (s *Sizer) Size(d models.Decision, account models.Account, stats models.KellyStats, minTrades int) float64 {
	if d.Action == models.ActionHold {
		return 0
	}

	capital := account.Balance
	if account.MaxPositionSize > 0 {
		capital = math.Min(capital, account.MaxPositionSize)
	}
	if capital <= 0 {
		return 0
	}

	if s.cfg.UseKelly && stats.SampleCount >= minTrades && stats.AvgWinLossRatio > 0 {
		f := KellyFraction(stats.WinProb, stats.AvgWinLossRatio)
		f = math.Min(f, s.cfg.MaxKellyFraction)
		if f <= 0 {
			return 0
		}
		return capital * f
	}

	ratio := s.cfg.BuyRatio
	if d.Action == models.ActionSell {
		ratio = s.cfg.SellRatio
	}
	return capital * ratio * s.confidenceMult(d.Confidence)
}

// confidenceMult maps confidence in [0.5, 1] onto the configured
// multiplier bounds. Confidence at or below 0.5 uses the minimum.
func (s *Sizer) confidenceMult(confidence float64) float64 {
	lo, hi := s.cfg.MinConfidenceMult, s.cfg.MaxConfidenceMult
	if hi <= 0 {
		return 1
	}
	if confidence <= 0.5 {
		return lo
	}
	if confidence >= 1 {
		return hi
	}
	return lo + (hi-lo)*(confidence-0.5)*2
}

// KellyFraction returns the raw Kelly bet fraction f* = (p*b - q) / b.
// A non-positive edge returns 0: the engine never inverts a decision
// into a short.
func KellyFraction(winProb, payoffRatio float64) float64 {
	if payoffRatio <= 0 || winProb <= 0 {
		return 0
	}
	q := 1 - winProb
	f := (winProb*payoffRatio - q) / payoffRatio
	if f < 0 {
		return 0
	}
	return f
}

// Tier is a fractional-Kelly variant traders commonly run to trade
// growth for drawdown.
type Tier string

const (
	TierFull    Tier = "full"
	TierHalf    Tier = "half"
	TierQuarter Tier = "quarter"
)

// TierFraction scales a Kelly fraction down to the named tier.
func TierFraction(f float64, tier Tier) float64 {
	switch tier {
	case TierHalf:
		return f / 2
	case TierQuarter:
		return f / 4
	default:
		return f
	}
}

// ExpectedLogGrowth returns the per-bet expected log growth rate
// g = p*ln(1+b*f) + q*ln(1-f) at bet fraction f. Betting the full
// bankroll or more yields -Inf.
func ExpectedLogGrowth(winProb, payoffRatio, f float64) float64 {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return math.Inf(-1)
	}
	q := 1 - winProb
	return winProb*math.Log(1+payoffRatio*f) + q*math.Log(1-f)
}

// RiskOfRuin approximates the probability of losing the fraction
// (1 - acceptable) of the bankroll when betting fraction f per trade
// with win probability p: (q/p)^((1-acceptable)/f). Defined only for
// p > 0.5; otherwise ruin is certain in the limit and 1 is returned.
func RiskOfRuin(winProb, f, acceptable float64) float64 {
	if f <= 0 {
		return 0
	}
	if winProb <= 0.5 {
		return 1
	}
	q := 1 - winProb
	return math.Pow(q/winProb, (1-acceptable)/f)
}
