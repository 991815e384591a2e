// Package decision turns normalized indicator readings into trade
// decisions by combining them with learned per-indicator weights.
package decision

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"upbit-trader/internal/config"
	"upbit-trader/internal/models"
)

// Aggregator combines weighted indicator scores into a BUY/SELL/HOLD
// decision with a confidence value. It is stateless; weights and
// config arrive per call so backtests can run isolated copies.
type Aggregator struct {
	logger zerolog.Logger
}

// NewAggregator creates a new decision aggregator.
func NewAggregator(logger zerolog.Logger) *Aggregator {
	return &Aggregator{logger: logger.With().Str("component", "decision").Logger()}
}

// Decide aggregates the readings into a decision. Positive
// contributions accumulate on the buy side, negative on the sell side;
// the dominant side must lead by at least cfg.MarginThreshold of the
// combined score, otherwise the result is HOLD.
//
// Readings with a NaN or infinite score are dropped and reported in
// Decision.Dropped; bad data never aborts a tick.
func (a *Aggregator) Decide(market string, readings []models.IndicatorReading, weights models.IndicatorWeights, cfg config.DecisionConfig) models.Decision {
	d := models.Decision{
		Market:    market,
		Action:    models.ActionHold,
		Timestamp: time.Now(),
	}

	contributions := make([]models.Reason, 0, len(readings))
	for _, r := range readings {
		if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
			d.Dropped = append(d.Dropped, r.Name)
			a.logger.Warn().
				Str("market", market).
				Str("indicator", r.Name).
				Msg("dropping reading with invalid score")
			continue
		}
		w := weights.Get(r.Name)
		c := r.Score * w
		contributions = append(contributions, models.Reason{
			Indicator:    r.Name,
			Score:        r.Score,
			Weight:       w,
			Contribution: c,
		})
		if c > 0 {
			d.BuyScore += c
		} else {
			d.SellScore += -c
		}
	}

	total := d.BuyScore + d.SellScore
	if total == 0 {
		return d
	}

	margin := math.Abs(d.BuyScore-d.SellScore) / total
	if margin >= cfg.MarginThreshold {
		if d.BuyScore > d.SellScore {
			d.Action = models.ActionBuy
			d.Confidence = d.BuyScore / total
		} else {
			d.Action = models.ActionSell
			d.Confidence = d.SellScore / total
		}
	}

	d.Reasons = topReasons(contributions, cfg.TopReasons)
	return d
}

// topReasons returns the n strongest contributions by magnitude,
// strongest first. Ties break on indicator name so output order is
// deterministic.
func topReasons(contributions []models.Reason, n int) []models.Reason {
	sort.Slice(contributions, func(i, j int) bool {
		ai, aj := math.Abs(contributions[i].Contribution), math.Abs(contributions[j].Contribution)
		if ai != aj {
			return ai > aj
		}
		return contributions[i].Indicator < contributions[j].Indicator
	})
	if n > 0 && len(contributions) > n {
		contributions = contributions[:n]
	}
	return contributions
}
