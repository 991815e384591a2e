package decision

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"upbit-trader/internal/config"
	"upbit-trader/internal/models"
)

// Property: for any set of readings with scores in [-1, 1] and weights
// in [0, 2], the decision confidence stays in [0, 1] and buy/sell
// scores are non-negative.

var indicatorNames = []string{
	"rsi", "macd", "bb_position", "volume_ratio", "stochastic_rsi",
	"atr", "obv_trend", "adx", "news_sentiment", "whale_activity",
}

func readingSetGen() gopter.Gen {
	return gen.SliceOfN(len(indicatorNames), gen.Float64Range(-1, 1)).Map(func(scores []float64) []models.IndicatorReading {
		at := time.Now()
		out := make([]models.IndicatorReading, len(scores))
		for i, s := range scores {
			out[i] = models.IndicatorReading{Name: indicatorNames[i], Score: s, SampledAt: at}
		}
		return out
	})
}

func weightsGen() gopter.Gen {
	return gen.SliceOfN(len(indicatorNames), gen.Float64Range(0, 2)).Map(func(ws []float64) models.IndicatorWeights {
		out := make(models.IndicatorWeights, len(ws))
		for i, w := range ws {
			out[indicatorNames[i]] = w
		}
		return out
	})
}

func TestDecideConfidenceBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	agg := NewAggregator(zerolog.Nop())
	cfg := config.DecisionConfig{MarginThreshold: 0.25, TopReasons: 5}

	properties.Property("confidence in [0,1], scores non-negative", prop.ForAll(
		func(rs []models.IndicatorReading, ws models.IndicatorWeights) bool {
			d := agg.Decide("KRW-BTC", rs, ws, cfg)
			if d.Confidence < 0 || d.Confidence > 1 {
				return false
			}
			if d.BuyScore < 0 || d.SellScore < 0 {
				return false
			}
			return true
		},
		readingSetGen(),
		weightsGen(),
	))

	properties.Property("HOLD whenever total score is zero", prop.ForAll(
		func(ws models.IndicatorWeights) bool {
			rs := make([]models.IndicatorReading, len(indicatorNames))
			for i, name := range indicatorNames {
				rs[i] = models.IndicatorReading{Name: name, Score: 0, SampledAt: time.Now()}
			}
			d := agg.Decide("KRW-BTC", rs, ws, cfg)
			return d.Action == models.ActionHold && d.Confidence == 0
		},
		weightsGen(),
	))

	properties.Property("action agrees with dominant side", prop.ForAll(
		func(rs []models.IndicatorReading, ws models.IndicatorWeights) bool {
			d := agg.Decide("KRW-BTC", rs, ws, cfg)
			switch d.Action {
			case models.ActionBuy:
				return d.BuyScore > d.SellScore
			case models.ActionSell:
				return d.SellScore >= d.BuyScore
			default:
				return true
			}
		},
		readingSetGen(),
		weightsGen(),
	))

	properties.TestingRun(t)
}

func TestDecideDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	agg := NewAggregator(zerolog.Nop())
	cfg := config.DecisionConfig{MarginThreshold: 0.25, TopReasons: 5}

	properties.Property("same readings and weights give the same decision", prop.ForAll(
		func(rs []models.IndicatorReading, ws models.IndicatorWeights) bool {
			a := agg.Decide("KRW-BTC", rs, ws, cfg)
			b := agg.Decide("KRW-BTC", rs, ws, cfg)
			if a.Action != b.Action || a.Confidence != b.Confidence {
				return false
			}
			if math.Abs(a.BuyScore-b.BuyScore) > 0 || math.Abs(a.SellScore-b.SellScore) > 0 {
				return false
			}
			if len(a.Reasons) != len(b.Reasons) {
				return false
			}
			for i := range a.Reasons {
				if a.Reasons[i] != b.Reasons[i] {
					return false
				}
			}
			return true
		},
		readingSetGen(),
		weightsGen(),
	))

	properties.TestingRun(t)
}
