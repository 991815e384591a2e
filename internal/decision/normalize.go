package decision

import (
	"math"
	"sort"
	"time"

	"upbit-trader/internal/models"
)

// Normalize maps a raw indicator value onto the signed [-1, 1] scale
// the aggregator consumes. The raw value conventions follow the
// indicator worker: RSI and stochastic RSI in [0, 100], ADX in
// [0, 100] centered at 25, volume ratio around 1.0, bollinger position
// and OBV trend already signed.
func Normalize(name string, raw float64, at time.Time) models.IndicatorReading {
	var score float64
	switch name {
	case "rsi", "stochastic_rsi":
		score = (raw - 50) / 50
	case "macd":
		score = clamp(raw/100, -1, 1)
	case "volume_ratio":
		score = clamp((raw-1)/2, -1, 1)
	case "adx":
		score = clamp((raw-25)/25, -1, 1)
	case "bb_position", "obv_trend", "news_sentiment":
		score = clamp(raw, -1, 1)
	default:
		score = clamp(raw, -1, 1)
	}
	return models.IndicatorReading{Name: name, Score: score, SampledAt: at}
}

// NormalizeBatch normalizes a map of raw indicator values sampled at
// the same instant. Output is sorted by name so downstream consumers
// see a stable order regardless of map iteration.
func NormalizeBatch(raw map[string]float64, at time.Time) []models.IndicatorReading {
	readings := make([]models.IndicatorReading, 0, len(raw))
	for name, value := range raw {
		readings = append(readings, Normalize(name, value, at))
	}
	sort.Slice(readings, func(i, j int) bool { return readings[i].Name < readings[j].Name })
	return readings
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
