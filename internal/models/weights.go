package models

// IndicatorWeights maps indicator name to its trust weight in [0, 2].
// A weight of 1.0 is neutral; indicators absent from the map are
// treated as neutral by the aggregator.
type IndicatorWeights map[string]float64

// DefaultIndicatorWeights returns the starting weights before any
// learning has happened. Higher-trust sources start above 1.
func DefaultIndicatorWeights() IndicatorWeights {
	return IndicatorWeights{
		"rsi":            1.0,
		"macd":           1.0,
		"bb_position":    0.8,
		"volume_ratio":   0.9,
		"stochastic_rsi": 0.9,
		"atr":            0.7,
		"obv_trend":      0.8,
		"adx":            0.8,
		"news_sentiment": 1.2,
		"whale_activity": 1.1,
	}
}

// Clone returns a copy safe to hand to concurrent readers.
func (w IndicatorWeights) Clone() IndicatorWeights {
	out := make(IndicatorWeights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Get returns the weight for an indicator, defaulting to 1.0 for
// names the map does not know so evolving indicator sets keep working.
func (w IndicatorWeights) Get(name string) float64 {
	if v, ok := w[name]; ok {
		return v
	}
	return 1.0
}
