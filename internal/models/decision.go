package models

import "time"

// Action represents the outcome of a decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// IndicatorReading is a single normalized indicator observation.
// Score is a signed strength in [-1, 1]: -1 fully bearish, +1 fully
// bullish. Readings are produced by the external indicator worker and
// are immutable once created.
type IndicatorReading struct {
	Name      string
	Score     float64
	SampledAt time.Time
}

// Reason explains one indicator's contribution to a decision.
type Reason struct {
	Indicator    string
	Score        float64
	Weight       float64
	Contribution float64
}

// Decision is the result of aggregating indicator readings for one
// analysis tick. It is a value object, created fresh per tick.
type Decision struct {
	Market     string
	Action     Action
	Confidence float64 // [0, 1], share of combined score on the dominant side
	BuyScore   float64
	SellScore  float64
	Reasons    []Reason // strongest contributions first
	Dropped    []string // indicator names excluded for bad data
	Timestamp  time.Time
}
