package models

import "time"

// TradeOutcome describes a fully closed position, supplied by the
// execution layer. RealizedReturnPercent is signed; a loss is negative.
type TradeOutcome struct {
	Market          string
	Side            Side
	EntryPrice      float64
	ExitPrice       float64
	RealizedReturnPercent float64
	HoldingDuration time.Duration
	ClosedAt        time.Time

	// IndicatorSnapshot holds the normalized scores that were present
	// when the position was opened, keyed by indicator name. The
	// learner attributes the outcome to these indicators.
	IndicatorSnapshot map[string]float64
}

// Win reports whether the outcome counts as a win at the given
// return threshold (usually zero).
func (t TradeOutcome) Win(threshold float64) bool {
	return t.RealizedReturnPercent > threshold
}

// KellyStats summarises realized performance for the position sizer:
// the win probability and the average win/loss payoff ratio, plus how
// many closed trades back them.
type KellyStats struct {
	WinProb         float64
	AvgWinLossRatio float64
	SampleCount     int
}
