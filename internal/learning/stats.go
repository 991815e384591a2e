// Package learning adjusts per-indicator trust weights from realized
// trade outcomes. Statistics are kept at the finest grain (market +
// indicator) and pooled on read for category or global learning, so
// switching modes never discards raw data.
package learning

// IndicatorStats tracks realized outcomes attributed to one indicator.
// AvgProfit is an incremental mean; no per-trade history is retained.
type IndicatorStats struct {
	Trades    int
	Wins      int
	AvgProfit float64
}

func (s *IndicatorStats) record(returnPct float64, win bool) {
	s.Trades++
	if win {
		s.Wins++
	}
	s.AvgProfit += (returnPct - s.AvgProfit) / float64(s.Trades)
}

// SuccessRate returns the win fraction, 0 when no trades exist.
func (s IndicatorStats) SuccessRate() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades)
}

// merge pools another stats bucket into this one. The averaged profit
// is weighted by trade counts so pooling order does not matter.
func (s *IndicatorStats) merge(other IndicatorStats) {
	if other.Trades == 0 {
		return
	}
	total := s.Trades + other.Trades
	s.AvgProfit = (s.AvgProfit*float64(s.Trades) + other.AvgProfit*float64(other.Trades)) / float64(total)
	s.Trades = total
	s.Wins += other.Wins
}

// IndicatorInfo is the read-only view of one indicator's learning
// progress, exposed for display.
type IndicatorInfo struct {
	Stats            IndicatorStats
	BaseWeight       float64
	LearnedWeight    float64
	SuccessRate      float64
	LearnConfidence  float64
	Applied          bool // learned weight is in effect
	InsufficientData bool // below the minimum-trades gate
}

// WeightLearningState is the read-only snapshot of a learning scope.
type WeightLearningState struct {
	Scope             string
	Mode              string
	MinTradesRequired int
	Indicators        map[string]IndicatorInfo
}
