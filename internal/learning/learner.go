package learning

import (
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"upbit-trader/internal/config"
	"upbit-trader/internal/models"
)

const (
	minWeight = 0.0
	maxWeight = 2.0
	// learnConfidence ramps from 0 to 1 over this many trades.
	confidenceRamp = 20
)

// Learner owns the per-indicator statistics and derives trust weights
// from them. All mutation goes through RecordOutcome under a single
// writer lock; reads hand out snapshots.
type Learner struct {
	mu     sync.RWMutex
	cfg    config.LearningConfig
	base   models.IndicatorWeights
	stats  map[string]map[string]*IndicatorStats // market -> indicator -> stats
	logger zerolog.Logger
}

// NewLearner creates a learner starting from the given base weights.
func NewLearner(cfg config.LearningConfig, base models.IndicatorWeights, logger zerolog.Logger) *Learner {
	return &Learner{
		cfg:    cfg,
		base:   base.Clone(),
		stats:  make(map[string]map[string]*IndicatorStats),
		logger: logger.With().Str("component", "learning").Logger(),
	}
}

// RecordOutcome attributes a closed trade to the indicators that were
// present at entry. A win is a realized return above the configured
// threshold. Indicators never seen before are initialized on the fly.
func (l *Learner) RecordOutcome(outcome models.TradeOutcome) {
	if len(outcome.IndicatorSnapshot) == 0 {
		l.logger.Warn().Str("market", outcome.Market).Msg("outcome without indicator snapshot, nothing to learn")
		return
	}
	win := outcome.Win(l.cfg.WinThreshold)

	l.mu.Lock()
	defer l.mu.Unlock()

	byIndicator := l.stats[outcome.Market]
	if byIndicator == nil {
		byIndicator = make(map[string]*IndicatorStats)
		l.stats[outcome.Market] = byIndicator
	}
	for name := range outcome.IndicatorSnapshot {
		s := byIndicator[name]
		if s == nil {
			s = &IndicatorStats{}
			byIndicator[name] = s
		}
		s.record(outcome.RealizedReturnPercent, win)
	}

	l.logger.Debug().
		Str("market", outcome.Market).
		Bool("win", win).
		Float64("return_pct", outcome.RealizedReturnPercent).
		Int("indicators", len(outcome.IndicatorSnapshot)).
		Msg("trade outcome recorded")
}

// WeightsFor returns the weights to use when deciding for a market.
// Indicators below the minimum-trades gate keep their base weight;
// mature indicators get the learned weight. The returned map is a
// snapshot safe for concurrent use.
func (l *Learner) WeightsFor(market string) models.IndicatorWeights {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := l.base.Clone()
	for name, s := range l.pooledStats(l.scopeMarkets(market)) {
		if s.Trades < l.cfg.MinTradesRequired {
			continue
		}
		out[name] = learnedWeight(l.base.Get(name), s)
	}
	return out
}

// Info returns the learning state for a market's scope, including the
// per-indicator insufficient-data flags the display layer surfaces.
func (l *Learner) Info(market string) WeightLearningState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state := WeightLearningState{
		Scope:             l.scopeName(market),
		Mode:              string(l.mode()),
		MinTradesRequired: l.cfg.MinTradesRequired,
		Indicators:        make(map[string]IndicatorInfo),
	}
	for name, s := range l.pooledStats(l.scopeMarkets(market)) {
		base := l.base.Get(name)
		info := IndicatorInfo{
			Stats:           s,
			BaseWeight:      base,
			SuccessRate:     s.SuccessRate(),
			LearnConfidence: learnConfidence(s.Trades),
			LearnedWeight:   learnedWeight(base, s),
		}
		if s.Trades >= l.cfg.MinTradesRequired {
			info.Applied = true
		} else {
			info.InsufficientData = true
		}
		state.Indicators[name] = info
	}
	return state
}

// IndicatorPerformance is one row of the cross-market report.
type IndicatorPerformance struct {
	Indicator   string
	Trades      int
	Wins        int
	SuccessRate float64
	AvgProfit   float64
	Weight      float64
}

// Report pools statistics across all markets and returns one row per
// indicator, best success rate first.
func (l *Learner) Report() []IndicatorPerformance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pooled := l.pooledStats(l.allMarkets())
	rows := make([]IndicatorPerformance, 0, len(pooled))
	for name, s := range pooled {
		rows = append(rows, IndicatorPerformance{
			Indicator:   name,
			Trades:      s.Trades,
			Wins:        s.Wins,
			SuccessRate: s.SuccessRate(),
			AvgProfit:   s.AvgProfit,
			Weight:      learnedWeight(l.base.Get(name), s),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SuccessRate != rows[j].SuccessRate {
			return rows[i].SuccessRate > rows[j].SuccessRate
		}
		return rows[i].Indicator < rows[j].Indicator
	})
	return rows
}

// SizingStats derives the win probability and payoff ratio the Kelly
// sizer consumes, pooled over the market's learning scope. Every
// indicator bucket sees the same trades, so the fullest bucket stands
// in for the per-market trade history.
func (l *Learner) SizingStats(market string) models.KellyStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var best IndicatorStats
	for _, s := range l.pooledStats(l.scopeMarkets(market)) {
		if s.Trades > best.Trades {
			best = s
		}
	}
	if best.Trades == 0 {
		return models.KellyStats{}
	}
	p := best.SuccessRate()
	return models.KellyStats{WinProb: p, AvgWinLossRatio: payoffRatio(best, p), SampleCount: best.Trades}
}

// payoffRatio estimates avg win / avg loss from the running mean
// profit: mean = p*avgWin - q*avgLoss. With only the mean available we
// solve for the ratio assuming a unit average loss. Capped so a
// loss-free history stays finite for the Kelly formula.
func payoffRatio(s IndicatorStats, p float64) float64 {
	const ratioCap = 10
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return ratioCap
	}
	q := 1 - p
	win := (s.AvgProfit/100 + q) / p
	if win <= 0 {
		return 0
	}
	return math.Min(win, ratioCap)
}

func learnedWeight(base float64, s IndicatorStats) float64 {
	w := base * (1 + (s.SuccessRate()-0.5)*learnConfidence(s.Trades))
	return math.Max(minWeight, math.Min(maxWeight, w))
}

func learnConfidence(trades int) float64 {
	return math.Min(float64(trades)/confidenceRamp, 1.0)
}

func (l *Learner) mode() config.LearningMode {
	if l.cfg.Mode == "" {
		return config.LearnIndividual
	}
	return l.cfg.Mode
}

func (l *Learner) scopeName(market string) string {
	switch l.mode() {
	case config.LearnGlobal:
		return "global"
	case config.LearnCategory:
		for category, markets := range l.cfg.Categories {
			for _, m := range markets {
				if m == market {
					return category
				}
			}
		}
		return market
	default:
		return market
	}
}

// scopeMarkets returns the markets whose statistics pool into the
// given market's learning scope.
func (l *Learner) scopeMarkets(market string) []string {
	switch l.mode() {
	case config.LearnGlobal:
		return l.allMarkets()
	case config.LearnCategory:
		for _, markets := range l.cfg.Categories {
			for _, m := range markets {
				if m == market {
					return markets
				}
			}
		}
		return []string{market}
	default:
		return []string{market}
	}
}

func (l *Learner) allMarkets() []string {
	markets := make([]string, 0, len(l.stats))
	for m := range l.stats {
		markets = append(markets, m)
	}
	sort.Strings(markets)
	return markets
}

// pooledStats merges the per-market buckets for the given markets into
// one stats value per indicator. Callers hold at least the read lock.
func (l *Learner) pooledStats(markets []string) map[string]IndicatorStats {
	out := make(map[string]IndicatorStats)
	for _, market := range markets {
		for name, s := range l.stats[market] {
			pooled := out[name]
			pooled.merge(*s)
			out[name] = pooled
		}
	}
	return out
}
