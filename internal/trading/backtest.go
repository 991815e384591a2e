package trading

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"upbit-trader/internal/config"
	"upbit-trader/internal/cooldown"
	"upbit-trader/internal/decision"
	"upbit-trader/internal/errors"
	"upbit-trader/internal/models"
	"upbit-trader/internal/sizing"
)

// IndicatorProvider computes readings for a candle window. The slice
// passed to Readings holds only data up to and including the decision
// candle; providers never see the future.
type IndicatorProvider interface {
	Readings(candles []models.Candle, index int) []models.IndicatorReading
}

// IndicatorProviderFunc adapts a function to IndicatorProvider.
type IndicatorProviderFunc func(candles []models.Candle, index int) []models.IndicatorReading

// Readings implements IndicatorProvider.
func (f IndicatorProviderFunc) Readings(candles []models.Candle, index int) []models.IndicatorReading {
	return f(candles, index)
}

// BacktestTrade is one simulated round trip.
type BacktestTrade struct {
	Side       models.Side
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Amount     float64 // quote currency spent at entry
	ReturnPct  float64
	Regime     models.MarketCondition // regime at entry
}

// RegimeStats buckets trade performance by market regime.
type RegimeStats struct {
	Trades           int
	WinRatePercent   float64
	AvgReturnPercent float64
}

// Performance aggregates a backtest run.
type Performance struct {
	TotalReturnPercent float64
	WinRatePercent     float64
	TotalTrades        int
	MaxDrawdownPercent float64
	SharpeRatio        float64
}

// BacktestResult is the immutable outcome of one backtest invocation.
// SharpeNote documents the annualization so the reported ratio is
// auditable.
type BacktestResult struct {
	Market       string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Trades       []BacktestTrade
	Performance  Performance
	Bull         RegimeStats
	Bear         RegimeStats
	Sideways     RegimeStats
	FinalBalance float64
	Warnings     []string
	SharpeNote   string
}

// Backtester replays a candle series through an isolated copy of the
// decision pipeline. Live learner and cooldown state are never
// touched; every run seeds fresh simulated components.
type Backtester struct {
	cfg       config.BacktestConfig
	engineCfg config.EngineConfig
	logger    zerolog.Logger
}

// NewBacktester creates a backtest engine.
func NewBacktester(cfg config.BacktestConfig, engineCfg config.EngineConfig, logger zerolog.Logger) (*Backtester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}
	if err := engineCfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return &Backtester{
		cfg:       cfg,
		engineCfg: engineCfg,
		logger:    logger.With().Str("component", "backtest").Logger(),
	}, nil
}

// Run replays the candles step by step: at each close the provider
// computes readings from the visible history, the aggregator decides,
// the simulated cooldown gates, and fills happen at the candle close
// price. The weights snapshot stays fixed for the whole run so two
// runs over identical inputs produce identical results. The context
// is checked between steps.
func (b *Backtester) Run(ctx context.Context, market string, candles []models.Candle, provider IndicatorProvider, weights models.IndicatorWeights) (*BacktestResult, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: empty candle series", errors.ErrInsufficientData)
	}

	result := &BacktestResult{
		Market:      market,
		PeriodStart: candles[0].Timestamp,
		PeriodEnd:   candles[len(candles)-1].Timestamp,
		SharpeNote:  fmt.Sprintf("mean/stdev of per-candle returns, annualized by sqrt(%d)", b.cfg.PeriodsPerYear),
	}

	warmup := b.cfg.WarmupCandles
	if len(candles) <= warmup {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("only %d candles for a %d-candle warmup, nothing simulated", len(candles), warmup))
		result.FinalBalance = b.cfg.InitialBalance
		return result, nil
	}

	agg := decision.NewAggregator(zerolog.Nop())
	sizer := sizing.NewSizer(b.engineCfg.Sizing, zerolog.Nop())

	// The simulated cooldown manager runs on candle time.
	simTime := candles[0].Timestamp
	cooldowns := cooldown.NewManagerWithClock(b.engineCfg.Cooldown, func() time.Time { return simTime }, zerolog.Nop())

	sim := &simState{
		balance:     b.cfg.InitialBalance,
		peakEquity:  b.cfg.InitialBalance,
		lastEquity:  b.cfg.InitialBalance,
	}

	for i := warmup; i < len(candles); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candle := candles[i]
		simTime = candle.Timestamp

		readings := provider.Readings(candles[:i+1], i)
		d := agg.Decide(market, readings, weights, b.engineCfg.Decision)

		switch d.Action {
		case models.ActionBuy:
			if sim.position == 0 && cooldowns.Check(market, models.SideBuy, d.Confidence).Allowed {
				account := models.Account{Balance: sim.balance}
				amount := sizer.Size(d, account, models.KellyStats{}, b.engineCfg.Learning.MinTradesRequired)
				if amount > 0 && candle.Close > 0 {
					sim.position = amount / candle.Close
					sim.entryPrice = candle.Close
					sim.entryTime = candle.Timestamp
					sim.entryAmount = amount
					sim.entryRegime = classifyRegime(candles, i, b.cfg)
					sim.balance -= amount
					cooldowns.OnTradeExecuted(market, models.SideBuy)
				}
			}
		case models.ActionSell:
			if sim.position > 0 && cooldowns.Check(market, models.SideSell, d.Confidence).Allowed {
				trade := sim.close(candle)
				result.Trades = append(result.Trades, trade)
				cooldowns.OnTradeExecuted(market, models.SideSell)
				cooldowns.OnTradeClosed(models.TradeOutcome{
					Market:                market,
					Side:                  models.SideBuy,
					RealizedReturnPercent: trade.ReturnPct,
					ClosedAt:              candle.Timestamp,
				})
			}
		}

		sim.markToMarket(candle.Close)
	}

	// Liquidate any open position at the final close so the balance
	// reflects everything the run did.
	if sim.position > 0 {
		last := candles[len(candles)-1]
		trade := sim.close(last)
		result.Trades = append(result.Trades, trade)
		sim.lastEquity = sim.balance
		result.Warnings = append(result.Warnings, "open position liquidated at end of series")
	}

	result.FinalBalance = sim.balance
	b.finalize(result, sim)
	return result, nil
}

// simState tracks the simulated account through the replay.
type simState struct {
	balance     float64
	position    float64
	entryPrice  float64
	entryTime   time.Time
	entryAmount float64
	entryRegime models.MarketCondition

	peakEquity    float64
	maxDrawdown   float64
	lastEquity    float64
	periodReturns []float64
}

func (s *simState) close(candle models.Candle) BacktestTrade {
	proceeds := s.position * candle.Close
	returnPct := (candle.Close - s.entryPrice) / s.entryPrice * 100
	trade := BacktestTrade{
		Side:       models.SideSell,
		EntryTime:  s.entryTime,
		ExitTime:   candle.Timestamp,
		EntryPrice: s.entryPrice,
		ExitPrice:  candle.Close,
		Amount:     s.entryAmount,
		ReturnPct:  returnPct,
		Regime:     s.entryRegime,
	}
	s.balance += proceeds
	s.position = 0
	return trade
}

// markToMarket records the per-candle equity return and drawdown.
func (s *simState) markToMarket(closePrice float64) {
	equity := s.balance + s.position*closePrice
	if s.lastEquity > 0 {
		s.periodReturns = append(s.periodReturns, (equity-s.lastEquity)/s.lastEquity)
	}
	s.lastEquity = equity
	if equity > s.peakEquity {
		s.peakEquity = equity
	}
	if s.peakEquity > 0 {
		dd := (s.peakEquity - equity) / s.peakEquity
		if dd > s.maxDrawdown {
			s.maxDrawdown = dd
		}
	}
}

func (b *Backtester) finalize(result *BacktestResult, sim *simState) {
	perf := &result.Performance
	perf.TotalTrades = len(result.Trades)
	perf.TotalReturnPercent = (sim.lastEquity - b.cfg.InitialBalance) / b.cfg.InitialBalance * 100
	perf.MaxDrawdownPercent = sim.maxDrawdown * 100

	var wins int
	for _, t := range result.Trades {
		if t.ReturnPct > 0 {
			wins++
		}
	}
	if perf.TotalTrades > 0 {
		perf.WinRatePercent = float64(wins) / float64(perf.TotalTrades) * 100
	}
	perf.SharpeRatio = sharpe(sim.periodReturns, b.cfg.PeriodsPerYear)

	result.Bull = regimeStats(result.Trades, models.MarketBull)
	result.Bear = regimeStats(result.Trades, models.MarketBear)
	result.Sideways = regimeStats(result.Trades, models.MarketSideways)
}

// classifyRegime buckets the market by the trailing-window % change of
// the close price. It only labels trades for the breakdown report;
// trading logic never reads it.
func classifyRegime(candles []models.Candle, i int, cfg config.BacktestConfig) models.MarketCondition {
	w := cfg.RegimeWindow
	if i < w || candles[i-w].Close == 0 {
		return models.MarketSideways
	}
	change := (candles[i].Close - candles[i-w].Close) / candles[i-w].Close * 100
	switch {
	case change >= cfg.RegimeThresholdPct:
		return models.MarketBull
	case change <= -cfg.RegimeThresholdPct:
		return models.MarketBear
	default:
		return models.MarketSideways
	}
}

func regimeStats(trades []BacktestTrade, regime models.MarketCondition) RegimeStats {
	var stats RegimeStats
	var wins int
	var sum float64
	for _, t := range trades {
		if t.Regime != regime {
			continue
		}
		stats.Trades++
		sum += t.ReturnPct
		if t.ReturnPct > 0 {
			wins++
		}
	}
	if stats.Trades > 0 {
		stats.WinRatePercent = float64(wins) / float64(stats.Trades) * 100
		stats.AvgReturnPercent = sum / float64(stats.Trades)
	}
	return stats
}

func sharpe(returns []float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(returns)-1))
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(float64(periodsPerYear))
}
