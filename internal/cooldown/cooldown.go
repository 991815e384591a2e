// Package cooldown gates trade frequency per market. Each market
// carries two independent windows, one for buys and one for sells,
// whose durations adapt to recent outcomes when learning is enabled.
package cooldown

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"upbit-trader/internal/config"
	"upbit-trader/internal/models"
)

const (
	// volatilityWindow is how many recent returns feed the rolling
	// stdev used to shrink cooldowns in calm markets.
	volatilityWindow = 10
	// lossScaleStep stretches the cooldown per consecutive loss.
	lossScaleStep = 0.1
	// lossScaleCap bounds the stretch at 2x the base duration.
	lossScaleCap = 2.0
	// calmVolatilityPct is the stdev (in return %) below which the
	// market counts as calm.
	calmVolatilityPct = 2.0
	// calmShrink shrinks the cooldown in calm, profitable stretches.
	calmShrink = 0.8
)

// State is the cooldown bookkeeping for one market.
type State struct {
	Market             string
	BuyBlockedUntil    time.Time
	SellBlockedUntil   time.Time
	DynamicBuyMinutes  int
	DynamicSellMinutes int
	ConsecutiveLosses  int
	RecentVolatility   float64

	recentReturns []float64
}

// Status answers a cooldown query.
type Status struct {
	Allowed          bool
	RemainingMinutes int
	Overridden       bool // allowed only because of a confidence override
}

// Manager owns all per-market cooldown state. Mutations are serialized
// under a single lock; the hot path is a few map lookups.
type Manager struct {
	mu     sync.Mutex
	cfg    config.CooldownConfig
	states map[string]*State
	now    func() time.Time
	logger zerolog.Logger
}

// NewManager creates a cooldown manager.
func NewManager(cfg config.CooldownConfig, logger zerolog.Logger) *Manager {
	return NewManagerWithClock(cfg, time.Now, logger)
}

// NewManagerWithClock creates a cooldown manager with a caller-supplied
// clock. Backtests drive it with simulated candle time.
func NewManagerWithClock(cfg config.CooldownConfig, clock func() time.Time, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		states: make(map[string]*State),
		now:    clock,
		logger: logger.With().Str("component", "cooldown").Logger(),
	}
}

// CheckAllowed reports whether a trade of the given side is currently
// permitted. Unknown markets are allowed with zero remaining: missing
// state must never block trading.
func (m *Manager) CheckAllowed(market string, side models.Side) Status {
	return m.Check(market, side, 0)
}

// Check is CheckAllowed with a confidence override: a decision at or
// above the configured override confidence bypasses an active
// cooldown. Zero confidence never overrides.
func (m *Manager) Check(market string, side models.Side, confidence float64) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[market]
	if !ok {
		return Status{Allowed: true}
	}

	until := st.BuyBlockedUntil
	if side == models.SideSell {
		until = st.SellBlockedUntil
	}

	now := m.now()
	if !now.Before(until) {
		return Status{Allowed: true}
	}

	if m.cfg.ConfidenceOverride > 0 && confidence >= m.cfg.ConfidenceOverride {
		m.logger.Info().
			Str("market", market).
			Str("side", string(side)).
			Float64("confidence", confidence).
			Msg("cooldown bypassed on high confidence")
		return Status{Allowed: true, Overridden: true}
	}

	remaining := int(math.Ceil(until.Sub(now).Minutes()))
	return Status{Allowed: false, RemainingMinutes: remaining}
}

// OnTradeExecuted starts the cooldown window for the traded side. End
// times never move backwards while a window is active.
func (m *Manager) OnTradeExecuted(market string, side models.Side) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startLocked(m.state(market), side)
}

func (m *Manager) startLocked(st *State, side models.Side) {
	m.startFromLocked(st, side, m.now())
}

func (m *Manager) startFromLocked(st *State, side models.Side, from time.Time) {
	until := from.Add(time.Duration(m.minutes(st, side)) * time.Minute)
	if side == models.SideBuy {
		if until.After(st.BuyBlockedUntil) {
			st.BuyBlockedUntil = until
		}
	} else {
		if until.After(st.SellBlockedUntil) {
			st.SellBlockedUntil = until
		}
	}
}

// OnTradeClosed feeds a realized outcome back into the loss streak and
// volatility tracking, recomputes the dynamic durations when learning
// is enabled, and starts the cooldown window for the closed side so a
// freshly closed trade cannot be re-entered immediately.
func (m *Manager) OnTradeClosed(outcome models.TradeOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(outcome.Market)
	if outcome.RealizedReturnPercent < 0 {
		st.ConsecutiveLosses++
	} else {
		st.ConsecutiveLosses = 0
	}

	st.recentReturns = append(st.recentReturns, outcome.RealizedReturnPercent)
	if len(st.recentReturns) > volatilityWindow {
		st.recentReturns = st.recentReturns[len(st.recentReturns)-volatilityWindow:]
	}
	st.RecentVolatility = stdev(st.recentReturns)

	if m.cfg.Learning {
		st.DynamicBuyMinutes = m.dynamicMinutes(st, m.cfg.BuyMinutes)
		st.DynamicSellMinutes = m.dynamicMinutes(st, m.cfg.SellMinutes)
		m.logger.Debug().
			Str("market", outcome.Market).
			Int("consecutive_losses", st.ConsecutiveLosses).
			Float64("volatility", st.RecentVolatility).
			Int("buy_minutes", st.DynamicBuyMinutes).
			Int("sell_minutes", st.DynamicSellMinutes).
			Msg("dynamic cooldown recomputed")
	}

	if outcome.Side != "" {
		// Replayed historical outcomes carry their own close time so
		// they produce already-expired windows instead of blocking now.
		at := outcome.ClosedAt
		if at.IsZero() {
			at = m.now()
		}
		m.startFromLocked(st, outcome.Side, at)
	}
}

// Reset clears all cooldown state for a market.
func (m *Manager) Reset(market string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, market)
}

// Snapshot returns a copy of a market's state for display, and false
// if the market has no state yet.
func (m *Manager) Snapshot(market string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[market]
	if !ok {
		return State{}, false
	}
	out := *st
	out.recentReturns = nil
	return out, true
}

// Markets returns the markets with active state.
func (m *Manager) Markets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.states))
	for market := range m.states {
		out = append(out, market)
	}
	return out
}

func (m *Manager) state(market string) *State {
	st, ok := m.states[market]
	if !ok {
		st = &State{Market: market}
		m.states[market] = st
	}
	return st
}

// minutes picks the active cooldown duration for a side: the learned
// dynamic value when present, the static configured value otherwise.
func (m *Manager) minutes(st *State, side models.Side) int {
	if side == models.SideBuy {
		if m.cfg.Learning && st.DynamicBuyMinutes > 0 {
			return st.DynamicBuyMinutes
		}
		return m.cfg.BuyMinutes
	}
	if m.cfg.Learning && st.DynamicSellMinutes > 0 {
		return st.DynamicSellMinutes
	}
	return m.cfg.SellMinutes
}

// dynamicMinutes stretches the base duration while losses pile up and
// shrinks it when the market is calm and the streak is clean, bounded
// to the configured range.
func (m *Manager) dynamicMinutes(st *State, base int) int {
	scale := 1 + lossScaleStep*float64(st.ConsecutiveLosses)
	if scale > lossScaleCap {
		scale = lossScaleCap
	}
	if st.ConsecutiveLosses == 0 && st.RecentVolatility > 0 && st.RecentVolatility < calmVolatilityPct {
		scale *= calmShrink
	}
	minutes := int(math.Round(float64(base) * scale))
	if minutes < m.cfg.MinMinutes {
		minutes = m.cfg.MinMinutes
	}
	if minutes > m.cfg.MaxMinutes {
		minutes = m.cfg.MaxMinutes
	}
	return minutes
}

func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
