// Package trading wires the decision, sizing, learning and cooldown
// components into the engine facade the execution layer talks to.
package trading

import (
	"fmt"

	"github.com/rs/zerolog"

	"upbit-trader/internal/config"
	"upbit-trader/internal/cooldown"
	"upbit-trader/internal/decision"
	"upbit-trader/internal/learning"
	"upbit-trader/internal/models"
	"upbit-trader/internal/sizing"
)

// Engine is the live trading core. Decisions and sizing are pure
// in-memory computation; state mutation happens only on trade
// executions and closed outcomes.
type Engine struct {
	cfg        config.EngineConfig
	aggregator *decision.Aggregator
	sizer      *sizing.Sizer
	learner    *learning.Learner
	cooldowns  *cooldown.Manager
	logger     zerolog.Logger
}

// NewEngine builds an engine from the given configuration. Invalid
// configuration is rejected before anything is constructed.
func NewEngine(cfg config.EngineConfig, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return &Engine{
		cfg:        cfg,
		aggregator: decision.NewAggregator(logger),
		sizer:      sizing.NewSizer(cfg.Sizing, logger),
		learner:    learning.NewLearner(cfg.Learning, models.DefaultIndicatorWeights(), logger),
		cooldowns:  cooldown.NewManager(cfg.Cooldown, logger),
		logger:     logger.With().Str("component", "engine").Logger(),
	}, nil
}

// Decide runs one analysis tick for a market: current learned weights
// applied to the given readings.
func (e *Engine) Decide(market string, readings []models.IndicatorReading) models.Decision {
	weights := e.learner.WeightsFor(market)
	d := e.aggregator.Decide(market, readings, weights, e.cfg.Decision)
	e.logger.Info().
		Str("market", market).
		Str("action", string(d.Action)).
		Float64("confidence", d.Confidence).
		Float64("buy_score", d.BuyScore).
		Float64("sell_score", d.SellScore).
		Msg("decision")
	return d
}

// ProposeSize converts a decision into a trade amount using the given
// performance statistics.
func (e *Engine) ProposeSize(d models.Decision, account models.Account, stats models.KellyStats) float64 {
	return e.sizer.Size(d, account, stats, e.cfg.Learning.MinTradesRequired)
}

// SizingStats returns the Kelly inputs learned for a market's scope.
func (e *Engine) SizingStats(market string) models.KellyStats {
	return e.learner.SizingStats(market)
}

// CheckCooldown reports whether a trade side is currently permitted
// for a market. Confidence above the configured override bypasses an
// active window.
func (e *Engine) CheckCooldown(market string, side models.Side, confidence float64) cooldown.Status {
	return e.cooldowns.Check(market, side, confidence)
}

// NoteTradeExecuted starts the cooldown window after the execution
// layer confirms a fill.
func (e *Engine) NoteTradeExecuted(market string, side models.Side) {
	e.cooldowns.OnTradeExecuted(market, side)
}

// RecordTradeOutcome feeds a closed trade into weight learning and
// cooldown adaptation. This is the only path that mutates engine
// state; failed analysis ticks never reach it.
func (e *Engine) RecordTradeOutcome(outcome models.TradeOutcome) {
	e.learner.RecordOutcome(outcome)
	e.cooldowns.OnTradeClosed(outcome)
}

// WeightLearningInfo returns the read-only learning state for a
// market's scope, for display.
func (e *Engine) WeightLearningInfo(market string) learning.WeightLearningState {
	return e.learner.Info(market)
}

// IndicatorReport returns per-indicator performance pooled across all
// markets, best first.
func (e *Engine) IndicatorReport() []learning.IndicatorPerformance {
	return e.learner.Report()
}

// CooldownSnapshot returns a copy of a market's cooldown state.
func (e *Engine) CooldownSnapshot(market string) (cooldown.State, bool) {
	return e.cooldowns.Snapshot(market)
}

// ResetCooldown clears a market's cooldown state.
func (e *Engine) ResetCooldown(market string) {
	e.cooldowns.Reset(market)
}

// Weights returns the weights currently applied for a market.
func (e *Engine) Weights(market string) models.IndicatorWeights {
	return e.learner.WeightsFor(market)
}
