// Package store provides data persistence implementations.
package store

import (
	"context"
	"time"

	"upbit-trader/internal/models"
)

// DataStore is the persistence boundary the CLI layer talks to. The
// engine core never touches it; outcomes are replayed through the
// engine at startup instead.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, market string, candles []models.Candle) error
	GetCandles(ctx context.Context, market string, from, to time.Time) ([]models.Candle, error)

	// Trade outcomes
	SaveOutcome(ctx context.Context, outcome models.TradeOutcome) error
	GetOutcomes(ctx context.Context, market string) ([]models.TradeOutcome, error)
	GetAllOutcomes(ctx context.Context) ([]models.TradeOutcome, error)

	// Daily return history for risk analysis
	GetDailyReturns(ctx context.Context, market string, days int) ([]float64, error)

	// Weight snapshots for display and audit
	SaveWeightSnapshot(ctx context.Context, market string, weights models.IndicatorWeights) error
	GetLatestWeightSnapshot(ctx context.Context, market string) (models.IndicatorWeights, time.Time, error)

	Close() error
}
