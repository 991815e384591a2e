package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"upbit-trader/internal/errors"
	"upbit-trader/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func candleSeries(n int, start float64) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	price := start
	for i := range out {
		out[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price, High: price * 1.01, Low: price * 0.99, Close: price,
			Volume: 100,
		}
		price *= 1.01
	}
	return out
}

func TestSaveAndGetCandles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	candles := candleSeries(10, 100)

	if err := s.SaveCandles(ctx, "KRW-BTC", candles); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetCandles(ctx, "KRW-BTC", candles[0].Timestamp, candles[9].Timestamp)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d candles, want 10", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Error("candles not in chronological order")
		}
	}
}

func TestSaveCandlesUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	candles := candleSeries(5, 100)

	if err := s.SaveCandles(ctx, "KRW-BTC", candles); err != nil {
		t.Fatal(err)
	}
	candles[2].Close = 999
	if err := s.SaveCandles(ctx, "KRW-BTC", candles); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetCandles(ctx, "KRW-BTC", candles[0].Timestamp, candles[4].Timestamp)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("duplicate timestamps should upsert, got %d rows", len(got))
	}
	if got[2].Close != 999 {
		t.Errorf("updated close = %f, want 999", got[2].Close)
	}
}

func TestSaveAndGetOutcomes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	outcome := models.TradeOutcome{
		Market:                "KRW-BTC",
		Side:                  models.SideBuy,
		EntryPrice:            50000000,
		ExitPrice:             51000000,
		RealizedReturnPercent: 2.0,
		HoldingDuration:       3 * time.Hour,
		ClosedAt:              time.Date(2024, 2, 1, 15, 0, 0, 0, time.UTC),
		IndicatorSnapshot:     map[string]float64{"rsi": 0.7, "macd": 0.3},
	}
	if err := s.SaveOutcome(ctx, outcome); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetOutcomes(ctx, "KRW-BTC")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(got))
	}
	o := got[0]
	if o.Side != models.SideBuy || o.RealizedReturnPercent != 2.0 {
		t.Errorf("outcome = %+v", o)
	}
	if o.HoldingDuration != 3*time.Hour {
		t.Errorf("holding duration = %v, want 3h", o.HoldingDuration)
	}
	if o.IndicatorSnapshot["rsi"] != 0.7 {
		t.Errorf("snapshot = %+v", o.IndicatorSnapshot)
	}
}

func TestGetAllOutcomesChronological(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	for i, market := range []string{"KRW-ETH", "KRW-BTC", "KRW-XRP"} {
		if err := s.SaveOutcome(ctx, models.TradeOutcome{
			Market:   market,
			Side:     models.SideBuy,
			ClosedAt: base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.GetAllOutcomes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].ClosedAt.Before(got[i-1].ClosedAt) {
			t.Error("outcomes not in replay order")
		}
	}
}

func TestGetDailyReturns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveCandles(ctx, "KRW-BTC", candleSeries(31, 100)); err != nil {
		t.Fatal(err)
	}

	returns, err := s.GetDailyReturns(ctx, "KRW-BTC", 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(returns) != 30 {
		t.Fatalf("got %d returns, want 30", len(returns))
	}
	for _, r := range returns {
		if math.Abs(r-1.0) > 1e-6 {
			t.Errorf("return = %f, want 1.0 for the 1%% series", r)
		}
	}
}

func TestWeightSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	weights := models.IndicatorWeights{"rsi": 1.25, "macd": 0.9}
	if err := s.SaveWeightSnapshot(ctx, "KRW-BTC", weights); err != nil {
		t.Fatal(err)
	}

	got, _, err := s.GetLatestWeightSnapshot(ctx, "KRW-BTC")
	if err != nil {
		t.Fatal(err)
	}
	if got["rsi"] != 1.25 || got["macd"] != 0.9 {
		t.Errorf("weights = %+v", got)
	}
}

func TestMissingWeightSnapshot(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.GetLatestWeightSnapshot(context.Background(), "KRW-NOPE")
	if !errors.Is(err, errors.ErrDataNotFound) {
		t.Errorf("expected ErrDataNotFound, got %v", err)
	}
}
