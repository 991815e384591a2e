package performance

import (
	"math"
	"testing"
	"time"

	"upbit-trader/internal/models"
)

func outcome(market string, returnPct float64, hold time.Duration) models.TradeOutcome {
	return models.TradeOutcome{
		Market:                market,
		Side:                  models.SideBuy,
		RealizedReturnPercent: returnPct,
		HoldingDuration:       hold,
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, 0)
	if s.TotalTrades != 0 || s.WinRate != 0 || len(s.ByMarket) != 0 {
		t.Errorf("empty input should give zero summary, got %+v", s)
	}
}

func TestSummarizeBasic(t *testing.T) {
	outcomes := []models.TradeOutcome{
		outcome("KRW-BTC", 4, 2*time.Hour),
		outcome("KRW-BTC", -2, 4*time.Hour),
		outcome("KRW-BTC", 1, 6*time.Hour),
		outcome("KRW-ETH", -1, 4*time.Hour),
	}

	s := Summarize(outcomes, 0)

	if s.TotalTrades != 4 || s.Wins != 2 || s.Losses != 2 {
		t.Fatalf("counts = %d/%d/%d, want 4/2/2", s.TotalTrades, s.Wins, s.Losses)
	}
	if s.WinRate != 0.5 {
		t.Errorf("win rate = %v, want 0.5", s.WinRate)
	}
	if s.AvgReturnPct != 0.5 {
		t.Errorf("avg return = %v, want 0.5", s.AvgReturnPct)
	}
	if s.TotalReturnPct != 2 {
		t.Errorf("total return = %v, want 2", s.TotalReturnPct)
	}
	if s.BestTradePct != 4 || s.WorstTradePct != -2 {
		t.Errorf("best/worst = %v/%v, want 4/-2", s.BestTradePct, s.WorstTradePct)
	}
	// gross wins 5, gross losses 3
	if math.Abs(s.ProfitFactor-5.0/3.0) > 1e-9 {
		t.Errorf("profit factor = %v, want %v", s.ProfitFactor, 5.0/3.0)
	}
	if s.AvgHold != 4*time.Hour {
		t.Errorf("avg hold = %v, want 4h", s.AvgHold)
	}
}

func TestSummarizePerMarket(t *testing.T) {
	outcomes := []models.TradeOutcome{
		outcome("KRW-ETH", -1, time.Hour),
		outcome("KRW-BTC", 4, time.Hour),
		outcome("KRW-BTC", -2, time.Hour),
	}

	s := Summarize(outcomes, 0)

	if len(s.ByMarket) != 2 {
		t.Fatalf("markets = %d, want 2", len(s.ByMarket))
	}
	// Sorted by market name.
	if s.ByMarket[0].Market != "KRW-BTC" || s.ByMarket[1].Market != "KRW-ETH" {
		t.Fatalf("market order = %s, %s", s.ByMarket[0].Market, s.ByMarket[1].Market)
	}
	btc := s.ByMarket[0]
	if btc.Trades != 2 || btc.Wins != 1 || btc.WinRate != 0.5 || btc.AvgReturnPct != 1 {
		t.Errorf("BTC summary = %+v", btc)
	}
}

func TestSummarizeAllWinsHasInfiniteProfitFactor(t *testing.T) {
	outcomes := []models.TradeOutcome{
		outcome("KRW-BTC", 2, time.Hour),
		outcome("KRW-BTC", 3, time.Hour),
	}
	s := Summarize(outcomes, 0)
	if !math.IsInf(s.ProfitFactor, 1) {
		t.Errorf("profit factor = %v, want +Inf", s.ProfitFactor)
	}
}

func TestSummarizeWinThreshold(t *testing.T) {
	outcomes := []models.TradeOutcome{
		outcome("KRW-BTC", 0.5, time.Hour),
		outcome("KRW-BTC", 2, time.Hour),
	}
	s := Summarize(outcomes, 1.0)
	if s.Wins != 1 {
		t.Errorf("wins above threshold 1.0 = %d, want 1", s.Wins)
	}
}
