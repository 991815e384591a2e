package cooldown

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"upbit-trader/internal/config"
	"upbit-trader/internal/models"
)

func testCfg() config.CooldownConfig {
	return config.CooldownConfig{
		BuyMinutes:         30,
		SellMinutes:        20,
		Learning:           false,
		MinMinutes:         5,
		MaxMinutes:         180,
		ConfidenceOverride: 0.85,
	}
}

func newTestManager(cfg config.CooldownConfig) (*Manager, *time.Time) {
	m := NewManager(cfg, zerolog.Nop())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestUnknownMarketFailsOpen(t *testing.T) {
	m, _ := newTestManager(testCfg())

	st := m.CheckAllowed("KRW-BTC", models.SideBuy)
	if !st.Allowed || st.RemainingMinutes != 0 {
		t.Errorf("unknown market must be allowed with zero remaining, got %+v", st)
	}
}

func TestBuyCooldownBlocksOnlyBuySide(t *testing.T) {
	m, _ := newTestManager(testCfg())

	m.OnTradeExecuted("KRW-BTC", models.SideBuy)

	if st := m.CheckAllowed("KRW-BTC", models.SideBuy); st.Allowed {
		t.Error("BUY should be blocked after a buy")
	} else if st.RemainingMinutes <= 0 {
		t.Errorf("remaining = %d, want > 0", st.RemainingMinutes)
	}
	if st := m.CheckAllowed("KRW-BTC", models.SideSell); !st.Allowed {
		t.Error("SELL should be unaffected by a buy cooldown")
	}
	if st := m.CheckAllowed("KRW-ETH", models.SideBuy); !st.Allowed {
		t.Error("other markets should be unaffected")
	}
}

func TestCooldownExpires(t *testing.T) {
	m, now := newTestManager(testCfg())

	m.OnTradeExecuted("KRW-BTC", models.SideBuy)
	*now = now.Add(31 * time.Minute)

	if st := m.CheckAllowed("KRW-BTC", models.SideBuy); !st.Allowed {
		t.Errorf("cooldown should have expired, got %+v", st)
	}
}

func TestEndTimesNeverMoveBackwards(t *testing.T) {
	cfg := testCfg()
	cfg.Learning = true
	m, now := newTestManager(cfg)

	m.OnTradeExecuted("KRW-BTC", models.SideBuy)
	first, _ := m.Snapshot("KRW-BTC")

	// A streak of losses, then the dynamic duration is shortened by a
	// profitable calm stretch; re-executing immediately must not pull
	// the end time earlier.
	m.OnTradeClosed(models.TradeOutcome{Market: "KRW-BTC", RealizedReturnPercent: 1.0})
	m.OnTradeClosed(models.TradeOutcome{Market: "KRW-BTC", RealizedReturnPercent: 1.1})
	m.OnTradeExecuted("KRW-BTC", models.SideBuy)

	second, _ := m.Snapshot("KRW-BTC")
	if second.BuyBlockedUntil.Before(first.BuyBlockedUntil) {
		t.Errorf("end time moved backwards: %v -> %v", first.BuyBlockedUntil, second.BuyBlockedUntil)
	}
	_ = now
}

func TestConfidenceOverrideBypassesCooldown(t *testing.T) {
	m, _ := newTestManager(testCfg())

	m.OnTradeExecuted("KRW-BTC", models.SideBuy)

	if st := m.Check("KRW-BTC", models.SideBuy, 0.9); !st.Allowed || !st.Overridden {
		t.Errorf("confidence 0.9 should override, got %+v", st)
	}
	if st := m.Check("KRW-BTC", models.SideBuy, 0.5); st.Allowed {
		t.Errorf("confidence 0.5 should not override, got %+v", st)
	}
}

func TestOverrideDisabledWhenZero(t *testing.T) {
	cfg := testCfg()
	cfg.ConfidenceOverride = 0
	m, _ := newTestManager(cfg)

	m.OnTradeExecuted("KRW-BTC", models.SideBuy)
	if st := m.Check("KRW-BTC", models.SideBuy, 1.0); st.Allowed {
		t.Errorf("override disabled, full confidence must still block, got %+v", st)
	}
}

func TestConsecutiveLossesStretchCooldown(t *testing.T) {
	cfg := testCfg()
	cfg.Learning = true
	m, _ := newTestManager(cfg)

	for i := 0; i < 5; i++ {
		m.OnTradeClosed(models.TradeOutcome{Market: "KRW-BTC", RealizedReturnPercent: -2.0})
	}

	st, ok := m.Snapshot("KRW-BTC")
	if !ok {
		t.Fatal("state should exist")
	}
	if st.ConsecutiveLosses != 5 {
		t.Errorf("consecutive losses = %d, want 5", st.ConsecutiveLosses)
	}
	// 30 * (1 + 0.1*5) = 45
	if st.DynamicBuyMinutes != 45 {
		t.Errorf("dynamic buy minutes = %d, want 45", st.DynamicBuyMinutes)
	}
}

func TestLossStretchIsCapped(t *testing.T) {
	cfg := testCfg()
	cfg.Learning = true
	m, _ := newTestManager(cfg)

	for i := 0; i < 50; i++ {
		m.OnTradeClosed(models.TradeOutcome{Market: "KRW-BTC", RealizedReturnPercent: -2.0})
	}

	st, _ := m.Snapshot("KRW-BTC")
	// Stretch caps at 2x: 30*2 = 60, inside [5, 180].
	if st.DynamicBuyMinutes != 60 {
		t.Errorf("dynamic buy minutes = %d, want 60 (capped)", st.DynamicBuyMinutes)
	}
}

func TestCalmProfitableStretchShrinksCooldown(t *testing.T) {
	cfg := testCfg()
	cfg.Learning = true
	m, _ := newTestManager(cfg)

	// Low-volatility profitable returns.
	for _, r := range []float64{1.0, 1.2, 0.9, 1.1} {
		m.OnTradeClosed(models.TradeOutcome{Market: "KRW-BTC", RealizedReturnPercent: r})
	}

	st, _ := m.Snapshot("KRW-BTC")
	// 30 * 0.8 = 24
	if st.DynamicBuyMinutes != 24 {
		t.Errorf("dynamic buy minutes = %d, want 24", st.DynamicBuyMinutes)
	}
	if st.ConsecutiveLosses != 0 {
		t.Errorf("consecutive losses = %d, want 0", st.ConsecutiveLosses)
	}
}

func TestDynamicBoundedByRange(t *testing.T) {
	cfg := testCfg()
	cfg.Learning = true
	cfg.BuyMinutes = 4
	cfg.MinMinutes = 10
	cfg.MaxMinutes = 50
	m, _ := newTestManager(cfg)

	for _, r := range []float64{1.0, 1.1, 0.9} {
		m.OnTradeClosed(models.TradeOutcome{Market: "KRW-BTC", RealizedReturnPercent: r})
	}

	st, _ := m.Snapshot("KRW-BTC")
	if st.DynamicBuyMinutes < 10 || st.DynamicBuyMinutes > 50 {
		t.Errorf("dynamic minutes %d outside [10, 50]", st.DynamicBuyMinutes)
	}
}

func TestWinResetsLossStreak(t *testing.T) {
	cfg := testCfg()
	cfg.Learning = true
	m, _ := newTestManager(cfg)

	m.OnTradeClosed(models.TradeOutcome{Market: "KRW-BTC", RealizedReturnPercent: -1.0})
	m.OnTradeClosed(models.TradeOutcome{Market: "KRW-BTC", RealizedReturnPercent: -1.0})
	m.OnTradeClosed(models.TradeOutcome{Market: "KRW-BTC", RealizedReturnPercent: 3.0})

	st, _ := m.Snapshot("KRW-BTC")
	if st.ConsecutiveLosses != 0 {
		t.Errorf("win should reset streak, got %d", st.ConsecutiveLosses)
	}
}

func TestClosedOutcomeStartsCooldownForItsSide(t *testing.T) {
	m, _ := newTestManager(testCfg())

	m.OnTradeClosed(models.TradeOutcome{
		Market:                "KRW-BTC",
		Side:                  models.SideBuy,
		RealizedReturnPercent: 2.0,
	})

	if st := m.CheckAllowed("KRW-BTC", models.SideBuy); st.Allowed {
		t.Error("BUY should be blocked after a closed buy outcome")
	} else if st.RemainingMinutes <= 0 {
		t.Errorf("remaining = %d, want > 0", st.RemainingMinutes)
	}
	if st := m.CheckAllowed("KRW-BTC", models.SideSell); !st.Allowed {
		t.Error("SELL on the same market should be unaffected")
	}
	if st := m.CheckAllowed("KRW-ETH", models.SideBuy); !st.Allowed {
		t.Error("other markets should be unaffected")
	}
}

func TestReset(t *testing.T) {
	m, _ := newTestManager(testCfg())

	m.OnTradeExecuted("KRW-BTC", models.SideBuy)
	m.Reset("KRW-BTC")

	if st := m.CheckAllowed("KRW-BTC", models.SideBuy); !st.Allowed {
		t.Error("reset should clear the cooldown")
	}
	if _, ok := m.Snapshot("KRW-BTC"); ok {
		t.Error("reset should drop the state entirely")
	}
}

func TestDynamicDurationUsedOnNextTrade(t *testing.T) {
	cfg := testCfg()
	cfg.Learning = true
	m, now := newTestManager(cfg)

	for i := 0; i < 5; i++ {
		m.OnTradeClosed(models.TradeOutcome{Market: "KRW-BTC", RealizedReturnPercent: -2.0})
	}
	m.OnTradeExecuted("KRW-BTC", models.SideBuy)

	// Dynamic duration is 45 minutes; still blocked after 40.
	*now = now.Add(40 * time.Minute)
	if st := m.CheckAllowed("KRW-BTC", models.SideBuy); st.Allowed {
		t.Error("expected block to last the stretched 45 minutes")
	}
	*now = now.Add(6 * time.Minute)
	if st := m.CheckAllowed("KRW-BTC", models.SideBuy); !st.Allowed {
		t.Error("expected unblock after the stretched window")
	}
}
