// Package performance summarises realized trading results.
package performance

import (
	"math"
	"sort"
	"time"

	"upbit-trader/internal/models"
)

// Summary aggregates closed trade outcomes. All return figures are
// percentages; ProfitFactor is gross wins over gross losses.
type Summary struct {
	TotalTrades    int
	Wins           int
	Losses         int
	WinRate        float64
	AvgReturnPct   float64
	TotalReturnPct float64
	BestTradePct   float64
	WorstTradePct  float64
	ProfitFactor   float64
	AvgHold        time.Duration

	// ByMarket breaks the summary down per market, sorted by market name.
	ByMarket []MarketSummary
}

// MarketSummary is the per-market slice of a Summary.
type MarketSummary struct {
	Market       string
	Trades       int
	Wins         int
	WinRate      float64
	AvgReturnPct float64
}

// Summarize computes a Summary from closed outcomes. A trade counts as
// a win when its return exceeds winThreshold (usually zero). An empty
// input yields a zero Summary.
func Summarize(outcomes []models.TradeOutcome, winThreshold float64) Summary {
	var s Summary
	if len(outcomes) == 0 {
		return s
	}

	var grossWin, grossLoss, holdTotal float64
	perMarket := make(map[string]*MarketSummary)
	s.BestTradePct = math.Inf(-1)
	s.WorstTradePct = math.Inf(1)

	for _, o := range outcomes {
		s.TotalTrades++
		r := o.RealizedReturnPercent
		s.TotalReturnPct += r
		holdTotal += o.HoldingDuration.Seconds()

		m := perMarket[o.Market]
		if m == nil {
			m = &MarketSummary{Market: o.Market}
			perMarket[o.Market] = m
		}
		m.Trades++
		m.AvgReturnPct += r

		if o.Win(winThreshold) {
			s.Wins++
			m.Wins++
			grossWin += r
		} else {
			s.Losses++
			grossLoss += -r
		}
		if r > s.BestTradePct {
			s.BestTradePct = r
		}
		if r < s.WorstTradePct {
			s.WorstTradePct = r
		}
	}

	s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	s.AvgReturnPct = s.TotalReturnPct / float64(s.TotalTrades)
	s.AvgHold = time.Duration(holdTotal/float64(s.TotalTrades)) * time.Second
	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		s.ProfitFactor = math.Inf(1)
	}

	s.ByMarket = make([]MarketSummary, 0, len(perMarket))
	for _, m := range perMarket {
		m.WinRate = float64(m.Wins) / float64(m.Trades)
		m.AvgReturnPct /= float64(m.Trades)
		s.ByMarket = append(s.ByMarket, *m)
	}
	sort.Slice(s.ByMarket, func(i, j int) bool {
		return s.ByMarket[i].Market < s.ByMarket[j].Market
	})

	return s
}
