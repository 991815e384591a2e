// Package models provides domain models for the trading engine.
package models

import (
	"time"
)

// Side represents the side of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// MarketCondition classifies the prevailing market regime.
type MarketCondition string

const (
	MarketBull     MarketCondition = "BULL"
	MarketBear     MarketCondition = "BEAR"
	MarketSideways MarketCondition = "SIDEWAYS"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Account represents the funds available to the position sizer.
type Account struct {
	Balance         float64 // quote-currency cash available for buys
	Holdings        float64 // base-currency quantity available for sells
	MaxPositionSize float64 // hard cap on a single position, in quote currency
}

// Position represents a current portfolio holding.
type Position struct {
	Market       string
	Quantity     float64
	AvgBuyPrice  float64
	CurrentPrice float64
	Value        float64
	Weight       float64 // fraction of total portfolio value
}

// Portfolio is the set of current holdings handed to the risk analyzer.
type Portfolio struct {
	Positions []Position
}

// TotalValue returns the summed value of all positions.
func (p Portfolio) TotalValue() float64 {
	var total float64
	for _, pos := range p.Positions {
		total += pos.Value
	}
	return total
}
