// Package config provides configuration management for the trading engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"upbit-trader/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Trading  TradingConfig  `mapstructure:"trading"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogSettings    `mapstructure:"log"`
}

// TradingConfig holds trade-loop settings consumed by the CLI layer.
type TradingConfig struct {
	Markets         []string `mapstructure:"markets"`
	IntervalSeconds int      `mapstructure:"interval_seconds"`
}

// EngineConfig bundles the per-invocation engine configuration. The
// engine treats it as immutable; the CLI builds one per command.
type EngineConfig struct {
	Decision DecisionConfig `mapstructure:"decision"`
	Sizing   SizingConfig   `mapstructure:"sizing"`
	Cooldown CooldownConfig `mapstructure:"cooldown"`
	Learning LearningConfig `mapstructure:"learning"`
}

// DecisionConfig controls the decision aggregator.
type DecisionConfig struct {
	// MarginThreshold is the minimum lead of the dominant side as a
	// fraction of combined score. Below it the decision is HOLD.
	MarginThreshold float64 `mapstructure:"margin_threshold"`
	// TopReasons is how many contributing indicators to report.
	TopReasons int `mapstructure:"top_reasons"`
}

// SizingConfig controls the position sizer.
type SizingConfig struct {
	BuyRatio         float64 `mapstructure:"buy_ratio"`  // fraction of balance per buy
	SellRatio        float64 `mapstructure:"sell_ratio"` // fraction of holdings per sell
	MaxKellyFraction float64 `mapstructure:"max_kelly_fraction"`
	UseKelly         bool    `mapstructure:"use_kelly"`
	// Confidence multiplier bounds: a decision at confidence 0.5 sizes
	// at MinConfidenceMult, at confidence 1.0 at MaxConfidenceMult.
	MinConfidenceMult float64 `mapstructure:"min_confidence_mult"`
	MaxConfidenceMult float64 `mapstructure:"max_confidence_mult"`
}

// CooldownConfig controls the per-market trade cooldown windows.
type CooldownConfig struct {
	BuyMinutes  int  `mapstructure:"buy_minutes"`
	SellMinutes int  `mapstructure:"sell_minutes"`
	Learning    bool `mapstructure:"learning"`
	MinMinutes  int  `mapstructure:"min_minutes"`
	MaxMinutes  int  `mapstructure:"max_minutes"`
	// ConfidenceOverride lets unusually strong signals bypass the
	// cooldown gate entirely. Zero disables the override.
	ConfidenceOverride float64 `mapstructure:"confidence_override"`
}

// LearningMode selects the granularity at which weights are learned.
type LearningMode string

const (
	LearnIndividual LearningMode = "INDIVIDUAL"
	LearnCategory   LearningMode = "CATEGORY"
	LearnGlobal     LearningMode = "GLOBAL"
)

// LearningConfig controls the adaptive weight learner.
type LearningConfig struct {
	Mode              LearningMode `mapstructure:"mode"`
	MinTradesRequired int          `mapstructure:"min_trades_required"`
	WinThreshold      float64      `mapstructure:"win_threshold"` // return % above which a trade is a win
	// Categories maps a category name to the markets it pools, used
	// in CATEGORY mode.
	Categories map[string][]string `mapstructure:"categories"`
}

// BacktestConfig controls the backtest engine.
type BacktestConfig struct {
	InitialBalance float64 `mapstructure:"initial_balance"`
	WarmupCandles  int     `mapstructure:"warmup_candles"`
	// PeriodsPerYear annualizes the Sharpe ratio; 365 for daily candles.
	PeriodsPerYear int `mapstructure:"periods_per_year"`
	// Regime classification: trailing window length and the % change
	// beyond which the window counts as bull (positive) or bear.
	RegimeWindow       int     `mapstructure:"regime_window"`
	RegimeThresholdPct float64 `mapstructure:"regime_threshold_pct"`
}

// RiskMethodology selects how VaR is computed.
type RiskMethodology string

const (
	RiskHistorical RiskMethodology = "historical"
	RiskParametric RiskMethodology = "parametric"
)

// RiskConfig controls the risk analyzer.
type RiskConfig struct {
	Methodology RiskMethodology `mapstructure:"methodology"`
	MinHistory  int             `mapstructure:"min_history"`
	// StressShocksPct are market-wide shock scenarios, e.g. -20, -40, -60.
	StressShocksPct []float64 `mapstructure:"stress_shocks_pct"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogSettings holds logging settings mirrored into logging.LogConfig.
type LogSettings struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/upbit-trader"
	}
	return filepath.Join(home, ".config", "upbit-trader")
}

// Default returns the balanced preset with ambient defaults filled in.
func Default() *Config {
	return &Config{
		Trading: TradingConfig{
			Markets:         []string{"KRW-BTC", "KRW-ETH"},
			IntervalSeconds: 30,
		},
		Engine:   Preset(PresetBalanced),
		Backtest: DefaultBacktestConfig(),
		Risk:     DefaultRiskConfig(),
		Store: StoreConfig{
			Path: filepath.Join(DefaultConfigDir(), "trader.db"),
		},
		Log: LogSettings{Level: "info", Console: true, File: true},
	}
}

// DefaultBacktestConfig returns backtest defaults for daily candles.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		InitialBalance:     1_000_000,
		WarmupCandles:      20,
		PeriodsPerYear:     365,
		RegimeWindow:       7,
		RegimeThresholdPct: 10,
	}
}

// DefaultRiskConfig returns risk analyzer defaults.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		Methodology:     RiskHistorical,
		MinHistory:      30,
		StressShocksPct: []float64{-20, -40, -60},
	}
}

// Load loads configuration from the specified directory. If configDir
// is empty, uses the default config directory. A missing config file
// yields the defaults.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("UPBIT_TRADER_DB"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("UPBIT_TRADER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate validates the configuration. Invalid configuration is the
// one error category that fails fast.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Backtest.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if c.Trading.IntervalSeconds <= 0 {
		return errors.NewValidationError("trading.interval_seconds", c.Trading.IntervalSeconds, "must be positive")
	}
	return nil
}

// Validate checks all engine sub-configs.
func (c EngineConfig) Validate() error {
	if err := c.Decision.Validate(); err != nil {
		return err
	}
	if err := c.Sizing.Validate(); err != nil {
		return err
	}
	if err := c.Cooldown.Validate(); err != nil {
		return err
	}
	return c.Learning.Validate()
}

// Validate checks the decision config ranges.
func (c DecisionConfig) Validate() error {
	if c.MarginThreshold < 0 || c.MarginThreshold > 1 {
		return errors.NewValidationError("decision.margin_threshold", c.MarginThreshold, "must be in [0, 1]")
	}
	if c.TopReasons < 0 {
		return errors.NewValidationError("decision.top_reasons", c.TopReasons, "must be non-negative")
	}
	return nil
}

// Validate checks the sizing config ranges.
func (c SizingConfig) Validate() error {
	if c.BuyRatio < 0 || c.BuyRatio > 1 {
		return errors.NewValidationError("sizing.buy_ratio", c.BuyRatio, "must be in [0, 1]")
	}
	if c.SellRatio < 0 || c.SellRatio > 1 {
		return errors.NewValidationError("sizing.sell_ratio", c.SellRatio, "must be in [0, 1]")
	}
	if c.MaxKellyFraction < 0 || c.MaxKellyFraction > 1 {
		return errors.NewValidationError("sizing.max_kelly_fraction", c.MaxKellyFraction, "must be in [0, 1]")
	}
	if c.MinConfidenceMult < 0 || c.MaxConfidenceMult < c.MinConfidenceMult {
		return errors.NewValidationError("sizing.confidence_mult", c.MinConfidenceMult, "bounds must satisfy 0 <= min <= max")
	}
	return nil
}

// Validate checks the cooldown config ranges.
func (c CooldownConfig) Validate() error {
	if c.BuyMinutes < 0 || c.SellMinutes < 0 {
		return errors.NewValidationError("cooldown.minutes", c.BuyMinutes, "must be non-negative")
	}
	if c.Learning {
		if c.MinMinutes <= 0 || c.MaxMinutes < c.MinMinutes {
			return errors.NewValidationError("cooldown.bounds", c.MinMinutes, "learning requires 0 < min <= max")
		}
	}
	if c.ConfidenceOverride < 0 || c.ConfidenceOverride > 1 {
		return errors.NewValidationError("cooldown.confidence_override", c.ConfidenceOverride, "must be in [0, 1]")
	}
	return nil
}

// Validate checks the learning config ranges.
func (c LearningConfig) Validate() error {
	switch c.Mode {
	case LearnIndividual, LearnCategory, LearnGlobal, "":
	default:
		return errors.NewValidationError("learning.mode", c.Mode, "must be INDIVIDUAL, CATEGORY or GLOBAL")
	}
	if c.MinTradesRequired < 0 {
		return errors.NewValidationError("learning.min_trades_required", c.MinTradesRequired, "must be non-negative")
	}
	return nil
}

// Validate checks the backtest config ranges.
func (c BacktestConfig) Validate() error {
	if c.InitialBalance <= 0 {
		return errors.NewValidationError("backtest.initial_balance", c.InitialBalance, "must be positive")
	}
	if c.WarmupCandles < 0 {
		return errors.NewValidationError("backtest.warmup_candles", c.WarmupCandles, "must be non-negative")
	}
	if c.PeriodsPerYear <= 0 {
		return errors.NewValidationError("backtest.periods_per_year", c.PeriodsPerYear, "must be positive")
	}
	if c.RegimeWindow <= 0 {
		return errors.NewValidationError("backtest.regime_window", c.RegimeWindow, "must be positive")
	}
	return nil
}

// Validate checks the risk config ranges.
func (c RiskConfig) Validate() error {
	switch c.Methodology {
	case RiskHistorical, RiskParametric:
	default:
		return errors.NewValidationError("risk.methodology", c.Methodology, "must be historical or parametric")
	}
	if c.MinHistory < 2 {
		return errors.NewValidationError("risk.min_history", c.MinHistory, "must be at least 2")
	}
	return nil
}
