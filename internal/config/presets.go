package config

// PresetName identifies a built-in engine configuration preset.
type PresetName string

const (
	PresetConservative PresetName = "conservative"
	PresetBalanced     PresetName = "balanced"
	PresetAggressive   PresetName = "aggressive"
)

// Preset returns the engine configuration for a named preset. Unknown
// names fall back to the balanced preset.
func Preset(name PresetName) EngineConfig {
	switch name {
	case PresetConservative:
		return EngineConfig{
			Decision: DecisionConfig{MarginThreshold: 0.35, TopReasons: 5},
			Sizing: SizingConfig{
				BuyRatio:          0.2,
				SellRatio:         0.5,
				MaxKellyFraction:  0.15,
				UseKelly:          true,
				MinConfidenceMult: 0.5,
				MaxConfidenceMult: 1.0,
			},
			Cooldown: CooldownConfig{
				BuyMinutes:         60,
				SellMinutes:        30,
				Learning:           true,
				MinMinutes:         10,
				MaxMinutes:         240,
				ConfidenceOverride: 0.9,
			},
			Learning: LearningConfig{
				Mode:              LearnIndividual,
				MinTradesRequired: 50,
			},
		}
	case PresetAggressive:
		return EngineConfig{
			Decision: DecisionConfig{MarginThreshold: 0.15, TopReasons: 5},
			Sizing: SizingConfig{
				BuyRatio:          0.5,
				SellRatio:         0.7,
				MaxKellyFraction:  0.25,
				UseKelly:          true,
				MinConfidenceMult: 0.8,
				MaxConfidenceMult: 1.5,
			},
			Cooldown: CooldownConfig{
				BuyMinutes:         15,
				SellMinutes:        10,
				Learning:           true,
				MinMinutes:         5,
				MaxMinutes:         120,
				ConfidenceOverride: 0.8,
			},
			Learning: LearningConfig{
				Mode:              LearnIndividual,
				MinTradesRequired: 30,
			},
		}
	default:
		return EngineConfig{
			Decision: DecisionConfig{MarginThreshold: 0.25, TopReasons: 5},
			Sizing: SizingConfig{
				BuyRatio:          0.3,
				SellRatio:         0.5,
				MaxKellyFraction:  0.25,
				UseKelly:          true,
				MinConfidenceMult: 0.6,
				MaxConfidenceMult: 1.2,
			},
			Cooldown: CooldownConfig{
				BuyMinutes:         30,
				SellMinutes:        20,
				Learning:           true,
				MinMinutes:         5,
				MaxMinutes:         180,
				ConfidenceOverride: 0.85,
			},
			Learning: LearningConfig{
				Mode:              LearnIndividual,
				MinTradesRequired: 50,
			},
		}
	}
}
