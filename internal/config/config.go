// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Mining    MiningConfig    `mapstructure:"mining"`
	Spaces    SpacesConfig    `mapstructure:"spaces"`
	Convert   ConvertConfig   `mapstructure:"convert"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

// StorageConfig holds local persistence configuration.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig holds credential and session-token configuration.
type AuthConfig struct {
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	BcryptCost  int           `mapstructure:"bcrypt_cost"`
}

// MiningConfig holds the foreground and background mining parameters.
// Both engines must read the reward band from here so that live ticking and
// catch-up reconciliation credit at the same rate.
type MiningConfig struct {
	// RewardModel selects the attempt resolution strategy:
	// "duration" (level-based, random 25-35s attempts) or
	// "probability" (difficulty-based, fixed-length attempts).
	RewardModel string `mapstructure:"reward_model"`

	MinRewardPerHour float64 `mapstructure:"min_reward_per_hour"`
	MaxRewardPerHour float64 `mapstructure:"max_reward_per_hour"`

	MinAttemptSeconds   int `mapstructure:"min_attempt_seconds"`
	MaxAttemptSeconds   int `mapstructure:"max_attempt_seconds"`
	FixedAttemptSeconds int `mapstructure:"fixed_attempt_seconds"`

	// Difficulty (1-10) applies to the probability model only.
	Difficulty     int     `mapstructure:"difficulty"`
	MinBlockReward float64 `mapstructure:"min_block_reward"`
	MaxBlockReward float64 `mapstructure:"max_block_reward"`

	ExpPerBlock float64 `mapstructure:"exp_per_block"`
	BaseExp     float64 `mapstructure:"base_exp"`
	ExpGrowth   float64 `mapstructure:"exp_growth"`
	MaxLevel    int     `mapstructure:"max_level"`

	TickInterval time.Duration `mapstructure:"tick_interval"`
	AutoDelay    time.Duration `mapstructure:"auto_delay"`

	// BaseWindow is the cumulative active-mining cap for new profiles;
	// MaxWindow is the hard ceiling the Scoins extension buys up to and the
	// clamp applied to reconciled catch-up time.
	BaseWindow       time.Duration `mapstructure:"base_window"`
	MaxWindow        time.Duration `mapstructure:"max_window"`
	ExtendCostScoins float64       `mapstructure:"extend_cost_scoins"`

	// AssumedBlockSeconds is the block duration reconciliation assumes when
	// estimating how many blocks a closed-app interval represents.
	AssumedBlockSeconds int `mapstructure:"assumed_block_seconds"`
}

// SpacesConfig holds mining-space accrual configuration.
type SpacesConfig struct {
	ScoinsPerHour    float64       `mapstructure:"scoins_per_hour"`
	AdUnlockDuration time.Duration `mapstructure:"ad_unlock_duration"`
	ReferralScoins   float64       `mapstructure:"referral_scoins"`
}

// ConvertConfig holds Scoins-to-SCR conversion configuration.
type ConvertConfig struct {
	MinScoins float64 `mapstructure:"min_scoins"`
	Ratio     float64 `mapstructure:"ratio"`
}

// ReconcileConfig holds the defensive in-process reconciliation cadence.
type ReconcileConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., STORAGE_PATH, MINING_REWARD_MODEL, AUTH_TOKEN_SECRET
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.path", "data/scrminer.db")

	// Auth defaults
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.bcrypt_cost", 10)

	// Mining defaults
	v.SetDefault("mining.reward_model", "duration")
	v.SetDefault("mining.min_reward_per_hour", 0.05)
	v.SetDefault("mining.max_reward_per_hour", 0.50)
	v.SetDefault("mining.min_attempt_seconds", 25)
	v.SetDefault("mining.max_attempt_seconds", 35)
	v.SetDefault("mining.fixed_attempt_seconds", 30)
	v.SetDefault("mining.difficulty", 5)
	v.SetDefault("mining.min_block_reward", 0.05)
	v.SetDefault("mining.max_block_reward", 0.50)
	v.SetDefault("mining.exp_per_block", 5)
	v.SetDefault("mining.base_exp", 100)
	v.SetDefault("mining.exp_growth", 1.5)
	v.SetDefault("mining.max_level", 10)
	v.SetDefault("mining.tick_interval", "1s")
	v.SetDefault("mining.auto_delay", "1500ms")
	v.SetDefault("mining.base_window", "12h")
	v.SetDefault("mining.max_window", "24h")
	v.SetDefault("mining.extend_cost_scoins", 5)
	v.SetDefault("mining.assumed_block_seconds", 30)

	// Space defaults
	v.SetDefault("spaces.scoins_per_hour", 10)
	v.SetDefault("spaces.ad_unlock_duration", "12h")
	v.SetDefault("spaces.referral_scoins", 10)

	// Conversion defaults
	v.SetDefault("convert.min_scoins", 10)
	v.SetDefault("convert.ratio", 10)

	// Reconciliation defaults
	v.SetDefault("reconcile.interval", "5m")
}

// Validate rejects configurations the engines cannot run with.
func (c *Config) Validate() error {
	switch c.Mining.RewardModel {
	case "duration", "probability":
	default:
		return fmt.Errorf("mining.reward_model must be \"duration\" or \"probability\", got %q", c.Mining.RewardModel)
	}
	if c.Mining.Difficulty < 1 || c.Mining.Difficulty > 10 {
		return fmt.Errorf("mining.difficulty must be between 1 and 10, got %d", c.Mining.Difficulty)
	}
	if c.Mining.MinRewardPerHour <= 0 || c.Mining.MaxRewardPerHour < c.Mining.MinRewardPerHour {
		return fmt.Errorf("mining reward band is invalid: min=%v max=%v", c.Mining.MinRewardPerHour, c.Mining.MaxRewardPerHour)
	}
	if c.Mining.MinAttemptSeconds <= 0 || c.Mining.MaxAttemptSeconds < c.Mining.MinAttemptSeconds {
		return fmt.Errorf("mining attempt duration range is invalid: min=%d max=%d", c.Mining.MinAttemptSeconds, c.Mining.MaxAttemptSeconds)
	}
	if c.Mining.BaseWindow <= 0 || c.Mining.MaxWindow < c.Mining.BaseWindow {
		return fmt.Errorf("mining window range is invalid: base=%s max=%s", c.Mining.BaseWindow, c.Mining.MaxWindow)
	}
	if c.Convert.Ratio <= 0 {
		return fmt.Errorf("convert.ratio must be positive, got %v", c.Convert.Ratio)
	}
	return nil
}
