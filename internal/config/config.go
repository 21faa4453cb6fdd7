// Package config defines configuration for every tradefabric service.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via TF_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure; every service reads the same file and uses the sections it
// needs.
type Config struct {
	Environment string           `mapstructure:"environment"`
	Bus         BusConfig        `mapstructure:"bus"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Candles     CandleConfig     `mapstructure:"candles"`
	Strategy    StrategyConfig   `mapstructure:"strategy"`
	Execution   ExecutionConfig  `mapstructure:"execution"`
	Risk        RiskConfig       `mapstructure:"risk"`
	Exchange    ExchangeConfig   `mapstructure:"exchange"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Monitoring  MonitoringConfig `mapstructure:"monitoring"`
}

// BusConfig connects to the topic-routed message bus.
type BusConfig struct {
	URL               string        `mapstructure:"url"`
	ReconnectMinDelay time.Duration `mapstructure:"reconnect_min_delay"`
	ReconnectMaxDelay time.Duration `mapstructure:"reconnect_max_delay"`
	PublishTimeout    time.Duration `mapstructure:"publish_timeout"`
}

// CacheConfig connects to the key-value cache.
type CacheConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CandleConfig declares the custom timeframes the aggregator builds from
// base exchange candles, e.g. ["5m", "15m", "1h", "4h"].
type CandleConfig struct {
	BaseTimeframe    string   `mapstructure:"base_timeframe"`
	CustomTimeframes []string `mapstructure:"custom_timeframes"`
}

// StrategyConfig tunes signal generation.
//
//   - MinRiskReward: a published signal's recomputed |reward|/|risk| must
//     meet or exceed this, or Validate rejects it.
//   - RequestedIndicators: the indicator types a strategy run asks the DAG
//     for; the DAG expands this to its transitive dependency closure.
//   - EnabledStrategies: which registered Strategy implementations run per
//     candle-close event.
type StrategyConfig struct {
	MinRiskReward       float64  `mapstructure:"min_risk_reward"`
	RequestedIndicators []string `mapstructure:"requested_indicators"`
	EnabledStrategies   []string `mapstructure:"enabled_strategies"`
	Symbols             []string `mapstructure:"symbols"`
	Timeframes          []string `mapstructure:"timeframes"`
}

// ExecutionConfig tunes order sizing and submission.
//
//   - AccountEquity/RiskPerTrade: `position_size = account_equity *
//     risk_per_trade / |entry - stop|`, the base sizing formula before
//     confidence scaling and capping.
//   - MaxPositionSizeUSD: hard cap on the computed position size per order,
//     applied after confidence scaling; it caps the size itself, not its
//     notional value.
//   - MinConfidenceScale: the floor a signal's confidence score is clamped
//     to before scaling position size, so a low-confidence signal still
//     gets a nonzero order rather than a zero-size one.
//   - PriceCorridorPct: a signal's price target further than this fraction
//     from the current market price is clamped to ClampPct of it instead.
type ExecutionConfig struct {
	AccountEquity      float64       `mapstructure:"account_equity"`
	RiskPerTrade       float64       `mapstructure:"risk_per_trade"`
	MaxPositionSizeUSD float64       `mapstructure:"max_position_size_usd"`
	MinConfidenceScale float64       `mapstructure:"min_confidence_scale"`
	PriceCorridorPct   float64       `mapstructure:"price_corridor_pct"`
	ClampPct           float64       `mapstructure:"clamp_pct"`
	Leverage           float64       `mapstructure:"leverage"`
	OrderTimeout       time.Duration `mapstructure:"order_timeout"`
	DryRun             bool          `mapstructure:"dry_run"`
}

// RiskConfig sets portfolio-level limits enforced independently of
// per-signal sizing, mirroring the kill-switch limits a market maker
// enforces across all of its active positions.
//
//   - MaxPositionPerSymbol: max USD exposure in any single symbol.
//   - MaxGlobalExposure: max USD exposure across all open positions.
//   - MaxDailyLoss: max combined (realized + unrealized) loss before the
//     kill switch engages and ExecutionPipeline stops submitting orders.
//   - KillSwitchDropPct / KillSwitchWindowSec: rapid-price-movement trip
//     wire, same shape as the per-market version.
//   - CooldownAfterKill: how long the kill switch stays engaged once
//     triggered.
type RiskConfig struct {
	MaxPositionPerSymbol float64       `mapstructure:"max_position_per_symbol"`
	MaxGlobalExposure    float64       `mapstructure:"max_global_exposure"`
	MaxDailyLoss         float64       `mapstructure:"max_daily_loss"`
	KillSwitchDropPct    float64       `mapstructure:"kill_switch_drop_pct"`
	KillSwitchWindowSec  int           `mapstructure:"kill_switch_window_sec"`
	CooldownAfterKill    time.Duration `mapstructure:"cooldown_after_kill"`
}

// ExchangeConfig holds REST connector settings. ApiKey/Secret are always
// env-overridable since they are secrets.
type ExchangeConfig struct {
	Name       string        `mapstructure:"name"`
	BaseURL    string        `mapstructure:"base_url"`
	ApiKey     string        `mapstructure:"api_key"`
	Secret     string        `mapstructure:"secret"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MonitoringConfig controls the order tracker's in-memory alert history and
// its operator-facing read API.
type MonitoringConfig struct {
	AlertHistorySize int      `mapstructure:"alert_history_size"`
	APIEnabled       bool     `mapstructure:"api_enabled"`
	APIPort          int      `mapstructure:"api_port"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: TF_EXCHANGE_API_KEY, TF_EXCHANGE_SECRET,
// TF_BUS_URL, TF_CACHE_PASSWORD.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if url := os.Getenv("TF_BUS_URL"); url != "" {
		cfg.Bus.URL = url
	}
	if pass := os.Getenv("TF_CACHE_PASSWORD"); pass != "" {
		cfg.Cache.Password = pass
	}
	if key := os.Getenv("TF_EXCHANGE_API_KEY"); key != "" {
		cfg.Exchange.ApiKey = key
	}
	if secret := os.Getenv("TF_EXCHANGE_SECRET"); secret != "" {
		cfg.Exchange.Secret = secret
	}
	if os.Getenv("TF_EXECUTION_DRY_RUN") == "true" || os.Getenv("TF_EXECUTION_DRY_RUN") == "1" {
		cfg.Execution.DryRun = true
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(c *Config) {
	if c.Bus.ReconnectMinDelay == 0 {
		c.Bus.ReconnectMinDelay = time.Second
	}
	if c.Bus.ReconnectMaxDelay == 0 {
		c.Bus.ReconnectMaxDelay = 30 * time.Second
	}
	if c.Bus.PublishTimeout == 0 {
		c.Bus.PublishTimeout = 5 * time.Second
	}
	if c.Exchange.Timeout == 0 {
		c.Exchange.Timeout = 30 * time.Second
	}
	if c.Execution.MinConfidenceScale == 0 {
		c.Execution.MinConfidenceScale = 0.25
	}
	if c.Execution.PriceCorridorPct == 0 {
		c.Execution.PriceCorridorPct = 0.20
	}
	if c.Execution.ClampPct == 0 {
		c.Execution.ClampPct = 0.10
	}
	if c.Execution.Leverage == 0 {
		c.Execution.Leverage = 1
	}
	if c.Monitoring.AlertHistorySize == 0 {
		c.Monitoring.AlertHistorySize = 500
	}
	if c.Risk.CooldownAfterKill == 0 {
		c.Risk.CooldownAfterKill = 5 * time.Minute
	}
	if c.Risk.KillSwitchWindowSec == 0 {
		c.Risk.KillSwitchWindowSec = 60
	}
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Bus.URL == "" {
		return fmt.Errorf("bus.url is required")
	}
	if c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required")
	}
	if c.Candles.BaseTimeframe == "" {
		return fmt.Errorf("candles.base_timeframe is required")
	}
	if c.Strategy.MinRiskReward <= 0 {
		return fmt.Errorf("strategy.min_risk_reward must be > 0")
	}
	if c.Execution.MaxPositionSizeUSD <= 0 {
		return fmt.Errorf("execution.max_position_size_usd must be > 0")
	}
	if c.Execution.MinConfidenceScale <= 0 || c.Execution.MinConfidenceScale > 1 {
		return fmt.Errorf("execution.min_confidence_scale must be in (0, 1]")
	}
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange.base_url is required")
	}
	return nil
}
