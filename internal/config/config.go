// Package config defines the top-level configuration for the arbitrage
// decision engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBOT_* environment variables.
type Config struct {
	Fees     map[string]FeeScheduleConfig `toml:"fees"`
	Matching MatchingConfig               `toml:"matching"`
	Profit   ProfitConfig                 `toml:"profit"`
	Slippage SlippageConfig               `toml:"slippage"`
	Sizing   SizingConfig                 `toml:"sizing"`
	Risk     RiskConfig                   `toml:"risk"`
	Pipeline PipelineConfig               `toml:"pipeline"`
	Postgres PostgresConfig               `toml:"postgres"`
	Redis    RedisConfig                  `toml:"redis"`
	S3       S3Config                     `toml:"s3"`
	Notify   NotifyConfig                 `toml:"notify"`
	Mode     string                       `toml:"mode"`
	LogLevel string                       `toml:"log_level"`
}

// FeeScheduleConfig holds the fee table for one platform. Keys in the
// [fees.<platform>] tables must be known platform names.
type FeeScheduleConfig struct {
	PercentFee    float64 `toml:"percent_fee"`
	WithdrawalFee float64 `toml:"withdrawal_fee"`
	GasFeeAvg     float64 `toml:"gas_fee_avg"`
	GasFeeMax     float64 `toml:"gas_fee_max"`
	FeeCap        float64 `toml:"fee_cap"`
}

// ResolutionSourceConfig describes one known resolution oracle.
type ResolutionSourceConfig struct {
	Reliability float64  `toml:"reliability"`
	DelayHours  float64  `toml:"delay_hours"`
	Platforms   []string `toml:"platforms"`
}

// MatchingConfig holds market-equivalence thresholds.
type MatchingConfig struct {
	MinOverallScore   float64                           `toml:"min_overall_score"`
	MinConfidence     float64                           `toml:"min_confidence"`
	MaxRiskFactors    int                               `toml:"max_risk_factors"`
	ResolutionSources map[string]ResolutionSourceConfig `toml:"resolution_sources"`
}

// ProfitConfig holds profitability thresholds.
type ProfitConfig struct {
	MinROIPercent float64 `toml:"min_roi_percent"`
	GasMultiplier float64 `toml:"gas_multiplier"`
}

// SlippageConfig holds slippage estimation and order-splitting parameters.
type SlippageConfig struct {
	TolerancePercent    float64  `toml:"tolerance_percent"`
	ShortfallPercent    float64  `toml:"shortfall_percent"`
	MaxSplits           int      `toml:"max_splits"`
	SplitStrategy       string   `toml:"split_strategy"`
	SliceDelay          duration `toml:"slice_delay"`
	SliceDepthFraction  float64  `toml:"slice_depth_fraction"`
	SlicePriceOffset    float64  `toml:"slice_price_offset"`
	ExponentialDecay    float64  `toml:"exponential_decay"`
}

// SizingConfig holds position sizing parameters.
type SizingConfig struct {
	BaseSize           float64 `toml:"base_size"`
	MinSize            float64 `toml:"min_size"`
	MaxSize            float64 `toml:"max_size"`
	MinGapPercent      float64 `toml:"min_gap_percent"`
	OptimalGapPercent  float64 `toml:"optimal_gap_percent"`
	SlippageShrink     float64 `toml:"slippage_shrink"`
	MaxExposure        float64 `toml:"max_exposure"`
}

// RiskConfig holds pre-trade risk control limits.
type RiskConfig struct {
	TotalCapital             float64 `toml:"total_capital"`
	MaxDailyLoss             float64 `toml:"max_daily_loss"`
	MaxCorrelation           float64 `toml:"max_correlation"`
	VaRConfidence            float64 `toml:"var_confidence"`
	VaRTrials                int     `toml:"var_trials"`
	MaxVaRFraction           float64 `toml:"max_var_fraction"`
	MaxPlatformConcentration float64 `toml:"max_platform_concentration"`
	MaxVolatility            float64 `toml:"max_volatility"`
	MinLiquidityScore        float64 `toml:"min_liquidity_score"`
}

// PipelineConfig holds scan-loop and archival parameters.
type PipelineConfig struct {
	ScanInterval         duration `toml:"scan_interval"`
	Workers              int      `toml:"workers"`
	MinTradeSize         float64  `toml:"min_trade_size"`
	MarketTTL            duration `toml:"market_ttl"`
	ArchiveEnabled       bool     `toml:"archive_enabled"`
	ArchiveInterval      duration `toml:"archive_interval"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Fees: map[string]FeeScheduleConfig{
			"polymarket": {
				PercentFee:    0.0,
				WithdrawalFee: 0.0,
				GasFeeAvg:     0.05,
				GasFeeMax:     0.20,
			},
			"kalshi": {
				PercentFee:    0.7,
				WithdrawalFee: 2.0,
				GasFeeAvg:     0.0,
				FeeCap:        1.00,
			},
			"manifold": {
				PercentFee:    0.5,
				WithdrawalFee: 1.0,
			},
		},
		Matching: MatchingConfig{
			MinOverallScore: 0.70,
			MinConfidence:   0.70,
			MaxRiskFactors:  2,
		},
		Profit: ProfitConfig{
			MinROIPercent: 1.0,
			GasMultiplier: 1.0,
		},
		Slippage: SlippageConfig{
			TolerancePercent:   1.0,
			ShortfallPercent:   5.0,
			MaxSplits:          10,
			SplitStrategy:      "exponential",
			SliceDelay:         duration{500 * time.Millisecond},
			SliceDepthFraction: 0.30,
			SlicePriceOffset:   0.001,
			ExponentialDecay:   0.7,
		},
		Sizing: SizingConfig{
			BaseSize:          100.0,
			MinSize:           10.0,
			MaxSize:           1000.0,
			MinGapPercent:     2.0,
			OptimalGapPercent: 5.0,
			SlippageShrink:    0.8,
			MaxExposure:       10_000.0,
		},
		Risk: RiskConfig{
			TotalCapital:             10_000.0,
			MaxDailyLoss:             500.0,
			MaxCorrelation:           0.7,
			VaRConfidence:            0.95,
			VaRTrials:                1000,
			MaxVaRFraction:           0.05,
			MaxPlatformConcentration: 0.40,
			MaxVolatility:            0.8,
			MinLiquidityScore:        0.2,
		},
		Pipeline: PipelineConfig{
			ScanInterval:         duration{30 * time.Second},
			Workers:              4,
			MinTradeSize:         10.0,
			MarketTTL:            duration{5 * time.Minute},
			ArchiveEnabled:       false,
			ArchiveInterval:      duration{24 * time.Hour},
			ArchiveRetentionDays: 90,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"decision_emitted", "risk_denied", "risk_critical", "execution_partial", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"stream":  true,
	"full":    true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSplitStrategies enumerates the accepted slippage.split_strategy values.
var validSplitStrategies = map[string]bool{
	"exponential": true,
	"liquidity":   true,
}

// knownPlatforms enumerates the venues a [fees.<platform>] table may name.
var knownPlatforms = map[string]bool{
	"polymarket": true,
	"kalshi":     true,
	"manifold":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, stream, full, monitor)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Fees — every platform table must be well-formed; a malformed fee table
	// silently eats the edge, so it is fatal here rather than at compute time.
	if len(c.Fees) == 0 {
		errs = append(errs, "fees: at least one platform fee table is required")
	}
	for name, f := range c.Fees {
		if !knownPlatforms[strings.ToLower(name)] {
			errs = append(errs, fmt.Sprintf("fees: unknown platform %q", name))
		}
		if f.PercentFee < 0 || f.PercentFee > 100 {
			errs = append(errs, fmt.Sprintf("fees.%s: percent_fee must be in [0,100], got %g", name, f.PercentFee))
		}
		if f.WithdrawalFee < 0 {
			errs = append(errs, fmt.Sprintf("fees.%s: withdrawal_fee must be >= 0", name))
		}
		if f.GasFeeAvg < 0 {
			errs = append(errs, fmt.Sprintf("fees.%s: gas_fee_avg must be >= 0", name))
		}
		if f.GasFeeMax < 0 {
			errs = append(errs, fmt.Sprintf("fees.%s: gas_fee_max must be >= 0", name))
		}
		if f.GasFeeMax > 0 && f.GasFeeMax < f.GasFeeAvg {
			errs = append(errs, fmt.Sprintf("fees.%s: gas_fee_max must be >= gas_fee_avg", name))
		}
		if f.FeeCap < 0 {
			errs = append(errs, fmt.Sprintf("fees.%s: fee_cap must be >= 0", name))
		}
	}

	// Matching
	if c.Matching.MinOverallScore <= 0 || c.Matching.MinOverallScore > 1 {
		errs = append(errs, "matching: min_overall_score must be in (0,1]")
	}
	if c.Matching.MinConfidence < 0 || c.Matching.MinConfidence > 1 {
		errs = append(errs, "matching: min_confidence must be in [0,1]")
	}
	if c.Matching.MaxRiskFactors < 0 {
		errs = append(errs, "matching: max_risk_factors must be >= 0")
	}
	for name, src := range c.Matching.ResolutionSources {
		if src.Reliability < 0 || src.Reliability > 1 {
			errs = append(errs, fmt.Sprintf("matching.resolution_sources.%s: reliability must be in [0,1]", name))
		}
		if src.DelayHours < 0 {
			errs = append(errs, fmt.Sprintf("matching.resolution_sources.%s: delay_hours must be >= 0", name))
		}
	}

	// Profit
	if c.Profit.MinROIPercent < 0 {
		errs = append(errs, "profit: min_roi_percent must be >= 0")
	}
	if c.Profit.GasMultiplier <= 0 {
		errs = append(errs, "profit: gas_multiplier must be > 0")
	}

	// Slippage
	if c.Slippage.TolerancePercent <= 0 {
		errs = append(errs, "slippage: tolerance_percent must be > 0")
	}
	if c.Slippage.MaxSplits < 1 {
		errs = append(errs, "slippage: max_splits must be >= 1")
	}
	if !validSplitStrategies[c.Slippage.SplitStrategy] {
		errs = append(errs, fmt.Sprintf("slippage: unknown split_strategy %q (valid: exponential, liquidity)", c.Slippage.SplitStrategy))
	}
	if c.Slippage.ExponentialDecay <= 0 || c.Slippage.ExponentialDecay >= 1 {
		errs = append(errs, "slippage: exponential_decay must be in (0,1)")
	}
	if c.Slippage.SliceDepthFraction <= 0 || c.Slippage.SliceDepthFraction > 1 {
		errs = append(errs, "slippage: slice_depth_fraction must be in (0,1]")
	}

	// Sizing
	if c.Sizing.BaseSize <= 0 {
		errs = append(errs, "sizing: base_size must be > 0")
	}
	if c.Sizing.MinSize <= 0 {
		errs = append(errs, "sizing: min_size must be > 0")
	}
	if c.Sizing.MaxSize < c.Sizing.MinSize {
		errs = append(errs, "sizing: max_size must be >= min_size")
	}
	if c.Sizing.MinGapPercent < 0 {
		errs = append(errs, "sizing: min_gap_percent must be >= 0")
	}
	if c.Sizing.OptimalGapPercent < c.Sizing.MinGapPercent {
		errs = append(errs, "sizing: optimal_gap_percent must be >= min_gap_percent")
	}
	if c.Sizing.MaxExposure <= 0 {
		errs = append(errs, "sizing: max_exposure must be > 0")
	}

	// Risk
	if c.Risk.TotalCapital <= 0 {
		errs = append(errs, "risk: total_capital must be > 0")
	}
	if c.Risk.MaxDailyLoss <= 0 {
		errs = append(errs, "risk: max_daily_loss must be > 0")
	}
	if c.Risk.MaxCorrelation <= 0 || c.Risk.MaxCorrelation > 1 {
		errs = append(errs, "risk: max_correlation must be in (0,1]")
	}
	if c.Risk.VaRConfidence <= 0 || c.Risk.VaRConfidence >= 1 {
		errs = append(errs, "risk: var_confidence must be in (0,1)")
	}
	if c.Risk.VaRTrials < 100 {
		errs = append(errs, "risk: var_trials must be >= 100")
	}
	if c.Risk.MaxVaRFraction <= 0 || c.Risk.MaxVaRFraction > 1 {
		errs = append(errs, "risk: max_var_fraction must be in (0,1]")
	}
	if c.Risk.MaxPlatformConcentration <= 0 || c.Risk.MaxPlatformConcentration > 1 {
		errs = append(errs, "risk: max_platform_concentration must be in (0,1]")
	}

	// Pipeline
	if c.Pipeline.ScanInterval.Duration <= 0 {
		errs = append(errs, "pipeline: scan_interval must be > 0")
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, "pipeline: workers must be >= 1")
	}
	if c.Pipeline.ArchiveEnabled && c.Pipeline.ArchiveRetentionDays < 1 {
		errs = append(errs, "pipeline: archive_retention_days must be >= 1 when archiving is enabled")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — required only when archiving is on.
	if c.Pipeline.ArchiveEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
