package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Matching ──
	setFloat64(&cfg.Matching.MinOverallScore, "ARBOT_MATCHING_MIN_OVERALL_SCORE")
	setFloat64(&cfg.Matching.MinConfidence, "ARBOT_MATCHING_MIN_CONFIDENCE")
	setInt(&cfg.Matching.MaxRiskFactors, "ARBOT_MATCHING_MAX_RISK_FACTORS")

	// ── Profit ──
	setFloat64(&cfg.Profit.MinROIPercent, "ARBOT_PROFIT_MIN_ROI_PERCENT")
	setFloat64(&cfg.Profit.GasMultiplier, "ARBOT_PROFIT_GAS_MULTIPLIER")

	// ── Slippage ──
	setFloat64(&cfg.Slippage.TolerancePercent, "ARBOT_SLIPPAGE_TOLERANCE_PERCENT")
	setFloat64(&cfg.Slippage.ShortfallPercent, "ARBOT_SLIPPAGE_SHORTFALL_PERCENT")
	setInt(&cfg.Slippage.MaxSplits, "ARBOT_SLIPPAGE_MAX_SPLITS")
	setStr(&cfg.Slippage.SplitStrategy, "ARBOT_SLIPPAGE_SPLIT_STRATEGY")
	setDuration(&cfg.Slippage.SliceDelay, "ARBOT_SLIPPAGE_SLICE_DELAY")

	// ── Sizing ──
	setFloat64(&cfg.Sizing.BaseSize, "ARBOT_SIZING_BASE_SIZE")
	setFloat64(&cfg.Sizing.MinSize, "ARBOT_SIZING_MIN_SIZE")
	setFloat64(&cfg.Sizing.MaxSize, "ARBOT_SIZING_MAX_SIZE")
	setFloat64(&cfg.Sizing.MinGapPercent, "ARBOT_SIZING_MIN_GAP_PERCENT")
	setFloat64(&cfg.Sizing.OptimalGapPercent, "ARBOT_SIZING_OPTIMAL_GAP_PERCENT")
	setFloat64(&cfg.Sizing.MaxExposure, "ARBOT_SIZING_MAX_EXPOSURE")

	// ── Risk ──
	setFloat64(&cfg.Risk.TotalCapital, "ARBOT_RISK_TOTAL_CAPITAL")
	setFloat64(&cfg.Risk.MaxDailyLoss, "ARBOT_RISK_MAX_DAILY_LOSS")
	setFloat64(&cfg.Risk.MaxCorrelation, "ARBOT_RISK_MAX_CORRELATION")
	setFloat64(&cfg.Risk.VaRConfidence, "ARBOT_RISK_VAR_CONFIDENCE")
	setInt(&cfg.Risk.VaRTrials, "ARBOT_RISK_VAR_TRIALS")
	setFloat64(&cfg.Risk.MaxVaRFraction, "ARBOT_RISK_MAX_VAR_FRACTION")
	setFloat64(&cfg.Risk.MaxPlatformConcentration, "ARBOT_RISK_MAX_PLATFORM_CONCENTRATION")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.ScanInterval, "ARBOT_PIPELINE_SCAN_INTERVAL")
	setInt(&cfg.Pipeline.Workers, "ARBOT_PIPELINE_WORKERS")
	setFloat64(&cfg.Pipeline.MinTradeSize, "ARBOT_PIPELINE_MIN_TRADE_SIZE")
	setBool(&cfg.Pipeline.ArchiveEnabled, "ARBOT_PIPELINE_ARCHIVE_ENABLED")
	setDuration(&cfg.Pipeline.ArchiveInterval, "ARBOT_PIPELINE_ARCHIVE_INTERVAL")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "ARBOT_PIPELINE_ARCHIVE_RETENTION_DAYS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBOT_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBOT_MODE")
	setStr(&cfg.LogLevel, "ARBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
