// internal/config/config.go
package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Risk      RiskConfig
	Actions   ActionConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	KPITTLSeconds int
}

// RiskConfig holds the tunable constants of the risk scoring and change
// detection stages. The score thresholds are empirical and kept configurable
// rather than hardcoded.
type RiskConfig struct {
	DefaultUnitCost      float64 // fallback when no store-sku or sku-average cost exists
	ChangedScoreDelta    float64 // min risk_score movement for a batch to count as changed
	AlwaysReprocessScore float64 // batches at or above this score are always reprocessed
}

// ActionConfig holds the candidate filters for the three recommendation
// generators.
type ActionConfig struct {
	TransferMinScore    float64
	MarkdownMinScore    float64
	LiquidationMinScore float64
	LiquidationMaxDays  int
	MaxDiscount         float64
}

type SchedulerConfig struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	NightlyCronSpec string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "freshrisk")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_KPI_TTL_SECONDS", 60)
		viper.SetDefault("RISK_DEFAULT_UNIT_COST", 10.0)
		viper.SetDefault("RISK_CHANGED_SCORE_DELTA", 5.0)
		viper.SetDefault("RISK_ALWAYS_REPROCESS_SCORE", 50.0)
		viper.SetDefault("ACTION_TRANSFER_MIN_SCORE", 70.0)
		viper.SetDefault("ACTION_MARKDOWN_MIN_SCORE", 50.0)
		viper.SetDefault("ACTION_LIQUIDATION_MIN_SCORE", 80.0)
		viper.SetDefault("ACTION_LIQUIDATION_MAX_DAYS", 7)
		viper.SetDefault("ACTION_MAX_DISCOUNT", 0.7)
		viper.SetDefault("SCHEDULER_MAX_RETRIES", 3)
		viper.SetDefault("SCHEDULER_BASE_DELAY_SECONDS", 1.0)
		viper.SetDefault("SCHEDULER_MAX_DELAY_SECONDS", 300.0)
		viper.SetDefault("SCHEDULER_EXPONENTIAL_BASE", 2.0)
		viper.SetDefault("SCHEDULER_NIGHTLY_CRON", "0 2 * * *")

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Cache: CacheConfig{
				Enabled:       viper.GetBool("CACHE_ENABLED"),
				RedisURL:      viper.GetString("REDIS_URL"),
				RedisHost:     viper.GetString("REDIS_HOST"),
				RedisPort:     viper.GetString("REDIS_PORT"),
				RedisPassword: viper.GetString("REDIS_PASSWORD"),
				RedisDB:       viper.GetInt("REDIS_DB"),
				KPITTLSeconds: viper.GetInt("CACHE_KPI_TTL_SECONDS"),
			},
			Risk: RiskConfig{
				DefaultUnitCost:      viper.GetFloat64("RISK_DEFAULT_UNIT_COST"),
				ChangedScoreDelta:    viper.GetFloat64("RISK_CHANGED_SCORE_DELTA"),
				AlwaysReprocessScore: viper.GetFloat64("RISK_ALWAYS_REPROCESS_SCORE"),
			},
			Actions: ActionConfig{
				TransferMinScore:    viper.GetFloat64("ACTION_TRANSFER_MIN_SCORE"),
				MarkdownMinScore:    viper.GetFloat64("ACTION_MARKDOWN_MIN_SCORE"),
				LiquidationMinScore: viper.GetFloat64("ACTION_LIQUIDATION_MIN_SCORE"),
				LiquidationMaxDays:  viper.GetInt("ACTION_LIQUIDATION_MAX_DAYS"),
				MaxDiscount:         viper.GetFloat64("ACTION_MAX_DISCOUNT"),
			},
			Scheduler: SchedulerConfig{
				MaxRetries:      viper.GetInt("SCHEDULER_MAX_RETRIES"),
				BaseDelay:       time.Duration(viper.GetFloat64("SCHEDULER_BASE_DELAY_SECONDS") * float64(time.Second)),
				MaxDelay:        time.Duration(viper.GetFloat64("SCHEDULER_MAX_DELAY_SECONDS") * float64(time.Second)),
				ExponentialBase: viper.GetFloat64("SCHEDULER_EXPONENTIAL_BASE"),
				NightlyCronSpec: viper.GetString("SCHEDULER_NIGHTLY_CRON"),
			},
		}
	})

	return instance
}
