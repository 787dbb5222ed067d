package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Session    SessionConfig
	Scheduling SchedulingConfig
	Lock       LockConfig
	Retry      RetryConfig
	RateLimit  RateLimitConfig
	Cache      CacheConfig
}

type AppConfig struct {
	Name            string
	Port            string
	Debug           bool
	LogPath         string
	Timezone        string
	StorageDriver   string // postgres | memory
	AutoConfirmCash bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type SessionConfig struct {
	ExpiryHours int
}

// SchedulingConfig holds the window used for providers that are not attached
// to any clinic schedule.
type SchedulingConfig struct {
	FallbackOpenTime     string `validate:"required,hhmm"`
	FallbackCloseTime    string `validate:"required,hhmm"`
	FallbackSlotMinutes  int    `validate:"min=5,max=240"`
	ProjectionHorizonDay int    `validate:"min=1"`
}

type LockConfig struct {
	TTL           time.Duration
	WaitTimeout   time.Duration
	RetryInterval time.Duration
}

type RetryConfig struct {
	InlineAttempts    uint64
	InitialInterval   time.Duration
	MaxInterval       time.Duration
	ReconcileInterval time.Duration
	BatchSize         int
	QueueMaxRetry     int
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type CacheConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "clinic-booking")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("TIMEZONE", "UTC")
	viper.SetDefault("STORAGE_DRIVER", "postgres")
	viper.SetDefault("AUTO_CONFIRM_CASH", true)

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNS", 10)

	viper.SetDefault("REDIS_ENABLED", false)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("SESSION_EXPIRY_HOURS", 24)

	viper.SetDefault("FALLBACK_OPEN_TIME", "09:00")
	viper.SetDefault("FALLBACK_CLOSE_TIME", "21:00")
	viper.SetDefault("FALLBACK_SLOT_MINUTES", 30)
	viper.SetDefault("PROJECTION_HORIZON_DAYS", 60)

	viper.SetDefault("LOCK_TTL", "10s")
	viper.SetDefault("LOCK_WAIT_TIMEOUT", "5s")
	viper.SetDefault("LOCK_RETRY_INTERVAL", "25ms")

	viper.SetDefault("RETRY_INLINE_ATTEMPTS", 3)
	viper.SetDefault("RETRY_INITIAL_INTERVAL", "100ms")
	viper.SetDefault("RETRY_MAX_INTERVAL", "2s")
	viper.SetDefault("RETRY_RECONCILE_INTERVAL", "1m")
	viper.SetDefault("RETRY_BATCH_SIZE", 50)
	viper.SetDefault("RETRY_QUEUE_MAX_RETRY", 25)

	viper.SetDefault("RATE_LIMIT_RPS", 20)
	viper.SetDefault("RATE_LIMIT_BURST", 40)

	viper.SetDefault("CACHE_TTL", "5m")
	viper.SetDefault("CACHE_CLEANUP_INTERVAL", "10m")

	// A missing .env is fine, the environment alone can configure the service
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:            viper.GetString("APP_NAME"),
			Port:            viper.GetString("PORT"),
			Debug:           viper.GetBool("DEBUG"),
			LogPath:         viper.GetString("LOG_PATH"),
			Timezone:        viper.GetString("TIMEZONE"),
			StorageDriver:   viper.GetString("STORAGE_DRIVER"),
			AutoConfirmCash: viper.GetBool("AUTO_CONFIRM_CASH"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("REDIS_ENABLED"),
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Session: SessionConfig{
			ExpiryHours: viper.GetInt("SESSION_EXPIRY_HOURS"),
		},
		Scheduling: SchedulingConfig{
			FallbackOpenTime:     viper.GetString("FALLBACK_OPEN_TIME"),
			FallbackCloseTime:    viper.GetString("FALLBACK_CLOSE_TIME"),
			FallbackSlotMinutes:  viper.GetInt("FALLBACK_SLOT_MINUTES"),
			ProjectionHorizonDay: viper.GetInt("PROJECTION_HORIZON_DAYS"),
		},
		Lock: LockConfig{
			TTL:           viper.GetDuration("LOCK_TTL"),
			WaitTimeout:   viper.GetDuration("LOCK_WAIT_TIMEOUT"),
			RetryInterval: viper.GetDuration("LOCK_RETRY_INTERVAL"),
		},
		Retry: RetryConfig{
			InlineAttempts:    viper.GetUint64("RETRY_INLINE_ATTEMPTS"),
			InitialInterval:   viper.GetDuration("RETRY_INITIAL_INTERVAL"),
			MaxInterval:       viper.GetDuration("RETRY_MAX_INTERVAL"),
			ReconcileInterval: viper.GetDuration("RETRY_RECONCILE_INTERVAL"),
			BatchSize:         viper.GetInt("RETRY_BATCH_SIZE"),
			QueueMaxRetry:     viper.GetInt("RETRY_QUEUE_MAX_RETRY"),
		},
		RateLimit: RateLimitConfig{
			RPS:   viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst: viper.GetInt("RATE_LIMIT_BURST"),
		},
		Cache: CacheConfig{
			TTL:             viper.GetDuration("CACHE_TTL"),
			CleanupInterval: viper.GetDuration("CACHE_CLEANUP_INTERVAL"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the services would otherwise trip over at
// startup.
func (c *Config) Validate() error {
	if errs := ValidateStruct(&c.Scheduling); len(errs) > 0 {
		return fmt.Errorf("invalid scheduling config: %s", FormatValidationErrors(errs))
	}
	// Both are zero-padded HH:MM here, so they order as strings.
	if c.Scheduling.FallbackOpenTime >= c.Scheduling.FallbackCloseTime {
		return fmt.Errorf("invalid scheduling config: FALLBACK_OPEN_TIME %s is not before FALLBACK_CLOSE_TIME %s",
			c.Scheduling.FallbackOpenTime, c.Scheduling.FallbackCloseTime)
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.App.Timezone, err)
	}
	return nil
}

// Location returns the configured time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
