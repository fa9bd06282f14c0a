package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы хранилища и кэша
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	CacheDriverNone   = "none"
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

type Config struct {
	Environment string `mapstructure:"ENV"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	DBDSN         string `mapstructure:"DB_DSN"`

	CacheDriver      string        `mapstructure:"CACHE_DRIVER"`
	DecisionCacheTTL time.Duration `mapstructure:"DECISION_CACHE_TTL"`
	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int           `mapstructure:"REDIS_DB"`

	TelegramToken  string        `mapstructure:"TELEGRAM_TOKEN"`
	DigestInterval time.Duration `mapstructure:"DIGEST_INTERVAL"`

	// Попыток погашения кода на зрителя в минуту
	RedeemRatePerMinute int `mapstructure:"REDEEM_RATE_PER_MINUTE"`
	RedeemBurst         int `mapstructure:"REDEEM_BURST"`

	MetricsAddr string `mapstructure:"METRICS_ADDR"`

	TracingEnabled    bool    `mapstructure:"TRACING_ENABLED"`
	JaegerURL         string  `mapstructure:"JAEGER_URL"`
	TracingSampleRate float64 `mapstructure:"TRACING_SAMPLE_RATE"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	cfg := &Config{
		Environment:   getString("ENV", "development"),
		StorageDriver: getString("STORAGE_DRIVER", StorageDriverPostgres),
		DBDSN:         os.Getenv("DB_DSN"),
		CacheDriver:   getString("CACHE_DRIVER", CacheDriverNone),
		RedisAddr:     getString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
		JaegerURL:     getString("JAEGER_URL", "http://localhost:14268/api/traces"),
	}

	var err error
	if cfg.DecisionCacheTTL, err = getDuration("DECISION_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.DigestInterval, err = getDuration("DIGEST_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RedeemRatePerMinute, err = getInt("REDEEM_RATE_PER_MINUTE", 10); err != nil {
		return nil, err
	}
	if cfg.RedeemBurst, err = getInt("REDEEM_BURST", 5); err != nil {
		return nil, err
	}
	if cfg.TracingEnabled, err = getBool("TRACING_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.TracingSampleRate, err = getFloat("TRACING_SAMPLE_RATE", 1.0); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded: storage=%s cache=%s\n", cfg.StorageDriver, cfg.CacheDriver)

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		// Проверяем обязательные поля
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required but not set")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER: unknown driver %q", c.StorageDriver)
	}

	switch c.CacheDriver {
	case CacheDriverNone, CacheDriverMemory, CacheDriverRedis:
	default:
		return fmt.Errorf("CACHE_DRIVER: unknown driver %q", c.CacheDriver)
	}

	if c.DecisionCacheTTL <= 0 {
		return fmt.Errorf("DECISION_CACHE_TTL must be positive")
	}
	if c.DigestInterval < 0 {
		return fmt.Errorf("DIGEST_INTERVAL must not be negative")
	}
	if c.RedeemRatePerMinute <= 0 {
		return fmt.Errorf("REDEEM_RATE_PER_MINUTE must be positive")
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be within [0, 1]")
	}

	return nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return i, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return b, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, value)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}
