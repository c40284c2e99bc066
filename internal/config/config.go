package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	MaxBodyBytes         int64         `mapstructure:"MAX_BODY_BYTES"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	SlowRequestThreshold time.Duration `mapstructure:"SLOW_REQUEST_THRESHOLD"`
	BatchMaxItems        int           `mapstructure:"BATCH_MAX_ITEMS"`
	BatchConcurrency     int           `mapstructure:"BATCH_CONCURRENCY"`
}

var keys = []string{
	"PORT",
	"DATABASE_URL",
	"LOG_LEVEL",
	"RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST",
	"MAX_BODY_BYTES",
	"REQUEST_TIMEOUT",
	"SLOW_REQUEST_THRESHOLD",
	"BATCH_MAX_ITEMS",
	"BATCH_CONCURRENCY",
}

// Load reads configuration from the environment, after loading .env files when present.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("MAX_BODY_BYTES", 1<<20)
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("SLOW_REQUEST_THRESHOLD", 500*time.Millisecond)
	v.SetDefault("BATCH_MAX_ITEMS", 100)
	v.SetDefault("BATCH_CONCURRENCY", 8)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects limits the server cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Port == "":
		return fmt.Errorf("PORT must not be empty")
	case c.RateLimitRPS <= 0:
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %v", c.RateLimitRPS)
	case c.RateLimitBurst <= 0:
		return fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst)
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	case c.SlowRequestThreshold <= 0:
		return fmt.Errorf("SLOW_REQUEST_THRESHOLD must be positive, got %s", c.SlowRequestThreshold)
	case c.BatchMaxItems <= 0:
		return fmt.Errorf("BATCH_MAX_ITEMS must be positive, got %d", c.BatchMaxItems)
	case c.BatchConcurrency <= 0:
		return fmt.Errorf("BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency)
	}
	return nil
}

// UsesDatabase reports whether assessments are persisted to PostgreSQL
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}
