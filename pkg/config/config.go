package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	DataDir    string `mapstructure:"DATA_DIR"`
	BaseURL    string `mapstructure:"BASE_URL"`

	PostgresURL string `mapstructure:"POSTGRES_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	Headless           bool          `mapstructure:"HEADLESS"`
	PoolSize           int           `mapstructure:"POOL_SIZE"`
	PoolAcquireTimeout time.Duration `mapstructure:"POOL_ACQUIRE_TIMEOUT"`
	PageLoadTimeout    time.Duration `mapstructure:"PAGE_LOAD_TIMEOUT"`
	UserAgent          string        `mapstructure:"USER_AGENT"`

	ChallengeMaxWait    time.Duration `mapstructure:"CHALLENGE_MAX_WAIT"`
	ChallengeManualWait time.Duration `mapstructure:"CHALLENGE_MANUAL_WAIT"`
	CaptchaAPIKey       string        `mapstructure:"CAPTCHA_API_KEY"`

	ScrollIncrement   int           `mapstructure:"SCROLL_INCREMENT"`
	MinScrolls        int           `mapstructure:"MIN_SCROLLS"`
	MaxScrolls        int           `mapstructure:"MAX_SCROLLS"`
	FlushEvery        int           `mapstructure:"FLUSH_EVERY"`
	SmartWaitInterval time.Duration `mapstructure:"SMART_WAIT_INTERVAL"`
	SmartWaitTimeout  time.Duration `mapstructure:"SMART_WAIT_TIMEOUT"`
	AllowedLeagues    []string      `mapstructure:"ALLOWED_LEAGUES"`
	AllowedCountries  []string      `mapstructure:"ALLOWED_COUNTRIES"`

	DetailWorkers         int           `mapstructure:"DETAIL_WORKERS"`
	DetailAttempts        int           `mapstructure:"DETAIL_ATTEMPTS"`
	MaxItemAttempts       int           `mapstructure:"MAX_ITEM_ATTEMPTS"`
	BetweenItemsDelay     time.Duration `mapstructure:"BETWEEN_ITEMS_DELAY"`
	CountPartialAsSuccess bool          `mapstructure:"COUNT_PARTIAL_AS_SUCCESS"`
	CountNoDataAsSuccess  bool          `mapstructure:"COUNT_NODATA_AS_SUCCESS"`
}

var defaults = map[string]any{
	"SERVER_PORT":              "8080",
	"LOG_LEVEL":                "info",
	"DATA_DIR":                 "data",
	"BASE_URL":                 "https://www.aiscore.com",
	"POSTGRES_URL":             "",
	"REDIS_ADDR":               "",
	"REDIS_PASSWORD":           "",
	"REDIS_DB":                 0,
	"CAPTCHA_API_KEY":          "",
	"ALLOWED_LEAGUES":          "",
	"ALLOWED_COUNTRIES":        "",
	"HEADLESS":                 true,
	"POOL_SIZE":                1,
	"POOL_ACQUIRE_TIMEOUT":     2 * time.Minute,
	"PAGE_LOAD_TIMEOUT":        60 * time.Second,
	"USER_AGENT":               "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"CHALLENGE_MAX_WAIT":       30 * time.Second,
	"CHALLENGE_MANUAL_WAIT":    300 * time.Second,
	"SCROLL_INCREMENT":         500,
	"MIN_SCROLLS":              20,
	"MAX_SCROLLS":              300,
	"FLUSH_EVERY":              10,
	"SMART_WAIT_INTERVAL":      200 * time.Millisecond,
	"SMART_WAIT_TIMEOUT":       2 * time.Second,
	"DETAIL_WORKERS":           1,
	"DETAIL_ATTEMPTS":          3,
	"MAX_ITEM_ATTEMPTS":        9,
	"BETWEEN_ITEMS_DELAY":      time.Second,
	"COUNT_PARTIAL_AS_SUCCESS": true,
	"COUNT_NODATA_AS_SUCCESS":  false,
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Configuration may come purely from the environment.
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.AllowedLeagues = splitList(cfg.AllowedLeagues)
	cfg.AllowedCountries = splitList(cfg.AllowedCountries)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the crawler cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.PoolSize < 1 {
		errs = append(errs, errors.New("POOL_SIZE must be at least 1"))
	}
	if c.DetailWorkers < 1 {
		errs = append(errs, errors.New("DETAIL_WORKERS must be at least 1"))
	}
	if c.DetailWorkers > c.PoolSize {
		errs = append(errs, fmt.Errorf("DETAIL_WORKERS (%d) cannot exceed POOL_SIZE (%d)", c.DetailWorkers, c.PoolSize))
	}
	if c.DetailAttempts < 1 {
		errs = append(errs, errors.New("DETAIL_ATTEMPTS must be at least 1"))
	}
	if c.MinScrolls < 0 || c.MaxScrolls < 1 || c.MinScrolls > c.MaxScrolls {
		errs = append(errs, fmt.Errorf("scroll bounds invalid: min=%d max=%d", c.MinScrolls, c.MaxScrolls))
	}
	if c.FlushEvery < 1 {
		errs = append(errs, errors.New("FLUSH_EVERY must be at least 1"))
	}
	if c.ScrollIncrement < 1 {
		errs = append(errs, errors.New("SCROLL_INCREMENT must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"POOL_ACQUIRE_TIMEOUT": c.PoolAcquireTimeout,
		"PAGE_LOAD_TIMEOUT":    c.PageLoadTimeout,
		"CHALLENGE_MAX_WAIT":   c.ChallengeMaxWait,
		"SMART_WAIT_INTERVAL":  c.SmartWaitInterval,
		"SMART_WAIT_TIMEOUT":   c.SmartWaitTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is required"))
	}
	return errors.Join(errs...)
}

// splitList flattens comma-separated entries coming from a single env var.
func splitList(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
