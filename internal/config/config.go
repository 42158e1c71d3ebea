package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config keeps runtime settings for the tracker.
type Config struct {
	TelegramToken    string        `mapstructure:"telegram_token"`
	DatabaseURL      string        `mapstructure:"database_url"`
	HTTPAddr         string        `mapstructure:"http_addr"`
	DisplayTimezone  string        `mapstructure:"display_timezone"`
	OverdueInterval  time.Duration `mapstructure:"overdue_interval"`
	UpcomingInterval time.Duration `mapstructure:"upcoming_interval"`
	UpcomingWindow   time.Duration `mapstructure:"upcoming_window"`
	DigestWindow     time.Duration `mapstructure:"digest_window"`
	DigestTime       string        `mapstructure:"digest_time"`
	CleanupTime      string        `mapstructure:"cleanup_time"`
	SeedCategories   bool          `mapstructure:"seed_categories"`
	LogLevel         string        `mapstructure:"log_level"`
}

// Load reads configuration from an optional .env file and environment
// variables with sane defaults. The Telegram token is intentionally not
// required here: without it the gateway fails sends while task management
// keeps working.
func Load() (Config, error) {
	// Best effort: a missing .env file is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("telegram_token", "")
	v.SetDefault("database_url", "todo_tracker.db")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("display_timezone", "America/Adak")
	v.SetDefault("overdue_interval", time.Minute)
	v.SetDefault("upcoming_interval", 5*time.Minute)
	v.SetDefault("upcoming_window", time.Hour)
	v.SetDefault("digest_window", 24*time.Hour)
	v.SetDefault("digest_time", "09:00")
	v.SetDefault("cleanup_time", "02:00")
	v.SetDefault("seed_categories", false)
	v.SetDefault("log_level", "info")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	if cfg.OverdueInterval <= 0 || cfg.UpcomingInterval <= 0 {
		return cfg, fmt.Errorf("scan intervals must be positive")
	}
	if cfg.UpcomingWindow <= 0 || cfg.DigestWindow <= 0 {
		return cfg, fmt.Errorf("scan windows must be positive")
	}

	return cfg, nil
}

// Location resolves the configured display timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("load display timezone %q: %w", c.DisplayTimezone, err)
	}
	return loc, nil
}
