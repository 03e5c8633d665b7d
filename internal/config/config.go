package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	DBDriver        string        `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN           string        `env:"DB_DSN" envDefault:"gymclass.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"`
	DBLogLevel      string        `env:"DB_LOG_LEVEL" envDefault:"warn"`
	DBSlowThreshold time.Duration `env:"DB_SLOW_THRESHOLD" envDefault:"200ms"`

	// Club-local calendar used for "today" and for session start/end instants.
	Timezone string `env:"CLUB_TIMEZONE" envDefault:"UTC"`

	BookingLockTimeout time.Duration `env:"BOOKING_LOCK_TIMEOUT" envDefault:"3s"`
	MaxExpansionDays   int           `env:"MAX_EXPANSION_DAYS" envDefault:"366"`

	SweepEnabled  bool   `env:"SWEEP_ENABLED" envDefault:"true"`
	SweepSchedule string `env:"SWEEP_SCHEDULE" envDefault:"*/5 * * * *"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] no .env file, using process environment")
	}
	return Parse()
}

// Parse fills a Config from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MaxExpansionDays <= 0 {
		return Config{}, fmt.Errorf("parse env: MAX_EXPANSION_DAYS must be positive, got %d", cfg.MaxExpansionDays)
	}
	if cfg.BookingLockTimeout <= 0 {
		return Config{}, fmt.Errorf("parse env: BOOKING_LOCK_TIMEOUT must be positive, got %s", cfg.BookingLockTimeout)
	}
	return cfg, nil
}

// Location resolves the club timezone, falling back to a fixed UTC zone
// when tzdata is missing.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("[config] unknown timezone %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}
