package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"aptitude-quiz/internal/timer"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Quiz     QuizConfig     `yaml:"quiz"`
	Timer    TimerConfig    `yaml:"timer"`
	Flash    FlashConfig    `yaml:"flash"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port           string   `yaml:"port" env:"PORT"`
	AllowedOrigins []string `yaml:"allowedOrigins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	// AllowTimerControl lets websocket clients pause and adjust their countdown.
	AllowTimerControl bool `yaml:"allowTimerControl" env:"ALLOW_TIMER_CONTROL"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	TTL      string `yaml:"ttl" env:"REDIS_TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"POSTGRES_URL"`
}

type QuizConfig struct {
	TTL string `yaml:"ttl" env:"QUIZ_TTL"`
}

type TimerConfig struct {
	DurationSeconds          int    `yaml:"durationSeconds" env:"TIMER_DURATION_SECONDS"`
	WarningThresholdSeconds  int    `yaml:"warningThresholdSeconds" env:"TIMER_WARNING_THRESHOLD_SECONDS"`
	CriticalThresholdSeconds int    `yaml:"criticalThresholdSeconds" env:"TIMER_CRITICAL_THRESHOLD_SECONDS"`
	TickInterval             string `yaml:"tickInterval" env:"TIMER_TICK_INTERVAL"`
	GracePeriod              string `yaml:"gracePeriod" env:"TIMER_GRACE_PERIOD"`
	SubmitTimeout            string `yaml:"submitTimeout" env:"TIMER_SUBMIT_TIMEOUT"`
	AutoSubmit               *bool  `yaml:"autoSubmit" env:"TIMER_AUTO_SUBMIT"`
}

type FlashConfig struct {
	AutoDismiss string `yaml:"autoDismiss" env:"FLASH_AUTO_DISMISS"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Load reads YAML config from path, then applies environment overrides.
// A missing file is not an error; the service then runs on env and defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// Countdown converts the timer section into countdown options.
func (c TimerConfig) Countdown() timer.Config {
	cfg := timer.DefaultConfig()
	if c.DurationSeconds > 0 {
		cfg.DurationSeconds = c.DurationSeconds
	}
	if c.WarningThresholdSeconds > 0 {
		cfg.WarningThresholdSeconds = c.WarningThresholdSeconds
	}
	if c.CriticalThresholdSeconds > 0 {
		cfg.CriticalThresholdSeconds = c.CriticalThresholdSeconds
	}
	cfg.TickInterval = TTLDuration(c.TickInterval, timer.DefaultTickInterval)
	cfg.GracePeriod = TTLDuration(c.GracePeriod, timer.DefaultGracePeriod)
	cfg.SubmitTimeout = TTLDuration(c.SubmitTimeout, timer.DefaultSubmitTimeout)
	if c.AutoSubmit != nil {
		cfg.AutoSubmit = *c.AutoSubmit
	}
	return cfg
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
