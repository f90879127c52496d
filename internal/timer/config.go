package timer

import (
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDurationSeconds          = 300
	DefaultWarningThresholdSeconds  = 60
	DefaultCriticalThresholdSeconds = 30
	DefaultTickInterval             = 250 * time.Millisecond
	DefaultGracePeriod              = 2 * time.Second
	DefaultSubmitTimeout            = 10 * time.Second
)

// Config holds the recognized countdown options. Zero values fall back to defaults,
// except AutoSubmit which must be set explicitly (DefaultConfig sets it).
type Config struct {
	DurationSeconds          int
	WarningThresholdSeconds  int
	CriticalThresholdSeconds int
	TickInterval             time.Duration
	// GracePeriod separates the time-up notification from the submission.
	GracePeriod   time.Duration
	SubmitTimeout time.Duration
	AutoSubmit    bool
}

func DefaultConfig() Config {
	return Config{
		DurationSeconds:          DefaultDurationSeconds,
		WarningThresholdSeconds:  DefaultWarningThresholdSeconds,
		CriticalThresholdSeconds: DefaultCriticalThresholdSeconds,
		TickInterval:             DefaultTickInterval,
		GracePeriod:              DefaultGracePeriod,
		SubmitTimeout:            DefaultSubmitTimeout,
		AutoSubmit:               true,
	}
}

func (c Config) withDefaults() Config {
	if c.DurationSeconds == 0 {
		c.DurationSeconds = DefaultDurationSeconds
	}
	if c.WarningThresholdSeconds <= 0 {
		c.WarningThresholdSeconds = DefaultWarningThresholdSeconds
	}
	if c.CriticalThresholdSeconds <= 0 {
		c.CriticalThresholdSeconds = DefaultCriticalThresholdSeconds
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.GracePeriod < 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = DefaultSubmitTimeout
	}
	return c
}

// ParseDurationAttr reads a duration in whole seconds from a raw attribute value.
// Absent, non-numeric and non-positive values yield DefaultDurationSeconds.
func ParseDurationAttr(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultDurationSeconds
	}
	// leading digits only, so "300s" reads as 300
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil || n <= 0 {
		return DefaultDurationSeconds
	}
	return n
}
