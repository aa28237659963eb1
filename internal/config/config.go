// Package config loads, validates, and hot-reloads the chaosd configuration
// file, publishing immutable snapshots for the decision engine.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Greg89/normaize-server-sub004/internal/chaos"
)

// Config is the on-disk configuration schema.
type Config struct {
	Environment string        `yaml:"environment"`
	Logging     LoggingConfig `yaml:"logging"`
	API         APIConfig     `yaml:"api"`
	Chaos       ChaosConfig   `yaml:"chaos"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Encoding   string `yaml:"encoding"` // json or console
	OutputPath string `yaml:"output_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// APIConfig configures the admin HTTP server.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	RateLimit  int    `yaml:"rate_limit"` // requests per second per client IP
	RateBurst  int    `yaml:"rate_burst"`
}

// ChaosConfig configures the fault-injection engine.
type ChaosConfig struct {
	Enabled                     bool                `yaml:"enabled"`
	AllowedEnvironments         []string            `yaml:"allowed_environments"`
	GlobalProbabilityMultiplier float64             `yaml:"global_probability_multiplier"`
	MaxTriggersPerMinute        int                 `yaml:"max_triggers_per_minute"`
	EnableLogging               bool                `yaml:"enable_logging"`
	PropagateActionErrors       bool                `yaml:"propagate_action_errors"`
	UserTargeting               UserTargetingConfig `yaml:"user_targeting"`
	Scenarios                   []ScenarioConfig    `yaml:"scenarios"`
}

// UserTargetingConfig narrows or boosts injection for specific users.
type UserTargetingConfig struct {
	Enabled                       bool     `yaml:"enabled"`
	ExcludedUserIDs               []string `yaml:"excluded_user_ids"`
	TestUserIDs                   []string `yaml:"test_user_ids"`
	TestUserProbabilityMultiplier float64  `yaml:"test_user_probability_multiplier"`
}

// ScenarioConfig configures one named scenario.
type ScenarioConfig struct {
	Name                 string             `yaml:"name"`
	Enabled              bool               `yaml:"enabled"`
	Probability          float64            `yaml:"probability"`
	MaxTriggersPerHour   int                `yaml:"max_triggers_per_hour"`
	TimeWindowRestricted bool               `yaml:"time_window_restricted"`
	AllowedWindows       []TimeWindowConfig `yaml:"allowed_windows"`
}

// TimeWindowConfig is a recurring day-of-week plus time-of-day interval.
// Start and End are "HH:MM" or "HH:MM:SS"; Start after End spans midnight.
type TimeWindowConfig struct {
	DaysOfWeek []int  `yaml:"days_of_week"`
	Start      string `yaml:"start"`
	End        string `yaml:"end"`
}

// Load reads and validates the configuration at path. Malformed time strings
// and out-of-range values fail here, never inside the decision path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when the file omits a section.
func Default() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Encoding:   "json",
			OutputPath: "stdout",
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 30,
			Compress:   true,
		},
		API: APIConfig{
			Enabled:    true,
			ListenAddr: ":8085",
			RateLimit:  50,
			RateBurst:  100,
		},
		Chaos: ChaosConfig{
			Enabled:                     false,
			AllowedEnvironments:         []string{"development", "staging"},
			GlobalProbabilityMultiplier: 1.0,
			MaxTriggersPerMinute:        60,
			EnableLogging:               true,
			UserTargeting: UserTargetingConfig{
				TestUserProbabilityMultiplier: 1.0,
			},
		},
	}
}

// Validate checks the loaded configuration. Conversion to the engine
// snapshot reuses the same parsing, so anything that passes here cannot fail
// later.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return chaos.ValidationError{Field: "environment", Message: "must not be empty"}
	}
	if c.API.Enabled && c.API.ListenAddr == "" {
		return chaos.ValidationError{Field: "api.listen_addr", Message: "required when the API is enabled"}
	}
	if c.Chaos.GlobalProbabilityMultiplier < 0 {
		return chaos.ValidationError{Field: "chaos.global_probability_multiplier", Value: c.Chaos.GlobalProbabilityMultiplier, Message: "must not be negative"}
	}
	if c.Chaos.MaxTriggersPerMinute < 0 {
		return chaos.ValidationError{Field: "chaos.max_triggers_per_minute", Value: c.Chaos.MaxTriggersPerMinute, Message: "must not be negative"}
	}
	if c.Chaos.UserTargeting.TestUserProbabilityMultiplier < 0 {
		return chaos.ValidationError{Field: "chaos.user_targeting.test_user_probability_multiplier", Value: c.Chaos.UserTargeting.TestUserProbabilityMultiplier, Message: "must not be negative"}
	}

	seen := make(map[string]bool, len(c.Chaos.Scenarios))
	for _, s := range c.Chaos.Scenarios {
		if s.Name == "" {
			return chaos.ValidationError{Field: "chaos.scenarios.name", Message: "must not be empty"}
		}
		if seen[s.Name] {
			return chaos.ValidationError{Field: "chaos.scenarios.name", Value: s.Name, Message: "duplicate scenario name"}
		}
		seen[s.Name] = true
		if s.Probability < 0 || s.Probability > 1 {
			return chaos.ValidationError{Field: "chaos.scenarios.probability", Value: s.Probability, Message: "must be in [0,1]"}
		}
		if s.MaxTriggersPerHour < 0 {
			return chaos.ValidationError{Field: "chaos.scenarios.max_triggers_per_hour", Value: s.MaxTriggersPerHour, Message: "must not be negative"}
		}
		for _, w := range s.AllowedWindows {
			if _, err := w.toWindow(); err != nil {
				return fmt.Errorf("scenario %q: %w", s.Name, err)
			}
		}
	}
	return nil
}

// Snapshot converts the configuration into the engine's immutable view.
func (c *Config) Snapshot() (chaos.Snapshot, error) {
	scenarios := make(map[string]chaos.ScenarioConfig, len(c.Chaos.Scenarios))
	for _, s := range c.Chaos.Scenarios {
		windows := make([]chaos.TimeWindow, 0, len(s.AllowedWindows))
		for _, w := range s.AllowedWindows {
			tw, err := w.toWindow()
			if err != nil {
				return chaos.Snapshot{}, fmt.Errorf("scenario %q: %w", s.Name, err)
			}
			windows = append(windows, tw)
		}
		scenarios[s.Name] = chaos.ScenarioConfig{
			Name:                 s.Name,
			Enabled:              s.Enabled,
			Probability:          s.Probability,
			MaxTriggersPerHour:   s.MaxTriggersPerHour,
			TimeWindowRestricted: s.TimeWindowRestricted,
			AllowedWindows:       windows,
		}
	}

	return chaos.Snapshot{
		Environment: c.Environment,
		Global: chaos.GlobalConfig{
			Enabled:                     c.Chaos.Enabled,
			AllowedEnvironments:         append([]string(nil), c.Chaos.AllowedEnvironments...),
			GlobalProbabilityMultiplier: c.Chaos.GlobalProbabilityMultiplier,
			MaxTriggersPerMinute:        c.Chaos.MaxTriggersPerMinute,
			EnableLogging:               c.Chaos.EnableLogging,
			PropagateActionErrors:       c.Chaos.PropagateActionErrors,
		},
		UserTargeting: chaos.UserTargeting{
			Enabled:                       c.Chaos.UserTargeting.Enabled,
			ExcludedUserIDs:               append([]string(nil), c.Chaos.UserTargeting.ExcludedUserIDs...),
			TestUserIDs:                   append([]string(nil), c.Chaos.UserTargeting.TestUserIDs...),
			TestUserProbabilityMultiplier: c.Chaos.UserTargeting.TestUserProbabilityMultiplier,
		},
		Scenarios: scenarios,
	}, nil
}

func (w TimeWindowConfig) toWindow() (chaos.TimeWindow, error) {
	days := make([]time.Weekday, 0, len(w.DaysOfWeek))
	for _, d := range w.DaysOfWeek {
		if d < 0 || d > 6 {
			return chaos.TimeWindow{}, chaos.ValidationError{Field: "days_of_week", Value: d, Message: "must be in [0,6]"}
		}
		days = append(days, time.Weekday(d))
	}

	start, err := chaos.ParseClock(w.Start)
	if err != nil {
		return chaos.TimeWindow{}, fmt.Errorf("start: %w", err)
	}
	end, err := chaos.ParseClock(w.End)
	if err != nil {
		return chaos.TimeWindow{}, fmt.Errorf("end: %w", err)
	}
	return chaos.TimeWindow{DaysOfWeek: days, Start: start, End: end}, nil
}
