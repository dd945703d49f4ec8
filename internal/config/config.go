package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/cryptoknapsack/internal/knapsack"
	"github.com/eugenenazirov/cryptoknapsack/internal/playback"
	"github.com/eugenenazirov/cryptoknapsack/internal/storage"
)

const (
	defaultPort           = "8080"
	defaultCapacity       = 64
	defaultMaxCapacity    = 1 << 16
	defaultLogLevel       = "info"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > Environment variables > YAML config > Defaults
type Config struct {
	Port                 string          `yaml:"port"`
	Capacity             int             `yaml:"capacity"`
	MaxCapacity          int             `yaml:"max_capacity"`
	InitialDelay         time.Duration   `yaml:"initial_delay"`
	StepDelay            time.Duration   `yaml:"step_delay"`
	Items                []knapsack.Item `yaml:"items"`
	LogLevel             string          `yaml:"log_level"`
	ShutdownGracePeriod  time.Duration   `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    time.Duration   `yaml:"read_header_timeout"`
	WriteTimeout         time.Duration   `yaml:"write_timeout"`
	IdleTimeout          time.Duration   `yaml:"idle_timeout"`
	EnableRequestLogging bool            `yaml:"enable_request_logging"`
	RateLimitRPS         float64         `yaml:"-"`
	RateLimitBurst       int             `yaml:"-"`
	AllowedOrigins       []string        `yaml:"allowed_origins"`
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string          `yaml:"port"`
	Capacity             *int            `yaml:"capacity"`
	MaxCapacity          *int            `yaml:"max_capacity"`
	Playback             yamlPlayback    `yaml:"playback"`
	Items                []knapsack.Item `yaml:"items"`
	LogLevel             string          `yaml:"log_level"`
	ShutdownGracePeriod  string          `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string          `yaml:"read_header_timeout"`
	WriteTimeout         string          `yaml:"write_timeout"`
	IdleTimeout          string          `yaml:"idle_timeout"`
	EnableRequestLogging *bool           `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit   `yaml:"rate_limit"`
	AllowedOrigins       []string        `yaml:"allowed_origins"`
}

// yamlPlayback represents the playback section in YAML.
type yamlPlayback struct {
	InitialDelay string `yaml:"initial_delay"`
	StepDelay    string `yaml:"step_delay"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile string
	// DefaultLogLevel replaces the built-in log level default. YAML, env and
	// LogLevel still take precedence over it.
	DefaultLogLevel string
	Port           *string
	Capacity       *int
	ItemsStr       *string
	InitialDelay   *time.Duration
	StepDelay      *time.Duration
	LogLevel       *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > Environment variables > YAML config > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()
	if overrides != nil && overrides.DefaultLogLevel != "" {
		cfg.LogLevel = overrides.DefaultLogLevel
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("apply environment: %w", err)
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		Capacity:             defaultCapacity,
		MaxCapacity:          defaultMaxCapacity,
		InitialDelay:         playback.DefaultInitialDelay,
		StepDelay:            playback.DefaultStepDelay,
		Items:                storage.DefaultItems(),
		LogLevel:             defaultLogLevel,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct. Absent
// keys leave the current value untouched.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.Capacity != nil {
		cfg.Capacity = *yamlCfg.Capacity
	}
	if yamlCfg.MaxCapacity != nil {
		cfg.MaxCapacity = *yamlCfg.MaxCapacity
	}
	if len(yamlCfg.Items) > 0 {
		cfg.Items = yamlCfg.Items
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if len(yamlCfg.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = yamlCfg.AllowedOrigins
	}

	durations := []struct {
		key   string
		raw   string
		field *time.Duration
	}{
		{"playback.initial_delay", yamlCfg.Playback.InitialDelay, &cfg.InitialDelay},
		{"playback.step_delay", yamlCfg.Playback.StepDelay, &cfg.StepDelay},
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.field = value
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if raw := strings.TrimSpace(os.Getenv("CAPACITY")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("CAPACITY: invalid integer %q", raw)
		}
		cfg.Capacity = value
	}

	if raw := strings.TrimSpace(os.Getenv("ITEMS")); raw != "" {
		items, err := parseItems(raw)
		if err != nil {
			return fmt.Errorf("ITEMS: %w", err)
		}
		cfg.Items = items
	}

	for _, env := range []struct {
		name  string
		field *time.Duration
	}{
		{"INITIAL_DELAY", &cfg.InitialDelay},
		{"STEP_DELAY", &cfg.StepDelay},
	} {
		raw := strings.TrimSpace(os.Getenv(env.name))
		if raw == "" {
			continue
		}
		value, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", env.name, err)
		}
		*env.field = value
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if raw := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); raw != "" {
		cfg.AllowedOrigins = splitList(raw)
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.Capacity != nil {
		cfg.Capacity = *overrides.Capacity
	}

	if overrides.ItemsStr != nil && *overrides.ItemsStr != "" {
		items, err := parseItems(*overrides.ItemsStr)
		if err != nil {
			return fmt.Errorf("parse items: %w", err)
		}
		cfg.Items = items
	}

	if overrides.InitialDelay != nil {
		cfg.InitialDelay = *overrides.InitialDelay
	}

	if overrides.StepDelay != nil {
		cfg.StepDelay = *overrides.StepDelay
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return errors.New("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return errors.New("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.MaxCapacity <= 0 {
		return errors.New("max capacity must be positive")
	}
	if cfg.Capacity < 0 || cfg.Capacity > cfg.MaxCapacity {
		return fmt.Errorf("capacity must be between 0 and %d, got %d", cfg.MaxCapacity, cfg.Capacity)
	}
	if cfg.InitialDelay < 0 || cfg.StepDelay < 0 {
		return errors.New("playback delays must be >= 0")
	}
	if len(cfg.Items) == 0 {
		return errors.New("items cannot be empty")
	}
	if len(cfg.Items) > storage.MaxItems {
		return fmt.Errorf("at most %d items are supported, got %d", storage.MaxItems, len(cfg.Items))
	}
	if err := knapsack.ValidateItems(cfg.Items); err != nil {
		return fmt.Errorf("invalid items: %w", err)
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// parseItems parses a comma-separated list of label:size:profit triples.
// Ids are assigned in list order starting at zero.
func parseItems(raw string) ([]knapsack.Item, error) {
	parts := strings.Split(raw, ",")
	items := make([]knapsack.Item, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid item %q, expected label:size:profit", part)
		}
		size, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid size in %q", part)
		}
		profit, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("invalid profit in %q", part)
		}
		item, err := knapsack.NewItem(len(items), strings.TrimSpace(fields[0]), size, profit)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, errors.New("no items provided")
	}
	return items, nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
