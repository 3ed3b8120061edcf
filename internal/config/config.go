// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Resolver() ResolverConfig
	Scorer() ScorerConfig
	History() HistoryConfig
	Interaction() InteractionConfig
	Engine() EngineConfig

	// Browser Setters
	SetBrowserHeadless(bool)

	// Resolver Setters
	SetResolverWait(d time.Duration)

	// Engine Setters
	SetEngineConcurrency(int)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	BrowserCfg     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	ResolverCfg    ResolverConfig    `mapstructure:"resolver" yaml:"resolver"`
	ScorerCfg      ScorerConfig      `mapstructure:"scorer" yaml:"scorer"`
	HistoryCfg     HistoryConfig     `mapstructure:"history" yaml:"history"`
	InteractionCfg InteractionConfig `mapstructure:"interaction" yaml:"interaction"`
	EngineCfg      EngineConfig      `mapstructure:"engine" yaml:"engine"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Resolver() ResolverConfig       { return c.ResolverCfg }
func (c *Config) Scorer() ScorerConfig           { return c.ScorerCfg }
func (c *Config) History() HistoryConfig         { return c.HistoryCfg }
func (c *Config) Interaction() InteractionConfig { return c.InteractionCfg }
func (c *Config) Engine() EngineConfig           { return c.EngineCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)       { c.BrowserCfg.Headless = b }
func (c *Config) SetResolverWait(d time.Duration) { c.ResolverCfg.Wait = d }
func (c *Config) SetEngineConcurrency(n int)      { c.EngineCfg.Concurrency = n }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser used by the CLI.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// OperationTimeout bounds a single driver primitive (one click, one query).
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
}

// ResolverConfig tunes the three-tier resolution engine.
type ResolverConfig struct {
	// Wait is how long tier 1 and tier 2 lookups poll for a match.
	Wait         time.Duration `mapstructure:"wait" yaml:"wait"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// Fanout caps how many history alternates tier 2 tries.
	Fanout        int `mapstructure:"fanout" yaml:"fanout"`
	MaxCandidates int `mapstructure:"max_candidates" yaml:"max_candidates"`
	// ProximityRadius limits tier 3 to candidates within this many pixels of
	// the last known position. Zero disables the filter.
	ProximityRadius float64 `mapstructure:"proximity_radius" yaml:"proximity_radius"`
}

// ScorerConfig configures the similarity scorer.
type ScorerConfig struct {
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
	// Weights overrides per-attribute weights; unlisted attributes keep the defaults.
	Weights map[string]float64 `mapstructure:"weights" yaml:"weights"`
}

// HistoryConfig configures the element history store.
type HistoryConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
	// MaxElements bounds how many element ids are tracked. Zero is unbounded.
	MaxElements int `mapstructure:"max_elements" yaml:"max_elements"`
}

// InteractionConfig configures the resilient interaction executor.
type InteractionConfig struct {
	Attempts int           `mapstructure:"attempts" yaml:"attempts"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
}

// EngineConfig configures the multi-session step engine.
type EngineConfig struct {
	QueueSize   int           `mapstructure:"queue_size" yaml:"queue_size"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	StepTimeout time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "scalpel-heal")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1366, "height": 768})
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.operation_timeout", "15s")

	// -- Resolver --
	v.SetDefault("resolver.wait", "10s")
	v.SetDefault("resolver.poll_interval", "100ms")
	v.SetDefault("resolver.fanout", 5)
	v.SetDefault("resolver.max_candidates", 500)
	v.SetDefault("resolver.proximity_radius", 0.0)

	// -- Scorer --
	v.SetDefault("scorer.threshold", 0.7)

	// -- History --
	v.SetDefault("history.capacity", 100)
	v.SetDefault("history.max_elements", 0)

	// -- Interaction --
	v.SetDefault("interaction.attempts", 4)
	v.SetDefault("interaction.delay", "500ms")

	// -- Engine --
	v.SetDefault("engine.queue_size", 64)
	v.SetDefault("engine.concurrency", 4)
	v.SetDefault("engine.step_timeout", "2m")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.ResolverCfg.Validate(); err != nil {
		return fmt.Errorf("resolver configuration invalid: %w", err)
	}
	if c.ScorerCfg.Threshold <= 0 || c.ScorerCfg.Threshold > 1 {
		return fmt.Errorf("scorer.threshold must be in (0, 1]")
	}
	for name, w := range c.ScorerCfg.Weights {
		if w < 0 {
			return fmt.Errorf("scorer.weights.%s must not be negative", name)
		}
	}
	if c.HistoryCfg.Capacity <= 0 {
		return fmt.Errorf("history.capacity must be a positive integer")
	}
	if c.HistoryCfg.MaxElements < 0 {
		return fmt.Errorf("history.max_elements must not be negative")
	}
	if c.InteractionCfg.Attempts <= 0 {
		return fmt.Errorf("interaction.attempts must be a positive integer")
	}
	if c.InteractionCfg.Delay < 0 {
		return fmt.Errorf("interaction.delay must not be negative")
	}
	if c.EngineCfg.Concurrency <= 0 {
		return fmt.Errorf("engine.concurrency must be a positive integer")
	}
	return nil
}

// Validate checks the ResolverConfig settings.
func (r *ResolverConfig) Validate() error {
	if r.Wait < 0 {
		return fmt.Errorf("wait must not be negative")
	}
	if r.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if r.Fanout <= 0 {
		return fmt.Errorf("fanout must be a positive integer")
	}
	if r.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be a positive integer")
	}
	if r.ProximityRadius < 0 {
		return fmt.Errorf("proximity_radius must not be negative")
	}
	return nil
}
