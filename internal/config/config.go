// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Explore ExploreConfig `mapstructure:"explore" yaml:"explore"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless bool     `mapstructure:"headless" yaml:"headless"`
	Args     []string `mapstructure:"args" yaml:"args"`
}

// NetworkConfig tunes page-load behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// LLMConfig defines the reasoning-service connection. An empty APIKey means
// the service is unavailable and the deterministic fallback is used; it is
// never an error.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// RateLimit is the maximum request rate against the service, in
	// requests per second.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// ExploreConfig holds the per-run exploration settings.
type ExploreConfig struct {
	MaxSteps             int           `mapstructure:"max_steps" yaml:"max_steps"`
	Timeout              time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ScreenshotOnEachStep bool          `mapstructure:"screenshot_on_each_step" yaml:"screenshot_on_each_step"`
	StopOnCriticalIssue  bool          `mapstructure:"stop_on_critical_issue" yaml:"stop_on_critical_issue"`
	BaseURL              string        `mapstructure:"base_url" yaml:"base_url"`
	SettleDelay          time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	OutputDir            string        `mapstructure:"output_dir" yaml:"output_dir"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "kestrel")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.args", []string{})

	// -- Network --
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.post_load_wait", "1500ms")

	// -- LLM --
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.api_timeout", "30s")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.rate_limit", 0.5)

	// -- Explore --
	v.SetDefault("explore.max_steps", 20)
	v.SetDefault("explore.timeout", "60s")
	v.SetDefault("explore.screenshot_on_each_step", true)
	v.SetDefault("explore.stop_on_critical_issue", false)
	v.SetDefault("explore.base_url", "http://localhost:3000")
	v.SetDefault("explore.settle_delay", "500ms")
	v.SetDefault("explore.output_dir", "ux-reports")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Unreachable with defaults only, but fail loudly rather than
		// continue with a zero config.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("llm.api_key", "KESTREL_LLM_API_KEY", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Some environments deliver the key only through the raw environment.
	if cfg.LLM.APIKey == "" {
		if key := os.Getenv("KESTREL_LLM_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Explore.MaxSteps <= 0 {
		return fmt.Errorf("explore.max_steps must be a positive integer")
	}
	if c.Explore.Timeout <= 0 {
		return fmt.Errorf("explore.timeout must be a positive duration")
	}
	if c.Explore.SettleDelay < 0 {
		return fmt.Errorf("explore.settle_delay must not be negative")
	}
	if c.Explore.BaseURL == "" {
		return fmt.Errorf("explore.base_url is required")
	}
	if c.LLM.RateLimit <= 0 {
		return fmt.Errorf("llm.rate_limit must be positive")
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	return nil
}

// ResolveOutputDir expands a leading "~" in the configured report output
// directory and returns an absolute-usable path.
func (c *Config) ResolveOutputDir() (string, error) {
	dir := c.Explore.OutputDir
	if dir == "" {
		dir = "ux-reports"
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", fmt.Errorf("failed to expand output directory %q: %w", dir, err)
	}
	return expanded, nil
}
