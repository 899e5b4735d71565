// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the whole application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Browser BrowserConfig `mapstructure:"browser"`
	Env     EnvConfig     `mapstructure:"env"`
	Harness HarnessConfig `mapstructure:"harness"`
}

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
	AddSource   bool   `mapstructure:"add_source"`
}

// BrowserConfig controls the Chrome process and per-page timeouts.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	Args              []string      `mapstructure:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout"`
}

// EnvConfig controls the environment state machine and observation captures.
type EnvConfig struct {
	CaptureHTML       bool          `mapstructure:"capture_html"`
	CaptureAXTree     bool          `mapstructure:"capture_axtree"`
	CaptureScreenshot bool          `mapstructure:"capture_screenshot"`
	// SettleWait is how long a step waits for UI events before re-observing.
	SettleWait time.Duration `mapstructure:"settle_wait"`
	// SettleTimeout bounds the per-tab navigation/network quiescence wait.
	SettleTimeout time.Duration `mapstructure:"settle_timeout"`
}

// HarnessConfig controls episode execution and result caching.
type HarnessConfig struct {
	ResultsDir     string  `mapstructure:"results_dir"`
	UseCache       bool    `mapstructure:"use_cache"`
	ForceRefresh   bool    `mapstructure:"force_refresh"`
	CacheOnly      bool    `mapstructure:"cache_only"`
	MaxSteps       int     `mapstructure:"max_steps"`
	DefaultVersion string  `mapstructure:"default_version"`
	Workers        int     `mapstructure:"workers"`
	AgentRPS       float64 `mapstructure:"agent_rps"` // 0 = unlimited
	TaskName       string  `mapstructure:"task_name"`
	TaskType       string  `mapstructure:"task_type"`
	TaskIDs        []int   `mapstructure:"task_ids"`
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "browsebench")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 14)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.launch_timeout", 60*time.Second)

	v.SetDefault("env.capture_html", true)
	v.SetDefault("env.capture_axtree", true)
	v.SetDefault("env.capture_screenshot", true)
	v.SetDefault("env.settle_wait", 500*time.Millisecond)
	v.SetDefault("env.settle_timeout", 5*time.Second)

	v.SetDefault("harness.results_dir", "./results")
	v.SetDefault("harness.use_cache", true)
	v.SetDefault("harness.max_steps", 30)
	v.SetDefault("harness.default_version", "v1")
	v.SetDefault("harness.workers", 1)
}

// Load reads configuration from the optional file path plus BROWSEBENCH_*
// environment variables and returns the resolved Config.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("BROWSEBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the run.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	dir, err := homedir.Expand(cfg.Harness.ResultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand results dir %q: %w", cfg.Harness.ResultsDir, err)
	}
	cfg.Harness.ResultsDir = filepath.Clean(dir)

	return &cfg, nil
}
