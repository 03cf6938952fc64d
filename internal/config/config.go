// Package config manages vmlauncher configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Readiness modes
const (
	ReadinessTCP    = "tcp"
	ReadinessSettle = "settle"
	ReadinessNone   = "none"
)

// Config holds the vmlauncher configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Run       RunConfig       `mapstructure:"run"`
	Launch    LaunchConfig    `mapstructure:"launch"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RunConfig holds fleet run timing and output locations
type RunConfig struct {
	GracePeriod        time.Duration `mapstructure:"grace_period"`
	KillTimeout        time.Duration `mapstructure:"kill_timeout"`
	ReadyTimeout       time.Duration `mapstructure:"ready_timeout"`
	WorkerReadyTimeout time.Duration `mapstructure:"worker_ready_timeout"`
	ConfigDir          string        `mapstructure:"config_dir"`

	// Template overrides the built-in node config template
	Template string `mapstructure:"template"`

	// StartRate limits worker starts per second; 0 starts them all at once
	StartRate float64 `mapstructure:"start_rate"`

	// EscalateAfter is how long after the first signal a further one
	// force-kills the fleet; 0 uses GracePeriod
	EscalateAfter time.Duration `mapstructure:"escalate_after"`
}

// LaunchConfig holds how node processes are spawned
type LaunchConfig struct {
	CoordinatorCommand []string `mapstructure:"coordinator_command"`
	WorkerCommand      []string `mapstructure:"worker_command"`
	ConfigFlag         string   `mapstructure:"config_flag"`
	Sudo               bool     `mapstructure:"sudo"`
	Env                []string `mapstructure:"env"`
}

// ReadinessConfig selects how node readiness is detected
type ReadinessConfig struct {
	Mode        string        `mapstructure:"mode"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// MetricsConfig holds the prometheus endpoint configuration
type MetricsConfig struct {
	// Port to serve /metrics on; 0 disables the endpoint
	Port int `mapstructure:"port"`
}

// TracingConfig holds span export configuration
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"`
}

// Load loads configuration from path, or from config.yaml in ~/.vmlauncher
// or the working directory when path is empty. A missing default file is not
// an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.vmlauncher")
		v.AddConfigPath(".")
	}

	// Environment variable overrides, e.g. VMLAUNCHER_RUN_GRACE_PERIOD=5s
	v.SetEnvPrefix("VMLAUNCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("run.grace_period", 10*time.Second)
	v.SetDefault("run.kill_timeout", 5*time.Second)
	v.SetDefault("run.ready_timeout", 60*time.Second)
	v.SetDefault("run.worker_ready_timeout", 60*time.Second)
	v.SetDefault("run.config_dir", filepath.Join(os.TempDir(), "vmlauncher"))
	v.SetDefault("run.template", "")
	v.SetDefault("run.start_rate", 0.0)
	v.SetDefault("run.escalate_after", time.Duration(0))

	v.SetDefault("launch.coordinator_command", []string{"nesCoordinator"})
	v.SetDefault("launch.worker_command", []string{"nesWorker"})
	v.SetDefault("launch.config_flag", "--configPath")
	v.SetDefault("launch.sudo", false)
	v.SetDefault("launch.env", []string{})

	v.SetDefault("readiness.mode", ReadinessTCP)
	v.SetDefault("readiness.settle_delay", 5*time.Second)
	v.SetDefault("readiness.dial_timeout", time.Second)

	v.SetDefault("metrics.port", 0)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	switch c.Readiness.Mode {
	case ReadinessTCP, ReadinessSettle, ReadinessNone:
	default:
		return fmt.Errorf("readiness.mode must be one of %s, %s, %s: got %q",
			ReadinessTCP, ReadinessSettle, ReadinessNone, c.Readiness.Mode)
	}
	if len(c.Launch.CoordinatorCommand) == 0 {
		return fmt.Errorf("launch.coordinator_command must not be empty")
	}
	if len(c.Launch.WorkerCommand) == 0 {
		return fmt.Errorf("launch.worker_command must not be empty")
	}
	if c.Run.StartRate < 0 {
		return fmt.Errorf("run.start_rate must not be negative: got %v", c.Run.StartRate)
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port)
	}
	return nil
}
