// Package config handles configuration loading and validation for snapdb.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the snapdb demonstration harness. The
// transactional kernel (internal/mvcc) and internal/engine take none of
// this directly — it is consumed only by cmd/snapdb and internal/cli.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Auth    AuthConfig    `mapstructure:"auth"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// EngineConfig holds MVCC engine scheduling configuration.
type EngineConfig struct {
	// GCOnCommit is shown by the REPL's \status command. The engine runs a
	// garbage collection pass after every successful commit whatever its
	// value; setting it to false only enables the GCIntervalMS timer.
	GCOnCommit bool `mapstructure:"gc_on_commit"`
	// GCIntervalMS is the period of an additional GC timer that `snapdb
	// serve` runs when GCOnCommit is false. Observable behavior is unchanged
	// provided GlobalOldestXmin remains a valid upper bound at the moment of
	// collection.
	GCIntervalMS int `mapstructure:"gc_interval_ms"`
}

// MetricsConfig holds Prometheus HTTP exposition configuration.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// AuthConfig holds REPL operator authentication configuration.
type AuthConfig struct {
	// CredentialFile points at a YAML file holding a bcrypt password hash
	// for the REPL operator. Empty means the REPL requires no password.
	CredentialFile string `mapstructure:"credential_file"`
}

// defaultConfig returns the configuration used when no file or environment
// override is present.
func defaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Engine: EngineConfig{
			GCOnCommit:   true,
			GCIntervalMS: 1000,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9110",
		},
		Auth: AuthConfig{
			CredentialFile: "",
		},
	}
}

// Load reads configuration from an optional YAML file and SNAPDB_*
// environment overrides, falling back to defaultConfig for anything unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.output", cfg.Log.Output)
	v.SetDefault("engine.gc_on_commit", cfg.Engine.GCOnCommit)
	v.SetDefault("engine.gc_interval_ms", cfg.Engine.GCIntervalMS)
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.listen_addr", cfg.Metrics.ListenAddr)
	v.SetDefault("auth.credential_file", cfg.Auth.CredentialFile)

	v.SetEnvPrefix("SNAPDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("snapdb")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.snapdb")
		// It's okay if no config file is found — we use defaults.
		_ = v.ReadInConfig()
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are sensible.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if !c.Engine.GCOnCommit && c.Engine.GCIntervalMS <= 0 {
		return fmt.Errorf("gc_interval_ms must be positive when gc_on_commit is false")
	}

	return nil
}

// CreateDefaultConfig writes a starter configuration file.
func CreateDefaultConfig(path string) error {
	content := `# snapdb configuration file

log:
  level: info            # debug, info, warn, error
  format: text           # text or json
  output: stderr         # stderr, stdout, or file path

engine:
  gc_on_commit: true     # false adds a timed GC in "snapdb serve"; commits always run GC
  gc_interval_ms: 1000   # used only when gc_on_commit is false

metrics:
  enabled: true
  listen_addr: ":9110"

auth:
  credential_file: ""    # path to a YAML file with a bcrypt operator hash
`
	return os.WriteFile(path, []byte(content), 0644)
}
