package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/librebrowser/internal/logger"
	"github.com/loykin/librebrowser/internal/monitor"
	"github.com/loykin/librebrowser/internal/paths"
	"github.com/loykin/librebrowser/internal/platform"
	"github.com/loykin/librebrowser/internal/process"
	"github.com/loykin/librebrowser/internal/surface"
)

// EnvPrefix prefixes environment overrides, e.g. LIBREBROWSER_SERVER_LISTEN.
const EnvPrefix = "LIBREBROWSER"

// Config is the top-level TOML structure.
type Config struct {
	Paths   PathsConfig   `toml:"paths" mapstructure:"paths"`
	Engine  EngineConfig  `toml:"engine" mapstructure:"engine"`
	Profile ProfileConfig `toml:"profile" mapstructure:"profile"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
	Store   StoreConfig   `toml:"store" mapstructure:"store"`
}

type PathsConfig struct {
	// Root overrides the platform data directory.
	Root string `toml:"root" mapstructure:"root"`
}

type EngineConfig struct {
	UserAgent string `toml:"user_agent" mapstructure:"user_agent"`
}

type ProfileConfig struct {
	CrashThreshold    time.Duration `toml:"crash_threshold" mapstructure:"crash_threshold"`
	MonitorInterval   time.Duration `toml:"monitor_interval" mapstructure:"monitor_interval"`
	DiscoveryTimeout  time.Duration `toml:"discovery_timeout" mapstructure:"discovery_timeout"`
	TerminateGrace    time.Duration `toml:"terminate_grace" mapstructure:"terminate_grace"`
	DefaultSurfaceURL string        `toml:"default_url" mapstructure:"default_url"`
}

type LogConfig struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
	Console    bool   `toml:"console" mapstructure:"console"`
	Level      string `toml:"level" mapstructure:"level"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
	// Listen serves /metrics on its own address; empty mounts it on the API server.
	Listen string `toml:"listen" mapstructure:"listen"`
}

type StoreConfig struct {
	// DSN selects the session ledger; empty uses sqlite under the data root.
	DSN      string `toml:"dsn" mapstructure:"dsn"`
	Disabled bool   `toml:"disabled" mapstructure:"disabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.root", "")
	v.SetDefault("engine.user_agent", "")
	v.SetDefault("profile.crash_threshold", monitor.DefaultCrashThreshold)
	v.SetDefault("profile.monitor_interval", monitor.DefaultInterval)
	v.SetDefault("profile.discovery_timeout", platform.DefaultDiscoveryTimeout)
	v.SetDefault("profile.terminate_grace", process.DefaultTerminateGrace)
	v.SetDefault("profile.default_url", surface.DefaultURL)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.console", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("server.listen", "127.0.0.1:8420")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.disabled", false)
}

// Load reads the TOML file at path, or only defaults and environment when
// path is empty.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(filepath.Clean(path))
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the host cannot run with.
func (c Config) Validate() error {
	if c.Profile.CrashThreshold <= 0 {
		return fmt.Errorf("profile.crash_threshold must be positive")
	}
	if c.Profile.MonitorInterval <= 0 {
		return fmt.Errorf("profile.monitor_interval must be positive")
	}
	if c.Profile.DiscoveryTimeout <= 0 {
		return fmt.Errorf("profile.discovery_timeout must be positive")
	}
	if c.Profile.TerminateGrace <= 0 {
		return fmt.Errorf("profile.terminate_grace must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.base_path must start with /")
	}
	return nil
}

// Resolver returns the path resolver for the configured root.
func (c Config) Resolver() paths.Resolver {
	if c.Paths.Root != "" {
		return paths.NewAt(c.Paths.Root)
	}
	return paths.New(paths.DefaultIdentity)
}

// LoggerConfig maps [log] onto the logger package, defaulting the directory
// to <root>/logs.
func (c Config) LoggerConfig(r paths.Resolver) logger.Config {
	dir := c.Log.Dir
	if dir == "" {
		dir = r.LogsDir()
	}
	return logger.Config{
		Dir:        dir,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
		Console:    c.Log.Console,
		Level:      c.Log.Level,
	}
}

// LedgerDSN returns the session ledger DSN, or "" when the ledger is off.
func (c Config) LedgerDSN(r paths.Resolver) string {
	if c.Store.Disabled {
		return ""
	}
	if c.Store.DSN != "" {
		return c.Store.DSN
	}
	return r.LedgerPath()
}
