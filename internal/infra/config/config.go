package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Targets  []TargetConfig `mapstructure:"targets" yaml:"targets"`
	Binary   BinaryConfig   `mapstructure:"binary" yaml:"binary"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Validate ValidateConfig `mapstructure:"validate" yaml:"validate"`
	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

// TargetConfig describes one synchronization target: a local directory kept
// in step with a remote file store.
type TargetConfig struct {
	Name         string `mapstructure:"name" yaml:"name"`
	LocalDir     string `mapstructure:"local_dir" yaml:"local_dir"`
	RemoteURL    string `mapstructure:"remote_url" yaml:"remote_url"`
	Asset        string `mapstructure:"asset" yaml:"asset"` // bundled seed archive, optional
	ManifestName string `mapstructure:"manifest_name" yaml:"manifest_name"`
}

type BinaryConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	PackageURL string `mapstructure:"package_url" yaml:"package_url"`
	InstallDir string `mapstructure:"install_dir" yaml:"install_dir"`
}

type DownloadConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

type ValidateConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// RetryConfig drives the default retry policy: up to MaxAttempts tries per
// unit per phase with WaitSeconds between them.
type RetryConfig struct {
	MaxAttempts int     `mapstructure:"max_attempts" yaml:"max_attempts"`
	WaitSeconds float64 `mapstructure:"wait_seconds" yaml:"wait_seconds"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Docker-style fallback when no flag was given
		if path == "config.yaml" {
			if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
				path = "/config/config.yaml"
			} else {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
		} else {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	v := viper.New()

	// Set Defaults
	v.SetDefault("port", "8080")
	v.SetDefault("download.workers", 5)
	v.SetDefault("validate.workers", 20)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.wait_seconds", 2.0)
	v.SetDefault("log.path", "gopatch.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.sqlite_path", "gopatch.db")

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	// Support Environment Variables
	v.SetEnvPrefix("GOPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Targets) == 0 && !c.Binary.Enabled {
		return errors.New("at least one sync target (or the binary updater) must be configured")
	}

	seen := make(map[string]struct{}, len(c.Targets))
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("target[%d] requires a unique name", i)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("target %s: name is duplicated", t.Name)
		}
		seen[t.Name] = struct{}{}

		if t.LocalDir == "" {
			return fmt.Errorf("target %s: local_dir is required", t.Name)
		}
		if t.RemoteURL == "" {
			return fmt.Errorf("target %s: remote_url is required", t.Name)
		}
		if t.ManifestName == "" {
			c.Targets[i].ManifestName = "manifest.txt"
		}
	}

	if c.Download.Workers <= 0 {
		c.Download.Workers = 5
	}
	if c.Validate.Workers <= 0 {
		c.Validate.Workers = 20
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.WaitSeconds < 0 {
		c.Retry.WaitSeconds = 0
	}

	return nil
}
