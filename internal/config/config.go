// Package config loads repograph settings from defaults, an optional YAML
// file, a .env file and REPOGRAPH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REPOGRAPH_STORE_PATH.
const EnvPrefix = "REPOGRAPH"

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// GraphConfig controls graph construction and where saved graphs go.
type GraphConfig struct {
	Cluster bool   `mapstructure:"cluster" yaml:"cluster"`
	Levels  bool   `mapstructure:"levels" yaml:"levels"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// CacheConfig sizes the in-process graph cache.
type CacheConfig struct {
	Size int `mapstructure:"size" yaml:"size"`
}

// ScanConfig bounds local repository walks.
type ScanConfig struct {
	MaxFileSize int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
	IgnoreDirs  []string `mapstructure:"ignore_dirs" yaml:"ignore_dirs"`
}

// GitHubConfig authenticates GitHub acquisition.
type GitHubConfig struct {
	Token  string `mapstructure:"token" yaml:"token"`
	APIURL string `mapstructure:"api_url" yaml:"api_url"`
}

// ScopeConfig bounds assembled context.
type ScopeConfig struct {
	MaxWords int `mapstructure:"max_words" yaml:"max_words"`
}

// LoggingConfig defines the logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// Config is the top-level configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Graph   GraphConfig   `mapstructure:"graph" yaml:"graph"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Scan    ScanConfig    `mapstructure:"scan" yaml:"scan"`
	GitHub  GitHubConfig  `mapstructure:"github" yaml:"github"`
	Scope   ScopeConfig   `mapstructure:"scope" yaml:"scope"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// Load builds the configuration. configFile may be empty, in which case
// config.yaml under Home is read when present. A .env file in the working
// directory is loaded first; variables already set in the environment win.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	home, err := Home()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, home)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(home)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_AUTH_TOKEN")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("store.path", filepath.Join(home, "repograph.db"))
	v.SetDefault("graph.cluster", false)
	v.SetDefault("graph.levels", true)
	v.SetDefault("graph.dir", filepath.Join(home, "graphs"))
	v.SetDefault("cache.size", 64)
	v.SetDefault("scan.max_file_size", 1<<20)
	v.SetDefault("scan.ignore_dirs", []string{".git", "node_modules", "vendor", "__pycache__", ".venv", "dist", "build"})
	v.SetDefault("github.token", "")
	v.SetDefault("github.api_url", "https://api.github.com")
	v.SetDefault("scope.max_words", 6000)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("config: store.path is required")
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("config: cache.size must not be negative, got %d", c.Cache.Size)
	}
	if c.Scan.MaxFileSize < 0 {
		return fmt.Errorf("config: scan.max_file_size must not be negative, got %d", c.Scan.MaxFileSize)
	}
	if c.Scope.MaxWords <= 0 {
		return fmt.Errorf("config: scope.max_words must be positive, got %d", c.Scope.MaxWords)
	}
	return nil
}
