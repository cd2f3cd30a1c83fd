// Package util provides configuration and logging for netcrawl.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ErrConfig marks fatal configuration problems. No crawl is attempted when
// validation fails.
var ErrConfig = errors.New("config error")

// Config holds all application configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Crawl settings
	SeedDevice   string `mapstructure:"seed_device"`
	DeviceFamily string `mapstructure:"device_family"`
	Workers      int    `mapstructure:"workers"`
	QueueSize    int    `mapstructure:"queue_size"`

	// Credentials
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	KeyFile  string `mapstructure:"key_file"`

	// Connector settings
	SSHPort        int           `mapstructure:"ssh_port"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	CommandRetries int           `mapstructure:"command_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`

	// Discovery filters
	ExcludeHosts  []string `mapstructure:"exclude_hosts"`
	IncludeOnly   []string `mapstructure:"include_only"`
	StripDomains  []string `mapstructure:"strip_domains"`
	SkipPlatforms []string `mapstructure:"skip_platforms"`

	// Template settings
	TemplateDir string `mapstructure:"template_dir"`

	// Export settings
	ExportPath string `mapstructure:"export_path"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".netcrawl")

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		LogFile:  filepath.Join(dataDir, "netcrawl.log"),

		DeviceFamily: "cisco_ios",
		Workers:      4,
		QueueSize:    4096,

		SSHPort:        22,
		ConnectTimeout: 20 * time.Second,
		CommandTimeout: 30 * time.Second,
		CommandRetries: 2,
		RetryBackoff:   2 * time.Second,

		// Platforms that should never be crawled (reported over CDP but
		// not reachable as shell endpoints).
		SkipPlatforms: []string{"IP Phone", "CIPC", "CTS", "CP-"},

		ExportPath: filepath.Join(dataDir, "inventory.csv"),
	}
}

// LoadConfig loads configuration from file and environment.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	// Ensure config directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(cfg.DataDir)
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("netcrawl")
	viper.AutomaticEnv()

	// Set defaults in viper
	viper.SetDefault("data_dir", cfg.DataDir)
	viper.SetDefault("log_level", cfg.LogLevel)
	viper.SetDefault("log_file", cfg.LogFile)
	viper.SetDefault("device_family", cfg.DeviceFamily)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("queue_size", cfg.QueueSize)
	viper.SetDefault("ssh_port", cfg.SSHPort)
	viper.SetDefault("connect_timeout", cfg.ConnectTimeout)
	viper.SetDefault("command_timeout", cfg.CommandTimeout)
	viper.SetDefault("command_retries", cfg.CommandRetries)
	viper.SetDefault("retry_backoff", cfg.RetryBackoff)
	viper.SetDefault("skip_platforms", cfg.SkipPlatforms)
	viper.SetDefault("export_path", cfg.ExportPath)

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate checks that a crawl can actually be attempted with this config.
func (c *Config) Validate() error {
	if c.SeedDevice == "" {
		return errors.Wrap(ErrConfig, "seed device is required")
	}
	if c.Username == "" {
		return errors.Wrap(ErrConfig, "username is required")
	}
	if c.Password == "" && c.KeyFile == "" {
		return errors.Wrap(ErrConfig, "either password or key_file is required")
	}
	if c.Workers <= 0 {
		return errors.Wrapf(ErrConfig, "workers must be positive, got %d", c.Workers)
	}
	if c.CommandRetries < 0 {
		return errors.Wrapf(ErrConfig, "command_retries must not be negative, got %d", c.CommandRetries)
	}
	return nil
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}
