// Package config loads longshot's settings from defaults, an optional YAML file and LONGSHOT_* environment variables,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/andrewcai8/agentswarm/internal/layout"
)

const (
	AppName        = "longshot"
	ConfigFileName = "config.yml"
	EnvFileName    = ".env"
)

// Config is the effective configuration for one run.
type Config struct {
	CacheDir         string        `mapstructure:"cache_dir"`
	ReleaseBaseURL   string        `mapstructure:"release_base_url"`
	ReleaseRepo      string        `mapstructure:"release_repo"`
	RuntimeURL       string        `mapstructure:"runtime_url"`
	DownloadTimeout  time.Duration `mapstructure:"download_timeout"`
	ShutdownGrace    time.Duration `mapstructure:"shutdown_grace"`
	Node             string        `mapstructure:"node"`
	PackageManager   string        `mapstructure:"package_manager"`
	DashboardCommand string        `mapstructure:"dashboard_command"`
}

// binding ties a config key to its environment variable and default.
type binding struct {
	key string
	env string
	def any
}

var bindings = []binding{
	{key: "cache_dir", env: "LONGSHOT_CACHE_DIR", def: ""},
	{key: "release_base_url", env: "LONGSHOT_RELEASE_BASE_URL", def: "https://github.com"},
	{key: "release_repo", env: "LONGSHOT_RELEASE_REPO", def: "andrewcai8/longshot"},
	{key: "runtime_url", env: "LONGSHOT_RUNTIME_URL", def: ""},
	{key: "download_timeout", env: "LONGSHOT_DOWNLOAD_TIMEOUT", def: "120s"},
	{key: "shutdown_grace", env: "LONGSHOT_SHUTDOWN_GRACE", def: "10s"},
	{key: "node", env: "LONGSHOT_NODE", def: "node"},
	{key: "package_manager", env: "LONGSHOT_NPM", def: "npm"},
	{key: "dashboard_command", env: "LONGSHOT_DASHBOARD_CMD", def: ""},
}

// LoadOptions control where configuration is read from.
type LoadOptions struct {
	// ConfigFilePath is an explicit config file; it must exist.
	ConfigFilePath string
	// ConfigDirPath overrides the directory searched for config.yml.
	ConfigDirPath string
}

var configDirOverride string

// ConfigDir returns the directory holding the optional config file: $XDG_CONFIG_HOME/longshot (or the platform
// equivalent).
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// Load builds the effective configuration. It returns the path of the config file that was read, or "" if none was.
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, "", fmt.Errorf("bind %s: %w", b.env, err)
		}
	}

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		dir := opts.ConfigDirPath
		if dir == "" {
			d, err := ConfigDir()
			if err != nil {
				return nil, "", err
			}
			dir = d
		}
		if candidate := filepath.Join(dir, ConfigFileName); fileExists(candidate) {
			resolvedPath = candidate
		}
	}
	if resolvedPath != "" {
		v.SetConfigFile(resolvedPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("read config file %s: %w", resolvedPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", err
	}
	return &cfg, resolvedPath, nil
}

func (c *Config) normalize() error {
	if c.CacheDir == "" {
		root, err := layout.DefaultCacheRoot()
		if err != nil {
			return err
		}
		c.CacheDir = root
	} else {
		expanded, err := layout.ExpandHome(c.CacheDir)
		if err != nil {
			return err
		}
		c.CacheDir = expanded
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("download_timeout must be positive, got %s", c.DownloadTimeout)
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("shutdown_grace must be positive, got %s", c.ShutdownGrace)
	}
	if c.Node == "" {
		return errors.New("node must not be empty")
	}
	if c.PackageManager == "" {
		return errors.New("package_manager must not be empty")
	}
	return nil
}

// EnvVar returns the environment variable bound to key, or "".
func EnvVar(key string) string {
	for _, b := range bindings {
		if b.key == key {
			return b.env
		}
	}
	return ""
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment without overriding variables that are
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = EnvFileName
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// YAML renders the configuration the way it would be written in a config file.
func (c *Config) YAML() ([]byte, error) {
	doc := yaml.Node{Kind: yaml.MappingNode}
	add := func(key, value string) {
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: value, Style: quoteStyle(value)},
		)
	}
	add("cache_dir", c.CacheDir)
	add("release_base_url", c.ReleaseBaseURL)
	add("release_repo", c.ReleaseRepo)
	add("runtime_url", c.RuntimeURL)
	add("download_timeout", c.DownloadTimeout.String())
	add("shutdown_grace", c.ShutdownGrace.String())
	add("node", c.Node)
	add("package_manager", c.PackageManager)
	add("dashboard_command", c.DashboardCommand)
	return yaml.Marshal(&doc)
}

func quoteStyle(value string) yaml.Style {
	if value == "" {
		return yaml.DoubleQuotedStyle
	}
	return 0
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
