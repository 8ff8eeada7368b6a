package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "socialchat"
	// DefaultServerURL is the REST API base used when no override exists.
	DefaultServerURL = "http://localhost:5000/api"
	// configFileName is the persisted configuration file.
	configFileName = "config.yaml"
	// envPrefix namespaces environment overrides (SOCIALCHAT_SERVER_URL etc).
	envPrefix = "SOCIALCHAT"
)

// ClientConfig contains persistent client settings.
type ClientConfig struct {
	ServerURL      string        `mapstructure:"server_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	SearchDebounce       time.Duration `mapstructure:"search_debounce"`
	MemberSearchDebounce time.Duration `mapstructure:"member_search_debounce"`

	SearchResultCacheSize int `mapstructure:"search_result_cache_size"`
	ChatMessagesCacheSize int `mapstructure:"chat_messages_cache_size"`
	SenderCacheSize       int `mapstructure:"sender_cache_size"`

	SessionKeyPath string    `mapstructure:"session_key_path"`
	DownloadDir    string    `mapstructure:"download_dir"`
	Log            LogConfig `mapstructure:"log"`
}

// LogConfig controls log file rotation.
type LogConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If SOCIALCHAT_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("SOCIALCHAT_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.yaml for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// EnsureDataDirectories creates the app data directory layout if needed.
func EnsureDataDirectories(dataDir string) error {
	dirs := []string{
		dataDir,
		filepath.Join(dataDir, "keys"),
		filepath.Join(dataDir, "logs"),
		filepath.Join(dataDir, "downloads"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	return nil
}

func newViper(dataDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(ConfigPath(dataDir))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("server_url", DefaultServerURL)
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("search_debounce", 150*time.Millisecond)
	v.SetDefault("member_search_debounce", 300*time.Millisecond)
	v.SetDefault("search_result_cache_size", 10)
	v.SetDefault("chat_messages_cache_size", 64)
	v.SetDefault("sender_cache_size", 256)
	v.SetDefault("session_key_path", filepath.Join(dataDir, "keys", "session.key"))
	v.SetDefault("download_dir", filepath.Join(dataDir, "downloads"))
	v.SetDefault("log.directory", filepath.Join(dataDir, "logs"))
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", false)

	return v
}

// Load reads config.yaml from a data directory with env overrides applied.
func Load(dataDir string) (*ClientConfig, error) {
	v := newViper(dataDir)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// LoadOrCreate ensures directories and config exist, then returns the config
// and its path. A missing config file is written with current defaults so the
// user has something to edit.
func LoadOrCreate() (*ClientConfig, string, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := EnsureDataDirectories(dataDir); err != nil {
		return nil, "", err
	}

	v := newViper(dataDir)
	cfgPath := ConfigPath(dataDir)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, "", fmt.Errorf("read config: %w", err)
			}
		}
		if err := v.WriteConfigAs(cfgPath); err != nil {
			return nil, "", fmt.Errorf("write default config: %w", err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("parse config: %w", err)
	}

	return &cfg, cfgPath, nil
}
