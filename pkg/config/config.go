// Package config loads todosync settings from .todosync.yaml and TODOSYNC_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const (
	DefaultAPI           = "http://127.0.0.1:8080"
	DefaultPath          = "~/.todosync.db"
	DefaultNoticeTimeout = 3 * time.Second
	DefaultListen        = "127.0.0.1:8080"
)

// Config is the resolved configuration.
type Config struct {
	API           string        `json:"api"`
	User          int           `json:"user"`
	NoticeTimeout time.Duration `json:"noticeTimeout"`
	Path          string        `json:"path"`
	Listen        string        `json:"listen"`
	LogFile       string        `json:"logFile,omitempty"`
	LogLevel      string        `json:"logLevel"`
}

// BasePath is the directory of the reference store.
func (c *Config) BasePath() string {
	return c.Path
}

// New returns a viper instance with every default and lookup rule applied.
// Commands bind their flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("api", DefaultAPI)
	v.SetDefault("user", 1)
	v.SetDefault("notice-timeout", DefaultNoticeTimeout)
	v.SetDefault("path", DefaultPath)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("log-level", "info")
	v.SetConfigName(".todosync") // .yaml is implicit
	v.SetEnvPrefix("TODOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if override := os.Getenv("TODOSYNC_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")
	return v
}

// Load reads the config file, if any, and resolves v into a Config. A missing
// file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = New()
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	path, err := homedir.Expand(v.GetString("path"))
	if err != nil {
		return nil, fmt.Errorf("config: expand path: %w", err)
	}
	logFile := v.GetString("log-file")
	if logFile != "" {
		if logFile, err = homedir.Expand(logFile); err != nil {
			return nil, fmt.Errorf("config: expand log-file: %w", err)
		}
	}

	cfg := &Config{
		API:           v.GetString("api"),
		User:          v.GetInt("user"),
		NoticeTimeout: v.GetDuration("notice-timeout"),
		Path:          path,
		Listen:        v.GetString("listen"),
		LogFile:       logFile,
		LogLevel:      v.GetString("log-level"),
	}
	if cfg.User < 0 {
		return nil, fmt.Errorf("config: user must not be negative, got %d", cfg.User)
	}
	if cfg.NoticeTimeout < 0 {
		return nil, fmt.Errorf("config: notice-timeout must not be negative, got %s", cfg.NoticeTimeout)
	}
	return cfg, nil
}
