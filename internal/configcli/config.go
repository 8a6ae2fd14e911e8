// Package configcli handles loading and managing local ircgeistctl configuration.
// This includes user tokens and known daemon connection targets.
package configcli

import (
	"fmt"

	"github.com/mfulz/ircgeist/internal/configloader"
	"github.com/mfulz/ircgeist/internal/logging"
	"github.com/spf13/viper"
)

// UserConfig represents authentication info for a specific logical user.
type UserConfig struct {
	Token string `mapstructure:"token"`
}

// DaemonConfig represents one connection target (unix socket or TCP).
type DaemonConfig struct {
	Socket string `mapstructure:"socket,omitempty"`
	TCP    string `mapstructure:"tcp,omitempty"`
}

// Config holds the entire client-side ircgeistctl configuration.
type Config struct {
	DefaultDaemon string                  `mapstructure:"default_daemon"`
	DefaultUser   string                  `mapstructure:"default_user"`
	Users         map[string]UserConfig   `mapstructure:"users"`
	Daemons       map[string]DaemonConfig `mapstructure:"daemons"`
	Logger        logging.Config          `mapstructure:"log"`
}

// Load reads the client config at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.to_stderr", true)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfig resolves ircgeistctl.yaml (or explicit), loads it and
// registers it together with its log section.
func LoadConfig(explicit string) (*Config, error) {
	path, err := configloader.ResolveConfigPath(explicit, "ircgeistctl", "ircgeistctl.yaml")
	if err != nil {
		return nil, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	configloader.SetConfig(cfg)
	configloader.SetConfig(&cfg.Logger)
	if err := logging.Init(); err != nil {
		return nil, fmt.Errorf("[ircgeistctl] Failed to init logger: %v", err)
	}
	return cfg, nil
}
