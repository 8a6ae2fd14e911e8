// Package configd provides loading and parsing of the ircgeistd configuration
// file using Viper. It defines the full configuration schema and exposes
// functions to access it at runtime.
package configd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mfulz/ircgeist/internal/acl"
	"github.com/mfulz/ircgeist/internal/configloader"
	"github.com/mfulz/ircgeist/internal/link"
	"github.com/mfulz/ircgeist/internal/logging"
	"github.com/mfulz/ircgeist/internal/services"
	"github.com/spf13/viper"
)

// Config represents the full structure of the ircgeistd configuration file.
type Config struct {
	Services ServicesConfig     `mapstructure:"services"`
	Uplink   link.Config        `mapstructure:"uplink"`
	Database DatabaseConfig     `mapstructure:"database"`
	Modules  ModulesConfig      `mapstructure:"modules"`
	Control  ControlMultiConfig `mapstructure:"control"`
	Logger   logging.Config     `mapstructure:"log"`
	ACL      acl.ACLConfig      `mapstructure:"acl"`
}

// ServicesConfig identifies the services server on the network.
type ServicesConfig struct {
	Name           string        `mapstructure:"name"`            // e.g. services.example.net
	Description    string        `mapstructure:"description"`     // SERVER description
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"` // wait before redialing the uplink
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ModulesConfig selects the modules loaded at startup.
type ModulesConfig struct {
	Autoload []string                  `mapstructure:"autoload"`
	Scripts  string                    `mapstructure:"scripts"` // directory of Lua modules
	ACLs     map[string]acl.ACLRuleSet `mapstructure:"acls"`    // optional per-module rules
}

// ControlInstance describes a single control interface (e.g. unix socket or TCP listener).
type ControlInstance struct {
	Name    string `mapstructure:"name"`    // instance identifier
	Enabled bool   `mapstructure:"enabled"` // whether this instance is active
	Mode    string `mapstructure:"mode"`    // "unix" or "tcp"
	Listen  string `mapstructure:"listen"`  // address or socket path
}

// ControlMultiConfig supports multiple control instances with distinct settings.
type ControlMultiConfig struct {
	Instances []ControlInstance `mapstructure:"instances"` // enabled control endpoints
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("services.description", "IRC Services")
	v.SetDefault("services.reconnect_delay", "30s")
	v.SetDefault("uplink.dial_timeout", "30s")
	v.SetDefault("uplink.send_queue", 512)
	v.SetDefault("database.path", "/var/lib/ircgeist/ircgeist.db")
	v.SetDefault("modules.autoload", []string{"core"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.to_stderr", true)
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig resolves ircgeistd.yaml (or explicit), loads it, re-initializes
// the global logger from its log section and registers the config.
func LoadConfig(explicit string) (*Config, error) {
	path, err := configloader.ResolveConfigPath(explicit, "ircgeistd", "ircgeistd.yaml")
	if err != nil {
		return nil, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	configloader.SetConfig(&cfg.Logger)
	if err := logging.Init(); err != nil {
		return nil, fmt.Errorf("[ircgeistd] Failed to init logger: %v", err)
	}
	configloader.SetConfig(cfg)
	logging.Log.Infof("[configd] Loaded %s", path)
	return cfg, nil
}

// Validate checks the fields the daemon cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if !strings.Contains(c.Services.Name, ".") {
		errs = append(errs, fmt.Errorf("services.name %q must be a server name", c.Services.Name))
	}
	if c.Uplink.Address == "" {
		errs = append(errs, errors.New("uplink.address is required"))
	}
	for i, inst := range c.Control.Instances {
		if inst.Mode != "unix" && inst.Mode != "tcp" {
			errs = append(errs, fmt.Errorf("control.instances[%d]: unknown mode %q", i, inst.Mode))
		}
		if inst.Listen == "" {
			errs = append(errs, fmt.Errorf("control.instances[%d]: listen is required", i))
		}
	}
	return errors.Join(errs...)
}

// ServiceConfig returns the service loop settings.
func (c *Config) ServiceConfig() services.Config {
	return services.Config{
		Uplink:         c.Uplink,
		ReconnectDelay: c.Services.ReconnectDelay,
		Autoload:       c.Modules.Autoload,
	}
}
