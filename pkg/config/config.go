// Package config defines the runtime configuration consumed by the core
// (spec section 6): transport mode, locators to dial/listen on, and the
// handshake parameters a session proposes at open.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/zenopico/pkg/protocol"
)

// Config mirrors spec section 6's configuration table. Load fills it from a
// YAML configuration file, lets ZENOPICO_* environment variables override
// the keys that file sets, and applies defaults to the fields left unset.
type Config struct {
	// Mode selects client (dial-only) or peer (dial and listen) operation.
	Mode string `mapstructure:"mode" validate:"required,oneof=client peer" yaml:"mode"`

	// Connect lists locators to dial at open.
	Connect []string `mapstructure:"connect" yaml:"connect"`

	// Listen lists local locators to accept connections on (peer mode only).
	Listen []string `mapstructure:"listen" yaml:"listen,omitempty"`

	// BatchSize is the largest batch this session proposes to the peer.
	BatchSize uint16 `mapstructure:"batch_size" validate:"gt=0" yaml:"batch_size"`

	// Lease is the keepalive lease duration negotiated at open.
	Lease time.Duration `mapstructure:"lease" validate:"gt=0" yaml:"lease"`

	// SNResolution is the sequence-number bit width proposed at open.
	SNResolution protocol.Resolution `mapstructure:"sequence_number_resolution" validate:"oneof=8 16 32 64" yaml:"sequence_number_resolution"`

	// RequestResolution is the request-id bit width proposed at open.
	RequestResolution protocol.Resolution `mapstructure:"request_id_resolution" validate:"oneof=8 16 32 64" yaml:"request_id_resolution"`

	// FragmentReassemblyMaxBytes bounds a single message's reassembled size.
	FragmentReassemblyMaxBytes int `mapstructure:"fragment_reassembly_max_bytes" validate:"gt=0" yaml:"fragment_reassembly_max_bytes"`
}

// Load reads the configuration file, overrides each key the file sets with
// its ZENOPICO_* environment variable when one is present, applies defaults
// and validates the result, following pkg/config.Load in the teacher.
// Environment variables for keys the file does not set are not read, and
// when no configuration file is found Load returns DefaultConfig() without
// consulting the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path in YAML, restricting permissions since a
// config file may carry locator credentials in its query parameters.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("ZENOPICO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		resolutionDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// resolutionDecodeHook converts a raw YAML/env scalar (int, float64, or
// string) to protocol.Resolution, so a config file can write
// "sequence_number_resolution: 32" instead of needing a typed literal.
func resolutionDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(protocol.Resolution(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return protocol.Resolution(v), nil
		case int64:
			return protocol.Resolution(v), nil
		case float64:
			return protocol.Resolution(v), nil
		case string:
			var n int
			if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
				return data, fmt.Errorf("invalid resolution %q: %w", v, err)
			}
			return protocol.Resolution(n), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "zenopico")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "zenopico")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
