package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watcher re-reads a config file each time it changes on disk and passes
// the whole decoded, defaulted and validated Config to the callback given to
// WatchConfig. It applies no value to an open session itself, and it does
// not single out any field: every field of the reloaded Config is passed on.
type Watcher struct {
	v *viper.Viper
}

// WatchConfig starts watching configPath for changes, invoking onChange
// with the freshly decoded Config whenever the file is rewritten. Grounded
// on viper's own fsnotify-backed WatchConfig, the same library the teacher
// depends on transitively through viper.
func WatchConfig(configPath string, onChange func(*Config, error)) (*Watcher, error) {
	v := viper.New()
	setupViper(v, configPath)
	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			onChange(nil, fmt.Errorf("failed to reload config: %w", err))
			return
		}
		ApplyDefaults(&cfg)
		if err := Validate(&cfg); err != nil {
			onChange(nil, fmt.Errorf("reloaded configuration invalid: %w", err))
			return
		}
		onChange(&cfg, nil)
	})
	v.WatchConfig()

	return &Watcher{v: v}, nil
}
