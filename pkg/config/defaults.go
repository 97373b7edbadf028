package config

import (
	"time"

	"github.com/marmos91/zenopico/pkg/protocol"
)

// Default values per spec section 6's configuration table.
const (
	DefaultMode                       = "client"
	DefaultBatchSize           uint16 = 65535
	DefaultLeaseMs             uint64 = 10000
	DefaultFragmentMaxBytes           = 1 << 20
	defaultResolutionBits             = 32
)

// DefaultConfig returns a Config with every field set to its spec-default
// value and no locators configured.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills any zero-valued field with its spec default. Called
// after unmarshalling a partial config file, following ApplyDefaults in the
// teacher's pkg/config.
func ApplyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Lease == 0 {
		cfg.Lease = time.Duration(DefaultLeaseMs) * time.Millisecond
	}
	if cfg.SNResolution == 0 {
		cfg.SNResolution = protocol.Resolution(defaultResolutionBits)
	}
	if cfg.RequestResolution == 0 {
		cfg.RequestResolution = protocol.Resolution(defaultResolutionBits)
	}
	if cfg.FragmentReassemblyMaxBytes == 0 {
		cfg.FragmentReassemblyMaxBytes = DefaultFragmentMaxBytes
	}
}
