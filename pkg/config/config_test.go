package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/zenopico/pkg/protocol"
	"github.com/marmos91/zenopico/pkg/wire"
)

func zidFixture(t *testing.T) wire.ZenohID {
	t.Helper()
	zid, err := wire.NewZenohID([]byte{0x01})
	require.NoError(t, err)
	return zid
}

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "client", cfg.Mode)
	assert.Equal(t, uint16(65535), cfg.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Lease)
	assert.Equal(t, protocol.Resolution32, cfg.SNResolution)
	assert.Equal(t, protocol.Resolution32, cfg.RequestResolution)
	assert.Equal(t, 1<<20, cfg.FragmentReassemblyMaxBytes)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{BatchSize: 1024, SNResolution: protocol.Resolution8}
	ApplyDefaults(cfg)
	assert.Equal(t, uint16(1024), cfg.BatchSize)
	assert.Equal(t, protocol.Resolution8, cfg.SNResolution)
	assert.Equal(t, protocol.Resolution32, cfg.RequestResolution) // untouched field still defaults
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadParsesYAMLFileAndAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "mode: client\nconnect:\n  - tcp/127.0.0.1:7447\nbatch_size: 2048\nsequence_number_resolution: 16\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"tcp/127.0.0.1:7447"}, cfg.Connect)
	assert.Equal(t, uint16(2048), cfg.BatchSize)
	assert.Equal(t, protocol.Resolution16, cfg.SNResolution)
	assert.Equal(t, protocol.Resolution32, cfg.RequestResolution, "unset field still takes the spec default")
}

func TestValidateRejectsClientModeWithoutConnect(t *testing.T) {
	cfg := DefaultConfig()
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect locator")
}

func TestValidateRejectsBadResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Connect = []string{"tcp/127.0.0.1:7447"}
	cfg.SNResolution = protocol.Resolution(24)
	err := Validate(cfg)
	require.Error(t, err)
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Connect = []string{"tcp/127.0.0.1:7447"}
	require.NoError(t, Validate(cfg))
}

func TestTransportConfigCarriesLeaseAsMilliseconds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lease = 2500 * time.Millisecond
	tc := cfg.TransportConfig(zidFixture(t))
	assert.Equal(t, uint64(2500), tc.LeaseMs)
	assert.Equal(t, cfg.BatchSize, tc.BatchSize)
	assert.Equal(t, cfg.SNResolution, tc.SNResolution)
}
