package config

import (
	"github.com/marmos91/zenopico/pkg/transport"
	"github.com/marmos91/zenopico/pkg/wire"
)

// zenohVersion is the wire protocol version this client speaks, grounded on
// the message ids fixed in pkg/protocol.
const zenohVersion byte = 8

// TransportConfig builds the pkg/transport.Config a session.Open call needs
// out of the subset of Config the handshake actually proposes. zid
// identifies this session on the wire; callers typically generate one via
// wire.RandomZenohID for a client that doesn't persist an identity.
func (c *Config) TransportConfig(zid wire.ZenohID) transport.Config {
	return transport.Config{
		Version:                    zenohVersion,
		ZID:                        zid,
		BatchSize:                  c.BatchSize,
		LeaseMs:                    uint64(c.Lease.Milliseconds()),
		SNResolution:               c.SNResolution,
		RequestResolution:          c.RequestResolution,
		FragmentReassemblyMaxBytes: c.FragmentReassemblyMaxBytes,
	}
}
