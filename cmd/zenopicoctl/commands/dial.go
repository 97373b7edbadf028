package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/zenopico/internal/link"
	"github.com/marmos91/zenopico/pkg/config"
	"github.com/marmos91/zenopico/pkg/session"
	"github.com/marmos91/zenopico/pkg/wire"
)

// dial loads config, overrides Connect with locator if non-empty, dials the
// first configured locator over TCP, and opens a session on it.
func dial(ctx context.Context, locator string) (*session.Session, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if locator != "" {
		cfg.Connect = []string{locator}
	}
	if len(cfg.Connect) == 0 {
		return nil, fmt.Errorf("no locator configured: pass --locator or set connect in the config file")
	}

	loc, err := config.ParseLocator(cfg.Connect[0])
	if err != nil {
		return nil, fmt.Errorf("parse locator: %w", err)
	}

	l, err := link.DialTCP(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", loc, err)
	}

	zid := wire.RandomZenohID()
	s, err := session.Open(ctx, l, cfg.TransportConfig(zid))
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}
	return s, nil
}
