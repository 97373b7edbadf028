package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/marmos91/zenopico/pkg/zerr"
)

// Locator is a parsed connect/listen entry (spec section 6):
// protocol/address[:port][?params].
type Locator struct {
	Protocol string
	Address  string
	Port     uint16
	Params   map[string]string
}

var validProtocols = map[string]bool{
	"tcp": true, "udp": true, "ws": true, "serial": true, "bt": true, "ble": true, "raweth": true,
}

// ParseLocator parses a locator string. Absent port/params are left zero.
func ParseLocator(s string) (Locator, error) {
	protocol, rest, ok := strings.Cut(s, "/")
	if !ok {
		return Locator{}, zerr.New(zerr.InvalidInput, "locator missing '/' separator: "+s)
	}
	if !validProtocols[protocol] {
		return Locator{}, zerr.New(zerr.InvalidInput, "unknown locator protocol: "+protocol)
	}

	hostPort, rawQuery, hasQuery := strings.Cut(rest, "?")

	loc := Locator{Protocol: protocol}
	if hasQuery {
		params, err := url.ParseQuery(rawQuery)
		if err != nil {
			return Locator{}, zerr.Wrap(zerr.InvalidInput, "invalid locator params: "+s, err)
		}
		loc.Params = make(map[string]string, len(params))
		for k, v := range params {
			if len(v) > 0 {
				loc.Params[k] = v[0]
			}
		}
	}

	if idx := strings.LastIndex(hostPort, ":"); idx >= 0 && !strings.Contains(hostPort[idx:], "]") {
		port, err := strconv.ParseUint(hostPort[idx+1:], 10, 16)
		if err != nil {
			return Locator{}, zerr.Wrap(zerr.InvalidInput, "invalid locator port: "+s, err)
		}
		loc.Address = hostPort[:idx]
		loc.Port = uint16(port)
	} else {
		loc.Address = hostPort
	}
	if loc.Address == "" {
		return Locator{}, zerr.New(zerr.InvalidInput, "locator missing address: "+s)
	}
	return loc, nil
}

func (l Locator) String() string {
	s := l.Protocol + "/" + l.Address
	if l.Port != 0 {
		s += fmt.Sprintf(":%d", l.Port)
	}
	if len(l.Params) > 0 {
		v := url.Values{}
		for k, val := range l.Params {
			v.Set(k, val)
		}
		s += "?" + v.Encode()
	}
	return s
}

// ParseLocators parses every entry in ss, failing on the first invalid one.
func ParseLocators(ss []string) ([]Locator, error) {
	out := make([]Locator, 0, len(ss))
	for _, s := range ss {
		l, err := ParseLocator(s)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
