package fcast

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
)

// networkConfig is the JSON payload base64url-encoded into a manual device
// URL's path segment.
type networkConfig struct {
	Name      string        `json:"name"`
	Addresses []string      `json:"addresses"`
	Services  []netServices `json:"services"`
}

type netServices struct {
	Port uint16 `json:"port"`
	Type int    `json:"type"`
}

const serviceTypeTCP = 0

// DeviceInfoFromURL decodes a manual device URL of the form
// "fcast://r/<base64url-json>" into a DeviceInfo. Padding is accepted in
// any amount (present, absent, or incorrect) to match the tolerant decoder
// the reference sender SDK uses.
func DeviceInfoFromURL(raw string) (*DeviceInfo, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("fcast: parse device url: %w", err)
	}
	if u.Scheme != "fcast" {
		return nil, fmt.Errorf("fcast: unsupported scheme %q", u.Scheme)
	}
	if u.Host != "r" {
		return nil, fmt.Errorf("fcast: unsupported device url host %q", u.Host)
	}

	segment := u.Path
	for len(segment) > 0 && segment[0] == '/' {
		segment = segment[1:]
	}
	if segment == "" {
		return nil, fmt.Errorf("fcast: device url has no payload segment")
	}

	data, err := decodeBase64URLIndifferent(segment)
	if err != nil {
		return nil, fmt.Errorf("fcast: decode device url payload: %w", err)
	}

	var cfg networkConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("fcast: parse device url payload: %w", err)
	}

	var tcpPort uint16
	found := false
	for _, svc := range cfg.Services {
		if svc.Type == serviceTypeTCP {
			tcpPort = svc.Port
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("fcast: device url has no TCP service")
	}

	addrs := make([]net.IP, 0, len(cfg.Addresses))
	for _, a := range cfg.Addresses {
		ip := net.ParseIP(a)
		if ip == nil {
			return nil, fmt.Errorf("fcast: invalid address %q", a)
		}
		addrs = append(addrs, ip)
	}

	return &DeviceInfo{
		Name:      cfg.Name,
		Protocol:  ProtocolFCast,
		Addresses: addrs,
		Port:      tcpPort,
	}, nil
}

// decodeBase64URLIndifferent decodes base64url text regardless of whether
// padding is present, absent, or the wrong length — matching the reference
// decoder's DecodePaddingMode::Indifferent.
func decodeBase64URLIndifferent(s string) ([]byte, error) {
	trimmed := s
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '=' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return base64.RawURLEncoding.DecodeString(trimmed)
}
