// Package config holds the runtime configuration: an optional YAML file
// overridden by CLI flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pion/webrtc/v4"
	"gopkg.in/yaml.v3"
)

// Role selects what the process runs as.
type Role string

const (
	RoleRelay Role = "relay"
	RolePeer  Role = "peer"
)

// DefaultListen is the relay listen address.
const DefaultListen = ":3000"

// ICEServer is one STUN/TURN server entry.
type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// Config stores every parameter gathered from the config file, flags and
// interactive prompts.
type Config struct {
	Role       Role        `yaml:"role"`
	Listen     string      `yaml:"listen"`      // Relay: listen address
	RelayURL   string      `yaml:"relay"`       // Peer: relay URL (host, http(s) or ws(s))
	ICEServers []ICEServer `yaml:"ice_servers"` // Peer: empty means the default STUN servers
	Connect    bool        `yaml:"connect"`     // Peer: call as soon as the relay is reachable
	Headless   bool        `yaml:"headless"`    // Peer: no interactive controls
	Debug      bool        `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen: DefaultListen,
	}
}

// Load reads a YAML file on top of Default. Missing keys keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the role and the fields that role needs. It normalizes
// RelayURL in place.
func (c *Config) Validate() error {
	switch c.Role {
	case RoleRelay:
		if c.Listen == "" {
			return errors.New("relay requires a listen address")
		}
	case RolePeer:
		if c.RelayURL == "" {
			return errors.New("peer requires a relay URL")
		}
		u, err := NormalizeRelayURL(c.RelayURL)
		if err != nil {
			return err
		}
		c.RelayURL = u
		for i, s := range c.ICEServers {
			if len(s.URLs) == 0 {
				return fmt.Errorf("ice server %d has no urls", i)
			}
		}
	default:
		return fmt.Errorf("invalid role %q: must be %q or %q", c.Role, RoleRelay, RolePeer)
	}
	return nil
}

// WebRTCICEServers converts the configured servers for pion, falling back to
// the given defaults.
func (c Config) WebRTCICEServers(defaults []string) []webrtc.ICEServer {
	if len(c.ICEServers) == 0 {
		return []webrtc.ICEServer{{URLs: defaults}}
	}
	servers := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers
}

// NormalizeRelayURL validates a relay address and returns its WebSocket URL.
// A bare host defaults to ws, matching the plain listener the relay serves;
// http and https map to ws and wss.
func NormalizeRelayURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid relay URL: %s", raw)
	}

	scheme := "wss"
	switch u.Scheme {
	case "ws", "http":
		scheme = "ws"
	case "wss", "https":
	default:
		return "", fmt.Errorf("invalid relay URL scheme %q", u.Scheme)
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host), nil
}
