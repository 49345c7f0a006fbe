package datapath

import (
	"fmt"
	"time"
)

// Backend selectors for Config.Backend.
const (
	BackendManager  = "manager"
	BackendNftables = "nftables"
)

// DefaultSocketPath is where the datapath manager listens by default.
const DefaultSocketPath = "/run/datapath/datapath.sock"

// DefaultRequestTimeout bounds a single rule change request.
const DefaultRequestTimeout = 5 * time.Second

// Config selects and configures the enforcement backend.
type Config struct {
	// Backend is "manager" (external datapath manager over its Unix
	// socket) or "nftables" (local enforcement without a manager).
	// Default: "manager".
	Backend string `yaml:"backend"`

	// SocketPath is the datapath manager's Unix socket.
	// Default: /run/datapath/datapath.sock.
	SocketPath string `yaml:"socket_path"`

	// RequestTimeout bounds one rule change request to the manager.
	// Default: 5s.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendManager
	}
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendManager, BackendNftables:
	default:
		return fmt.Errorf("datapath: config: unknown backend %q", c.Backend)
	}
	if c.Backend == BackendManager && c.SocketPath == "" {
		return fmt.Errorf("datapath: config: SocketPath must not be empty for the manager backend")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("datapath: config: RequestTimeout must not be negative")
	}
	return nil
}
