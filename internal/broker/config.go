// Package broker serves the local client API of portgrantd over Unix
// sockets: a control socket speaking a line-oriented JSON protocol that
// carries the client's lifeline descriptor via SCM_RIGHTS, and a read-only
// HTTP status socket for tooling.
package broker

import "errors"

const (
	// DefaultSocketPath is the control socket clients send requests to.
	DefaultSocketPath = "/run/portgrant/portgrant.sock"

	// DefaultStatusSocketPath serves the read-only HTTP endpoints.
	DefaultStatusSocketPath = "/run/portgrant/status.sock"

	// DefaultSocketGroup owns the sockets when it exists.
	DefaultSocketGroup = "portgrant"
)

// Config holds the broker server configuration.
type Config struct {
	// SocketPath is the control socket path.
	// Default: /run/portgrant/portgrant.sock.
	SocketPath string `yaml:"socket_path"`

	// StatusSocketPath is the read-only HTTP socket path.
	// Default: /run/portgrant/status.sock.
	StatusSocketPath string `yaml:"status_socket_path"`

	// SocketGroup is the group granted access to the sockets.
	// Default: portgrant.
	SocketGroup string `yaml:"socket_group"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath
	}
	if c.StatusSocketPath == "" {
		c.StatusSocketPath = DefaultStatusSocketPath
	}
	if c.SocketGroup == "" {
		c.SocketGroup = DefaultSocketGroup
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return errors.New("broker: config: SocketPath must not be empty")
	}
	if c.StatusSocketPath == "" {
		return errors.New("broker: config: StatusSocketPath must not be empty")
	}
	if c.SocketPath == c.StatusSocketPath {
		return errors.New("broker: config: SocketPath and StatusSocketPath must differ")
	}
	return nil
}
