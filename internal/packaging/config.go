// Package packaging implements systemd service packaging for bare-metal Linux servers.
package packaging

import (
	"errors"
)

// InstallConfig holds the configuration for installing portgrantd as a
// systemd service. InstallConfig is passed as a constructor argument — no
// file I/O in this package.
type InstallConfig struct {
	// BinaryPath is the path to install the portgrantd binary.
	// Default: /usr/local/bin/portgrantd
	BinaryPath string

	// ConfigDir is the configuration directory.
	// Default: /etc/portgrant
	ConfigDir string

	// RunDir is the runtime directory holding the control and status sockets.
	// Default: /run/portgrant
	RunDir string

	// UnitFilePath is the path for the systemd unit file.
	// Default: /etc/systemd/system/portgrantd.service
	UnitFilePath string

	// ServiceName is the systemd service name.
	// Default: portgrantd
	ServiceName string

	// DatapathBackend selects the datapath backend in the generated default
	// config (optional; empty keeps the packaged default).
	DatapathBackend string
}

// DefaultBinaryPath is the default path to install the portgrantd binary.
const DefaultBinaryPath = "/usr/local/bin/portgrantd"

// DefaultConfigDir is the default configuration directory.
const DefaultConfigDir = "/etc/portgrant"

// DefaultRunDir is the default runtime directory.
const DefaultRunDir = "/run/portgrant"

// DefaultServiceName is the default systemd service name.
const DefaultServiceName = "portgrantd"

// DefaultUnitFilePath is the default path for the systemd unit file.
const DefaultUnitFilePath = "/etc/systemd/system/portgrantd.service"

// ApplyDefaults sets default values for zero-valued fields.
func (c *InstallConfig) ApplyDefaults() {
	if c.BinaryPath == "" {
		c.BinaryPath = DefaultBinaryPath
	}
	if c.ConfigDir == "" {
		c.ConfigDir = DefaultConfigDir
	}
	if c.RunDir == "" {
		c.RunDir = DefaultRunDir
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.UnitFilePath == "" {
		c.UnitFilePath = DefaultUnitFilePath
	}
}

// Validate checks that required fields are set.
func (c *InstallConfig) Validate() error {
	if c.BinaryPath == "" {
		return errors.New("packaging: config: BinaryPath is required")
	}
	if c.ConfigDir == "" {
		return errors.New("packaging: config: ConfigDir is required")
	}
	if c.RunDir == "" {
		return errors.New("packaging: config: RunDir is required")
	}
	if c.ServiceName == "" {
		return errors.New("packaging: config: ServiceName is required")
	}
	if c.UnitFilePath == "" {
		return errors.New("packaging: config: UnitFilePath is required")
	}
	return nil
}
