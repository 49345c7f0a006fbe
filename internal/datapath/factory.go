package datapath

import (
	"fmt"
	"log/slog"
)

// NewClient builds the datapath client selected by cfg.Backend.
func NewClient(cfg Config, logger *slog.Logger) (Client, error) {
	switch cfg.Backend {
	case BackendManager:
		return NewManagerClient(cfg, logger), nil
	case BackendNftables:
		return newNftablesClient(logger)
	default:
		return nil, fmt.Errorf("datapath: unknown backend %q", cfg.Backend)
	}
}
