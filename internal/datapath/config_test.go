package datapath

import (
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Backend != BackendManager {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendManager)
	}
	if cfg.SocketPath != DefaultSocketPath {
		t.Errorf("SocketPath = %q, want %q", cfg.SocketPath, DefaultSocketPath)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v, want %v", cfg.RequestTimeout, DefaultRequestTimeout)
	}
}

func TestConfig_ApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{Backend: BackendNftables, SocketPath: "/tmp/dp.sock", RequestTimeout: time.Second}
	cfg.ApplyDefaults()
	if cfg.Backend != BackendNftables || cfg.SocketPath != "/tmp/dp.sock" || cfg.RequestTimeout != time.Second {
		t.Errorf("ApplyDefaults overwrote explicit values: %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Backend: "iptables"}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted unknown backend")
	}
	cfg = Config{Backend: BackendManager}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted manager backend without a socket path")
	}
	cfg = Config{Backend: BackendManager, SocketPath: "/run/dp.sock"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() rejected valid config: %v", err)
	}
	cfg = Config{Backend: BackendNftables}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() rejected nftables backend without socket: %v", err)
	}
}
