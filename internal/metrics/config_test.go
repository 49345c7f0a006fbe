package metrics

import (
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if !cfg.Enabled {
		t.Error("expected zero-valued config to default to enabled")
	}
	if cfg.CollectInterval != DefaultCollectInterval {
		t.Errorf("CollectInterval = %v, want %v", cfg.CollectInterval, DefaultCollectInterval)
	}
}

func TestConfig_ApplyDefaultsRespectsExplicit(t *testing.T) {
	cfg := Config{Enabled: false, CollectInterval: 10 * time.Second}
	cfg.ApplyDefaults()

	if cfg.Enabled {
		t.Error("explicit Enabled=false must survive ApplyDefaults")
	}
	if cfg.CollectInterval != 10*time.Second {
		t.Errorf("CollectInterval = %v, want 10s", cfg.CollectInterval)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Enabled: true, CollectInterval: 30 * time.Second}, false},
		{"minimum interval", Config{Enabled: true, CollectInterval: 5 * time.Second}, false},
		{"interval too short", Config{Enabled: true, CollectInterval: time.Second}, true},
		{"disabled skips checks", Config{Enabled: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
