package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/portgrant/portgrantd/internal/rules"
)

// RuleStats holds the active rule counts at a point in time.
type RuleStats struct {
	Total      int `json:"total"`
	Access     int `json:"access"`
	Lockdown   int `json:"lockdown"`
	Forwarding int `json:"forwarding"`
	TCP        int `json:"tcp"`
	UDP        int `json:"udp"`
}

// RuleSource exposes the active rule set of the tracking engine.
type RuleSource interface {
	ActiveRules() []rules.PortRule
}

// RuleCollector implements Collector over the engine's active rules.
type RuleCollector struct {
	source RuleSource
}

// NewRuleCollector creates a new RuleCollector.
func NewRuleCollector(source RuleSource) *RuleCollector {
	return &RuleCollector{source: source}
}

// Collect snapshots the active rule set and returns a single point.
func (c *RuleCollector) Collect(ctx context.Context) ([]Point, error) {
	var stats RuleStats
	for _, r := range c.source.ActiveRules() {
		stats.Total++
		switch r.Type {
		case rules.TypeAccess:
			stats.Access++
		case rules.TypeLockdown:
			stats.Lockdown++
		case rules.TypeForwarding:
			stats.Forwarding++
		}
		switch r.Proto {
		case rules.ProtocolTCP:
			stats.TCP++
		case rules.ProtocolUDP:
			stats.UDP++
		}
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("metrics: rules: %w", err)
	}

	return []Point{
		{
			Timestamp: time.Now(),
			Group:     GroupRules,
			Data:      data,
		},
	}, nil
}
