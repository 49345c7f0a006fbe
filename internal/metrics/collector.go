package metrics

import (
	"context"
	"encoding/json"
	"time"
)

// Metric group constants identify the subsystem a point belongs to.
const (
	GroupRules = "rules"
)

// Point is a single collected metric sample.
type Point struct {
	Timestamp time.Time       `json:"timestamp"`
	Group     string          `json:"group"`
	Data      json.RawMessage `json:"data"`
}

// Collector collects metric points from a specific subsystem.
type Collector interface {
	Collect(ctx context.Context) ([]Point, error)
}
