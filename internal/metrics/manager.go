package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Manager orchestrates metric collection and logs the snapshots.
type Manager struct {
	cfg        Config
	collectors []Collector
	logger     *slog.Logger
}

// NewManager creates a new Manager. Config defaults are applied automatically.
func NewManager(cfg Config, collectors []Collector, logger *slog.Logger) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		cfg:        cfg,
		collectors: collectors,
		logger:     logger.With("component", "metrics"),
	}
}

// RegisterCollector adds a collector to the manager.
// Must be called before Run; it is not safe for concurrent use.
func (m *Manager) RegisterCollector(c Collector) {
	m.collectors = append(m.collectors, c)
}

// Run starts the collect loop. It blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.logger.Info("metrics disabled, skipping collection")
		return nil
	}

	// First cycle runs immediately.
	m.collect(ctx)

	ticker := time.NewTicker(m.cfg.CollectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.collect(ctx)
		}
	}
}

// collect runs all collectors with panic recovery and logs their points.
func (m *Manager) collect(ctx context.Context) {
	for _, c := range m.collectors {
		points, err := m.safeCollect(ctx, c)
		if err != nil {
			m.logger.Warn("collector failed", "error", err)
			continue
		}
		for _, p := range points {
			m.logger.Info("metrics snapshot", "group", p.Group, "data", string(p.Data))
		}
	}
}

// safeCollect calls a collector with panic recovery.
func (m *Manager) safeCollect(ctx context.Context, c Collector) (points []Point, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("collector panicked: %v\n%s", v, debug.Stack())
		}
	}()
	return c.Collect(ctx)
}
