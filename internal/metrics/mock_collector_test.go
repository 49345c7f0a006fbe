package metrics

import (
	"context"
	"sync"
)

// mockCollector records calls and returns configured results.
type mockCollector struct {
	mu     sync.Mutex
	calls  int
	points []Point
	err    error
}

func (m *mockCollector) Collect(_ context.Context) ([]Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.points, nil
}

func (m *mockCollector) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// panicCollector is a Collector that panics on every Collect call.
type panicCollector struct {
	msg string
}

func (p *panicCollector) Collect(_ context.Context) ([]Point, error) {
	panic(p.msg)
}
