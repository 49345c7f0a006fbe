//go:build !linux

package lifeline

import "log/slog"

// Registry is a stub on platforms without an fd readability watcher.
type Registry struct{}

// New returns ErrUnsupported on non-Linux platforms.
func New(deliver DeliverFunc, logger *slog.Logger) (*Registry, error) {
	return nil, ErrUnsupported
}

func (r *Registry) Add(clientFD int) (int, error) { return -1, ErrUnsupported }
func (r *Registry) Delete(fd int) bool            { return false }
func (r *Registry) Confirm(ev Event) bool         { return false }
func (r *Registry) Close() error                  { return nil }
