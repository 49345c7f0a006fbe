// Package lifeline tracks the lifetime of client processes through
// duplicated file descriptors. A client hands the broker one end of a pipe
// and keeps the peer; when the peer end is closed, including by process
// exit, the registered descriptor becomes readable and an event is
// delivered. The data on the descriptor is never read; readability is the
// only signal of interest.
package lifeline

import "errors"

// ErrUnsupported is returned by New on platforms without an fd readability
// watcher implementation.
var ErrUnsupported = errors.New("lifeline: not supported on this platform")

// Event identifies a single readability notification for a registered
// descriptor. Descriptor numbers are reused by the kernel, so an Event also
// carries the generation of the registration it was produced for; consumers
// must call Registry.Confirm before acting on one that was delivered
// asynchronously.
type Event struct {
	fd  int
	gen uint64
}

// FD returns the registered descriptor the event fired for.
func (e Event) FD() int { return e.fd }

// DeliverFunc receives readability events from the registry's watcher
// goroutine. Implementations must not block for long; they typically hand
// the event off to their own scheduler.
type DeliverFunc func(Event)
