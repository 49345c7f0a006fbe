//go:build linux

package lifeline

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"
)

// Registry watches registered descriptors for readability with an epoll
// instance owned by a single watcher goroutine. Registration and removal
// are synchronous: once Delete returns, no further event for that
// registration will be delivered (a stale event already in flight fails
// Confirm).
type Registry struct {
	deliver DeliverFunc
	logger  *slog.Logger

	epollFD int
	wakeFD  int

	mu      sync.Mutex
	watches map[int]uint64 // fd -> registration generation
	nextGen uint64
	closed  bool

	done chan struct{}
}

// New creates a Registry and starts its watcher goroutine. Events are
// passed to deliver from that goroutine.
func New(deliver DeliverFunc, logger *slog.Logger) (*Registry, error) {
	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("lifeline: epoll_create1: %w", err)
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epollFD)
		return nil, fmt.Errorf("lifeline: eventfd: %w", err)
	}
	if err := unix.EpollCtl(epollFD, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFD),
	}); err != nil {
		unix.Close(wakeFD)
		unix.Close(epollFD)
		return nil, fmt.Errorf("lifeline: register wake fd: %w", err)
	}

	r := &Registry{
		deliver: deliver,
		logger:  logger.With("component", "lifeline"),
		epollFD: epollFD,
		wakeFD:  wakeFD,
		watches: make(map[int]uint64),
		done:    make(chan struct{}),
	}
	go r.watch()
	return r, nil
}

// Add duplicates clientFD and registers the duplicate for readability.
// The caller keeps ownership of clientFD; the returned descriptor belongs
// to the registry and is closed by Delete or Close.
func (r *Registry) Add(clientFD int) (int, error) {
	fd, err := unix.FcntlInt(uintptr(clientFD), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("lifeline: dup client fd %d: %w", clientFD, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		unix.Close(fd)
		return -1, fmt.Errorf("lifeline: registry closed")
	}

	// EPOLLONESHOT: the peer never becomes un-readable once closed, and a
	// one-shot registration keeps the watcher from re-reporting the same fd
	// while the event is still queued with the consumer.
	if err := unix.EpollCtl(r.epollFD, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLONESHOT,
		Fd:     int32(fd),
	}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("lifeline: watch fd %d: %w", fd, err)
	}

	r.nextGen++
	r.watches[fd] = r.nextGen
	return fd, nil
}

// Delete cancels the watch for fd and closes it. It reports whether the fd
// was registered. After Delete returns, Confirm fails for any event that
// was produced for the old registration.
func (r *Registry) Delete(fd int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(fd)
}

func (r *Registry) deleteLocked(fd int) bool {
	if _, ok := r.watches[fd]; !ok {
		return false
	}
	delete(r.watches, fd)
	if err := unix.EpollCtl(r.epollFD, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		r.logger.Error("epoll_ctl del failed", "fd", fd, "error", err)
	}
	if err := closeRetry(fd); err != nil {
		r.logger.Error("close lifeline fd failed", "fd", fd, "error", err)
	}
	return true
}

// Confirm reports whether ev still refers to a live registration. A false
// result means the watch was deleted, or the fd number was recycled for a
// newer registration, after the event was produced.
func (r *Registry) Confirm(ev Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.watches[ev.fd]
	return ok && gen == ev.gen
}

// Close stops the watcher goroutine and releases every remaining watch and
// the epoll instance. No events are delivered after Close returns.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(r.wakeFD, one[:]); err != nil {
		return fmt.Errorf("lifeline: wake watcher: %w", err)
	}
	<-r.done

	r.mu.Lock()
	for fd := range r.watches {
		r.deleteLocked(fd)
	}
	r.mu.Unlock()

	unix.Close(r.wakeFD)
	unix.Close(r.epollFD)
	return nil
}

// watch is the watcher goroutine. It blocks in epoll_wait and forwards
// readability events for registered fds until woken by Close.
func (r *Registry) watch() {
	defer close(r.done)
	events := make([]unix.EpollEvent, 16)
	for {
		n, err := unix.EpollWait(r.epollFD, events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			r.logger.Error("epoll_wait failed", "error", err)
			return
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == r.wakeFD {
				return
			}
			r.mu.Lock()
			gen, ok := r.watches[fd]
			r.mu.Unlock()
			if !ok {
				// Deleted between epoll_wait returning and now.
				continue
			}
			r.deliver(Event{fd: fd, gen: gen})
		}
	}
}

// closeRetry closes fd, treating EINTR as success: on Linux the descriptor
// is released even when close is interrupted.
func closeRetry(fd int) error {
	err := unix.Close(fd)
	if err == unix.EINTR {
		return nil
	}
	return err
}
