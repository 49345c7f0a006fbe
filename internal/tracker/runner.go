package tracker

import "sync"

// runner executes closures one at a time on a single goroutine. All tracker
// state is touched only from that goroutine, so the engine needs no locks
// and every operation runs to completion before the next one starts.
type runner struct {
	tasks chan func()
	done  chan struct{}

	mu      sync.RWMutex
	stopped bool
}

func newRunner() *runner {
	r := &runner{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *runner) loop() {
	defer close(r.done)
	for task := range r.tasks {
		task()
	}
}

// run posts task and waits for it to finish. It reports whether the task
// ran; once stop has begun no further work is accepted.
func (r *runner) run(task func()) bool {
	r.mu.RLock()
	if r.stopped {
		r.mu.RUnlock()
		return false
	}
	fin := make(chan struct{})
	r.tasks <- func() {
		task()
		close(fin)
	}
	r.mu.RUnlock()
	<-fin
	return true
}

// post queues task without waiting. Used for lifeline events so the
// watcher goroutine never blocks on the engine. Events arriving after
// stop are dropped.
func (r *runner) post(task func()) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return false
	}
	r.tasks <- task
	return true
}

// stop runs every queued task, then stops the goroutine. Later run and
// post calls are rejected, not executed. Idempotent.
func (r *runner) stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.tasks)
	r.mu.Unlock()
	<-r.done
}
