// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipe

import "sync"

// reactor runs callbacks of one endpoint pair, in posting order, on a single goroutine.
type reactor struct {
	mu     sync.Mutex
	cond   sync.Cond
	tasks  []func()
	closed bool
	done   chan struct{}
}

func newReactor() *reactor {
	r := &reactor{done: make(chan struct{})}
	r.cond.L = &r.mu
	go r.run()
	return r
}

// post queues fn. Tasks posted after close are dropped.
func (r *reactor) post(fn func()) {
	r.mu.Lock()
	if !r.closed {
		r.tasks = append(r.tasks, fn)
		r.cond.Signal()
	}
	r.mu.Unlock()
}

// close stops the reactor once the batch in progress has run. It does not wait, so it is
// safe to call from a task.
func (r *reactor) close() {
	r.mu.Lock()
	r.closed = true
	r.tasks = nil
	r.cond.Signal()
	r.mu.Unlock()
}

func (r *reactor) run() {
	defer close(r.done)
	for {
		r.mu.Lock()
		for len(r.tasks) == 0 && !r.closed {
			r.cond.Wait()
		}
		if r.closed {
			r.mu.Unlock()
			return
		}
		batch := r.tasks
		r.tasks = nil
		r.mu.Unlock()

		for i, fn := range batch {
			batch[i] = nil
			fn()
		}
	}
}
