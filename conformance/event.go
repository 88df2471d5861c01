// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conformance

import (
	"sync"
	"time"

	"code.hybscloud.com/endpoint"
)

// event is a single-shot completion carrying a status.
type event struct {
	once sync.Once
	ch   chan struct{}
	v    endpoint.Status
}

func newEvent() *event {
	return &event{ch: make(chan struct{})}
}

// set records v unless the event is already set, and reports whether it did.
func (e *event) set(v endpoint.Status) bool {
	ok := false
	e.once.Do(func() {
		e.v = v
		close(e.ch)
		ok = true
	})
	return ok
}

// wait blocks until the event is set or deadline passes.
func (e *event) wait(deadline time.Time) (endpoint.Status, bool) {
	select {
	case <-e.ch:
		return e.v, true
	default:
	}
	t := time.NewTimer(time.Until(deadline))
	defer t.Stop()
	select {
	case <-e.ch:
		return e.v, true
	case <-t.C:
		return 0, false
	}
}

// settled reports whether the event is set by deadline.
func (e *event) settled(deadline time.Time) bool {
	_, ok := e.wait(deadline)
	return ok
}
