// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conformance

import (
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/endpoint"
	"github.com/stretchr/testify/assert"
)

// Guard wraps an Endpoint and fails t on contract violations:
//   - a second read or write registered while one is outstanding;
//   - a callback firing twice or after Destroy;
//   - an OK read without data, or a non-OK read with data;
//   - a callback for a write that returned DONE or ERROR;
//   - Destroy while a read or write is outstanding;
//   - any call after Destroy.
type Guard struct {
	ep   endpoint.Endpoint
	t    assert.TestingT
	name string

	mu        sync.Mutex
	reading   bool
	writing   bool
	destroyed bool

	shutdowns atomic.Int32
}

var _ endpoint.Endpoint = (*Guard)(nil)

// NewGuard wraps ep. name labels failures.
func NewGuard(t assert.TestingT, name string, ep endpoint.Endpoint) *Guard {
	return &Guard{ep: ep, t: t, name: name}
}

// Shutdowns returns how many times Shutdown was called.
func (g *Guard) Shutdowns() int { return int(g.shutdowns.Load()) }

func (g *Guard) violation(format string, args ...any) {
	assert.Failf(g.t, "endpoint contract violation", g.name+": "+format, args...)
}

// NotifyOnRead implements endpoint.Endpoint.
func (g *Guard) NotifyOnRead(cb endpoint.ReadCallback, deadline time.Time) {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		g.violation("NotifyOnRead after Destroy")
		return
	}
	if g.reading {
		g.violation("NotifyOnRead while a read is outstanding")
	}
	g.reading = true
	g.mu.Unlock()

	var fired atomic.Bool
	g.ep.NotifyOnRead(func(blocks []*endpoint.Block, status endpoint.Status) {
		if !fired.CompareAndSwap(false, true) {
			g.violation("read callback fired twice (%s)", status)
			return
		}
		g.mu.Lock()
		if g.destroyed {
			g.violation("read callback after Destroy (%s)", status)
		}
		g.reading = false
		g.mu.Unlock()

		switch {
		case status == endpoint.StatusOK && endpoint.TotalLen(blocks) == 0:
			g.violation("OK read without data")
		case status != endpoint.StatusOK && len(blocks) > 0:
			g.violation("%s read carrying %d blocks", status, len(blocks))
		}
		cb(blocks, status)
	}, deadline)
}

// Write implements endpoint.Endpoint.
func (g *Guard) Write(blocks []*endpoint.Block, cb endpoint.WriteCallback, deadline time.Time) endpoint.WriteResult {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		g.violation("Write after Destroy")
		endpoint.ReleaseAll(blocks)
		return endpoint.WriteError
	}
	if g.writing {
		g.violation("Write while a write is outstanding")
	}
	g.writing = true
	g.mu.Unlock()

	var (
		fired  atomic.Bool
		result atomic.Int32
	)
	result.Store(-1)
	res := g.ep.Write(blocks, func(status endpoint.Status) {
		if !fired.CompareAndSwap(false, true) {
			g.violation("write callback fired twice (%s)", status)
			return
		}
		if r := result.Load(); r >= 0 && endpoint.WriteResult(r) != endpoint.WritePending {
			g.violation("write callback after %s result", endpoint.WriteResult(r))
		}
		g.mu.Lock()
		if g.destroyed {
			g.violation("write callback after Destroy (%s)", status)
		}
		g.writing = false
		g.mu.Unlock()
		cb(status)
	}, deadline)
	result.Store(int32(res))

	if res != endpoint.WritePending {
		g.mu.Lock()
		g.writing = false
		g.mu.Unlock()
	}
	return res
}

// Shutdown implements endpoint.Endpoint.
func (g *Guard) Shutdown() {
	g.shutdowns.Add(1)
	g.mu.Lock()
	gone := g.destroyed
	g.mu.Unlock()
	if gone {
		g.violation("Shutdown after Destroy")
		return
	}
	g.ep.Shutdown()
}

// Destroy implements endpoint.Endpoint.
func (g *Guard) Destroy() {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		g.violation("Destroy called twice")
		return
	}
	if g.reading || g.writing {
		g.violation("Destroy with an operation outstanding (read=%t write=%t)", g.reading, g.writing)
	}
	g.destroyed = true
	g.mu.Unlock()
	g.ep.Destroy()
}
