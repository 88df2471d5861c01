// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conformance

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/endpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects failures instead of failing the test.
type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Errorf(format string, args ...any) {
	r.mu.Lock()
	r.msgs = append(r.msgs, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

// rawEndpoint hands its callbacks to the test, which fires them at will.
type rawEndpoint struct {
	readCB    endpoint.ReadCallback
	writeCB   endpoint.WriteCallback
	result    endpoint.WriteResult
	destroyed bool
}

func (e *rawEndpoint) NotifyOnRead(cb endpoint.ReadCallback, _ time.Time) { e.readCB = cb }

func (e *rawEndpoint) Write(blocks []*endpoint.Block, cb endpoint.WriteCallback, _ time.Time) endpoint.WriteResult {
	endpoint.ReleaseAll(blocks)
	e.writeCB = cb
	return e.result
}

func (e *rawEndpoint) Shutdown() {}
func (e *rawEndpoint) Destroy()  { e.destroyed = true }

func TestGuard_CleanUsage(t *testing.T) {
	rec := &recorder{}
	raw := &rawEndpoint{result: endpoint.WritePending}
	g := NewGuard(rec, "raw", raw)

	g.NotifyOnRead(func([]*endpoint.Block, endpoint.Status) {}, endpoint.NoDeadline)
	raw.readCB([]*endpoint.Block{endpoint.NewBlock(1)}, endpoint.StatusOK)
	g.NotifyOnRead(func([]*endpoint.Block, endpoint.Status) {}, endpoint.NoDeadline)
	raw.readCB(nil, endpoint.StatusShutdown)

	require.Equal(t, endpoint.WritePending, g.Write(nil, func(endpoint.Status) {}, endpoint.NoDeadline))
	raw.writeCB(endpoint.StatusOK)

	g.Shutdown()
	g.Shutdown()
	g.Destroy()

	assert.Zero(t, rec.count(), "%v", rec.msgs)
	assert.True(t, raw.destroyed)
	assert.Equal(t, 2, g.Shutdowns())
}

func TestGuard_Violations(t *testing.T) {
	nop := func([]*endpoint.Block, endpoint.Status) {}

	cases := map[string]func(g *Guard, raw *rawEndpoint){
		"concurrent read": func(g *Guard, raw *rawEndpoint) {
			g.NotifyOnRead(nop, endpoint.NoDeadline)
			g.NotifyOnRead(nop, endpoint.NoDeadline)
		},
		"read fired twice": func(g *Guard, raw *rawEndpoint) {
			g.NotifyOnRead(nop, endpoint.NoDeadline)
			cb := raw.readCB
			cb(nil, endpoint.StatusShutdown)
			cb(nil, endpoint.StatusShutdown)
		},
		"OK without data": func(g *Guard, raw *rawEndpoint) {
			g.NotifyOnRead(nop, endpoint.NoDeadline)
			raw.readCB(nil, endpoint.StatusOK)
		},
		"error with data": func(g *Guard, raw *rawEndpoint) {
			g.NotifyOnRead(nop, endpoint.NoDeadline)
			raw.readCB([]*endpoint.Block{endpoint.NewBlock(1)}, endpoint.StatusError)
		},
		"destroy with read outstanding": func(g *Guard, raw *rawEndpoint) {
			g.NotifyOnRead(nop, endpoint.NoDeadline)
			g.Destroy()
		},
		"callback after destroy": func(g *Guard, raw *rawEndpoint) {
			raw.result = endpoint.WritePending
			g.Write(nil, func(endpoint.Status) {}, endpoint.NoDeadline)
			cb := raw.writeCB
			cb(endpoint.StatusOK)
			g.Destroy()
			cb(endpoint.StatusOK)
		},
		"callback after DONE": func(g *Guard, raw *rawEndpoint) {
			raw.result = endpoint.WriteDone
			g.Write(nil, func(endpoint.Status) {}, endpoint.NoDeadline)
			raw.writeCB(endpoint.StatusOK)
		},
		"concurrent write": func(g *Guard, raw *rawEndpoint) {
			raw.result = endpoint.WritePending
			g.Write(nil, func(endpoint.Status) {}, endpoint.NoDeadline)
			g.Write(nil, func(endpoint.Status) {}, endpoint.NoDeadline)
		},
		"use after destroy": func(g *Guard, raw *rawEndpoint) {
			g.Destroy()
			g.Shutdown()
		},
	}
	for name, run := range cases {
		rec := &recorder{}
		raw := &rawEndpoint{}
		run(NewGuard(rec, "raw", raw), raw)
		assert.NotZero(t, rec.count(), name)
	}
}
