// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package conformance is a transport-independent test suite for endpoint.Endpoint
// implementations.
//
// Every scenario writes the stream i mod 256 and verifies it byte by byte on the reading side,
// so loss, duplication, reordering and corruption are detected at any fragmentation. Endpoints
// are wrapped in a Guard, which fails the test on contract violations. A scenario whose wait
// expires fails with a synchronization timeout, distinct from an unexpected status.
//
// Usage from a transport package:
//
//	func TestConformance(t *testing.T) {
//		conformance.Run(t, conformance.Config{Name: "mytransport", CreateFixture: newFixture})
//	}
package conformance

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/endpoint"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// writeBlockSize is the block size of writer-side allocations in the full-duplex scenarios.
	writeBlockSize = 8192

	duplexBudget       = 20 * time.Second * budgetScale
	timeoutBudget      = 2 * time.Second * budgetScale
	ioDeadline         = 10 * time.Millisecond
	timeoutScenarioBlk = 1000
)

// shutdownBudget bounds ShutdownDuringWrite.
var shutdownBudget = 10 * time.Second * budgetScale

// Run runs every scenario against cfg as subtests.
func Run(t *testing.T, cfg Config) {
	require.NotNil(t, cfg.CreateFixture, "Config.CreateFixture")

	t.Run("ReadAndWrite/block_size=8192", func(t *testing.T) {
		ReadAndWrite(t, cfg, 10_000_000, 100_000, 8192, false)
	})
	t.Run("ReadAndWrite/block_size=1", func(t *testing.T) {
		ReadAndWrite(t, cfg, 10_000_000, 100_000, 1, false)
	})
	t.Run("ReadAndWrite/shutdown", func(t *testing.T) {
		ReadAndWrite(t, cfg, 100_000_000, 100_000, 1, true)
	})
	t.Run("ReadTimeout", func(t *testing.T) { ReadTimeout(t, cfg, timeoutScenarioBlk) })
	t.Run("WriteTimeout", func(t *testing.T) { WriteTimeout(t, cfg, timeoutScenarioBlk) })
	t.Run("ShutdownDuringWrite", func(t *testing.T) { ShutdownDuringWrite(t, cfg, timeoutScenarioBlk) })
	t.Run("MultiBlockRead", func(t *testing.T) { MultiBlockRead(t, cfg, 3) })
	t.Run("RepeatedShutdown", func(t *testing.T) { RepeatedShutdown(t, cfg, timeoutScenarioBlk) })
}

type guarded struct {
	client, server *Guard
}

func begin(t testing.TB, cfg Config, blockSize int) guarded {
	t.Helper()
	endpoint.Logger().WithFields(logrus.Fields{
		"test":       t.Name(),
		"fixture":    cfg.Name,
		"block_size": blockSize,
	}).Info("conformance: start")

	f := cfg.CreateFixture(t, blockSize)
	require.NotNil(t, f.Client, "fixture client")
	require.NotNil(t, f.Server, "fixture server")
	if cfg.CleanUp != nil {
		t.Cleanup(cfg.CleanUp)
	}
	return guarded{
		client: NewGuard(t, cfg.Name+"/client", f.Client),
		server: NewGuard(t, cfg.Name+"/server", f.Server),
	}
}

// abandon tears down a pair after a synchronization timeout: both sides are shut down and
// given a short grace period for their callbacks before being destroyed.
func abandon(g guarded, settle func(time.Time) bool) {
	g.client.Shutdown()
	g.server.Shutdown()
	if settle(time.Now().Add(timeoutBudget)) {
		g.client.Destroy()
		g.server.Destroy()
	}
}

// ReadAndWrite transfers total bytes from the server to the client in writes of chunk bytes
// made of 8192-byte blocks, verifying every byte. With shutdown set, both endpoints are shut
// down right after the transfer starts and both sides must finish with SHUTDOWN.
func ReadAndWrite(t testing.TB, cfg Config, total, chunk, blockSize int, shutdown bool) {
	g := begin(t, cfg, blockSize)
	d := newDuplex(t, g.client, g.server, int64(total), chunk)

	d.start()
	if shutdown {
		g.client.Shutdown()
		g.server.Shutdown()
	}
	if !d.wait(time.Now().Add(duplexBudget)) {
		abandon(g, d.wait)
		require.FailNow(t, "synchronization timeout", "transfer of %d bytes did not finish within %s", total, duplexBudget)
	}
	g.client.Destroy()
	g.server.Destroy()

	r := d.result()
	if shutdown {
		// A chunk still pending at Shutdown may have been partly accepted and read.
		assert.Equal(t, endpoint.StatusShutdown, r.readStatus, "read status")
		assert.Equal(t, endpoint.StatusShutdown, r.writeStatus, "write status")
		assert.LessOrEqual(t, r.read, r.submitted, "read beyond submitted")
		return
	}
	assert.Equal(t, endpoint.StatusOK, r.readStatus, "read status")
	assert.Equal(t, endpoint.StatusOK, r.writeStatus, "write status")
	assert.Equal(t, int64(total), r.read, "bytes read")
	assert.Equal(t, int64(total), r.written, "bytes written")
}

// ReadTimeout registers a read with a 10ms deadline and no inbound data; it must complete with
// TIMED_OUT.
func ReadTimeout(t testing.TB, cfg Config, blockSize int) {
	g := begin(t, cfg, blockSize)
	ev := newEvent()

	g.client.NotifyOnRead(func(blocks []*endpoint.Block, status endpoint.Status) {
		endpoint.ReleaseAll(blocks)
		assert.Equal(t, endpoint.StatusTimedOut, status, "read status")
		ev.set(status)
	}, time.Now().Add(ioDeadline))

	_, ok := ev.wait(time.Now().Add(timeoutBudget))
	if !ok {
		abandon(g, ev.settled)
		require.FailNow(t, "synchronization timeout", "read deadline did not fire within %s", timeoutBudget)
	}
	g.client.Destroy()
	g.server.Destroy()
}

// WriteTimeout writes doubling amounts of 1-byte blocks with a 10ms deadline and nobody
// reading, until a write goes pending; that write must complete with TIMED_OUT.
func WriteTimeout(t testing.TB, cfg Config, blockSize int) {
	g := begin(t, cfg, blockSize)
	ev := newEvent()
	var p Pattern
	deadline := time.Now().Add(ioDeadline)

	for size := 1; ; size *= 2 {
		res := g.client.Write(p.Blocks(size, 1), func(status endpoint.Status) {
			assert.Equal(t, endpoint.StatusTimedOut, status, "write status")
			ev.set(status)
		}, deadline)
		switch res {
		case endpoint.WriteDone:
			continue
		case endpoint.WritePending:
		default:
			g.client.Destroy()
			g.server.Destroy()
			require.FailNow(t, "write rejected", "size %d", size)
		}
		break
	}

	if _, ok := ev.wait(time.Now().Add(timeoutBudget)); !ok {
		abandon(g, ev.settled)
		require.FailNow(t, "synchronization timeout", "write deadline did not fire within %s", timeoutBudget)
	}
	g.client.Destroy()
	g.server.Destroy()
}

// ShutdownDuringWrite registers one read on the client, which is not renewed until the server
// is shut down, and writes doubling amounts from the server until a write goes pending. With
// nobody draining the client, only Shutdown can complete that write, so it must end non-OK.
// The client then reads on until it sees end of stream. Each callback destroys its own endpoint.
func ShutdownDuringWrite(t testing.TB, cfg Config, blockSize int) {
	g := begin(t, cfg, blockSize)
	readEv, writeEv := newEvent(), newEvent()

	// readMu guards the hand-off of the parked client read.
	var (
		readMu   sync.Mutex
		draining bool
		parked   bool
	)
	var onRead endpoint.ReadCallback
	onRead = func(blocks []*endpoint.Block, status endpoint.Status) {
		endpoint.ReleaseAll(blocks)
		if status != endpoint.StatusOK {
			g.client.Destroy()
			readEv.set(status)
			return
		}
		readMu.Lock()
		defer readMu.Unlock()
		if !draining {
			parked = true
			return
		}
		g.client.NotifyOnRead(onRead, endpoint.NoDeadline)
	}
	g.client.NotifyOnRead(onRead, endpoint.NoDeadline)

	// serverMu orders the test's Shutdown against the Destroy in the write callback.
	var (
		serverMu   sync.Mutex
		serverGone bool
	)
	var p Pattern
	for size := 1; ; size *= 2 {
		res := g.server.Write(p.Blocks(size, 1), func(status endpoint.Status) {
			endpoint.Logger().WithField("status", status).Info("conformance: write callback during shutdown")
			serverMu.Lock()
			g.server.Destroy()
			serverGone = true
			serverMu.Unlock()
			writeEv.set(status)
		}, endpoint.NoDeadline)
		switch res {
		case endpoint.WriteDone:
			continue
		case endpoint.WritePending:
		default:
			g.client.Shutdown()
			g.server.Shutdown()
			require.FailNow(t, "write rejected", "size %d", size)
		}
		break
	}
	serverMu.Lock()
	if !serverGone {
		g.server.Shutdown()
	}
	serverMu.Unlock()

	deadline := time.Now().Add(shutdownBudget)
	writeStatus, ok := writeEv.wait(deadline)
	if !ok {
		g.client.Shutdown()
		require.FailNow(t, "synchronization timeout", "pending write did not complete within %s of Shutdown", shutdownBudget)
	}
	assert.NotEqual(t, endpoint.StatusOK, writeStatus, "write status")

	readMu.Lock()
	draining = true
	if parked {
		parked = false
		g.client.NotifyOnRead(onRead, endpoint.NoDeadline)
	}
	readMu.Unlock()

	readStatus, ok := readEv.wait(deadline)
	if !ok {
		g.client.Shutdown()
		require.FailNow(t, "synchronization timeout", "client read did not end within %s", shutdownBudget)
	}
	assert.NotEqual(t, endpoint.StatusOK, readStatus, "read status")
}

// MultiBlockRead writes blocks of non-uniform sizes to a fixture with a small delivery block
// size and expects at least one OK delivery carrying several blocks, with the stream intact
// across block boundaries.
func MultiBlockRead(t testing.TB, cfg Config, blockSize int) {
	const total = 200_000
	g := begin(t, cfg, blockSize)
	d := newDuplex(t, g.client, g.server, total, 20_000)
	d.gen = func(p *Pattern, n int) []*endpoint.Block { return p.Sizes(n, 1, 5, 2, 7, 3, 11, 4096) }

	d.start()
	if !d.wait(time.Now().Add(duplexBudget)) {
		abandon(g, d.wait)
		require.FailNow(t, "synchronization timeout", "transfer of %d bytes did not finish within %s", total, duplexBudget)
	}
	g.client.Destroy()
	g.server.Destroy()

	r := d.result()
	assert.Equal(t, endpoint.StatusOK, r.readStatus, "read status")
	assert.Equal(t, endpoint.StatusOK, r.writeStatus, "write status")
	assert.Equal(t, int64(total), r.read, "bytes read")
	assert.Positive(t, r.multi, "no delivery carried more than one block")
}

// RepeatedShutdown shuts the client down three times with a read outstanding. The read fires
// once with SHUTDOWN; a later read and a later write observe SHUTDOWN as well.
func RepeatedShutdown(t testing.TB, cfg Config, blockSize int) {
	g := begin(t, cfg, blockSize)
	deadline := time.Now().Add(timeoutBudget)

	first := newEvent()
	g.client.NotifyOnRead(func(blocks []*endpoint.Block, status endpoint.Status) {
		endpoint.ReleaseAll(blocks)
		assert.True(t, first.set(status), "read callback fired twice")
	}, endpoint.NoDeadline)
	for i := 0; i < 3; i++ {
		g.client.Shutdown()
	}
	st, ok := first.wait(deadline)
	require.True(t, ok, "synchronization timeout: outstanding read")
	assert.Equal(t, endpoint.StatusShutdown, st, "outstanding read")

	later := newEvent()
	g.client.NotifyOnRead(func(blocks []*endpoint.Block, status endpoint.Status) {
		endpoint.ReleaseAll(blocks)
		later.set(status)
	}, endpoint.NoDeadline)
	st, ok = later.wait(deadline)
	require.True(t, ok, "synchronization timeout: read after shutdown")
	assert.Equal(t, endpoint.StatusShutdown, st, "read after shutdown")

	var p Pattern
	w := newEvent()
	res := g.client.Write(p.Blocks(16, 16), func(status endpoint.Status) { w.set(status) }, endpoint.NoDeadline)
	require.Equal(t, endpoint.WritePending, res, "write after shutdown")
	st, ok = w.wait(deadline)
	require.True(t, ok, "synchronization timeout: write after shutdown")
	assert.Equal(t, endpoint.StatusShutdown, st, "write after shutdown")

	g.client.Shutdown()
	assert.Equal(t, 4, g.client.Shutdowns())
	g.server.Shutdown()
	g.client.Destroy()
	g.server.Destroy()
}
