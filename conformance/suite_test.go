// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conformance

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/endpoint"
	"code.hybscloud.com/endpoint/pipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failureTB records failures of a scenario run on its own goroutine instead of failing the test.
type failureTB struct {
	*testing.T

	mu   sync.Mutex
	msgs []string
}

func (f *failureTB) Errorf(format string, args ...any) {
	f.mu.Lock()
	f.msgs = append(f.msgs, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *failureTB) FailNow() {
	f.Errorf("FailNow")
	runtime.Goexit()
}

func (f *failureTB) Failed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs) > 0
}

func runIsolated(tb testing.TB, scenario func(testing.TB)) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		scenario(tb)
	}()
	<-done
}

// shutdownIgnored is an endpoint whose Shutdown does nothing.
type shutdownIgnored struct{ endpoint.Endpoint }

func (shutdownIgnored) Shutdown() {}

func pipeConfig(wrap func(endpoint.Endpoint) endpoint.Endpoint, created *[]*pipe.Endpoint) Config {
	return Config{
		Name: "pipe",
		CreateFixture: func(t testing.TB, blockSize int) Fixture {
			c, s, err := pipe.New(endpoint.WithBlockSize(blockSize))
			require.NoError(t, err)
			*created = append(*created, c, s)
			return Fixture{Client: wrap(c), Server: wrap(s)}
		},
	}
}

func shortShutdownBudget(t *testing.T) {
	prev := shutdownBudget
	shutdownBudget = 200 * time.Millisecond
	t.Cleanup(func() { shutdownBudget = prev })
}

func TestShutdownDuringWrite_Pipe(t *testing.T) {
	shortShutdownBudget(t)
	var created []*pipe.Endpoint
	cfg := pipeConfig(func(e endpoint.Endpoint) endpoint.Endpoint { return e }, &created)

	ft := &failureTB{T: t}
	runIsolated(ft, func(tb testing.TB) { ShutdownDuringWrite(tb, cfg, timeoutScenarioBlk) })
	assert.False(t, ft.Failed(), "%v", ft.msgs)
}

func TestShutdownDuringWrite_RejectsIgnoredShutdown(t *testing.T) {
	shortShutdownBudget(t)
	var created []*pipe.Endpoint
	cfg := pipeConfig(func(e endpoint.Endpoint) endpoint.Endpoint { return shutdownIgnored{e} }, &created)

	ft := &failureTB{T: t}
	runIsolated(ft, func(tb testing.TB) { ShutdownDuringWrite(tb, cfg, timeoutScenarioBlk) })
	for _, e := range created {
		e.Destroy()
	}
	assert.True(t, ft.Failed(), "pending write completed without a working Shutdown")
}

func TestReadAndWrite_ShutdownWithPartlyAcceptedWrite(t *testing.T) {
	var created []*pipe.Endpoint
	cfg := pipeConfig(func(e endpoint.Endpoint) endpoint.Endpoint { return e }, &created)

	// Block size 1 leaves the first chunk pending with part of it readable.
	ReadAndWrite(t, cfg, 100_000_000, 100_000, 1, true)
}

func TestDuplex_SubmittedCountsPendingWrite(t *testing.T) {
	c, s, err := pipe.New(endpoint.WithBlockSize(8), endpoint.WithBufferSize(64))
	require.NoError(t, err)
	d := newDuplex(t, s, c, 1000, 500)

	// The reader is gone before the first write, so that write ends SHUTDOWN after handing over.
	s.Shutdown()
	d.start()
	require.True(t, d.wait(time.Now().Add(timeoutBudget)))
	c.Destroy()
	s.Destroy()

	r := d.result()
	assert.Equal(t, endpoint.StatusShutdown, r.writeStatus)
	assert.Zero(t, r.written, "no write completed")
	assert.EqualValues(t, 500, r.submitted, "the pending chunk was handed over")
	assert.Equal(t, endpoint.StatusShutdown, r.readStatus)
	assert.Zero(t, r.read)
}
