// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint_test

import (
	"context"
	"testing"
	"time"

	"code.hybscloud.com/endpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedEndpoint completes every operation from a goroutine with a preset outcome.
type scriptedEndpoint struct {
	writeResult endpoint.WriteResult
	writeStatus endpoint.Status
	readStatus  endpoint.Status
	readData    []byte
}

func (e *scriptedEndpoint) NotifyOnRead(cb endpoint.ReadCallback, _ time.Time) {
	go func() {
		if e.readStatus != endpoint.StatusOK {
			cb(nil, e.readStatus)
			return
		}
		cb([]*endpoint.Block{endpoint.BlockOf(e.readData)}, endpoint.StatusOK)
	}()
}

func (e *scriptedEndpoint) Write(blocks []*endpoint.Block, cb endpoint.WriteCallback, _ time.Time) endpoint.WriteResult {
	endpoint.ReleaseAll(blocks)
	if e.writeResult == endpoint.WritePending {
		go cb(e.writeStatus)
	}
	return e.writeResult
}

func (e *scriptedEndpoint) Shutdown() {}
func (e *scriptedEndpoint) Destroy()  {}

func waitFor[T any](t *testing.T, f *endpoint.Future[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := f.Wait(ctx)
	require.NoError(t, err, "operation did not complete")
	return v
}

func TestWriteAsync_Results(t *testing.T) {
	cases := []struct {
		ep   scriptedEndpoint
		want endpoint.Status
	}{
		{scriptedEndpoint{writeResult: endpoint.WriteDone}, endpoint.StatusOK},
		{scriptedEndpoint{writeResult: endpoint.WriteError}, endpoint.StatusError},
		{scriptedEndpoint{writeResult: endpoint.WritePending, writeStatus: endpoint.StatusTimedOut}, endpoint.StatusTimedOut},
		{scriptedEndpoint{writeResult: endpoint.WritePending, writeStatus: endpoint.StatusOK}, endpoint.StatusOK},
	}
	for _, c := range cases {
		f := endpoint.WriteAsync(&c.ep, []*endpoint.Block{endpoint.NewBlock(1)}, endpoint.NoDeadline)
		if c.ep.writeResult != endpoint.WritePending {
			assert.True(t, f.Ready(), "synchronous result resolves immediately")
		}
		assert.Equal(t, c.want, waitFor(t, f), "%s", c.ep.writeResult)
	}
}

func TestReadAsync(t *testing.T) {
	ep := &scriptedEndpoint{readData: []byte("data")}
	res := waitFor(t, endpoint.ReadAsync(ep, endpoint.NoDeadline))
	require.Equal(t, endpoint.StatusOK, res.Status)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, "data", string(res.Blocks[0].Bytes()))
	endpoint.ReleaseAll(res.Blocks)

	ep.readStatus = endpoint.StatusShutdown
	res = waitFor(t, endpoint.ReadAsync(ep, endpoint.NoDeadline))
	assert.Equal(t, endpoint.StatusShutdown, res.Status)
	assert.Empty(t, res.Blocks)
}

func TestFuture_WaitContext(t *testing.T) {
	f := endpoint.WriteAsync(&neverEndpoint{}, nil, endpoint.NoDeadline)
	assert.False(t, f.Ready())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-f.Done():
		t.Fatal("future resolved")
	default:
	}
}

// neverEndpoint accepts writes as pending and never completes them.
type neverEndpoint struct{ scriptedEndpoint }

func (*neverEndpoint) Write(blocks []*endpoint.Block, _ endpoint.WriteCallback, _ time.Time) endpoint.WriteResult {
	endpoint.ReleaseAll(blocks)
	return endpoint.WritePending
}
