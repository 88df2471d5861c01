// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conformance

import (
	"sync"
	"time"

	"code.hybscloud.com/endpoint"
	"github.com/stretchr/testify/assert"
)

// duplex drives one writer and one reader over a pair until target bytes went through or
// either side stopped.
//
// The writer fields are touched only by the write path and the reader fields only by the read
// path; each path runs one callback at a time. Results are published under mu.
type duplex struct {
	t       assert.TestingT
	readEP  endpoint.Endpoint
	writeEP endpoint.Endpoint
	target  int64

	// writer
	chunk   int64
	written int64
	pattern Pattern
	gen     func(p *Pattern, n int) []*endpoint.Block

	// reader
	verifier Verifier
	read     int64
	multi    int

	mu        sync.Mutex
	cond      sync.Cond
	readDone  bool
	writeDone bool
	out       outcome
	expired   bool
}

// outcome is what a duplex run published.
type outcome struct {
	readStatus  endpoint.Status
	writeStatus endpoint.Status
	read        int64
	written     int64 // completed writes
	submitted   int64 // handed to Write, including a write still pending
	multi       int
}

func newDuplex(t assert.TestingT, readEP, writeEP endpoint.Endpoint, target int64, chunk int) *duplex {
	d := &duplex{
		t:       t,
		readEP:  readEP,
		writeEP: writeEP,
		target:  target,
		chunk:   int64(chunk),
		gen: func(p *Pattern, n int) []*endpoint.Block {
			return p.Blocks(n, writeBlockSize)
		},
	}
	d.cond.L = &d.mu
	return d
}

// start runs the first writes on the calling goroutine, as if a write had just completed,
// then registers the first read.
func (d *duplex) start() {
	d.written = -d.chunk
	d.onWrite(endpoint.StatusOK)
	d.readEP.NotifyOnRead(d.onRead, endpoint.NoDeadline)
}

func (d *duplex) onRead(blocks []*endpoint.Block, status endpoint.Status) {
	assert.NotEqual(d.t, endpoint.StatusError, status, "read completion")
	if status != endpoint.StatusOK {
		d.finishRead(status)
		return
	}
	if len(blocks) > 1 {
		d.multi++
	}
	n, err := d.verifier.Verify(blocks)
	d.read += int64(n)
	if !assert.NoError(d.t, err) {
		d.finishRead(endpoint.StatusError)
		return
	}
	if d.read >= d.target {
		assert.Equal(d.t, d.target, d.read, "bytes read")
		d.finishRead(endpoint.StatusOK)
		return
	}
	d.readEP.NotifyOnRead(d.onRead, endpoint.NoDeadline)
}

func (d *duplex) onWrite(status endpoint.Status) {
	assert.NotEqual(d.t, endpoint.StatusError, status, "write completion")
	if status != endpoint.StatusOK {
		d.finishWrite(status)
		return
	}
	// Keep writing inline until a write goes pending or everything is written.
	for {
		d.written += d.chunk
		if d.target-d.written < d.chunk {
			d.chunk = d.target - d.written
		}
		if d.chunk == 0 {
			break
		}
		blocks := d.gen(&d.pattern, int(d.chunk))
		switch res := d.writeEP.Write(blocks, d.onWrite, endpoint.NoDeadline); res {
		case endpoint.WriteDone:
		case endpoint.WritePending:
			return
		default:
			assert.Fail(d.t, "write rejected", "result %s", res)
			d.finishWrite(endpoint.StatusError)
			return
		}
	}
	assert.Equal(d.t, d.target, d.written, "bytes written")
	d.finishWrite(endpoint.StatusOK)
}

func (d *duplex) finishRead(status endpoint.Status) {
	d.mu.Lock()
	d.readDone, d.out.readStatus = true, status
	d.out.read, d.out.multi = d.read, d.multi
	d.cond.Broadcast()
	d.mu.Unlock()
}

func (d *duplex) finishWrite(status endpoint.Status) {
	d.mu.Lock()
	d.writeDone, d.out.writeStatus = true, status
	d.out.written, d.out.submitted = d.written, d.pattern.Offset()
	d.cond.Broadcast()
	d.mu.Unlock()
}

// wait blocks until both sides finished or deadline passed, and reports whether they finished.
func (d *duplex) wait(deadline time.Time) bool {
	timer := time.AfterFunc(time.Until(deadline), func() {
		d.mu.Lock()
		d.expired = true
		d.cond.Broadcast()
		d.mu.Unlock()
	})
	defer timer.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	for !(d.readDone && d.writeDone) && !d.expired {
		d.cond.Wait()
	}
	return d.readDone && d.writeDone
}

// result returns the published outcome. Call after wait.
func (d *duplex) result() outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out
}
