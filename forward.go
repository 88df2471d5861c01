// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"sync/atomic"
)

// Forwarder relays the byte stream read from src into dst.
//
// Semantics:
//   - Zero-copy: blocks delivered by src are handed to dst.Write as they are; ownership moves
//     from the read callback to dst without a copy.
//   - Backpressure: the next read on src is registered only after the current write finished
//     (WriteDone, or its callback fired with StatusOK). A slow dst therefore stalls src instead
//     of buffering without bound.
//   - Termination: the relay stops at the first non-OK status from either side; that status
//     resolves the future returned by Start. StatusShutdown from src is the normal end of stream.
//   - Lifecycle: the Forwarder never shuts down or destroys src or dst. Once the future is
//     resolved no further callbacks from the relay are outstanding on either endpoint.
type Forwarder struct {
	dst, src Endpoint

	done     *Future[Status]
	started  atomic.Bool
	inflight int
	bytes    atomic.Int64
}

// NewForwarder constructs a Forwarder that relays from src to dst.
func NewForwarder(dst, src Endpoint) *Forwarder {
	return &Forwarder{dst: dst, src: src, done: newFuture[Status]()}
}

// Start begins relaying and returns the future of the terminal status.
// Calling Start again returns the same future.
func (f *Forwarder) Start() *Future[Status] {
	if f.started.CompareAndSwap(false, true) {
		f.src.NotifyOnRead(f.onRead, NoDeadline)
	}
	return f.done
}

// Bytes returns the number of bytes dst has accepted so far.
func (f *Forwarder) Bytes() int64 { return f.bytes.Load() }

func (f *Forwarder) onRead(blocks []*Block, status Status) {
	if status != StatusOK {
		f.done.resolve(status)
		return
	}
	n := TotalLen(blocks)
	f.inflight = n
	switch f.dst.Write(blocks, f.onWrite, NoDeadline) {
	case WriteDone:
		f.bytes.Add(int64(n))
		f.src.NotifyOnRead(f.onRead, NoDeadline)
	case WritePending:
	default:
		Logger().WithField("bytes", n).Error("forwarder: write rejected")
		f.done.resolve(StatusError)
	}
}

func (f *Forwarder) onWrite(status Status) {
	if status != StatusOK {
		f.done.resolve(status)
		return
	}
	f.bytes.Add(int64(f.inflight))
	f.src.NotifyOnRead(f.onRead, NoDeadline)
}
