// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package endpoint defines an asynchronous, bidirectional byte-stream I/O endpoint that any
// concrete connection (socket pair, TCP socket, in-memory pipe) can implement.
//
// Semantics and design:
//   - Stream of blocks: data moves as reference-counted Blocks. Writes hand blocks to the
//     endpoint; reads hand blocks to the caller. Stream order is preserved end to end;
//     block boundaries are not.
//   - Completion protocol: every asynchronous operation resolves exactly once to one of
//     StatusOK, StatusError, StatusTimedOut, StatusShutdown. Callbacks run on the
//     transport's own goroutines, never on the stack that issued the operation.
//   - Non-blocking first: Write drains synchronously while the transport accepts bytes and
//     returns WritePending once it would have to wait (iox.ErrWouldBlock from the transport,
//     re-exposed as ErrWouldBlock).
//   - Cancellation: Shutdown is idempotent and forces every outstanding and later operation
//     to resolve with StatusShutdown. Destroy releases resources and must only be called once
//     no callback can fire any more.
//
// Conformance of an implementation is checked by package conformance.
package endpoint

import (
	"time"

	"code.hybscloud.com/iox"
)

// NoDeadline is the zero deadline: the operation never times out.
var NoDeadline time.Time

// ReadCallback receives the outcome of a read notification. On StatusOK blocks is non-empty
// and owned by the callee; otherwise blocks is empty.
type ReadCallback func(blocks []*Block, status Status)

// WriteCallback receives the outcome of a pending write.
type WriteCallback func(status Status)

// Endpoint is an asynchronous byte-stream I/O object. Two endpoints form a connected pair:
// bytes written to one are delivered, in order, as reads from the other.
//
// At most one read notification and one write may be outstanding per endpoint.
type Endpoint interface {
	// NotifyOnRead registers interest in the next inbound data or terminal condition.
	// cb fires exactly once: with data and StatusOK, or without data and StatusError,
	// StatusTimedOut or StatusShutdown. It never runs on the calling goroutine.
	// A zero deadline never expires.
	NotifyOnRead(cb ReadCallback, deadline time.Time)

	// Write submits blocks for transmission and takes ownership of them.
	//   - WriteDone: all bytes accepted synchronously; cb is never called.
	//   - WritePending: cb fires exactly once, later, from another goroutine.
	//   - WriteError: rejected outright; cb is never called.
	Write(blocks []*Block, cb WriteCallback, deadline time.Time) WriteResult

	// Shutdown aborts all pending and future operations with StatusShutdown.
	// It is idempotent and does not release resources.
	Shutdown()

	// Destroy releases the endpoint's resources. The caller must ensure no read or write
	// callback can still be invoked; calling Destroy from inside such a callback is allowed.
	Destroy()
}

// ErrWouldBlock is provided as a package-level alias so transports can report the
// semantic control-flow error without importing iox directly.
var (
	// ErrWouldBlock means "no further progress without waiting".
	//
	// Transports return it from their non-blocking write attempts when the outbound buffer is
	// exhausted. Any accompanying byte count is real progress. Write turns it into
	// WritePending.
	ErrWouldBlock = iox.ErrWouldBlock
)
