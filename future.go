// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"context"
	"sync/atomic"
	"time"
)

// Future is a single-assignment result of an asynchronous operation.
type Future[T any] struct {
	done chan struct{}
	set  atomic.Bool
	v    T
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve stores v and wakes waiters. Only the first call has an effect.
func (f *Future[T]) resolve(v T) bool {
	if !f.set.CompareAndSwap(false, true) {
		return false
	}
	f.v = v
	close(f.done)
	return true
}

// Done returns a channel closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Ready reports whether the result is available.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the result is available or ctx is done.
// A context error is a wait failure; it does not cancel the operation.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// ReadResult is the outcome of one read notification.
type ReadResult struct {
	Blocks []*Block
	Status Status
}

// ReadAsync registers a read notification on ep and returns its future.
func ReadAsync(ep Endpoint, deadline time.Time) *Future[ReadResult] {
	f := newFuture[ReadResult]()
	ep.NotifyOnRead(func(blocks []*Block, status Status) {
		f.resolve(ReadResult{Blocks: blocks, Status: status})
	}, deadline)
	return f
}

// WriteAsync submits blocks to ep and returns the future of the write.
// WriteDone yields a resolved future holding StatusOK; WriteError one holding StatusError.
func WriteAsync(ep Endpoint, blocks []*Block, deadline time.Time) *Future[Status] {
	f := newFuture[Status]()
	switch ep.Write(blocks, func(status Status) { f.resolve(status) }, deadline) {
	case WriteDone:
		f.resolve(StatusOK)
	case WriteError:
		f.resolve(StatusError)
	}
	return f
}
