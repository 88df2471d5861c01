// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Package sock implements endpoint.Endpoint over stream sockets (TCP, unix).
//
// Writes are attempted synchronously with non-blocking writev(2). When the socket buffer is
// full, or a single write exceeds syncWriteLimit, the rest is flushed by a goroutine parked in
// the runtime netpoller until the socket is writable or the deadline passes. Reads run on their
// own goroutine and readv(2) into pool blocks.
//
// Peer teardown (EOF, EPIPE, ECONNRESET) completes operations with StatusShutdown, deadline
// expiry with StatusTimedOut; any other failure is logged and completes with StatusError.
package sock

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"code.hybscloud.com/endpoint"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// syncWriteLimit bounds the bytes one Write call transmits on the caller's goroutine.
const syncWriteLimit = 256 << 10

// Endpoint is an endpoint over a connected stream socket.
type Endpoint struct {
	conn    net.Conn
	rc      syscall.RawConn
	pool    *endpoint.BlockPool
	maxRead int
	log     logrus.FieldLogger

	reading atomic.Bool
	writing atomic.Bool

	mu        sync.Mutex
	shut      bool
	destroyed bool
}

var _ endpoint.Endpoint = (*Endpoint)(nil)

// New takes ownership of conn, which must implement syscall.Conn.
func New(conn net.Conn, opts ...endpoint.Option) (*Endpoint, error) {
	o, err := endpoint.NewOptions(opts...)
	if err != nil {
		return nil, oops.Wrapf(err, "sock: options")
	}
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, oops.Errorf("sock: %T does not expose a raw connection", conn)
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, oops.Wrapf(err, "sock: raw connection")
	}
	if o.BufferSize > 0 {
		if err := setBuffers(rc, o.BufferSize); err != nil {
			return nil, err
		}
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(o.NoDelay); err != nil {
			return nil, oops.Wrapf(err, "sock: set TCP_NODELAY")
		}
	}

	local := "unnamed"
	if a := conn.LocalAddr(); a != nil && a.String() != "" {
		local = a.String()
	}
	e := &Endpoint{
		conn:    conn,
		rc:      rc,
		pool:    endpoint.NewBlockPool(o.BlockSize),
		maxRead: o.MaxReadBlocks(),
		log: o.Logger.WithFields(logrus.Fields{
			"transport": "sock",
			"local":     local,
		}),
	}
	e.log.WithFields(logrus.Fields{
		"block_size":  o.BlockSize,
		"buffer_size": o.BufferSize,
		"read_blocks": e.maxRead,
	}).Debug("sock: endpoint created")
	return e, nil
}

func setBuffers(rc syscall.RawConn, size int) error {
	var serr error
	err := rc.Control(func(fd uintptr) {
		if serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, size); serr != nil {
			return
		}
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
	})
	if err == nil {
		err = serr
	}
	if err != nil {
		return oops.Wrapf(err, "sock: set buffer size %d", size)
	}
	return nil
}

// NotifyOnRead implements endpoint.Endpoint.
func (e *Endpoint) NotifyOnRead(cb endpoint.ReadCallback, deadline time.Time) {
	if !e.reading.CompareAndSwap(false, true) {
		panic("sock: read notification already outstanding")
	}
	go func() {
		blocks, status := e.read(deadline)
		e.reading.Store(false)
		cb(blocks, status)
	}()
}

func (e *Endpoint) read(deadline time.Time) ([]*endpoint.Block, endpoint.Status) {
	e.mu.Lock()
	if e.shut {
		e.mu.Unlock()
		return nil, endpoint.StatusShutdown
	}
	err := e.conn.SetReadDeadline(deadline)
	e.mu.Unlock()
	if err != nil {
		return nil, e.status("set read deadline", err)
	}

	blocks := make([]*endpoint.Block, e.maxRead)
	iov := make([][]byte, e.maxRead)
	for i := range blocks {
		blocks[i] = e.pool.Get()
		iov[i] = blocks[i].Bytes()
	}
	var (
		n    int
		rerr error
	)
	err = e.rc.Read(func(fd uintptr) bool {
		for {
			n, rerr = unix.Readv(int(fd), iov)
			switch rerr {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				return false
			}
			return true
		}
	})
	if err == nil {
		err = rerr
	}
	if err != nil || n <= 0 {
		endpoint.ReleaseAll(blocks)
		if err == nil {
			err = io.EOF
		}
		return nil, e.status("read", err)
	}

	keep := 0
	for rem := n; rem > 0; keep++ {
		c := min(rem, blocks[keep].Len())
		blocks[keep].Truncate(c)
		rem -= c
	}
	endpoint.ReleaseAll(blocks[keep:])
	return blocks[:keep], endpoint.StatusOK
}

// Write implements endpoint.Endpoint.
func (e *Endpoint) Write(blocks []*endpoint.Block, cb endpoint.WriteCallback, deadline time.Time) endpoint.WriteResult {
	if !e.writing.CompareAndSwap(false, true) {
		panic("sock: write already outstanding")
	}

	e.mu.Lock()
	if e.shut {
		e.mu.Unlock()
		endpoint.ReleaseAll(blocks)
		go e.complete(cb, endpoint.StatusShutdown)
		return endpoint.WritePending
	}
	err := e.conn.SetWriteDeadline(deadline)
	e.mu.Unlock()
	if err != nil {
		endpoint.ReleaseAll(blocks)
		e.writing.Store(false)
		e.log.WithError(err).Error("sock: set write deadline")
		return endpoint.WriteError
	}

	cur := endpoint.NewCursor(blocks)
	budget := syncWriteLimit
	_, err = cur.Drain(func(bufs [][]byte) (int, error) {
		if budget <= 0 {
			return 0, endpoint.ErrWouldBlock
		}
		n, err := e.writev(bufs, false)
		budget -= n
		return n, err
	})
	switch {
	case err == nil:
		cur.Release()
		e.writing.Store(false)
		return endpoint.WriteDone
	case errors.Is(err, endpoint.ErrWouldBlock):
		go e.flush(cur, cb)
		return endpoint.WritePending
	}

	cur.Release()
	status := e.status("write", err)
	if status == endpoint.StatusError {
		e.writing.Store(false)
		return endpoint.WriteError
	}
	go e.complete(cb, status)
	return endpoint.WritePending
}

// writev writes bufs once. With wait unset, a full socket buffer yields ErrWouldBlock;
// otherwise it parks in the netpoller until writable or the write deadline.
func (e *Endpoint) writev(bufs [][]byte, wait bool) (int, error) {
	var (
		n    int
		werr error
	)
	err := e.rc.Write(func(fd uintptr) bool {
		for {
			n, werr = unix.Writev(int(fd), bufs)
			switch werr {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				n = 0
				if wait {
					return false
				}
				werr = endpoint.ErrWouldBlock
			}
			return true
		}
	})
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	return n, werr
}

func (e *Endpoint) flush(cur *endpoint.Cursor, cb endpoint.WriteCallback) {
	_, err := cur.Drain(func(bufs [][]byte) (int, error) {
		return e.writev(bufs, true)
	})
	cur.Release()
	status := endpoint.StatusOK
	if err != nil {
		status = e.status("write", err)
	}
	e.complete(cb, status)
}

func (e *Endpoint) complete(cb endpoint.WriteCallback, status endpoint.Status) {
	e.writing.Store(false)
	cb(status)
}

// status maps an I/O error to a completion status.
func (e *Endpoint) status(op string, err error) endpoint.Status {
	e.mu.Lock()
	shut := e.shut
	e.mu.Unlock()

	switch {
	case shut:
		return endpoint.StatusShutdown
	case errors.Is(err, os.ErrDeadlineExceeded):
		return endpoint.StatusTimedOut
	case errors.Is(err, io.EOF),
		errors.Is(err, unix.EPIPE),
		errors.Is(err, unix.ECONNRESET),
		errors.Is(err, net.ErrClosed):
		e.log.WithError(err).WithField("op", op).Debug("sock: peer gone")
		return endpoint.StatusShutdown
	default:
		e.log.WithError(err).WithField("op", op).Error("sock: transport error")
		return endpoint.StatusError
	}
}

// Shutdown implements endpoint.Endpoint. Blocked operations are woken through a past
// deadline; the socket is shut down in both directions so the peer sees end of stream.
func (e *Endpoint) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shut {
		return
	}
	e.shut = true
	e.log.Debug("sock: shutdown")

	if err := e.conn.SetDeadline(time.Unix(1, 0)); err != nil {
		e.log.WithError(err).Debug("sock: set shutdown deadline")
	}
	var serr error
	err := e.rc.Control(func(fd uintptr) {
		serr = unix.Shutdown(int(fd), unix.SHUT_RDWR)
	})
	if err == nil {
		err = serr
	}
	if err != nil && !errors.Is(err, unix.ENOTCONN) {
		e.log.WithError(err).Debug("sock: shutdown(2)")
	}
}

// Destroy implements endpoint.Endpoint. It closes the socket without waiting for goroutines,
// so it may run inside a callback.
func (e *Endpoint) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.shut = true
	e.mu.Unlock()

	e.log.Debug("sock: destroy")
	if err := e.conn.Close(); err != nil {
		e.log.WithError(err).Debug("sock: close")
	}
}
