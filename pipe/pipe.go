// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipe provides a connected pair of in-memory endpoints.
//
// Each direction is a bounded byte stream of BufferSize bytes, held in pool blocks of
// BlockSize bytes. Writers copy into the stream and stay pending while it is full; readers
// receive whole blocks plus the partially filled tail. All callbacks of a pair run on one
// goroutine in completion order, never on the goroutine that called NotifyOnRead or Write.
package pipe

import (
	"sync"
	"time"

	"code.hybscloud.com/endpoint"
	cb "github.com/emirpasic/gods/queues/circularbuffer"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

type pair struct {
	mu   sync.Mutex
	r    *reactor
	live int
}

// Endpoint is one side of an in-memory pair.
type Endpoint struct {
	p       *pair
	in, out *stream
	peer    *Endpoint

	maxRead int
	log     logrus.FieldLogger

	shut      bool
	destroyed bool
}

var _ endpoint.Endpoint = (*Endpoint)(nil)

// New creates a connected pair. Options default to endpoint.WithMemory buffering.
func New(opts ...endpoint.Option) (client, server *Endpoint, err error) {
	o, err := endpoint.NewOptions(append([]endpoint.Option{endpoint.WithMemory()}, opts...)...)
	if err != nil {
		return nil, nil, oops.Wrapf(err, "pipe: options")
	}
	if o.BufferSize == 0 {
		o.BufferSize = endpoint.DefaultMemoryBufferSize
	}
	slots := o.BufferSize / o.BlockSize
	if slots < 1 {
		slots = 1
	}

	p := &pair{r: newReactor(), live: 2}
	pool := endpoint.NewBlockPool(o.BlockSize)
	up := newStream(pool, slots)   // client -> server
	down := newStream(pool, slots) // server -> client

	client = &Endpoint{p: p, in: down, out: up, maxRead: o.MaxReadBlocks(),
		log: o.Logger.WithFields(logrus.Fields{"transport": "pipe", "side": "client"})}
	server = &Endpoint{p: p, in: up, out: down, maxRead: o.MaxReadBlocks(),
		log: o.Logger.WithFields(logrus.Fields{"transport": "pipe", "side": "server"})}
	client.peer, server.peer = server, client
	up.writer, up.reader = client, server
	down.writer, down.reader = server, client

	client.log.WithFields(logrus.Fields{
		"block_size":  o.BlockSize,
		"buffer_size": o.BufferSize,
		"read_blocks": client.maxRead,
	}).Debug("pipe: pair created")
	return client, server, nil
}

// NotifyOnRead implements endpoint.Endpoint.
func (e *Endpoint) NotifyOnRead(fn endpoint.ReadCallback, deadline time.Time) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()

	if e.destroyed {
		panic("pipe: NotifyOnRead on destroyed endpoint")
	}
	s := e.in
	if s.read != nil {
		panic("pipe: read notification already outstanding")
	}
	if e.shut {
		e.post(func() { fn(nil, endpoint.StatusShutdown) })
		return
	}
	op := &readOp{cb: fn}
	s.read = op
	s.progress()
	if s.read == op && !deadline.IsZero() {
		op.timer = time.AfterFunc(time.Until(deadline), func() { e.expireRead(op) })
	}
}

// Write implements endpoint.Endpoint.
func (e *Endpoint) Write(blocks []*endpoint.Block, fn endpoint.WriteCallback, deadline time.Time) endpoint.WriteResult {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()

	if e.destroyed {
		panic("pipe: Write on destroyed endpoint")
	}
	s := e.out
	if s.write != nil {
		panic("pipe: write already outstanding")
	}
	if e.shut || s.broken {
		endpoint.ReleaseAll(blocks)
		e.post(func() { fn(endpoint.StatusShutdown) })
		return endpoint.WritePending
	}

	cur := endpoint.NewCursor(blocks)
	s.fill(cur)
	if s.deliver() {
		s.fill(cur)
	}
	if cur.Done() {
		cur.Release()
		return endpoint.WriteDone
	}

	op := &writeOp{cur: cur, cb: fn}
	s.write = op
	if !deadline.IsZero() {
		op.timer = time.AfterFunc(time.Until(deadline), func() { e.expireWrite(op) })
	}
	return endpoint.WritePending
}

// Shutdown implements endpoint.Endpoint. Data buffered towards this endpoint is dropped;
// data already buffered towards the peer stays readable, then the peer reads SHUTDOWN.
func (e *Endpoint) Shutdown() {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()

	if e.shut || e.destroyed {
		return
	}
	e.shut = true
	e.log.Debug("pipe: shutdown")

	in := e.in
	in.broken = true
	in.discard()
	if r := in.read; r != nil {
		in.read = nil
		r.stop()
		e.post(func() { r.cb(nil, endpoint.StatusShutdown) })
	}
	if w := in.write; w != nil {
		in.write = nil
		w.stop()
		w.cur.Release()
		e.peer.post(func() { w.cb(endpoint.StatusShutdown) })
	}

	out := e.out
	out.eof = true
	if w := out.write; w != nil {
		out.write = nil
		w.stop()
		w.cur.Release()
		e.post(func() { w.cb(endpoint.StatusShutdown) })
	}
	out.progress()
}

// Destroy implements endpoint.Endpoint. Operations still registered are dropped without
// a callback; the peer observes end of stream.
func (e *Endpoint) Destroy() {
	e.p.mu.Lock()
	if e.destroyed {
		e.p.mu.Unlock()
		return
	}
	e.destroyed = true
	e.log.Debug("pipe: destroy")

	if r := e.in.read; r != nil {
		e.in.read = nil
		r.stop()
	}
	if w := e.out.write; w != nil {
		e.out.write = nil
		w.stop()
		w.cur.Release()
	}
	e.in.broken = true
	e.in.discard()
	if w := e.in.write; w != nil {
		e.in.write = nil
		w.stop()
		w.cur.Release()
		e.peer.post(func() { w.cb(endpoint.StatusShutdown) })
	}
	e.out.eof = true
	e.out.progress()

	e.p.live--
	last := e.p.live == 0
	e.p.mu.Unlock()

	if last {
		e.p.r.close()
	}
}

// post schedules fn on the pair's reactor unless e is destroyed by the time it runs.
func (e *Endpoint) post(fn func()) {
	e.p.r.post(func() {
		e.p.mu.Lock()
		gone := e.destroyed
		e.p.mu.Unlock()
		if !gone {
			fn()
		}
	})
}

func (e *Endpoint) expireRead(op *readOp) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if e.in.read != op {
		return
	}
	e.in.read = nil
	e.post(func() { op.cb(nil, endpoint.StatusTimedOut) })
}

func (e *Endpoint) expireWrite(op *writeOp) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if e.out.write != op {
		return
	}
	e.out.write = nil
	e.log.WithField("unwritten", op.cur.Remaining()).Debug("pipe: write timed out")
	op.cur.Release()
	e.post(func() { op.cb(endpoint.StatusTimedOut) })
}

type readOp struct {
	cb    endpoint.ReadCallback
	timer *time.Timer
}

func (op *readOp) stop() {
	if op.timer != nil {
		op.timer.Stop()
	}
}

type writeOp struct {
	cur   *endpoint.Cursor
	cb    endpoint.WriteCallback
	timer *time.Timer
}

func (op *writeOp) stop() {
	if op.timer != nil {
		op.timer.Stop()
	}
}

// stream is one direction of a pair. Guarded by pair.mu.
type stream struct {
	pool *endpoint.BlockPool
	full *cb.Queue // filled blocks, oldest first

	tail     *endpoint.Block
	tailLen  int
	buffered int

	eof    bool // writer side shut down
	broken bool // reader side shut down

	read  *readOp
	write *writeOp

	reader, writer *Endpoint
}

func newStream(pool *endpoint.BlockPool, slots int) *stream {
	return &stream{pool: pool, full: cb.New(slots)}
}

// accept copies bufs into the stream and reports ErrWouldBlock once it is full.
func (s *stream) accept(bufs [][]byte) (int, error) {
	n := 0
	for _, p := range bufs {
		for len(p) > 0 {
			if s.tail == nil {
				if s.full.Full() {
					return n, endpoint.ErrWouldBlock
				}
				s.tail, s.tailLen = s.pool.Get(), 0
			}
			c := copy(s.tail.Bytes()[s.tailLen:], p)
			p = p[c:]
			n += c
			s.tailLen += c
			s.buffered += c
			if s.tailLen == s.pool.Size() {
				s.full.Enqueue(s.tail)
				s.tail = nil
			}
		}
	}
	return n, nil
}

func (s *stream) fill(cur *endpoint.Cursor) {
	// accept only fails with ErrWouldBlock.
	_, _ = cur.Drain(s.accept)
}

// take removes up to max blocks, oldest first. The tail is handed out truncated.
func (s *stream) take(max int) []*endpoint.Block {
	out := make([]*endpoint.Block, 0, min(max, s.full.Size()+1))
	for len(out) < max {
		v, ok := s.full.Dequeue()
		if !ok {
			break
		}
		b := v.(*endpoint.Block)
		s.buffered -= b.Len()
		out = append(out, b)
	}
	if len(out) < max && s.full.Empty() && s.tail != nil && s.tailLen > 0 {
		s.tail.Truncate(s.tailLen)
		s.buffered -= s.tailLen
		out = append(out, s.tail)
		s.tail = nil
	}
	return out
}

func (s *stream) discard() {
	for {
		v, ok := s.full.Dequeue()
		if !ok {
			break
		}
		v.(*endpoint.Block).Release()
	}
	if s.tail != nil {
		s.tail.Release()
		s.tail = nil
	}
	s.tailLen, s.buffered = 0, 0
}

// deliver completes the pending read if there is anything to report.
func (s *stream) deliver() bool {
	r := s.read
	if r == nil {
		return false
	}
	switch {
	case s.buffered > 0:
		blocks := s.take(s.reader.maxRead)
		s.read = nil
		r.stop()
		s.reader.post(func() { r.cb(blocks, endpoint.StatusOK) })
		return true
	case s.eof:
		s.read = nil
		r.stop()
		s.reader.post(func() { r.cb(nil, endpoint.StatusShutdown) })
	}
	return false
}

// pump moves bytes of the pending write into free space and completes it when done.
func (s *stream) pump() {
	w := s.write
	if w == nil {
		return
	}
	s.fill(w.cur)
	if w.cur.Done() {
		s.write = nil
		w.stop()
		w.cur.Release()
		s.writer.post(func() { w.cb(endpoint.StatusOK) })
	}
}

func (s *stream) progress() {
	s.pump()
	if s.deliver() {
		s.pump()
	}
}
