// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Stream adapts an Endpoint to blocking io.Reader / io.Writer / io.Closer semantics.
//
// Semantics:
//   - Read returns bytes from the most recent delivery first; surplus bytes of a delivery are
//     buffered for later calls. Only when the buffer is empty is a new read registered.
//   - Write submits p without copying and waits for the endpoint to finish with it.
//   - StatusShutdown reads as io.EOF, StatusTimedOut as ErrTimedOut (the stream stays usable),
//     StatusError as ErrTransport. EOF and transport errors are sticky.
//   - Deadlines follow net.Conn: absolute, zero means none, and apply to subsequent calls.
//
// Read and Write may be called concurrently with each other, and Close with both.
type Stream struct {
	ep Endpoint

	rmu     sync.Mutex
	pending []*Block
	off     int
	rerr    error

	wmu  sync.Mutex
	werr error

	dmu sync.Mutex
	rdl time.Time
	wdl time.Time

	closed atomic.Bool
}

// NewStream wraps ep. The Stream owns ep from here on and destroys it on Close.
func NewStream(ep Endpoint) *Stream {
	return &Stream{ep: ep}
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	if len(s.pending) == 0 {
		if s.rerr != nil {
			return 0, s.rerr
		}
		if s.closed.Load() {
			return 0, ErrClosed
		}
		if len(p) == 0 {
			return 0, nil
		}
		// The endpoint resolves every registration (data, deadline, or shutdown on Close),
		// so waiting without a context cannot hang past Close.
		res, _ := ReadAsync(s.ep, s.readDeadline()).Wait(context.Background())
		switch res.Status {
		case StatusOK:
			s.pending, s.off = res.Blocks, 0
		case StatusTimedOut:
			return 0, ErrTimedOut
		case StatusShutdown:
			s.rerr = io.EOF
			return 0, s.rerr
		default:
			s.rerr = ErrTransport
			return 0, s.rerr
		}
	}

	n := 0
	for n < len(p) && len(s.pending) > 0 {
		b := s.pending[0].Bytes()[s.off:]
		c := copy(p[n:], b)
		n += c
		s.off += c
		if c == len(b) {
			s.pending[0].Release()
			s.pending[0] = nil
			s.pending = s.pending[1:]
			s.off = 0
		}
	}
	return n, nil
}

// Write implements io.Writer. It returns len(p) on success and 0 with an error otherwise;
// a timed-out write may have transmitted a prefix of p.
func (s *Stream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.werr != nil {
		return 0, s.werr
	}
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	st, _ := WriteAsync(s.ep, []*Block{BlockOf(p)}, s.writeDeadline()).Wait(context.Background())
	switch st {
	case StatusOK:
		return len(p), nil
	case StatusTimedOut:
		return 0, ErrTimedOut
	case StatusShutdown:
		s.werr = io.ErrClosedPipe
		return 0, s.werr
	default:
		s.werr = ErrTransport
		return 0, s.werr
	}
}

// Close shuts the endpoint down, waits for outstanding Read and Write calls to return,
// and destroys the endpoint. Further calls return nil.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.ep.Shutdown()

	s.rmu.Lock()
	ReleaseAll(s.pending)
	s.pending = nil
	s.rmu.Unlock()

	s.wmu.Lock()
	s.wmu.Unlock()

	s.ep.Destroy()
	return nil
}

// SetDeadline sets both the read and the write deadline.
func (s *Stream) SetDeadline(t time.Time) error {
	s.dmu.Lock()
	s.rdl, s.wdl = t, t
	s.dmu.Unlock()
	return nil
}

// SetReadDeadline sets the deadline for future Read calls.
func (s *Stream) SetReadDeadline(t time.Time) error {
	s.dmu.Lock()
	s.rdl = t
	s.dmu.Unlock()
	return nil
}

// SetWriteDeadline sets the deadline for future Write calls.
func (s *Stream) SetWriteDeadline(t time.Time) error {
	s.dmu.Lock()
	s.wdl = t
	s.dmu.Unlock()
	return nil
}

func (s *Stream) readDeadline() time.Time {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	return s.rdl
}

func (s *Stream) writeDeadline() time.Time {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	return s.wdl
}
