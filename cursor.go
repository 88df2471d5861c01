// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"io"
)

// Cursor tracks the progress of one write across its blocks so that a transport can resume
// after partial progress. It owns the blocks until Release.
type Cursor struct {
	blocks []*Block
	idx    int // first block with unwritten bytes
	off    int // written bytes inside blocks[idx]

	remaining int

	// scratch for Buffers
	iov [][]byte
}

// NewCursor takes ownership of blocks.
func NewCursor(blocks []*Block) *Cursor {
	c := &Cursor{blocks: blocks, remaining: TotalLen(blocks)}
	c.skipEmpty()
	return c
}

// Remaining returns the number of bytes not yet written.
func (c *Cursor) Remaining() int { return c.remaining }

// Done reports whether every byte was written.
func (c *Cursor) Done() bool { return c.remaining == 0 }

// Buffers returns up to max spans covering the unwritten bytes, in order.
// The returned slice is reused by the next call.
func (c *Cursor) Buffers(max int) [][]byte {
	c.iov = c.iov[:0]
	for i := c.idx; i < len(c.blocks) && len(c.iov) < max; i++ {
		p := c.blocks[i].Bytes()
		if i == c.idx {
			p = p[c.off:]
		}
		if len(p) == 0 {
			continue
		}
		c.iov = append(c.iov, p)
	}
	return c.iov
}

// Advance marks n more bytes as written.
func (c *Cursor) Advance(n int) {
	if n < 0 || n > c.remaining {
		panic(ErrInvalidArgument)
	}
	c.remaining -= n
	for n > 0 {
		left := c.blocks[c.idx].Len() - c.off
		if n < left {
			c.off += n
			return
		}
		n -= left
		c.idx++
		c.off = 0
	}
	c.skipEmpty()
}

func (c *Cursor) skipEmpty() {
	for c.idx < len(c.blocks) && c.blocks[c.idx].Len() == c.off {
		c.idx++
		c.off = 0
	}
}

// Release releases every block the cursor owns. Further calls are no-ops.
func (c *Cursor) Release() {
	ReleaseAll(c.blocks)
	c.blocks = nil
	c.idx, c.off, c.remaining = 0, 0, 0
}

// Drain writes the unwritten bytes through write until all are written or write fails.
//
// write receives the unwritten spans and returns how many bytes it consumed. Progress is
// recorded before the error is looked at, so (n>0, ErrWouldBlock) keeps the n bytes.
// Drain returns the bytes written by this call and:
//   - nil when the cursor is done;
//   - ErrWouldBlock when the transport cannot take more without waiting;
//   - io.ErrShortWrite when write made no progress and reported no error;
//   - any other error from write unchanged.
func (c *Cursor) Drain(write func(bufs [][]byte) (int, error)) (int, error) {
	total := 0
	for c.remaining > 0 {
		n, err := write(c.Buffers(maxIOV))
		if n > 0 {
			c.Advance(n)
			total += n
		}
		if err != nil {
			return total, err
		}
		// Guard against broken writers that return (0, nil) on non-empty input.
		// Without this, the drain loop can spin indefinitely.
		if n <= 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
