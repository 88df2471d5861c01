// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conformance

import (
	"code.hybscloud.com/endpoint"
	"github.com/samber/oops"
)

// Pattern generates the test stream: the byte at stream offset i is i mod 256.
// The zero value starts at offset 0.
type Pattern struct {
	next byte
	off  int64
}

// Offset returns the number of bytes generated so far.
func (p *Pattern) Offset() int64 { return p.off }

// Blocks returns n bytes of the stream in blocks of blockSize bytes; the last block may be
// shorter.
func (p *Pattern) Blocks(n, blockSize int) []*endpoint.Block {
	if n < 0 || blockSize <= 0 {
		panic(endpoint.ErrInvalidArgument)
	}
	return p.Sizes(n, blockSize)
}

// Sizes returns n bytes of the stream in blocks whose sizes cycle through sizes.
func (p *Pattern) Sizes(n int, sizes ...int) []*endpoint.Block {
	if n < 0 || len(sizes) == 0 {
		panic(endpoint.ErrInvalidArgument)
	}
	var blocks []*endpoint.Block
	for i := 0; n > 0; i++ {
		sz := sizes[i%len(sizes)]
		if sz <= 0 {
			panic(endpoint.ErrInvalidArgument)
		}
		if sz > n {
			sz = n
		}
		b := endpoint.NewBlock(sz)
		p.fill(b.Bytes())
		blocks = append(blocks, b)
		n -= sz
	}
	return blocks
}

func (p *Pattern) fill(buf []byte) {
	for i := range buf {
		buf[i] = p.next
		p.next++
	}
	p.off += int64(len(buf))
}

// Verifier checks a received stream against Pattern with its own cursor.
type Verifier struct {
	next byte
	off  int64
}

// Offset returns the number of bytes verified so far.
func (v *Verifier) Offset() int64 { return v.off }

// Verify checks blocks in order, releases them, and returns their total length.
// On a mismatch the cursor stops at the offending byte; the remaining blocks are still released.
func (v *Verifier) Verify(blocks []*endpoint.Block) (int, error) {
	defer endpoint.ReleaseAll(blocks)
	n := 0
	for _, b := range blocks {
		for _, got := range b.Bytes() {
			if got != v.next {
				return n, oops.Errorf("conformance: stream mismatch at offset %d: want %d, got %d", v.off, v.next, got)
			}
			v.next++
			v.off++
			n++
		}
	}
	return n, nil
}
