// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"sync"
	"sync/atomic"
)

// Block is a reference-counted, contiguous span of bytes moved between a caller and an
// Endpoint without copying.
//
// Ownership rules:
//   - A new block has one reference, held by its producer. Only the producer may write
//     into it or Truncate it, and only before handing it off.
//   - Write transfers the caller's reference to the endpoint; the endpoint releases it once
//     the write is finished (synchronously for WriteDone, before the callback otherwise).
//   - A read delivery transfers the endpoint's reference to the callback; the receiver
//     releases it.
//   - Ref adds a holder. The block is recycled (or left to the GC) when the last holder
//     calls Release. Releasing more often than referenced panics with ErrReleased.
//   - A pool recycles the storage, never the *Block: a released block stays released, so a
//     stale holder panics even after its bytes were handed out again.
type Block struct {
	buf  []byte
	n    int
	refs atomic.Int32
	pool *BlockPool
}

// NewBlock allocates a zeroed block of n bytes.
func NewBlock(n int) *Block {
	if n < 0 {
		panic(ErrInvalidArgument)
	}
	b := &Block{buf: make([]byte, n), n: n}
	b.refs.Store(1)
	return b
}

// BlockOf wraps p as a block without copying. The caller must not modify p while the
// block is referenced.
func BlockOf(p []byte) *Block {
	b := &Block{buf: p, n: len(p)}
	b.refs.Store(1)
	return b
}

// Bytes returns the block contents. It panics with ErrReleased once the last reference is gone.
func (b *Block) Bytes() []byte {
	if b.refs.Load() <= 0 {
		panic(ErrReleased)
	}
	return b.buf[:b.n]
}

// Len returns the block length in bytes.
func (b *Block) Len() int { return b.n }

// Truncate shortens the block to n bytes.
func (b *Block) Truncate(n int) {
	if n < 0 || n > b.n {
		panic(ErrInvalidArgument)
	}
	b.n = n
}

// Ref adds a reference and returns b.
func (b *Block) Ref() *Block {
	for {
		r := b.refs.Load()
		if r <= 0 {
			panic(ErrReleased)
		}
		if b.refs.CompareAndSwap(r, r+1) {
			return b
		}
	}
}

// Release drops one reference.
func (b *Block) Release() {
	r := b.refs.Add(-1)
	switch {
	case r > 0:
	case r == 0:
		if b.pool != nil {
			b.pool.put(b)
		}
	default:
		panic(ErrReleased)
	}
}

// TotalLen returns the number of bytes held by blocks.
func TotalLen(blocks []*Block) int {
	n := 0
	for _, b := range blocks {
		n += b.n
	}
	return n
}

// ReleaseAll releases one reference of every block.
func ReleaseAll(blocks []*Block) {
	for _, b := range blocks {
		b.Release()
	}
}

// BlockPool is an arena of fixed-size blocks. The storage of blocks obtained from Get returns
// to the pool when their last reference is released.
type BlockPool struct {
	size int
	p    sync.Pool // *[]byte
}

// NewBlockPool returns a pool of blocks of size bytes.
func NewBlockPool(size int) *BlockPool {
	if size <= 0 {
		panic(ErrInvalidArgument)
	}
	return &BlockPool{size: size}
}

// Size returns the length of blocks handed out by Get.
func (p *BlockPool) Size() int { return p.size }

// Get returns a block of Size bytes holding one reference. Contents are unspecified.
func (p *BlockPool) Get() *Block {
	var buf []byte
	if bp, _ := p.p.Get().(*[]byte); bp != nil {
		buf = *bp
	} else {
		buf = make([]byte, p.size)
	}
	b := &Block{buf: buf, n: p.size, pool: p}
	b.refs.Store(1)
	return b
}

func (p *BlockPool) put(b *Block) {
	buf := b.buf[:cap(b.buf)]
	b.buf = nil
	p.p.Put(&buf)
}
