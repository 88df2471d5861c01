// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint_test

import (
	"testing"

	"code.hybscloud.com/endpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock_NewAndBlockOf(t *testing.T) {
	b := endpoint.NewBlock(16)
	assert.Equal(t, 16, b.Len())
	assert.Len(t, b.Bytes(), 16)

	p := []byte("abc")
	w := endpoint.BlockOf(p)
	w.Bytes()[0] = 'x'
	assert.Equal(t, "xbc", string(p), "BlockOf wraps without copying")

	assert.Panics(t, func() { endpoint.NewBlock(-1) })
}

func TestBlock_RefRelease(t *testing.T) {
	b := endpoint.NewBlock(4)
	b.Ref()
	b.Release()
	assert.NotPanics(t, func() { b.Bytes() }, "one holder left")
	b.Release()

	assert.PanicsWithValue(t, endpoint.ErrReleased, func() { b.Bytes() })
	assert.PanicsWithValue(t, endpoint.ErrReleased, func() { b.Release() })
}

func TestBlock_RefAfterRelease(t *testing.T) {
	b := endpoint.NewBlock(1)
	b.Release()
	assert.PanicsWithValue(t, endpoint.ErrReleased, func() { b.Ref() })
}

func TestBlock_Truncate(t *testing.T) {
	b := endpoint.NewBlock(8)
	b.Truncate(3)
	assert.Equal(t, 3, b.Len())
	assert.Len(t, b.Bytes(), 3)
	assert.Panics(t, func() { b.Truncate(4) })
	assert.Panics(t, func() { b.Truncate(-1) })
}

func TestBlock_Helpers(t *testing.T) {
	blocks := []*endpoint.Block{endpoint.NewBlock(1), endpoint.NewBlock(0), endpoint.NewBlock(10)}
	assert.Equal(t, 11, endpoint.TotalLen(blocks))
	assert.Zero(t, endpoint.TotalLen(nil))

	endpoint.ReleaseAll(blocks)
	for _, b := range blocks {
		assert.Panics(t, func() { b.Bytes() })
	}
}

func TestBlockPool_GetRestoresSize(t *testing.T) {
	pool := endpoint.NewBlockPool(32)
	assert.Equal(t, 32, pool.Size())

	for i := 0; i < 4; i++ {
		b := pool.Get()
		require.Equal(t, 32, b.Len())
		b.Truncate(5)
		b.Release()
	}
	assert.Panics(t, func() { endpoint.NewBlockPool(0) })
}

func TestBlockPool_StaleReleaseAfterReuse(t *testing.T) {
	pool := endpoint.NewBlockPool(8)
	stale := pool.Get()
	stale.Release()

	fresh := pool.Get()
	assert.PanicsWithValue(t, endpoint.ErrReleased, func() { stale.Release() })
	assert.PanicsWithValue(t, endpoint.ErrReleased, func() { stale.Ref() })
	assert.PanicsWithValue(t, endpoint.ErrReleased, func() { stale.Bytes() })

	assert.Len(t, fresh.Bytes(), 8, "new owner unaffected")
	assert.NotPanics(t, fresh.Release)
}
