// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

// Transport presets.
//
// Transport kind → (BufferSize, NoDelay):
//   - Memory (in-process pipe) → 64KiB per direction, NoDelay n/a
//   - Unix (stream socket)     → kernel default buffers
//   - TCP                      → kernel default buffers, NoDelay
//
// Presets only touch those fields; BlockSize and ReadBlocks stay under caller control.

type transportKind uint8

const (
	kindMemory transportKind = iota
	kindUnix
	kindTCP
)

// DefaultMemoryBufferSize is the per-direction capacity of an in-memory pipe.
const DefaultMemoryBufferSize = 64 * 1024

func defaultsFor(kind transportKind) (bufferSize int, noDelay bool) {
	switch kind {
	case kindMemory:
		return DefaultMemoryBufferSize, false
	case kindUnix:
		return 0, false
	case kindTCP:
		return 0, true
	default:
		return 0, false
	}
}

// WithMemory configures an in-memory pipe: 64KiB buffered per direction.
func WithMemory() Option {
	return func(o *Options) {
		o.BufferSize, o.NoDelay = defaultsFor(kindMemory)
	}
}

// WithUnix configures a Unix stream socket: kernel default buffering.
func WithUnix() Option {
	return func(o *Options) {
		o.BufferSize, o.NoDelay = defaultsFor(kindUnix)
	}
}

// WithTCP configures a TCP connection: kernel default buffering, Nagle disabled.
func WithTCP() Option {
	return func(o *Options) {
		o.BufferSize, o.NoDelay = defaultsFor(kindTCP)
	}
}
