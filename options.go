// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"github.com/sirupsen/logrus"
)

// maxIOV caps ReadBlocks; it matches the common IOV_MAX of readv/writev.
const maxIOV = 1024

// Options configures a transport endpoint.
type Options struct {
	// BlockSize is the length of blocks a transport allocates for read delivery.
	// Delivered blocks are at most BlockSize bytes; the last block of a delivery may be shorter.
	BlockSize int

	// ReadBlocks caps the number of blocks per read delivery. Zero picks enough blocks to
	// cover 64KiB (at least 1, at most 1024).
	ReadBlocks int

	// BufferSize sizes the transport's outbound buffering in bytes: the capacity of an
	// in-memory pipe direction, or SO_SNDBUF/SO_RCVBUF of a socket. Zero keeps the
	// transport default.
	BufferSize int

	// NoDelay disables Nagle's algorithm on TCP connections.
	NoDelay bool

	// Logger receives transport diagnostics. Nil means the package logger.
	Logger logrus.FieldLogger
}

var defaultOptions = Options{
	BlockSize:  8192,
	ReadBlocks: 0,
	BufferSize: 0,
	NoDelay:    false,
}

type Option func(*Options)

// NewOptions applies opts over the defaults and validates the result.
func NewOptions(opts ...Option) (Options, error) {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.BlockSize <= 0 || o.ReadBlocks < 0 || o.ReadBlocks > maxIOV || o.BufferSize < 0 {
		return o, ErrInvalidArgument
	}
	if o.Logger == nil {
		o.Logger = Logger()
	}
	return o, nil
}

// MaxReadBlocks returns the effective number of blocks per read delivery.
func (o Options) MaxReadBlocks() int {
	if o.ReadBlocks > 0 {
		return o.ReadBlocks
	}
	n := (64 * 1024) / o.BlockSize
	if n < 1 {
		return 1
	}
	if n > maxIOV {
		return maxIOV
	}
	return n
}

func WithBlockSize(n int) Option {
	return func(o *Options) { o.BlockSize = n }
}

func WithReadBlocks(n int) Option {
	return func(o *Options) { o.ReadBlocks = n }
}

func WithBufferSize(n int) Option {
	return func(o *Options) { o.BufferSize = n }
}

func WithNoDelay(on bool) Option {
	return func(o *Options) { o.NoDelay = on }
}

// WithLogger routes transport diagnostics to l.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) { o.Logger = l }
}
