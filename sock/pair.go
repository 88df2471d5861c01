// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package sock

import (
	"context"
	"net"
	"os"

	"code.hybscloud.com/endpoint"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Socketpair returns two endpoints over an AF_UNIX stream socket pair.
// Options are applied on top of endpoint.WithUnix.
func Socketpair(opts ...endpoint.Option) (a, b *Endpoint, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, oops.Wrapf(err, "sock: socketpair")
	}
	ca, err := fileConn(fds[0], "socketpair-a")
	if err != nil {
		unix.Close(fds[1])
		return nil, nil, err
	}
	cb, err := fileConn(fds[1], "socketpair-b")
	if err != nil {
		ca.Close()
		return nil, nil, err
	}
	return pairOf(ca, cb, append([]endpoint.Option{endpoint.WithUnix()}, opts...))
}

// fileConn converts fd into a net.Conn. fd is closed; the conn owns a duplicate.
func fileConn(fd int, name string) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()
	c, err := net.FileConn(f)
	if err != nil {
		return nil, oops.Wrapf(err, "sock: file conn %s", name)
	}
	return c, nil
}

// TCPPair returns two endpoints over a loopback TCP connection: client dialed, server accepted.
// Options are applied on top of endpoint.WithTCP.
func TCPPair(ctx context.Context, opts ...endpoint.Option) (client, server *Endpoint, err error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, oops.Wrapf(err, "sock: listen")
	}
	defer ln.Close()

	var cc, sc net.Conn
	g, gctx := errgroup.WithContext(ctx)
	// Accept does not observe gctx; closing the listener unblocks it when the dial fails.
	stop := context.AfterFunc(gctx, func() { ln.Close() })
	defer stop()

	g.Go(func() error {
		c, err := ln.Accept()
		if err != nil {
			return oops.Wrapf(err, "sock: accept")
		}
		sc = c
		return nil
	})
	g.Go(func() error {
		var d net.Dialer
		c, err := d.DialContext(gctx, "tcp", ln.Addr().String())
		if err != nil {
			return oops.Wrapf(err, "sock: dial %s", ln.Addr())
		}
		cc = c
		return nil
	})
	if err := g.Wait(); err != nil {
		for _, c := range []net.Conn{cc, sc} {
			if c != nil {
				c.Close()
			}
		}
		return nil, nil, err
	}
	return pairOf(cc, sc, append([]endpoint.Option{endpoint.WithTCP()}, opts...))
}

func pairOf(ca, cb net.Conn, opts []endpoint.Option) (*Endpoint, *Endpoint, error) {
	a, err := New(ca, opts...)
	if err != nil {
		ca.Close()
		cb.Close()
		return nil, nil, err
	}
	b, err := New(cb, opts...)
	if err != nil {
		a.Destroy()
		cb.Close()
		return nil, nil, err
	}
	return a, b, nil
}
