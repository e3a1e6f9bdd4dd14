// Package listener sets up the engine's single listening socket as a
// raw non-blocking file descriptor suitable for registration with
// epoll, rather than the blocking net.Listener the standard library
// hands back.
package listener

import (
	"fmt"
	"net"

	"github.com/valyala/tcplisten"
	"golang.org/x/sys/unix"
)

// Listener owns the listening socket's file descriptor.
type Listener struct {
	file fileCloser
	fd   int
	addr string
}

// fileCloser is satisfied by *os.File; kept as an interface only so this
// file doesn't need to import "os" for the one method it uses.
type fileCloser interface {
	Close() error
	Fd() uintptr
}

// Listen opens a TCP listening socket on addr (host:port) configured via
// tcplisten.Config — SO_REUSEADDR, the given backlog —
// then extracts and returns its raw fd,
// set non-blocking, for the event loop to register directly with epoll.
// backlog of 0 uses the system default.
func Listen(addr string, backlog int) (*Listener, error) {
	cfg := &tcplisten.Config{Backlog: backlog}
	ln, err := cfg.NewListener("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("listen %s: unexpected listener type %T", addr, ln)
	}
	boundAddr := ln.Addr().String()

	f, err := tcpLn.File()
	// tcpLn.File dups the fd into f; the original ln can be closed
	// immediately, f now exclusively owns the listening socket.
	ln.Close()
	if err != nil {
		return nil, fmt.Errorf("listen %s: extract fd: %w", addr, err)
	}

	fd := int(f.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		f.Close()
		return nil, fmt.Errorf("listen %s: set non-blocking: %w", addr, err)
	}

	return &Listener{file: f, fd: fd, addr: boundAddr}, nil
}

// FD returns the raw, non-blocking listening socket descriptor.
func (l *Listener) FD() int {
	return l.fd
}

// Addr returns the address the socket is bound to, e.g. "127.0.0.1:8080",
// with the actual port resolved even when addr requested an ephemeral
// one (":0").
func (l *Listener) Addr() string {
	return l.addr
}

// Close releases the listening socket.
func (l *Listener) Close() error {
	return l.file.Close()
}
