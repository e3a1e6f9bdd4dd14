package originserver

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/originserver/httpd/internal/listener"
	"golang.org/x/sys/unix"
)

// Config holds the engine's tunables. There is no config file format —
// values are set directly or via the CLI flags in cmd/httpd.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// Backlog is the listen backlog; 0 uses the system default.
	Backlog int
	// Timeout is the idle-connection cutoff scan_expired enforces.
	Timeout time.Duration
	// ActionLimit bounds how many event-loop dispatches a single slot
	// may consume before it is forced through a Request Timeout.
	ActionLimit int
}

// DefaultConfig returns the values this package runs with absent
// explicit overrides.
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		Backlog:     10,
		Timeout:     30 * time.Second,
		ActionLimit: 1000,
	}
}

// Server wires the listening socket, the connection table, the epoll
// event loop, and a Router together. One Server serves one listen
// address on one goroutine; nothing about it is exported for concurrent
// use from multiple goroutines.
type Server struct {
	cfg    Config
	router Router
	logger Logger

	ln     *listener.Listener
	table  *Table
	epfd   int
	wakeFD int

	ready        chan struct{}
	shuttingDown atomic.Bool
}

// NewServer constructs a Server. A nil logger defaults to the standard
// library logger writing to stderr.
func NewServer(cfg Config, router Router, logger Logger) *Server {
	if logger == nil {
		logger = newDefaultLogger()
	}
	return &Server{
		cfg:    cfg,
		router: router,
		logger: logger,
		table:  NewTable(),
		ready:  make(chan struct{}),
	}
}

// ListenAndServe opens the listening socket, sets up the epoll
// readiness demultiplexer, and runs the event loop until Shutdown is
// called or an unrecoverable setup error occurs. It is a blocking call.
func (s *Server) ListenAndServe() error {
	ln, err := listener.Listen(s.cfg.Addr, s.cfg.Backlog)
	if err != nil {
		return err
	}
	s.ln = ln
	defer s.ln.Close()

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return fmt.Errorf("%w: epoll_create1: %v", ErrResource, err)
	}
	s.epfd = epfd
	defer unix.Close(s.epfd)

	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK)
	if err != nil {
		return fmt.Errorf("%w: eventfd: %v", ErrResource, err)
	}
	s.wakeFD = wakeFD
	defer unix.Close(s.wakeFD)

	if err := s.epollAdd(s.ln.FD(), unix.EPOLLIN|unix.EPOLLET); err != nil {
		return fmt.Errorf("%w: register listener: %v", ErrResource, err)
	}
	if err := s.epollAdd(s.wakeFD, unix.EPOLLIN); err != nil {
		return fmt.Errorf("%w: register wake fd: %v", ErrResource, err)
	}

	s.logger.Printf("listening on %s", s.ln.Addr())
	close(s.ready)
	return s.loop()
}

// Addr returns the address the server is listening on, including the
// actual port chosen when Config.Addr requested an ephemeral one
// (":0"). Only safe to call once Ready has fired.
func (s *Server) Addr() string {
	return s.ln.Addr()
}

// Ready returns a channel closed once the listening socket and epoll
// instance are set up and the server is about to enter its event loop;
// tests use it to synchronize before dialing in.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Shutdown sets the shutdown flag and wakes the event loop, which exits
// after finishing its current batch. Safe to call more than once or
// concurrently with ListenAndServe.
func (s *Server) Shutdown() {
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return
	}
	var one [8]byte
	one[0] = 1
	_, _ = unix.Write(s.wakeFD, one[:])
}
