package originserver

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// maxEpollEvents bounds how many ready descriptors one epoll_wait call
// returns at a time; the loop drains the listener and any slot fully
// before moving on, so this only bounds the size of one batch, not
// overall throughput.
const maxEpollEvents = 128

// readInterest and writeInterest are the edge-triggered registration
// flags for the read and write phases.
const (
	readInterest  = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR | unix.EPOLLET
	writeInterest = unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR | unix.EPOLLET
)

func (s *Server) epollAdd(fd int, events uint32) error {
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events})
}

func (s *Server) epollMod(fd int, events uint32) error {
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events})
}

func (s *Server) epollDel(fd int) {
	_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// loop is the single-threaded event loop body.
func (s *Server) loop() error {
	events := make([]unix.EpollEvent, maxEpollEvents)

	for {
		n, err := unix.EpollWait(s.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("%w: epoll_wait: %v", ErrTransport, err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			switch fd {
			case s.wakeFD:
				s.drainWake()
			case s.ln.FD():
				s.acceptDrain()
			default:
				s.dispatch(fd, events[i].Events)
			}
		}

		if s.shuttingDown.Load() {
			break
		}
		s.scanExpired()
	}

	s.teardownAll()
	return nil
}

func (s *Server) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(s.wakeFD, buf[:]); err != nil {
			return
		}
	}
}

// acceptDrain accepts until EAGAIN, admitting each connection into the
// table or, when full, accepting and immediately closing it (admission
// control).
func (s *Server) acceptDrain() {
	for {
		fd, _, err := unix.Accept4(s.ln.FD(), unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			s.logger.Printf("accept: %v", err)
			return
		}

		if _, err := s.table.Add(fd, time.Now()); err != nil {
			// ErrAdmission: table full, reject rather than queue.
			_ = unix.Close(fd)
			continue
		}
		if err := s.epollAdd(fd, readInterest); err != nil {
			s.logger.Printf("fd=%d: register: %v", fd, err)
			s.table.Remove(fd)
			continue
		}
	}
}

// dispatch handles one readiness event for an already-admitted
// connection: update bookkeeping, run the matching phase of the state
// machine, switch interest as the state demands, and tear down on
// hangup/error or an unrecognized fd.
func (s *Server) dispatch(fd int, events uint32) {
	sl, ok := s.table.Get(fd)
	if !ok {
		s.epollDel(fd)
		return
	}

	sl.lastActivity = time.Now()
	sl.actionCount++

	teardown := false
	switch {
	case events&(unix.EPOLLHUP|unix.EPOLLERR) != 0:
		teardown = true
	case events&unix.EPOLLIN != 0:
		teardown = sl.AdvanceRead(s.router, s.logger)
	case events&unix.EPOLLOUT != 0:
		teardown = sl.AdvanceWrite(s.router, s.logger)
	case events&unix.EPOLLRDHUP != 0:
		teardown = true
	}

	if teardown {
		s.closeSlot(fd)
		return
	}

	s.rearm(sl)
}

// rearm switches epoll interest to match the slot's current phase:
// write interest while sending a response, read interest otherwise.
func (s *Server) rearm(sl *slot) {
	var events uint32
	switch sl.state {
	case stateSendingHeaders, stateSendingBody:
		events = writeInterest
	default:
		events = readInterest
	}
	if err := s.epollMod(sl.fd, events); err != nil {
		s.logger.Printf("fd=%d: rearm: %v", sl.fd, err)
		s.closeSlot(sl.fd)
	}
}

func (s *Server) closeSlot(fd int) {
	s.epollDel(fd)
	s.table.Remove(fd)
}

// scanExpired is the post-batch timeout scan: any slot idle past
// Timeout or past ActionLimit dispatches is forced through a Request
// Timeout response and torn down.
func (s *Server) scanExpired() {
	for _, sl := range s.table.ScanExpired(time.Now(), s.cfg.Timeout, s.cfg.ActionLimit) {
		fd := sl.fd
		sl.ForceTimeout(s.logger)
		s.closeSlot(fd)
	}
}

// teardownAll closes every occupied slot on shutdown.
func (s *Server) teardownAll() {
	for _, sl := range s.table.AllOccupied() {
		s.closeSlot(sl.fd)
	}
}
