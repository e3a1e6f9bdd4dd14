package originserver

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// connState is a connection slot's position in the per-connection
// state machine.
type connState int

const (
	stateInactive connState = iota
	stateIdle
	stateParsingHeaders
	stateParsingBody
	stateSendingHeaders
	stateSendingBody
)

func (s connState) String() string {
	switch s {
	case stateInactive:
		return "Inactive"
	case stateIdle:
		return "Idle"
	case stateParsingHeaders:
		return "ParsingHeaders"
	case stateParsingBody:
		return "ParsingBody"
	case stateSendingHeaders:
		return "SendingHeaders"
	case stateSendingBody:
		return "SendingBody"
	default:
		return "Unknown"
	}
}

// emptyFD marks a slot as unoccupied: the sentinel "no socket here"
// value.
const emptyFD = -1

// slot is one entry in the connection table. It owns its socket, its
// in-flight request/response messages, its scratch buffer, and the
// bookkeeping the state machine and wire codec need to resume across
// non-blocking I/O calls. Mutated only by the event loop goroutine;
// never shared.
type slot struct {
	fd    int
	state connState

	request  *HttpMessage
	response *HttpMessage

	in     scratch
	parser *Parser

	// Parser resume state (4.2): bytes remaining in the body currently
	// being read.
	bodyRemaining int64

	// Builder resume state (4.3): byte offset into the outbound header
	// block, the pooled buffer itself (acquired on entry to
	// SendingHeaders, released on leaving it), and body-send progress.
	outHeaders    *headerBlockBuf
	outOffset     int
	headersStarted bool
	outBodyState  bodySendState
	outBodySent   int64
	bodyStarted   bool

	actionCount  int
	lastActivity time.Time
}

// headerBlockBuf indirects bytebufferpool.ByteBuffer so slot.go does not
// need to import bytebufferpool directly; builder.go owns acquire/release.
type headerBlockBuf = pooledBuffer

func newSlot() *slot {
	return &slot{fd: emptyFD, state: stateInactive}
}

// occupied reports whether the slot currently holds a live connection.
func (sl *slot) occupied() bool {
	return sl.fd != emptyFD
}

// reactivate prepares an empty slot for a freshly accepted connection.
func (sl *slot) reactivate(fd int, now time.Time) {
	sl.fd = fd
	sl.state = stateIdle
	sl.request = NewHttpMessage()
	sl.response = NewHttpMessage()
	sl.in.reset()
	sl.parser = getParser()
	sl.bodyRemaining = 0
	sl.outOffset = 0
	sl.headersStarted = false
	sl.outBodyState.reset()
	sl.outBodySent = 0
	sl.bodyStarted = false
	sl.actionCount = 0
	sl.lastActivity = now
}

// resetForNextRequest restores a keep-alive slot to Idle for the next
// request/response cycle on the same socket.
func (sl *slot) resetForNextRequest(now time.Time) {
	sl.state = stateIdle
	if sl.request != nil {
		sl.request.Reset()
	}
	if sl.response != nil {
		sl.response.Reset()
	}
	sl.in.reset()
	if sl.parser != nil {
		sl.parser.Reset()
	}
	sl.bodyRemaining = 0
	sl.outOffset = 0
	sl.headersStarted = false
	sl.outBodyState.reset()
	sl.outBodySent = 0
	sl.bodyStarted = false
	sl.actionCount = 0
	sl.lastActivity = now
	sl.releaseOutHeaders()
}

// deactivate tears a slot down: closes the socket, frees its messages,
// drops any outstanding header-block buffer, and marks the slot empty.
// The table is the only caller; it exclusively owns every slot.
func (sl *slot) deactivate() {
	if sl.fd != emptyFD {
		_ = unix.Close(sl.fd)
	}
	if sl.request != nil {
		sl.request.Close()
		sl.request = nil
	}
	if sl.response != nil {
		sl.response.Close()
		sl.response = nil
	}
	if sl.parser != nil {
		putParser(sl.parser)
		sl.parser = nil
	}
	sl.releaseOutHeaders()
	sl.fd = emptyFD
	sl.state = stateInactive
}

// PeerAddr returns the connected peer's address as host:port, derived
// from getpeername, or "" if it can't be determined (e.g. the socket is
// already gone). Used only for log correlation, never for routing.
func (sl *slot) PeerAddr() string {
	sa, err := unix.Getpeername(sl.fd)
	if err != nil {
		return ""
	}
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", addr.Addr[0], addr.Addr[1], addr.Addr[2], addr.Addr[3], addr.Port)
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%s]:%d", net.IP(addr.Addr[:]), addr.Port)
	default:
		return ""
	}
}

func (sl *slot) releaseOutHeaders() {
	if sl.outHeaders != nil {
		putPooledBuffer(sl.outHeaders)
		sl.outHeaders = nil
	}
}

// expired reports whether the slot has been idle past timeout or has
// exceeded the action-count cap.
func (sl *slot) expired(now time.Time, timeout time.Duration, actionLimit int) bool {
	if !sl.occupied() {
		return false
	}
	if now.Sub(sl.lastActivity) > timeout {
		return true
	}
	return sl.actionCount >= actionLimit
}
