package originserver

import (
	"bytes"

	"golang.org/x/sys/unix"
)

// ScratchSize is the fixed size of a connection slot's read scratch
// buffer.
const ScratchSize = 8 * 1024

// scratch is the per-slot read buffer the wire parser reads into and
// consumes from. It is a fixed array embedded directly in the slot
// rather than pooled: the connection table preallocates all 64 slots
// once at startup, so there is nothing to acquire or release per
// connection.
type scratch struct {
	buf [ScratchSize]byte
	n   int
}

// bytes returns the unconsumed bytes currently held.
func (s *scratch) bytes() []byte {
	return s.buf[:s.n]
}

// full reports whether the buffer has no room left for a fill.
func (s *scratch) full() bool {
	return s.n >= len(s.buf)
}

// fill issues one non-blocking read from fd, appending to the unconsumed
// tail. Returns errResume on EAGAIN/EWOULDBLOCK, errPeerClosed on peer
// close, errScratchFull when there is no room left, and the raw read
// error otherwise; callers translate these into the public taxonomy.
func (s *scratch) fill(fd int) (int, error) {
	if s.full() {
		return 0, errScratchFull
	}
	nr, err := unix.Read(fd, s.buf[s.n:])
	if err != nil {
		if err == unix.EAGAIN {
			return 0, errResume
		}
		return 0, err
	}
	if nr == 0 {
		return 0, errPeerClosed
	}
	s.n += nr
	return nr, nil
}

// consume discards the first k bytes, compacting the remainder to the
// front of the buffer.
func (s *scratch) consume(k int) {
	if k <= 0 {
		return
	}
	copy(s.buf[0:], s.buf[k:s.n])
	s.n -= k
}

// reset discards all unconsumed bytes.
func (s *scratch) reset() {
	s.n = 0
}

// findCRLF returns the index of the first "\r\n" in data, or -1. A bare
// LF not preceded by CR does not terminate a line: it remains ordinary
// line content until an actual CRLF pair is found or the line overflows
// ScratchSize.
func findCRLF(data []byte) int {
	return bytes.Index(data, crlf)
}

var crlf = []byte("\r\n")

// internal sentinels used only within the parser/builder to distinguish
// "buffer exhausted, need a fill" from "peer went away" from the scratch
// helpers above; both are translated to the public error taxonomy by
// their callers.
var (
	errScratchFull = newInternalErr("scratch buffer full")
	errPeerClosed  = newInternalErr("peer closed connection")
)

type internalErr string

func newInternalErr(s string) error { return internalErr(s) }
func (e internalErr) Error() string { return string(e) }
