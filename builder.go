package originserver

import (
	"fmt"
	"io"
	"strconv"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"
)

// bodyChunkSize is the chunk size the body writer reads and writes in.
const bodyChunkSize = 4 * 1024

// headerBlockPool pools the scratch buffer the header writer formats
// the start line and headers into. Sized on demand up to
// 50*4KiB+start line; pooling it, rather than embedding it in every
// slot, keeps the 64-slot table's resident size small since only
// connections actively in SendingHeaders need one.
var headerBlockPool bytebufferpool.Pool

// pooledBuffer aliases bytebufferpool.ByteBuffer so other files (notably
// slot.go) can hold one without importing bytebufferpool themselves.
type pooledBuffer = bytebufferpool.ByteBuffer

// getPooledBuffer acquires a header-block buffer from the pool.
func getPooledBuffer() *pooledBuffer {
	return headerBlockPool.Get()
}

// putPooledBuffer returns a header-block buffer to the pool.
func putPooledBuffer(b *pooledBuffer) {
	headerBlockPool.Put(b)
}

// bodySendState is the resumable state build_and_send_body carries
// across calls: the chunk currently being written and how much of it
// has gone out, since a partial write can land mid-chunk.
type bodySendState struct {
	chunk    [bodyChunkSize]byte
	chunkLen int
	chunkOff int
}

func (st *bodySendState) reset() {
	st.chunkLen = 0
	st.chunkOff = 0
}

// BuildHeaders formats msg's start line and headers into buf on first
// call (computing Content-Length and, for file-backed bodies,
// Content-Type along the way) and writes from byte 0; on later calls it
// resumes writing from
// *offset. Returns errResume when the write would block or was short,
// leaving *offset positioned to resume from.
func BuildHeaders(msg *HttpMessage, buf *bytebufferpool.ByteBuffer, fd int, offset *int, continuing bool) (done bool, err error) {
	if msg == nil || buf == nil || offset == nil {
		return false, fmt.Errorf("%w: nil message, buffer, or offset", ErrParam)
	}

	if !continuing {
		if err := prepareResponseHeaders(msg); err != nil {
			return false, err
		}
		buf.Reset()
		if err := formatStartLine(buf, msg); err != nil {
			return false, err
		}
		overflow := false
		msg.EachHeader(func(key, value string) {
			if overflow {
				return
			}
			if buf.Len()+len(key)+len(value)+4 > MaxHeaders*MaxFieldSize+MaxStartLineField {
				overflow = true
				return
			}
			buf.WriteString(key)
			buf.WriteString(": ")
			buf.WriteString(value)
			buf.Write(crlf)
		})
		if overflow {
			return false, fmt.Errorf("%w: header block exceeds %d bytes", ErrOverflow, MaxHeaders*MaxFieldSize+MaxStartLineField)
		}
		buf.Write(crlf)
		*offset = 0
	}

	body := buf.B
	for *offset < len(body) {
		n, err := unix.Write(fd, body[*offset:])
		if err != nil {
			if err == unix.EAGAIN {
				return false, errResume
			}
			return false, fmt.Errorf("%w: write headers: %v", ErrTransport, err)
		}
		if n == 0 {
			return false, errResume
		}
		*offset += n
	}
	return true, nil
}

// prepareResponseHeaders adds Server and Content-Length (and, for
// path-backed bodies, Content-Type) before the header block is
// formatted. A handler-set Content-Type on a non-path body (e.g. the
// echo route, which sets the request's media type with a charset
// suffix) is left alone.
func prepareResponseHeaders(msg *HttpMessage) error {
	if err := msg.AddHeader("Server", serverName); err != nil {
		return err
	}
	body := msg.Body()
	if body == nil {
		return msg.AddHeader("Content-Length", "0")
	}
	if err := msg.AddHeader("Content-Length", strconv.FormatInt(body.Length, 10)); err != nil {
		return err
	}
	if body.Path != "" {
		if err := msg.AddHeader("Content-Type", mimeTypeForPath(body.Path)); err != nil {
			return err
		}
	}
	return nil
}

// formatStartLine writes msg's start line (request or response variant)
// followed by CRLF.
func formatStartLine(buf *bytebufferpool.ByteBuffer, msg *HttpMessage) error {
	switch {
	case msg.IsRequest():
		buf.WriteString(msg.Method().String())
		buf.WriteString(" ")
		buf.WriteString(msg.Target())
		buf.WriteString(" ")
		buf.WriteString(msg.RequestProtocol().String())
		buf.Write(crlf)
		return nil
	case msg.IsResponse():
		buf.WriteString(msg.ResponseProtocol().String())
		buf.WriteString(" ")
		buf.WriteString(strconv.Itoa(msg.StatusCode()))
		buf.WriteString(" ")
		buf.WriteString(msg.StatusMessage())
		buf.Write(crlf)
		return nil
	default:
		return fmt.Errorf("%w: message has no start line to build", ErrParam)
	}
}

// BuildBody rewinds the body file handle on first call; each call
// reads and writes in
// bodyChunkSize chunks until body_length bytes have been sent, resuming
// mid-chunk across calls when a write is short or would block.
func BuildBody(msg *HttpMessage, fd int, st *bodySendState, sent *int64, continuing bool) (done bool, err error) {
	if msg == nil || st == nil || sent == nil {
		return false, fmt.Errorf("%w: nil message, state, or sent counter", ErrParam)
	}

	body := msg.Body()
	var total int64
	if body != nil {
		total = body.Length
	}

	if !continuing {
		*sent = 0
		st.reset()
		if body != nil && body.File != nil {
			if _, err := body.File.Seek(0, 0); err != nil {
				return false, fmt.Errorf("%w: rewind body: %v", ErrResource, err)
			}
		}
	}

	for *sent < total {
		if st.chunkOff >= st.chunkLen {
			n, err := body.File.Read(st.chunk[:])
			if err != nil && err != io.EOF {
				return false, fmt.Errorf("%w: read body: %v", ErrResource, err)
			}
			if n == 0 {
				return false, fmt.Errorf("%w: body file shorter than declared length", ErrResource)
			}
			st.chunkLen = n
			st.chunkOff = 0
		}
		n, err := unix.Write(fd, st.chunk[st.chunkOff:st.chunkLen])
		if err != nil {
			if err == unix.EAGAIN {
				return false, errResume
			}
			return false, fmt.Errorf("%w: write body: %v", ErrTransport, err)
		}
		if n == 0 {
			return false, errResume
		}
		st.chunkOff += n
		*sent += int64(n)
	}
	return true, nil
}
