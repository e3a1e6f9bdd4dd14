package originserver

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

func TestBuildHeadersWritesStartLineAndHeaders(t *testing.T) {
	a, b := socketpair(t)

	msg := NewHttpMessage()
	mustOK(t, msg.SetResponseLine(ProtocolHTTP11, StatusOK, "OK"))
	mustOK(t, msg.OpenTemp(0))

	buf := getPooledBuffer()
	defer putPooledBuffer(buf)
	offset := 0
	done, err := BuildHeaders(msg, buf, b, &offset, false)
	if err != nil {
		t.Fatalf("BuildHeaders: unexpected error: %v", err)
	}
	if !done {
		t.Fatalf("BuildHeaders: done = false, want true")
	}

	got := readAll(t, a, 4096)
	if !strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("header block = %q, missing expected start line", got)
	}
	if !strings.Contains(got, "Content-Length: 0\r\n") {
		t.Fatalf("header block = %q, missing Content-Length", got)
	}
	if !strings.HasSuffix(got, "\r\n\r\n") {
		t.Fatalf("header block = %q, missing terminating blank line", got)
	}
}

func TestBuildHeadersSetsContentTypeFromBodyPath(t *testing.T) {
	a, b := socketpair(t)

	msg := NewHttpMessage()
	mustOK(t, msg.SetResponseLine(ProtocolHTTP11, StatusOK, "OK"))
	mustOK(t, msg.OpenExisting("html/index.html", 0, false))

	buf := getPooledBuffer()
	defer putPooledBuffer(buf)
	offset := 0
	if _, err := BuildHeaders(msg, buf, b, &offset, false); err != nil {
		t.Fatalf("BuildHeaders: unexpected error: %v", err)
	}

	got := readAll(t, a, 4096)
	if !strings.Contains(got, "Content-Type: text/html; charset=utf-8\r\n") {
		t.Fatalf("header block = %q, missing expected Content-Type", got)
	}
}

// TestBuildHeadersAtFieldSizeBoundary exercises a header value sitting
// exactly at the 4 KiB field-size boundary, confirming the builder
// serializes it whole rather than truncating.
func TestBuildHeadersAtFieldSizeBoundary(t *testing.T) {
	a, b := socketpair(t)

	msg := NewHttpMessage()
	mustOK(t, msg.SetResponseLine(ProtocolHTTP11, StatusOK, "OK"))
	mustOK(t, msg.OpenTemp(0))
	value := strings.Repeat("a", MaxFieldSize)
	mustOK(t, msg.AddHeader("X-Big", value))

	buf := getPooledBuffer()
	defer putPooledBuffer(buf)
	offset := 0
	if _, err := BuildHeaders(msg, buf, b, &offset, false); err != nil {
		t.Fatalf("BuildHeaders: unexpected error: %v", err)
	}

	got := readAll(t, a, MaxFieldSize+4096)
	if !strings.Contains(got, "X-Big: "+value+"\r\n") {
		t.Fatalf("header block missing the boundary-sized header value")
	}
}

// TestAddHeaderRejectsValueOneByteOverBoundary confirms the 4 KiB
// field-size bound is enforced at the point a header is added, before
// BuildHeaders ever sees it.
func TestAddHeaderRejectsValueOneByteOverBoundary(t *testing.T) {
	msg := NewHttpMessage()
	err := msg.AddHeader("X-Big", strings.Repeat("a", MaxFieldSize+1))
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("AddHeader one byte over the boundary: err = %v, want ErrOverflow", err)
	}
}

func TestBuildBodySendsFileContent(t *testing.T) {
	a, b := socketpair(t)

	msg := NewHttpMessage()
	mustOK(t, msg.OpenTemp(5))
	if _, err := msg.Body().File.Write([]byte("howdy")); err != nil {
		t.Fatalf("seed body: %v", err)
	}
	if _, err := msg.Body().File.Seek(0, 0); err != nil {
		t.Fatalf("rewind: %v", err)
	}

	var st bodySendState
	var sent int64
	done, err := BuildBody(msg, b, &st, &sent, false)
	if err != nil {
		t.Fatalf("BuildBody: unexpected error: %v", err)
	}
	if !done || sent != 5 {
		t.Fatalf("BuildBody done=%v sent=%d, want true/5", done, sent)
	}

	got := readAll(t, a, 16)
	if got != "howdy" {
		t.Fatalf("body on the wire = %q, want \"howdy\"", got)
	}
}

// readAll drains whatever is currently available on a non-blocking fd,
// stopping at EAGAIN (the writer is known to have already finished).
func readAll(t *testing.T, fd int, max int) string {
	t.Helper()
	buf := make([]byte, max)
	var out []byte
	for {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil || n == 0 {
			break
		}
	}
	return string(out)
}
