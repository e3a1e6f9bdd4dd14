package originserver

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// MaxStartLineField bounds the target (request) or status message
// (response) strings.
const MaxStartLineField = 2 * 1024

// startLineKind distinguishes which variant of the start-line sum type is
// populated. It is never exposed directly to callers: SetRequestLine and
// SetResponseLine set it together with the matching fields, so a message
// can never carry request fields tagged as a response or vice versa —
// the parallel "message type" flag a C implementation would otherwise
// thread through every call is eliminated entirely.
type startLineKind int

const (
	startLineNone startLineKind = iota
	startLineRequest
	startLineResponse
)

// HttpMessage is a typed representation of one HTTP request or response.
// Exactly one start-line variant is populated at a
// time. Headers are bounded and ordered; the body, if any, is always
// backed by an owned file handle.
type HttpMessage struct {
	kind startLineKind

	// Request variant.
	method   Method
	target   string
	reqProto Protocol

	// Response variant.
	respProto     Protocol
	statusCode    int
	statusMessage string

	headers headerList
	body    *Body
}

// NewHttpMessage returns a zero-initialized message: no start line, no
// headers, no body.
func NewHttpMessage() *HttpMessage {
	return &HttpMessage{}
}

// SetRequestLine populates the request variant of the start line,
// discarding any response fields previously set.
func (m *HttpMessage) SetRequestLine(method Method, target string, proto Protocol) error {
	if len(target) > MaxStartLineField {
		return fmt.Errorf("%w: request target exceeds %d bytes", ErrOverflow, MaxStartLineField)
	}
	m.kind = startLineRequest
	m.method = method
	m.target = target
	m.reqProto = proto
	m.respProto = ProtocolUnknown
	m.statusCode = 0
	m.statusMessage = ""
	return nil
}

// SetResponseLine populates the response variant of the start line,
// discarding any request fields previously set.
func (m *HttpMessage) SetResponseLine(proto Protocol, statusCode int, statusMessage string) error {
	if len(statusMessage) > MaxStartLineField {
		return fmt.Errorf("%w: status message exceeds %d bytes", ErrOverflow, MaxStartLineField)
	}
	m.kind = startLineResponse
	m.respProto = proto
	m.statusCode = statusCode
	m.statusMessage = statusMessage
	m.method = MethodUnknown
	m.target = ""
	m.reqProto = ProtocolUnknown
	return nil
}

// IsRequest reports whether the request variant of the start line is
// populated.
func (m *HttpMessage) IsRequest() bool { return m.kind == startLineRequest }

// IsResponse reports whether the response variant of the start line is
// populated.
func (m *HttpMessage) IsResponse() bool { return m.kind == startLineResponse }

// Method returns the request method. Only meaningful when IsRequest.
func (m *HttpMessage) Method() Method { return m.method }

// Target returns the request target. Only meaningful when IsRequest.
func (m *HttpMessage) Target() string { return m.target }

// RequestProtocol returns the request's protocol token. Only meaningful
// when IsRequest.
func (m *HttpMessage) RequestProtocol() Protocol { return m.reqProto }

// ResponseProtocol returns the response's protocol token. Only
// meaningful when IsResponse.
func (m *HttpMessage) ResponseProtocol() Protocol { return m.respProto }

// SetResponseProtocol overrides the response protocol without disturbing
// the status line; used by the engine to force HTTP/1.1 on every
// response once routing has filled it in.
func (m *HttpMessage) SetResponseProtocol(p Protocol) { m.respProto = p }

// StatusCode returns the response status code. Only meaningful when
// IsResponse.
func (m *HttpMessage) StatusCode() int { return m.statusCode }

// StatusMessage returns the response status message. Only meaningful
// when IsResponse.
func (m *HttpMessage) StatusMessage() string { return m.statusMessage }

// AddHeader is an idempotent case-insensitive update, or append; fails
// on capacity or oversize fields.
func (m *HttpMessage) AddHeader(key, value string) error {
	return m.headers.add(key, value)
}

// GetHeader returns the first case-insensitive match.
func (m *HttpMessage) GetHeader(key string) (string, bool) {
	return m.headers.get(key)
}

// HeaderCount returns the number of headers currently stored.
func (m *HttpMessage) HeaderCount() int { return m.headers.count() }

// EachHeader calls fn for every header in insertion order.
func (m *HttpMessage) EachHeader(fn func(key, value string)) {
	m.headers.each(fn)
}

// Body returns the message's body handle, or nil if none is attached.
func (m *HttpMessage) Body() *Body { return m.body }

// BodyLength returns the declared body length in bytes, 0 if no body is
// attached.
func (m *HttpMessage) BodyLength() int64 {
	if m.body == nil {
		return 0
	}
	return m.body.Length
}

// OpenExisting attaches a read-only existing file as the message body.
// Any previously attached body is closed first.
func (m *HttpMessage) OpenExisting(path string, flags int, isAbsolute bool) error {
	b, err := openExisting(path, flags, isAbsolute)
	if err != nil {
		return err
	}
	m.body.Close()
	m.body = b
	return nil
}

// OpenTemp attaches a fresh unlinked temp file as the message body. Any
// previously attached body is closed first.
func (m *HttpMessage) OpenTemp(length int64) error {
	b, err := openTemp(length)
	if err != nil {
		return err
	}
	m.body.Close()
	m.body = b
	return nil
}

// SetBody attaches an already-opened body handle directly, used by the
// body parser to hand its temp file to the message once parsing
// completes.
func (m *HttpMessage) SetBody(b *Body) {
	if m.body != nil && m.body != b {
		m.body.Close()
	}
	m.body = b
}

// BuildError resets the message to a response with the given status
// line. A 5xx status also gets an X-Request-Id header, a short random
// hex token; the engine does not write it to its log. If jsonBody is
// non-nil, it is written into a temp body and Content-Type/Content-Length
// are set from it; otherwise the message carries no body.
func (m *HttpMessage) BuildError(status int, message string, jsonBody []byte) error {
	m.headers.reset()
	if m.body != nil {
		m.body.Close()
		m.body = nil
	}
	if err := m.SetResponseLine(ProtocolHTTP11, status, message); err != nil {
		return err
	}
	if err := m.AddHeader("Server", serverName); err != nil {
		return err
	}
	if status >= 500 {
		id, err := randomRequestID()
		if err != nil {
			return err
		}
		if err := m.AddHeader("X-Request-Id", id); err != nil {
			return err
		}
	}
	if jsonBody == nil {
		return nil
	}

	b, err := openTemp(int64(len(jsonBody)))
	if err != nil {
		return err
	}
	if _, err := b.File.Write(jsonBody); err != nil {
		b.Close()
		return fmt.Errorf("%w: write json error body: %v", ErrResource, err)
	}
	if _, err := b.File.Seek(0, 0); err != nil {
		b.Close()
		return fmt.Errorf("%w: rewind json error body: %v", ErrResource, err)
	}
	m.body = b
	if err := m.AddHeader("Content-Type", "application/json"); err != nil {
		return err
	}
	return m.AddHeader("Content-Length", fmt.Sprintf("%d", b.Length))
}

// Reset clears the message entirely (start line, headers, body) so it
// can be reused across a keep-alive connection's next request/response
// cycle without reallocating.
func (m *HttpMessage) Reset() {
	m.kind = startLineNone
	m.method = MethodUnknown
	m.target = ""
	m.reqProto = ProtocolUnknown
	m.respProto = ProtocolUnknown
	m.statusCode = 0
	m.statusMessage = ""
	m.headers.reset()
	if m.body != nil {
		m.body.Close()
		m.body = nil
	}
}

// Close releases the message's body handle, if any.
func (m *HttpMessage) Close() error {
	if m.body == nil {
		return nil
	}
	err := m.body.Close()
	m.body = nil
	return err
}

const serverName = "HttpServer"

// randomRequestID returns a 16-character hex token for X-Request-Id.
func randomRequestID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("%w: generate request id: %v", ErrResource, err)
	}
	return hex.EncodeToString(b[:]), nil
}
