package originserver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// parseState mirrors the running parser state the wire format moves
// through (status/request line, then headers, then body, then done),
// tracked independently of the connection-level states in
// statemachine.go so a Parser value carries only wire-parsing progress.
type parseState int

const (
	parseStateStartLine parseState = iota
	parseStateHeaders
	parseStateBody
	parseStateDone
)

// Parser drives header and body parsing for one connection's
// currently in-flight request. It carries no message or scratch data of
// its own — those stay owned by the slot — only parseState, so a
// Parser can be pooled and handed to any slot rather than allocated per
// request.
type Parser struct {
	state parseState
}

var parserPool sync.Pool

// getParser returns a Parser ready to start a fresh request, either
// recycled from the pool or freshly allocated.
func getParser() *Parser {
	if p, ok := parserPool.Get().(*Parser); ok {
		p.state = parseStateStartLine
		return p
	}
	return &Parser{state: parseStateStartLine}
}

// putParser returns p to the pool for reuse by another slot.
func putParser(p *Parser) {
	parserPool.Put(p)
}

// Reset returns p to its initial state, for reuse across a keep-alive
// connection's next request.
func (p *Parser) Reset() {
	p.state = parseStateStartLine
}

// State returns the parser's current position in the wire format.
func (p *Parser) State() parseState {
	return p.state
}

// ParseHeaders drives header parsing exactly like the package-level
// ParseHeaders function, additionally tracking p.state across calls.
func (p *Parser) ParseHeaders(msg *HttpMessage, s *scratch, fd int, continuing bool, wantKind startLineKind) (done bool, err error) {
	if !continuing {
		p.state = parseStateStartLine
	}
	done, err = ParseHeaders(msg, s, fd, continuing, wantKind)
	if err != nil {
		return false, err
	}
	switch {
	case done:
		p.state = parseStateBody
	case msg.kind != startLineNone:
		p.state = parseStateHeaders
	}
	return done, nil
}

// ParseBody drives body parsing exactly like the package-level
// ParseBody function, additionally tracking p.state across calls.
func (p *Parser) ParseBody(msg *HttpMessage, s *scratch, fd int, continuing bool, remaining *int64) (done bool, err error) {
	done, err = ParseBody(msg, s, fd, continuing, remaining)
	if err != nil {
		return false, err
	}
	if done {
		p.state = parseStateDone
	}
	return done, nil
}

// ParseHeaders is pull-driven: each
// call consumes whatever is already in scratch plus whatever repeated
// non-blocking reads from fd yield until EAGAIN, and either finishes the header
// block, reports that more bytes are needed, or reports a malformed
// message.
//
// wantKind selects which start-line variant the first line is parsed
// as. When continuing is false the message and scratch buffer are reset
// first; when true, parsing resumes from msg's partially-populated
// state and scratch's residual bytes exactly as the previous call left
// them.
func ParseHeaders(msg *HttpMessage, s *scratch, fd int, continuing bool, wantKind startLineKind) (done bool, err error) {
	if msg == nil || s == nil {
		return false, fmt.Errorf("%w: nil message or scratch", ErrParam)
	}
	if !continuing {
		msg.Reset()
		s.reset()
	}

	for {
		idx := findCRLF(s.bytes())
		if idx < 0 {
			if s.full() {
				return false, fmt.Errorf("%w: header line exceeds %d bytes", ErrProtocol, ScratchSize)
			}
			if _, err := s.fill(fd); err != nil {
				switch {
				case errors.Is(err, errResume):
					return false, errResume
				case errors.Is(err, errPeerClosed):
					if s.n == 0 && msg.kind == startLineNone {
						// Clean close between requests: nothing parsed
						// yet, nothing to report as malformed.
						return false, fmt.Errorf("%w: peer closed before sending a request", ErrTransport)
					}
					return false, fmt.Errorf("%w: peer closed during headers", ErrProtocol)
				default:
					return false, fmt.Errorf("%w: read: %v", ErrTransport, err)
				}
			}
			continue
		}

		line := append([]byte(nil), s.bytes()[:idx]...)
		s.consume(idx + len(crlf))

		if len(line) == 0 {
			return true, nil
		}

		if msg.kind == startLineNone {
			if err := parseStartLine(msg, string(line), wantKind); err != nil {
				return false, err
			}
			continue
		}

		if msg.HeaderCount() >= MaxHeaders {
			return false, fmt.Errorf("%w: exceeds %d headers", ErrProtocol, MaxHeaders)
		}
		key, value, err := splitHeaderLine(line)
		if err != nil {
			return false, err
		}
		if err := msg.AddHeader(key, value); err != nil {
			if errors.Is(err, ErrOverflow) || errors.Is(err, ErrParam) {
				return false, fmt.Errorf("%w: %w", ErrProtocol, err)
			}
			return false, err
		}
	}
}

// parseStartLine parses line as the first line of the header block into
// msg: three space-separated tokens for a request (method, target,
// protocol), or protocol/status-code/status-message (message runs to
// end-of-line) for a response.
func parseStartLine(msg *HttpMessage, line string, wantKind startLineKind) error {
	switch wantKind {
	case startLineRequest:
		parts := strings.Split(line, " ")
		if len(parts) != 3 {
			return fmt.Errorf("%w: malformed request line %q", ErrProtocol, line)
		}
		method := parseMethod(parts[0])
		proto := parseProtocol(parts[2])
		return msg.SetRequestLine(method, parts[1], proto)
	case startLineResponse:
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return fmt.Errorf("%w: malformed status line %q", ErrProtocol, line)
		}
		proto := parseProtocol(parts[0])
		code, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("%w: invalid status code %q", ErrProtocol, parts[1])
		}
		return msg.SetResponseLine(proto, code, parts[2])
	default:
		return fmt.Errorf("%w: unknown start-line kind requested", ErrParam)
	}
}

// splitHeaderLine splits a header line into its key and value, trimming
// the optional whitespace after the colon; the value otherwise runs to
// end-of-line untouched.
func splitHeaderLine(line []byte) (key, value string, err error) {
	i := indexByte(line, ':')
	if i < 0 {
		return "", "", fmt.Errorf("%w: header line missing colon: %q", ErrProtocol, line)
	}
	key = string(line[:i])
	value = strings.TrimLeft(string(line[i+1:]), " \t")
	return key, value, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// ParseBody reads
// Content-Length; absent or zero completes immediately with no body
// attached. Otherwise it allocates an unlinked temp file and drains
// exactly that many bytes from scratch plus fd into it. Bytes beyond the
// body's length are not consumed; they stay in scratch until the slot
// is reset for its next request, which discards them.
//
// remaining is owned by the caller (the connection slot) and threaded
// across resumes exactly like scratch's residual bytes.
func ParseBody(msg *HttpMessage, s *scratch, fd int, continuing bool, remaining *int64) (done bool, err error) {
	if msg == nil || s == nil || remaining == nil {
		return false, fmt.Errorf("%w: nil message, scratch, or remaining", ErrParam)
	}

	if !continuing {
		*remaining = 0
		if clStr, ok := msg.GetHeader("Content-Length"); ok {
			cl, err := strconv.ParseInt(strings.TrimSpace(clStr), 10, 64)
			if err != nil || cl < 0 {
				return false, fmt.Errorf("%w: invalid Content-Length %q", ErrProtocol, clStr)
			}
			*remaining = cl
		}
		if *remaining == 0 {
			return true, nil
		}
		if err := msg.OpenTemp(*remaining); err != nil {
			return false, err
		}
	}

	if *remaining == 0 {
		return true, nil
	}

	body := msg.Body()
	if body == nil || body.File == nil {
		return false, fmt.Errorf("%w: body handle missing mid-parse", ErrResource)
	}

	for *remaining > 0 {
		if s.n == 0 {
			if _, err := s.fill(fd); err != nil {
				switch {
				case errors.Is(err, errResume):
					return false, errResume
				case errors.Is(err, errPeerClosed):
					return false, fmt.Errorf("%w: peer closed before Content-Length bytes delivered", ErrProtocol)
				default:
					return false, fmt.Errorf("%w: read: %v", ErrTransport, err)
				}
			}
		}
		n := s.n
		if int64(n) > *remaining {
			n = int(*remaining)
		}
		if _, err := body.File.Write(s.bytes()[:n]); err != nil {
			return false, fmt.Errorf("%w: write body: %v", ErrResource, err)
		}
		*remaining -= int64(n)
		s.consume(n)
	}

	if _, err := body.File.Seek(0, 0); err != nil {
		return false, fmt.Errorf("%w: rewind body: %v", ErrResource, err)
	}
	return true, nil
}
