package originserver

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Router is the boundary between the engine and route handlers. Route
// fills in the response; the engine then forces its protocol to
// HTTP/1.1 before it is written. A non-nil return is treated as an
// internal error and converted to a 500.
type Router interface {
	Route(request, response *HttpMessage) error
}

// AdvanceRead drives the read-path of the state machine: Idle
// transitions to ParsingHeaders on the first read-ready event; the
// header and body phases fall through into each other within a single
// call, since nothing else needs to observe readiness between them.
// Returns true if the slot must be torn down.
func (sl *slot) AdvanceRead(rt Router, logger Logger) (teardown bool) {
	entryState := sl.state
	if sl.state == stateIdle {
		sl.state = stateParsingHeaders
	}

	if sl.state == stateParsingHeaders {
		continuing := entryState == stateParsingHeaders
		done, err := sl.parser.ParseHeaders(sl.request, &sl.in, sl.fd, continuing, startLineRequest)
		if err != nil {
			return sl.fail(err, logger)
		}
		if !done {
			return false
		}
		sl.state = stateParsingBody
		entryState = stateIdle // the body phase below has not run yet for this request
	}

	if sl.state == stateParsingBody {
		continuing := entryState == stateParsingBody
		done, err := sl.parser.ParseBody(sl.request, &sl.in, sl.fd, continuing, &sl.bodyRemaining)
		if err != nil {
			return sl.fail(err, logger)
		}
		if !done {
			return false
		}
		sl.route(rt, logger)
		sl.state = stateSendingHeaders
	}

	return false
}

// AdvanceWrite drives the write-path: SendingHeaders falls through to
// SendingBody the same way the read-path falls through from headers to
// body. On completing the body, it inspects the request's Connection
// header to decide between returning to Idle or tearing the slot down.
func (sl *slot) AdvanceWrite(rt Router, logger Logger) (teardown bool) {
	if sl.state == stateSendingHeaders {
		if sl.outHeaders == nil {
			sl.outHeaders = getPooledBuffer()
		}
		continuing := sl.headersStarted
		sl.headersStarted = true
		done, err := BuildHeaders(sl.response, sl.outHeaders, sl.fd, &sl.outOffset, continuing)
		if err != nil {
			if IsResume(err) {
				return false
			}
			logger.Printf("fd=%d: header write failed: %v", sl.fd, err)
			return true
		}
		if !done {
			return false
		}
		sl.releaseOutHeaders()
		sl.state = stateSendingBody
	}

	if sl.state == stateSendingBody {
		continuing := sl.bodyStarted
		sl.bodyStarted = true
		done, err := BuildBody(sl.response, sl.fd, &sl.outBodyState, &sl.outBodySent, continuing)
		if err != nil {
			if IsResume(err) {
				return false
			}
			logger.Printf("fd=%d: body write failed: %v", sl.fd, err)
			return true
		}
		if !done {
			return false
		}
		return sl.finishExchange()
	}

	return false
}

// route invokes rt synchronously once the request is fully parsed. A
// router error becomes a 500; otherwise the engine forces the response
// protocol to HTTP/1.1 regardless of what the handler set.
func (sl *slot) route(rt Router, logger Logger) {
	sl.response.Reset()
	if err := rt.Route(sl.request, sl.response); err != nil {
		logger.Printf("fd=%d: router returned error: %v", sl.fd, err)
		if berr := sl.response.BuildError(StatusInternalServerError, StatusText(StatusInternalServerError), nil); berr != nil {
			logger.Printf("fd=%d: build_error failed: %v", sl.fd, berr)
		}
	}
	sl.response.SetResponseProtocol(ProtocolHTTP11)
}

// finishExchange implements SendingBody's two outgoing transitions: back
// to Idle for keep-alive, or teardown on Connection: close.
func (sl *slot) finishExchange() (teardown bool) {
	if connectionCloseRequested(sl.request) {
		return true
	}
	sl.headersStarted = false
	sl.bodyStarted = false
	sl.resetForNextRequest(time.Now())
	return false
}

func connectionCloseRequested(req *HttpMessage) bool {
	if req == nil {
		return false
	}
	v, ok := req.GetHeader("Connection")
	if !ok {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(v), "close")
}

// fail implements the error-propagation policy: protocol and resource
// errors get a built response (best-effort, over a temporarily blocking
// socket); transport errors tear down with no response at all. Always
// returns true — every error path ends the connection.
func (sl *slot) fail(err error, logger Logger) bool {
	if errors.Is(err, ErrTransport) {
		logger.Printf("fd=%d peer=%s: transport error: %v", sl.fd, sl.PeerAddr(), err)
		return true
	}

	status := StatusInternalServerError
	switch {
	case errors.Is(err, ErrProtocol):
		status = StatusBadRequest
	case errors.Is(err, ErrResource):
		status = StatusInternalServerError
	}
	logger.Printf("fd=%d peer=%s: %v", sl.fd, sl.PeerAddr(), err)
	sl.emitErrorResponse(status, StatusText(status), logger)
	return true
}

// ForceTimeout is invoked by the post-batch scan for a slot that has
// exceeded the idle timeout or the action-count cap: it gets a Request
// Timeout response and is torn down.
func (sl *slot) ForceTimeout(logger Logger) {
	sl.emitErrorResponse(StatusRequestTimeout, StatusText(StatusRequestTimeout), logger)
}

// emitErrorResponse builds and sends an error response best-effort over
// a socket switched back to blocking I/O so the final bytes have a
// chance to flush even under backpressure. The connection is always
// torn down after (by the caller); this method never leaves the slot
// mid-state.
func (sl *slot) emitErrorResponse(status int, message string, logger Logger) {
	if sl.response == nil {
		return
	}
	body := []byte(`{"error":"` + message + `"}`)
	if err := sl.response.BuildError(status, message, body); err != nil {
		logger.Printf("fd=%d: could not build error response: %v", sl.fd, err)
		return
	}

	if err := unix.SetNonblock(sl.fd, false); err != nil {
		logger.Printf("fd=%d: could not switch to blocking for error response: %v", sl.fd, err)
		return
	}

	buf := getPooledBuffer()
	defer putPooledBuffer(buf)
	offset := 0
	continuing := false
	for {
		done, err := BuildHeaders(sl.response, buf, sl.fd, &offset, continuing)
		if err != nil && !IsResume(err) {
			logger.Printf("fd=%d: error response header write failed: %v", sl.fd, err)
			return
		}
		if done {
			break
		}
		continuing = true
	}

	var st bodySendState
	var sent int64
	continuing = false
	for {
		done, err := BuildBody(sl.response, sl.fd, &st, &sent, continuing)
		if err != nil && !IsResume(err) {
			logger.Printf("fd=%d: error response body write failed: %v", sl.fd, err)
			return
		}
		if done {
			break
		}
		continuing = true
	}
}
