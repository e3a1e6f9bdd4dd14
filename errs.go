package originserver

import "errors"

// Error taxonomy. These are sentinels, not a tagged enum: callers
// classify with errors.Is/errors.As the way fasthttp's own header/body
// code does (ErrBadTrailer, ErrBodyTooLarge, ...), rather than switching
// on a custom error-kind type.
var (
	// ErrParam covers null/invalid-range inputs: never causes a socket
	// teardown by itself.
	ErrParam = errors.New("originserver: invalid parameter")

	// ErrProtocol covers malformed start lines, missing CRLF within
	// bounds, too many headers, oversize fields, and a non-empty body
	// with no Content-Length. Causes a 400 and teardown.
	ErrProtocol = errors.New("originserver: malformed http message")

	// ErrResource covers local failures: temp file creation, read/write
	// against a body file handle. Causes a 500 and teardown.
	ErrResource = errors.New("originserver: resource failure")

	// ErrTransport covers socket read/write failure that is not EAGAIN.
	// Causes teardown with no response.
	ErrTransport = errors.New("originserver: transport failure")

	// ErrAdmission signals the connection table is full; the caller
	// accepts and immediately closes rather than queuing.
	ErrAdmission = errors.New("originserver: connection table full")

	// ErrOverflow signals a buffer was too small for what needed to be
	// written into it (header block, scratch line).
	ErrOverflow = errors.New("originserver: buffer overflow")
)

// errResume is returned internally by step functions to mean "no error,
// but more bytes are needed; re-arm readiness and call again". It is
// deliberately distinct from the error sentinels above: a caller that
// receives it must not build an error response or tear down the
// connection.
var errResume = errors.New("originserver: resume")

// IsResume reports whether err is the internal "would block, call again"
// signal rather than a genuine failure.
func IsResume(err error) bool {
	return errors.Is(err, errResume)
}
