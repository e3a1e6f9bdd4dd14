package originserver

import (
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// MaxHeaders and MaxFieldSize bound an HttpMessage's header list: at
// most 50 entries, each key and value within 4 KiB.
const (
	MaxHeaders   = 50
	MaxFieldSize = 4 * 1024
)

// headerList is an ordered sequence of (key, value) pairs. Duplicate keys
// (case-insensitively) are updated in place, preserving their original
// insertion position, rather than appended again. Lookup is the first
// case-insensitive match.
//
// Grounded on fasthttp's argsKV slice-of-pairs representation in
// header.go, simplified to a flat ordered-pair model with no
// trailer/cookie/multi-value splitting.
type headerList struct {
	keys []string
	vals []string
}

// add is an idempotent update-or-append: an existing case-insensitive
// key is updated in place, otherwise the pair is appended. Returns
// ErrOverflow if a new key would exceed MaxHeaders or either field is
// longer than MaxFieldSize, and ErrParam if the key is empty or not a
// valid HTTP token or the value is not a valid field value. An empty
// value is accepted.
func (h *headerList) add(key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty header key", ErrParam)
	}
	if len(key) > MaxFieldSize || len(value) > MaxFieldSize {
		return fmt.Errorf("%w: header field exceeds %d bytes", ErrOverflow, MaxFieldSize)
	}
	if !httpguts.ValidHeaderFieldName(key) {
		return fmt.Errorf("%w: invalid header key %q", ErrParam, key)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("%w: invalid header value for key %q", ErrParam, key)
	}

	for i, k := range h.keys {
		if strings.EqualFold(k, key) {
			h.vals[i] = value
			return nil
		}
	}

	if len(h.keys) >= MaxHeaders {
		return fmt.Errorf("%w: header capacity exceeded (max %d)", ErrOverflow, MaxHeaders)
	}
	h.keys = append(h.keys, key)
	h.vals = append(h.vals, value)
	return nil
}

// get returns the value of the first case-insensitive match for key.
func (h *headerList) get(key string) (string, bool) {
	for i, k := range h.keys {
		if strings.EqualFold(k, key) {
			return h.vals[i], true
		}
	}
	return "", false
}

// count returns the number of header entries currently stored.
func (h *headerList) count() int {
	return len(h.keys)
}

// reset clears the list for reuse, retaining the backing arrays.
func (h *headerList) reset() {
	h.keys = h.keys[:0]
	h.vals = h.vals[:0]
}

// each calls fn for every (key, value) pair in insertion order.
func (h *headerList) each(fn func(key, value string)) {
	for i, k := range h.keys {
		fn(k, h.vals[i])
	}
}
