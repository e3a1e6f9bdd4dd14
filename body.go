package originserver

import (
	"fmt"
	"os"
	"path/filepath"
)

// Body is a message body referenced by an owned file handle rather than
// an in-memory blob. A length of 0 means no body is attached. Path is
// set only for bodies opened from an existing file, used by the wire
// builder to infer Content-Type.
type Body struct {
	File   *os.File
	Length int64
	Path   string
}

// Close releases the body's file handle. It is safe to call on a nil
// *Body or one with no File.
func (b *Body) Close() error {
	if b == nil || b.File == nil {
		return nil
	}
	err := b.File.Close()
	b.File = nil
	return err
}

// openExisting opens path read-only and derives the body length from
// fstat. isAbsolute distinguishes a path already rooted from one that
// should be resolved against the process's working directory; Go's
// os.Open resolves both the same way, but callers (notably the static
// file handler) still pass it through for documentation at call sites.
func openExisting(path string, flags int, isAbsolute bool) (*Body, error) {
	resolved := path
	if !isAbsolute && !filepath.IsAbs(path) {
		resolved = filepath.Clean(path)
	}

	f, err := os.OpenFile(resolved, flags|os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrResource, resolved, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %q: %v", ErrResource, resolved, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %q is a directory", ErrResource, resolved)
	}

	return &Body{File: f, Length: info.Size(), Path: resolved}, nil
}

// openTemp creates an anonymous temp file used as an overflow buffer for
// inbound or outbound body bytes: created, then unlinked while still
// held open, so the inode is released as soon as the handle is dropped
// regardless of how the connection terminates.
func openTemp(length int64) (*Body, error) {
	f, err := os.CreateTemp("", "originserver-body-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp body: %v", ErrResource, err)
	}
	name := f.Name()
	if err := os.Remove(name); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: unlink temp body: %v", ErrResource, err)
	}
	return &Body{File: f, Length: length}, nil
}
