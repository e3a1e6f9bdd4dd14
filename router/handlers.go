package router

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/originserver/httpd"
)

const staticPrefix = "/static/"

func isStaticPath(target string) bool {
	return strings.HasPrefix(target, staticPrefix)
}

// index is GET /.
func (r *Router) index(request, response *originserver.HttpMessage) error {
	if err := response.SetResponseLine(originserver.ProtocolHTTP11, originserver.StatusOK, originserver.StatusText(originserver.StatusOK)); err != nil {
		return err
	}
	return response.OpenExisting("html/index.html", 0, false)
}

// echo is POST /echo: a text/plain body is mirrored back unchanged;
// anything else is 415.
func (r *Router) echo(request, response *originserver.HttpMessage) error {
	contentType, _ := request.GetHeader("Content-Type")
	base := contentType
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if !strings.HasPrefix(base, "text/plain") {
		if err := response.SetResponseLine(originserver.ProtocolHTTP11, originserver.StatusUnsupportedMedia, originserver.StatusText(originserver.StatusUnsupportedMedia)); err != nil {
			return err
		}
		return response.OpenExisting("html/UnsupportedMediaType.html", 0, false)
	}

	length := request.BodyLength()
	if err := response.OpenTemp(length); err != nil {
		return err
	}
	if body := request.Body(); body != nil && body.File != nil && length > 0 {
		if _, err := body.File.Seek(0, 0); err != nil {
			return err
		}
		if _, err := copyN(response.Body().File, body.File, length); err != nil {
			return err
		}
		if _, err := response.Body().File.Seek(0, 0); err != nil {
			return err
		}
	}

	if err := response.SetResponseLine(originserver.ProtocolHTTP11, originserver.StatusOK, originserver.StatusText(originserver.StatusOK)); err != nil {
		return err
	}
	if originserver.IsTextMimeType(base) {
		base += "; charset=utf-8"
	}
	return response.AddHeader("Content-Type", base)
}

func copyN(dst, src *os.File, n int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for written < n {
		want := int64(len(buf))
		if remaining := n - written; remaining < want {
			want = remaining
		}
		nr, err := src.Read(buf[:want])
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// favicon is GET /favicon.ico: serves static/favicon.ico if present,
// otherwise 204.
func (r *Router) favicon(request, response *originserver.HttpMessage) error {
	path := filepath.Join(r.staticDir, "favicon.ico")
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		if err := response.SetResponseLine(originserver.ProtocolHTTP11, originserver.StatusOK, originserver.StatusText(originserver.StatusOK)); err != nil {
			return err
		}
		if err := response.AddHeader("Cache-Control", "public, max-age=86400"); err != nil {
			return err
		}
		return response.OpenExisting(path, 0, false)
	}

	if err := response.SetResponseLine(originserver.ProtocolHTTP11, originserver.StatusNoContent, originserver.StatusText(originserver.StatusNoContent)); err != nil {
		return err
	}
	return response.AddHeader("Cache-Control", "public, max-age=86400")
}

// static is GET /static/…. The requested path is rejected outright if
// it syntactically contains a ".." segment (a cheap check that runs
// before ever touching the filesystem) and again after resolving
// symlinks/".."s, to guard against the static root being escaped either
// way.
func (r *Router) static(request, response *originserver.HttpMessage) error {
	target := strings.TrimPrefix(request.Target(), staticPrefix)
	if target == "" || containsDotDotSegment(target) {
		return forbidden(response)
	}

	staticRoot, err := filepath.Abs(r.staticDir)
	if err != nil {
		return forbidden(response)
	}
	requested := filepath.Join(staticRoot, target)

	resolved, err := filepath.EvalSymlinks(requested)
	if err != nil {
		return notFound(response)
	}
	resolvedRoot, err := filepath.EvalSymlinks(staticRoot)
	if err != nil {
		return forbidden(response)
	}
	if resolved != resolvedRoot && !strings.HasPrefix(resolved, resolvedRoot+string(filepath.Separator)) {
		return forbidden(response)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return notFound(response)
	}
	if info.IsDir() {
		return forbidden(response)
	}

	if err := response.SetResponseLine(originserver.ProtocolHTTP11, originserver.StatusOK, originserver.StatusText(originserver.StatusOK)); err != nil {
		return err
	}
	return response.OpenExisting(resolved, 0, true)
}

func containsDotDotSegment(target string) bool {
	for _, seg := range strings.Split(target, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func notFound(response *originserver.HttpMessage) error {
	if err := response.SetResponseLine(originserver.ProtocolHTTP11, originserver.StatusNotFound, originserver.StatusText(originserver.StatusNotFound)); err != nil {
		return err
	}
	return response.OpenExisting("html/NotFound.html", 0, false)
}

func forbidden(response *originserver.HttpMessage) error {
	if err := response.SetResponseLine(originserver.ProtocolHTTP11, originserver.StatusForbidden, originserver.StatusText(originserver.StatusForbidden)); err != nil {
		return err
	}
	return response.OpenExisting("html/Forbidden.html", 0, false)
}
