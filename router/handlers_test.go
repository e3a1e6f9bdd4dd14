package router

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/originserver/httpd"
)

func TestIsStaticPath(t *testing.T) {
	cases := []struct {
		target string
		want   bool
	}{
		{"/static/a.txt", true},
		{"/static/", true},
		{"/static", false},
		{"/", false},
		{"/echo", false},
	}
	for _, c := range cases {
		if got := isStaticPath(c.target); got != c.want {
			t.Errorf("isStaticPath(%q) = %v, want %v", c.target, got, c.want)
		}
	}
}

func TestContainsDotDotSegment(t *testing.T) {
	cases := []struct {
		target string
		want   bool
	}{
		{"a/b/c.txt", false},
		{"../secret", true},
		{"a/../b", true},
		{"a..b/c", false},
	}
	for _, c := range cases {
		if got := containsDotDotSegment(c.target); got != c.want {
			t.Errorf("containsDotDotSegment(%q) = %v, want %v", c.target, got, c.want)
		}
	}
}

func TestStaticServesExistingFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	r := New(dir)
	req := originserver.NewHttpMessage()
	mustOK(t, req.SetRequestLine(originserver.MethodGet, "/static/a.txt", originserver.ProtocolHTTP11))
	resp := originserver.NewHttpMessage()

	if err := r.static(req, resp); err != nil {
		t.Fatalf("static: unexpected error: %v", err)
	}
	if resp.StatusCode() != originserver.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode(), originserver.StatusOK)
	}
	if resp.BodyLength() != 2 {
		t.Fatalf("BodyLength = %d, want 2", resp.BodyLength())
	}
}

func TestStaticRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	req := originserver.NewHttpMessage()
	mustOK(t, req.SetRequestLine(originserver.MethodGet, "/static/../../etc/passwd", originserver.ProtocolHTTP11))
	resp := originserver.NewHttpMessage()

	if err := r.static(req, resp); err != nil {
		t.Fatalf("static: unexpected error: %v", err)
	}
	if resp.StatusCode() != originserver.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode(), originserver.StatusForbidden)
	}
}

func TestStaticRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r := New(dir)
	req := originserver.NewHttpMessage()
	mustOK(t, req.SetRequestLine(originserver.MethodGet, "/static/sub", originserver.ProtocolHTTP11))
	resp := originserver.NewHttpMessage()

	if err := r.static(req, resp); err != nil {
		t.Fatalf("static: unexpected error: %v", err)
	}
	if resp.StatusCode() != originserver.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode(), originserver.StatusForbidden)
	}
}

func TestStaticMissingFileIsNotFound(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	req := originserver.NewHttpMessage()
	mustOK(t, req.SetRequestLine(originserver.MethodGet, "/static/missing.txt", originserver.ProtocolHTTP11))
	resp := originserver.NewHttpMessage()

	if err := r.static(req, resp); err != nil {
		t.Fatalf("static: unexpected error: %v", err)
	}
	if resp.StatusCode() != originserver.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode(), originserver.StatusNotFound)
	}
}

func TestEchoMirrorsTextPlainBody(t *testing.T) {
	r := New(t.TempDir())
	req := originserver.NewHttpMessage()
	mustOK(t, req.SetRequestLine(originserver.MethodPost, "/echo", originserver.ProtocolHTTP11))
	mustOK(t, req.AddHeader("Content-Type", "text/plain"))
	mustOK(t, req.OpenTemp(5))
	if _, err := req.Body().File.Write([]byte("howdy")); err != nil {
		t.Fatalf("seed request body: %v", err)
	}
	if _, err := req.Body().File.Seek(0, 0); err != nil {
		t.Fatalf("rewind: %v", err)
	}

	resp := originserver.NewHttpMessage()
	if err := r.echo(req, resp); err != nil {
		t.Fatalf("echo: unexpected error: %v", err)
	}
	if resp.StatusCode() != originserver.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode(), originserver.StatusOK)
	}
	if ct, ok := resp.GetHeader("Content-Type"); !ok || ct != "text/plain; charset=utf-8" {
		t.Fatalf("Content-Type = (%q, %v), want (\"text/plain; charset=utf-8\", true)", ct, ok)
	}

	buf := make([]byte, 5)
	if _, err := resp.Body().File.Read(buf); err != nil {
		t.Fatalf("read back echoed body: %v", err)
	}
	if string(buf) != "howdy" {
		t.Fatalf("echoed body = %q, want \"howdy\"", buf)
	}
}

func TestEchoRejectsNonTextPlain(t *testing.T) {
	r := New(t.TempDir())
	req := originserver.NewHttpMessage()
	mustOK(t, req.SetRequestLine(originserver.MethodPost, "/echo", originserver.ProtocolHTTP11))
	mustOK(t, req.AddHeader("Content-Type", "application/json"))

	resp := originserver.NewHttpMessage()
	if err := r.echo(req, resp); err != nil {
		t.Fatalf("echo: unexpected error: %v", err)
	}
	if resp.StatusCode() != originserver.StatusUnsupportedMedia {
		t.Fatalf("status = %d, want %d", resp.StatusCode(), originserver.StatusUnsupportedMedia)
	}
}

func TestFaviconNoContentWhenMissing(t *testing.T) {
	r := New(t.TempDir())
	req := originserver.NewHttpMessage()
	mustOK(t, req.SetRequestLine(originserver.MethodGet, "/favicon.ico", originserver.ProtocolHTTP11))
	resp := originserver.NewHttpMessage()

	if err := r.favicon(req, resp); err != nil {
		t.Fatalf("favicon: unexpected error: %v", err)
	}
	if resp.StatusCode() != originserver.StatusNoContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode(), originserver.StatusNoContent)
	}
}

func TestFaviconServesFileWhenPresent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "favicon.ico"), []byte("ICO"), 0o644); err != nil {
		t.Fatalf("seed favicon: %v", err)
	}

	r := New(dir)
	req := originserver.NewHttpMessage()
	mustOK(t, req.SetRequestLine(originserver.MethodGet, "/favicon.ico", originserver.ProtocolHTTP11))
	resp := originserver.NewHttpMessage()

	if err := r.favicon(req, resp); err != nil {
		t.Fatalf("favicon: unexpected error: %v", err)
	}
	if resp.StatusCode() != originserver.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode(), originserver.StatusOK)
	}
	if cc, ok := resp.GetHeader("Cache-Control"); !ok || cc != "public, max-age=86400" {
		t.Fatalf("Cache-Control = (%q, %v), want the 24h directive", cc, ok)
	}
}
