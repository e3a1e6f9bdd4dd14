package originserver

import "testing"

func TestMimeTypeForPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"index.html", "text/html; charset=utf-8"},
		{"data.json", "application/json; charset=utf-8"},
		{"feed.xml", "application/xml; charset=utf-8"},
		{"note.txt", "text/plain; charset=utf-8"},
		{"photo.jpg", "image/jpeg"},
		{"photo.JPEG", "image/jpeg"},
		{"icon.png", "image/png"},
		{"unknown.bin", defaultMimeType},
		{"no-extension", defaultMimeType},
	}
	for _, c := range cases {
		if got := mimeTypeForPath(c.path); got != c.want {
			t.Errorf("mimeTypeForPath(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestExtensionOfIgnoresDirectoryDots(t *testing.T) {
	if got := extensionOf("static/.git/config"); got != "" {
		t.Fatalf("extensionOf(%q) = %q, want \"\"", "static/.git/config", got)
	}
	if got := extensionOf("a.b/c"); got != "" {
		t.Fatalf("extensionOf(%q) = %q, want \"\"", "a.b/c", got)
	}
	if got := extensionOf("a.b/c.txt"); got != ".txt" {
		t.Fatalf("extensionOf(%q) = %q, want %q", "a.b/c.txt", got, ".txt")
	}
}
