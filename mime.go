package originserver

import "strings"

// mimeTable maps a file extension to its content type, narrowed to the
// small set of types the static handler and the echo route exercise.
var mimeTable = map[string]string{
	".html": "text/html",
	".txt":  "text/plain",
	".json": "application/json",
	".xml":  "application/xml",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

const defaultMimeType = "application/octet-stream"

// isTextMimeType reports whether a content type receives a
// "; charset=utf-8" suffix: text/* plus application/json and
// application/xml.
func isTextMimeType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") ||
		mimeType == "application/json" ||
		mimeType == "application/xml"
}

// IsTextMimeType is the exported form of isTextMimeType, for callers
// outside this package (the echo route) that need to charset-suffix a
// content type they didn't derive from a file extension.
func IsTextMimeType(mimeType string) bool {
	return isTextMimeType(mimeType)
}

// mimeTypeForPath returns the content type for path's extension,
// defaultMimeType if unrecognized, and appends the charset suffix for
// text types.
func mimeTypeForPath(path string) string {
	ext := extensionOf(path)
	mimeType, ok := mimeTable[ext]
	if !ok {
		mimeType = defaultMimeType
	}
	if isTextMimeType(mimeType) {
		mimeType += "; charset=utf-8"
	}
	return mimeType
}

// extensionOf returns the lowercased extension (including the leading
// dot) of path, or "" if there is none.
func extensionOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	// Don't treat a dot inside a directory component as an extension,
	// e.g. "static/.git/config".
	if j := strings.LastIndexByte(path, '/'); j > i {
		return ""
	}
	return strings.ToLower(path[i:])
}
