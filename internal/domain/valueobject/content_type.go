package valueobject

import (
	"mime"
	"path"
	"strings"
)

// ContentType is the MIME type an asset is served with.
type ContentType string

const DefaultContentType ContentType = "application/octet-stream"

// Web asset types the platform mime table gets wrong or misses.
// wasm must be exact for streaming compilation in browsers.
var overrides = map[string]ContentType{
	".wasm":  "application/wasm",
	".js":    "text/javascript; charset=utf-8",
	".mjs":   "text/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".html":  "text/html; charset=utf-8",
	".htm":   "text/html; charset=utf-8",
	".json":  "application/json",
	".map":   "application/json",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".woff2": "font/woff2",
	".woff":  "font/woff",
	".txt":   "text/plain; charset=utf-8",
}

// NewContentType resolves the MIME type for an asset path by extension.
func NewContentType(assetPath string) ContentType {
	ext := strings.ToLower(path.Ext(assetPath))
	if ext == "" {
		return DefaultContentType
	}
	if ct, ok := overrides[ext]; ok {
		return ct
	}
	if resolved := mime.TypeByExtension(ext); resolved != "" {
		return ContentType(resolved)
	}
	return DefaultContentType
}

func (c ContentType) String() string {
	return string(c)
}

// Compressible reports whether gzip is worth applying to this type.
func (c ContentType) Compressible() bool {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "text/"):
		return true
	case strings.HasPrefix(s, "application/json"),
		strings.HasPrefix(s, "application/wasm"),
		strings.HasPrefix(s, "image/svg+xml"):
		return true
	default:
		return false
	}
}

// IsHTML reports whether the asset is an HTML document. HTML entry
// points must revalidate on every request so deployments take effect.
func (c ContentType) IsHTML() bool {
	return strings.HasPrefix(string(c), "text/html")
}
