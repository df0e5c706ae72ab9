package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dreschagin/staticserve/internal/application/usecase"
	"github.com/dreschagin/staticserve/internal/infrastructure/source/dir"
	"github.com/dreschagin/staticserve/pkg/logger"
)

func newTestHandler(t *testing.T, files map[string]string, cfg usecase.ResolveAssetConfig) *AssetHandler {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	source, err := dir.New(root)
	if err != nil {
		t.Fatal(err)
	}
	log := logger.New("error")
	resolver := usecase.NewResolveAssetUseCase(source, cfg, log)
	return NewAssetHandler(resolver, log)
}

func get(t *testing.T, h http.Handler, target string, mod func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if mod != nil {
		mod(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeFile(t *testing.T) {
	h := newTestHandler(t, map[string]string{"app.js": "console.log(1)"}, usecase.ResolveAssetConfig{})

	rec := get(t, h, "/app.js", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "console.log(1)" {
		t.Errorf("body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/javascript") {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("missing ETag")
	}
}

func TestServeIndexForRoot(t *testing.T) {
	h := newTestHandler(t, map[string]string{"index.html": "<h1>home</h1>"}, usecase.ResolveAssetConfig{})

	rec := get(t, h, "/", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "home") {
		t.Errorf("body = %q", rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, HTML must revalidate", cc)
	}
}

func TestNotFound(t *testing.T) {
	h := newTestHandler(t, map[string]string{}, usecase.ResolveAssetConfig{})

	if rec := get(t, h, "/missing.png", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, map[string]string{"a.txt": "x"}, usecase.ResolveAssetConfig{})

	req := httptest.NewRequest(http.MethodPost, "/a.txt", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET, HEAD" {
		t.Errorf("Allow = %q", allow)
	}
}

func TestHeadOmitsBody(t *testing.T) {
	h := newTestHandler(t, map[string]string{"a.txt": "hello"}, usecase.ResolveAssetConfig{})

	req := httptest.NewRequest(http.MethodHead, "/a.txt", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body = %q", rec.Body.String())
	}
}

func TestConditionalRequestReturns304(t *testing.T) {
	h := newTestHandler(t, map[string]string{"a.txt": "hello"}, usecase.ResolveAssetConfig{})

	first := get(t, h, "/a.txt", nil)
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag on first response")
	}

	second := get(t, h, "/a.txt", func(r *http.Request) {
		r.Header.Set("If-None-Match", etag)
	})
	if second.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", second.Code)
	}
}

func TestRangeRequest(t *testing.T) {
	h := newTestHandler(t, map[string]string{"a.bin": "0123456789"}, usecase.ResolveAssetConfig{})

	rec := get(t, h, "/a.bin", func(r *http.Request) {
		r.Header.Set("Range", "bytes=2-5")
	})

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Body.String(); got != "2345" {
		t.Errorf("body = %q, want 2345", got)
	}
}

func TestTraversalStaysInsideRoot(t *testing.T) {
	h := newTestHandler(t, map[string]string{"index.html": "safe"}, usecase.ResolveAssetConfig{})

	rec := get(t, h, "/../../etc/passwd", nil)

	if rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), "root:") {
		t.Fatal("traversal escaped the content root")
	}
}

func TestDirectoryRedirectsToSlash(t *testing.T) {
	h := newTestHandler(t, map[string]string{"docs/index.html": "docs"}, usecase.ResolveAssetConfig{})

	rec := get(t, h, "/docs", nil)

	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/docs/" {
		t.Errorf("Location = %q", loc)
	}
}

func TestDirectoryListing(t *testing.T) {
	h := newTestHandler(t, map[string]string{"docs/readme.txt": "hi"}, usecase.ResolveAssetConfig{ListingEnabled: true})

	rec := get(t, h, "/docs/", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "readme.txt") {
		t.Errorf("listing body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestListingDisabledReturns404(t *testing.T) {
	h := newTestHandler(t, map[string]string{"docs/readme.txt": "hi"}, usecase.ResolveAssetConfig{})

	if rec := get(t, h, "/docs/", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSPAFallback(t *testing.T) {
	h := newTestHandler(t, map[string]string{"index.html": "<div id=app>"},
		usecase.ResolveAssetConfig{FallbackAsset: "index.html"})

	rec := get(t, h, "/settings/profile", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "app") {
		t.Errorf("body = %q", rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, fallback must revalidate", cc)
	}
}

func TestFallbackSkipsAssetMisses(t *testing.T) {
	h := newTestHandler(t, map[string]string{"index.html": "<div id=app>"},
		usecase.ResolveAssetConfig{FallbackAsset: "index.html"})

	if rec := get(t, h, "/bundle.js", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, missing asset must not return the shell", rec.Code)
	}
}

func TestCachePolicyImmutableForHashedNames(t *testing.T) {
	h := newTestHandler(t, map[string]string{"app-8f2f1c9a.js": "x"}, usecase.ResolveAssetConfig{})

	rec := get(t, h, "/app-8f2f1c9a.js", nil)

	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Errorf("Cache-Control = %q, want immutable", cc)
	}
}

func TestCachePolicyDefault(t *testing.T) {
	h := newTestHandler(t, map[string]string{"logo.png": "png"}, usecase.ResolveAssetConfig{})

	rec := get(t, h, "/logo.png", nil)

	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", cc)
	}
}
