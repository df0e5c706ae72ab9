package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/internal/domain/entity"
	"github.com/dreschagin/staticserve/pkg/logger"
)

type fakeSource struct {
	files map[string]string
	dirs  map[string]bool
	opens []string
}

func newFakeSource(files map[string]string, dirs ...string) *fakeSource {
	s := &fakeSource{files: files, dirs: map[string]bool{"/": true}}
	for _, d := range dirs {
		s.dirs[d] = true
	}
	return s
}

func (s *fakeSource) Open(_ context.Context, path string) (*port.Object, error) {
	s.opens = append(s.opens, path)
	if s.dirs[path] {
		return nil, port.ErrIsDirectory
	}
	content, ok := s.files[path]
	if !ok {
		return nil, port.ErrNotFound
	}
	asset, err := entity.NewAsset(path, int64(len(content)), time.Unix(1700000000, 0), false)
	if err != nil {
		return nil, err
	}
	return &port.Object{Asset: asset, Content: port.NopCloser(strings.NewReader(content))}, nil
}

func (s *fakeSource) Stat(ctx context.Context, path string) (*entity.Asset, error) {
	obj, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer obj.Content.Close()
	return obj.Asset, nil
}

func (s *fakeSource) List(_ context.Context, dir string) ([]*entity.Asset, error) {
	if !s.dirs[dir] {
		return nil, port.ErrNotFound
	}
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	var entries []*entity.Asset
	for path, content := range s.files {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		asset, _ := entity.NewAsset(path, int64(len(content)), time.Unix(1700000000, 0), false)
		entries = append(entries, asset)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path() < entries[j].Path() })
	return entries, nil
}

func (s *fakeSource) Ping(context.Context) error { return nil }

func testLogger() *logger.Logger { return logger.New("error") }

func readAll(t *testing.T, obj *port.Object) string {
	t.Helper()
	defer obj.Content.Close()
	data, err := io.ReadAll(obj.Content)
	if err != nil {
		t.Fatalf("reading object: %v", err)
	}
	return string(data)
}

func TestExecuteServesFile(t *testing.T) {
	source := newFakeSource(map[string]string{"/app.js": "console.log(1)"})
	uc := NewResolveAssetUseCase(source, ResolveAssetConfig{}, testLogger())

	res, err := uc.Execute(context.Background(), "/app.js")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Object == nil || res.Fallback {
		t.Fatal("expected a direct object resolution")
	}
	if got := readAll(t, res.Object); got != "console.log(1)" {
		t.Errorf("content = %q", got)
	}
}

func TestExecuteDirectoryServesIndex(t *testing.T) {
	source := newFakeSource(map[string]string{"/index.html": "<html>root</html>"})
	uc := NewResolveAssetUseCase(source, ResolveAssetConfig{}, testLogger())

	for _, raw := range []string{"/", ""} {
		res, err := uc.Execute(context.Background(), raw)
		if err != nil {
			t.Fatalf("Execute(%q) error = %v", raw, err)
		}
		if res.Object == nil || res.Object.Asset.Path() != "/index.html" {
			t.Fatalf("Execute(%q) did not resolve the index document", raw)
		}
		res.Object.Content.Close()
	}
}

func TestExecuteTraversalCollapsesToRoot(t *testing.T) {
	source := newFakeSource(map[string]string{"/index.html": "ok", "/css/style.css": "body{}"})
	uc := NewResolveAssetUseCase(source, ResolveAssetConfig{}, testLogger())

	// All of these must stay inside the root after normalization.
	for _, raw := range []string{"/../etc/passwd", "/css/../../../etc/passwd", "/./../.."} {
		_, err := uc.Execute(context.Background(), raw)
		if err != nil && !errors.Is(err, port.ErrNotFound) {
			t.Fatalf("Execute(%q) error = %v", raw, err)
		}
		for _, opened := range source.opens {
			if strings.Contains(opened, "..") {
				t.Fatalf("source saw a traversing path: %q", opened)
			}
		}
	}
}

func TestExecuteListingDisabledIsNotFound(t *testing.T) {
	source := newFakeSource(map[string]string{"/docs/a.txt": "a"}, "/docs")
	uc := NewResolveAssetUseCase(source, ResolveAssetConfig{}, testLogger())

	_, err := uc.Execute(context.Background(), "/docs")
	if !errors.Is(err, port.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExecuteListingEnabled(t *testing.T) {
	source := newFakeSource(map[string]string{"/docs/a.txt": "a", "/docs/b.txt": "b"}, "/docs")
	uc := NewResolveAssetUseCase(source, ResolveAssetConfig{ListingEnabled: true}, testLogger())

	res, err := uc.Execute(context.Background(), "/docs")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Dir != "/docs" || len(res.Listing) != 2 {
		t.Fatalf("unexpected listing resolution: dir=%q entries=%d", res.Dir, len(res.Listing))
	}
}

func TestExecuteIndexWinsOverListing(t *testing.T) {
	source := newFakeSource(map[string]string{"/docs/index.html": "<html/>", "/docs/a.txt": "a"}, "/docs")
	uc := NewResolveAssetUseCase(source, ResolveAssetConfig{ListingEnabled: true}, testLogger())

	res, err := uc.Execute(context.Background(), "/docs")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Object == nil || res.Object.Asset.Path() != "/docs/index.html" {
		t.Fatal("index document should win over the listing")
	}
	res.Object.Content.Close()
}

func TestExecuteFallback(t *testing.T) {
	source := newFakeSource(map[string]string{"/index.html": "<html>spa</html>"})
	uc := NewResolveAssetUseCase(source, ResolveAssetConfig{FallbackAsset: "index.html"}, testLogger())

	res, err := uc.Execute(context.Background(), "/settings/profile")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Fallback || res.Object.Asset.Path() != "/index.html" {
		t.Fatal("expected the fallback asset")
	}
	res.Object.Content.Close()

	// Asset-like misses must stay 404: a missing bundle must not be
	// served as HTML.
	_, err = uc.Execute(context.Background(), "/app.iueng83c.js")
	if !errors.Is(err, port.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an asset-like miss, got %v", err)
	}
}

func TestExecuteNoFallbackConfigured(t *testing.T) {
	source := newFakeSource(map[string]string{"/index.html": "x"})
	uc := NewResolveAssetUseCase(source, ResolveAssetConfig{}, testLogger())

	_, err := uc.Execute(context.Background(), "/missing")
	if !errors.Is(err, port.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":                   "/",
		"/":                  "/",
		"/a/b":               "/a/b",
		"a/b":                "/a/b",
		"/a//b/":             "/a/b",
		"/a/./b":             "/a/b",
		"/a/../b":            "/b",
		"/../../etc/passwd":  "/etc/passwd",
		"/..":                "/",
		"/a/b/../../../../c": "/c",
	}
	for raw, want := range cases {
		if got := NormalizePath(raw); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", raw, got, want)
		}
	}
}
