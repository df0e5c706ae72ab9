package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/staticserve/internal/domain/valueobject"
)

// Asset describes one servable object of the content tree.
type Asset struct {
	path        string
	size        int64
	modTime     time.Time
	etag        string
	contentType valueobject.ContentType
	isDir       bool
}

// NewAsset builds an asset descriptor, deriving ETag and content type
// from the path and file metadata.
func NewAsset(path string, size int64, modTime time.Time, isDir bool) (*Asset, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("asset size must not be negative: %d", size)
	}

	a := &Asset{
		path:    path,
		size:    size,
		modTime: modTime,
		isDir:   isDir,
	}
	if !isDir {
		a.etag = valueobject.NewETag(size, modTime)
		a.contentType = valueobject.NewContentType(path)
	}
	return a, nil
}

// RestoreAsset rebuilds an asset from source-authoritative metadata
// (S3 object headers, cache entries).
func RestoreAsset(path string, size int64, modTime time.Time, etag string, contentType valueobject.ContentType) (*Asset, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	if etag == "" {
		etag = valueobject.NewETag(size, modTime)
	}
	if contentType == "" {
		contentType = valueobject.NewContentType(path)
	}
	return &Asset{
		path:        path,
		size:        size,
		modTime:     modTime,
		etag:        etag,
		contentType: contentType,
	}, nil
}

func validatePath(path string) error {
	if path == "" || !strings.HasPrefix(path, "/") {
		return fmt.Errorf("asset path must be absolute: %q", path)
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("asset path contains a NUL byte")
	}
	return nil
}

func (a *Asset) Path() string                         { return a.path }
func (a *Asset) Size() int64                          { return a.size }
func (a *Asset) ModTime() time.Time                   { return a.modTime }
func (a *Asset) ETag() string                         { return a.etag }
func (a *Asset) ContentType() valueobject.ContentType { return a.contentType }
func (a *Asset) IsDir() bool                          { return a.isDir }

// Name returns the last path element.
func (a *Asset) Name() string {
	idx := strings.LastIndex(a.path, "/")
	return a.path[idx+1:]
}
