package port

import (
	"context"
	"errors"
	"io"

	"github.com/dreschagin/staticserve/internal/domain/entity"
)

var (
	// ErrNotFound means the path resolves to nothing in the source.
	ErrNotFound = errors.New("object not found")

	// ErrIsDirectory means the path resolves to a directory, not a file.
	ErrIsDirectory = errors.New("object is a directory")
)

// Object is an opened asset ready to be served.
type Object struct {
	Asset   *entity.Asset
	Content io.ReadSeekCloser
}

// ContentSource abstracts where the served tree lives (local directory,
// S3 origin, caching decorator). Paths are always absolute and
// slash-separated, rooted at the source.
type ContentSource interface {
	// Open returns the object at path. The caller owns Content.
	Open(ctx context.Context, path string) (*Object, error)

	// Stat returns the descriptor at path without opening content.
	Stat(ctx context.Context, path string) (*entity.Asset, error)

	// List returns the immediate children of a directory.
	List(ctx context.Context, dir string) ([]*entity.Asset, error)

	// Ping reports whether the source is reachable.
	Ping(ctx context.Context) error
}

// NopCloser adapts an in-memory reader to the Object content contract.
func NopCloser(rs io.ReadSeeker) io.ReadSeekCloser {
	return nopReadSeekCloser{rs}
}

type nopReadSeekCloser struct {
	io.ReadSeeker
}

func (nopReadSeekCloser) Close() error { return nil }
