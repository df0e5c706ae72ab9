package cached

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/internal/domain/entity"
	"github.com/dreschagin/staticserve/internal/domain/valueobject"
	"github.com/dreschagin/staticserve/pkg/logger"
)

// entry is the serialized cache representation of one lookup outcome.
// Negative lookups are cached too so hot 404s do not hammer the origin.
type entry struct {
	NotFound    bool      `json:"not_found,omitempty"`
	IsDir       bool      `json:"is_dir,omitempty"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	ETag        string    `json:"etag"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body,omitempty"`
}

type Options struct {
	// MaxObjectBytes is the largest body the cache will hold; bigger
	// objects pass through uncached.
	MaxObjectBytes int64

	// OnHit and OnMiss feed the cache counters.
	OnHit  func()
	OnMiss func()
}

// Source decorates a content source with whole-object caching.
type Source struct {
	inner  port.ContentSource
	cache  port.ObjectCache
	opts   Options
	logger *logger.Logger
}

func New(inner port.ContentSource, cache port.ObjectCache, opts Options, log *logger.Logger) *Source {
	if opts.MaxObjectBytes <= 0 {
		opts.MaxObjectBytes = 1024 * 1024
	}
	return &Source{inner: inner, cache: cache, opts: opts, logger: log}
}

func (s *Source) Open(ctx context.Context, p string) (*port.Object, error) {
	key := cacheKey(p)

	var e entry
	if err := s.cache.Get(ctx, key, &e); err == nil {
		s.hit()
		return objectFromEntry(e)
	}
	s.miss()

	obj, err := s.inner.Open(ctx, p)
	switch {
	case errors.Is(err, port.ErrNotFound):
		s.store(ctx, key, entry{NotFound: true, Path: p})
		return nil, err
	case errors.Is(err, port.ErrIsDirectory):
		s.store(ctx, key, entry{IsDir: true, Path: p})
		return nil, err
	case err != nil:
		return nil, err
	}

	if obj.Asset.Size() > s.opts.MaxObjectBytes {
		return obj, nil
	}

	body, err := io.ReadAll(obj.Content)
	closeErr := obj.Content.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		s.logger.Warn("Closing origin object failed", "path", p, "error", closeErr.Error())
	}

	s.store(ctx, key, entry{
		Path:        obj.Asset.Path(),
		Size:        obj.Asset.Size(),
		ModTime:     obj.Asset.ModTime(),
		ETag:        obj.Asset.ETag(),
		ContentType: obj.Asset.ContentType().String(),
		Body:        body,
	})

	return &port.Object{
		Asset:   obj.Asset,
		Content: port.NopCloser(bytes.NewReader(body)),
	}, nil
}

func (s *Source) Stat(ctx context.Context, p string) (*entity.Asset, error) {
	var e entry
	if err := s.cache.Get(ctx, cacheKey(p), &e); err == nil {
		s.hit()
		if e.NotFound {
			return nil, port.ErrNotFound
		}
		return assetFromEntry(e)
	}
	s.miss()
	return s.inner.Stat(ctx, p)
}

func (s *Source) List(ctx context.Context, dir string) ([]*entity.Asset, error) {
	return s.inner.List(ctx, dir)
}

func (s *Source) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Invalidate drops cache entries for the given paths. Wired to the
// live-reload watcher so edits show up without waiting out the TTL.
func (s *Source) Invalidate(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := s.cache.Delete(ctx, cacheKey(p)); err != nil {
			s.logger.Warn("Cache invalidation failed", "path", p, "error", err.Error())
		}
	}
}

func (s *Source) store(ctx context.Context, key string, e entry) {
	if err := s.cache.Set(ctx, key, e); err != nil {
		s.logger.Warn("Cache store failed", "key", key, "error", err.Error())
	}
}

func (s *Source) hit() {
	if s.opts.OnHit != nil {
		s.opts.OnHit()
	}
}

func (s *Source) miss() {
	if s.opts.OnMiss != nil {
		s.opts.OnMiss()
	}
}

func objectFromEntry(e entry) (*port.Object, error) {
	if e.NotFound {
		return nil, port.ErrNotFound
	}
	if e.IsDir {
		return nil, port.ErrIsDirectory
	}
	asset, err := assetFromEntry(e)
	if err != nil {
		return nil, err
	}
	return &port.Object{Asset: asset, Content: port.NopCloser(bytes.NewReader(e.Body))}, nil
}

func assetFromEntry(e entry) (*entity.Asset, error) {
	if e.IsDir {
		return entity.NewAsset(e.Path, 0, e.ModTime, true)
	}
	return entity.RestoreAsset(e.Path, e.Size, e.ModTime, e.ETag, valueobject.ContentType(e.ContentType))
}

func cacheKey(p string) string {
	return "asset:" + p
}
