package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/internal/domain/entity"
	"github.com/dreschagin/staticserve/pkg/logger"
)

// ResolveAssetConfig controls how request paths map onto the source.
type ResolveAssetConfig struct {
	IndexDocument  string
	FallbackAsset  string
	ListingEnabled bool
}

// Resolution is the outcome of resolving one request path. Exactly one
// of Object or Listing is set.
type Resolution struct {
	Object   *port.Object
	Listing  []*entity.Asset
	Dir      string
	Fallback bool
}

// ResolveAssetUseCase maps request paths to servable objects.
type ResolveAssetUseCase struct {
	source port.ContentSource
	cfg    ResolveAssetConfig
	logger *logger.Logger
}

func NewResolveAssetUseCase(source port.ContentSource, cfg ResolveAssetConfig, log *logger.Logger) *ResolveAssetUseCase {
	if cfg.IndexDocument == "" {
		cfg.IndexDocument = "index.html"
	}
	if cfg.FallbackAsset != "" && !strings.HasPrefix(cfg.FallbackAsset, "/") {
		cfg.FallbackAsset = "/" + cfg.FallbackAsset
	}
	return &ResolveAssetUseCase{
		source: source,
		cfg:    cfg,
		logger: log,
	}
}

// Execute resolves a raw request path. Resolution never escapes the
// source root: traversal collapses against "/" before the source is
// consulted. Misses return port.ErrNotFound.
func (uc *ResolveAssetUseCase) Execute(ctx context.Context, rawPath string) (*Resolution, error) {
	p := NormalizePath(rawPath)

	obj, err := uc.source.Open(ctx, p)
	if err == nil {
		return &Resolution{Object: obj}, nil
	}

	switch {
	case errors.Is(err, port.ErrIsDirectory):
		return uc.resolveDirectory(ctx, p)
	case errors.Is(err, port.ErrNotFound):
		return uc.resolveFallback(ctx, p)
	default:
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
}

func (uc *ResolveAssetUseCase) resolveDirectory(ctx context.Context, dir string) (*Resolution, error) {
	index := path.Join(dir, uc.cfg.IndexDocument)
	obj, err := uc.source.Open(ctx, index)
	if err == nil {
		return &Resolution{Object: obj}, nil
	}
	if !errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("open index %s: %w", index, err)
	}

	if !uc.cfg.ListingEnabled {
		return nil, port.ErrNotFound
	}

	entries, err := uc.source.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return &Resolution{Listing: entries, Dir: dir}, nil
}

func (uc *ResolveAssetUseCase) resolveFallback(ctx context.Context, p string) (*Resolution, error) {
	// The fallback serves SPA routes: extension-less paths only, so a
	// missing bundle never masquerades as the application shell.
	if uc.cfg.FallbackAsset == "" || path.Ext(p) != "" || p == uc.cfg.FallbackAsset {
		return nil, port.ErrNotFound
	}

	obj, err := uc.source.Open(ctx, uc.cfg.FallbackAsset)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			uc.logger.Warn("Fallback asset is missing", "fallback", uc.cfg.FallbackAsset)
			return nil, port.ErrNotFound
		}
		return nil, fmt.Errorf("open fallback %s: %w", uc.cfg.FallbackAsset, err)
	}
	return &Resolution{Object: obj, Fallback: true}, nil
}

// NormalizePath collapses a raw request path to a clean absolute path.
// "..", "." and duplicate slashes are resolved against the root, so
// the result can never point above it.
func NormalizePath(raw string) string {
	if raw == "" {
		return "/"
	}
	return path.Clean("/" + strings.TrimPrefix(raw, "/"))
}
