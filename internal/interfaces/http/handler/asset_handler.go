package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/internal/application/usecase"
	"github.com/dreschagin/staticserve/internal/domain/entity"
	"github.com/dreschagin/staticserve/internal/interfaces/view"
	"github.com/dreschagin/staticserve/pkg/logger"
)

// AssetHandler serves content resolved by the asset use case.
type AssetHandler struct {
	resolver *usecase.ResolveAssetUseCase
	logger   *logger.Logger
}

func NewAssetHandler(resolver *usecase.ResolveAssetUseCase, logger *logger.Logger) *AssetHandler {
	return &AssetHandler{
		resolver: resolver,
		logger:   logger,
	}
}

func (h *AssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	p := usecase.NormalizePath(r.URL.Path)

	res, err := h.resolver.Execute(r.Context(), r.URL.Path)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("Asset resolution failed", err, "path", p)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Directory URLs need the trailing slash so relative links in
	// listings and index documents resolve correctly.
	if needsSlashRedirect(r.URL.Path, p, res) {
		if res.Object != nil {
			res.Object.Content.Close()
		}
		target := p + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}

	if res.Listing != nil {
		h.serveListing(w, r, res.Dir, res.Listing)
		return
	}

	h.serveObject(w, r, res)
}

func (h *AssetHandler) serveListing(w http.ResponseWriter, r *http.Request, dir string, entries []*entity.Asset) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := view.Listing(dir, entries).Render(r.Context(), w); err != nil {
		h.logger.Error("Failed to render directory listing", err, "dir", dir)
	}
}

func (h *AssetHandler) serveObject(w http.ResponseWriter, r *http.Request, res *usecase.Resolution) {
	obj := res.Object
	defer obj.Content.Close()

	asset := obj.Asset
	w.Header().Set("Content-Type", string(asset.ContentType()))
	w.Header().Set("ETag", asset.ETag())
	w.Header().Set("Cache-Control", cachePolicy(asset, res.Fallback))

	// ServeContent handles If-None-Match, If-Modified-Since and Range
	// against the headers set above.
	http.ServeContent(w, r, asset.Name(), asset.ModTime(), obj.Content)
}

// needsSlashRedirect reports whether the request hit a directory
// without the canonical trailing slash.
func needsSlashRedirect(rawPath, cleanPath string, res *usecase.Resolution) bool {
	if cleanPath == "/" || strings.HasSuffix(rawPath, "/") {
		return false
	}
	if res.Listing != nil {
		return true
	}
	// An object with a path other than the request's means the index
	// document answered for a directory.
	return res.Object != nil && !res.Fallback && res.Object.Asset.Path() != cleanPath
}

// cachePolicy picks a Cache-Control value per asset class. HTML and
// SPA fallbacks must revalidate; fingerprinted bundles never change.
func cachePolicy(asset *entity.Asset, fallback bool) string {
	if fallback || asset.ContentType().IsHTML() {
		return "no-cache"
	}
	if hasContentHash(asset.Name()) {
		return "public, max-age=31536000, immutable"
	}
	return "public, max-age=3600"
}

// hasContentHash detects build-fingerprinted names like
// app-8f2f1c9a.js or chunk.4c1d22ab90ef.css.
func hasContentHash(name string) bool {
	for _, part := range strings.FieldsFunc(name, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	}) {
		if len(part) >= 8 && isHex(part) {
			return true
		}
	}
	return false
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
