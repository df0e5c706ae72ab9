package dir

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/internal/domain/entity"
)

// Source serves a local directory tree. All lookups are confined to
// the resolved root: traversal is collapsed before joining and symlink
// targets must stay inside the root.
type Source struct {
	root string
}

func New(root string) (*Source, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve content path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("content path is not accessible: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat content path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content path is not a directory: %s", root)
	}
	return &Source{root: resolved}, nil
}

// Root returns the resolved content root.
func (s *Source) Root() string {
	return s.root
}

func (s *Source) Open(ctx context.Context, p string) (*port.Object, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, mapFSError(err)
	}
	if info.IsDir() {
		return nil, port.ErrIsDirectory
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, mapFSError(err)
	}

	asset, err := entity.NewAsset(cleanRequestPath(p), info.Size(), info.ModTime(), false)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &port.Object{Asset: asset, Content: f}, nil
}

func (s *Source) Stat(ctx context.Context, p string) (*entity.Asset, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, mapFSError(err)
	}

	return entity.NewAsset(cleanRequestPath(p), info.Size(), info.ModTime(), info.IsDir())
}

func (s *Source) List(ctx context.Context, dirPath string) ([]*entity.Asset, error) {
	full, err := s.resolve(dirPath)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(full)
	if err != nil {
		return nil, mapFSError(err)
	}

	base := cleanRequestPath(dirPath)
	assets := make([]*entity.Asset, 0, len(dirEntries))
	for _, de := range dirEntries {
		// Dotfiles stay private.
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		asset, err := entity.NewAsset(path.Join(base, de.Name()), info.Size(), info.ModTime(), de.IsDir())
		if err != nil {
			continue
		}
		assets = append(assets, asset)
	}

	sort.Slice(assets, func(i, j int) bool {
		if assets[i].IsDir() != assets[j].IsDir() {
			return assets[i].IsDir()
		}
		return assets[i].Path() < assets[j].Path()
	})

	return assets, nil
}

func (s *Source) Ping(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("content root unreachable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("content root is not a directory")
	}
	return nil
}

// resolve maps a request path to a filesystem path inside the root.
func (s *Source) resolve(p string) (string, error) {
	clean := cleanRequestPath(p)
	full := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))

	// Symlinks may point anywhere; the resolved target must stay under
	// the root. A dangling entry resolves to not-found.
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", port.ErrNotFound
		}
		return "", fmt.Errorf("resolve %s: %w", clean, err)
	}
	if resolved != s.root && !strings.HasPrefix(resolved, s.root+string(filepath.Separator)) {
		return "", port.ErrNotFound
	}

	return resolved, nil
}

func cleanRequestPath(p string) string {
	return path.Clean("/" + strings.TrimPrefix(p, "/"))
}

func mapFSError(err error) error {
	if os.IsNotExist(err) {
		return port.ErrNotFound
	}
	if os.IsPermission(err) {
		return port.ErrNotFound
	}
	return err
}
