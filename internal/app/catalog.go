package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/retrojunk/internal/dat"
	"github.com/xxxsen/retrojunk/internal/datindex"
	"go.uber.org/zap"
)

var catalogExts = map[string]struct{}{
	".dat": {},
	".xml": {},
	".gz":  {},
	".xz":  {},
	".zip": {},
}

// CatalogCache keeps one merged index per ordered list of catalog
// locations. A location is either a catalog file or a folder of catalogs;
// later catalogs win exact hash collisions.
type CatalogCache struct {
	mu    sync.Mutex
	items map[string]*catalogItem
}

type catalogItem struct {
	index *datindex.Index
	dats  []*dat.DatFile
}

func NewCatalogCache() *CatalogCache {
	return &CatalogCache{items: make(map[string]*catalogItem)}
}

var defaultCatalogCache = NewCatalogCache()

// Load returns the index for paths, parsing them on first use.
func (c *CatalogCache) Load(ctx context.Context, paths ...string) (*datindex.Index, error) {
	item, err := c.load(ctx, paths)
	if err != nil {
		return nil, err
	}
	return item.index, nil
}

// Dats returns the parsed catalogs behind the index of paths.
func (c *CatalogCache) Dats(ctx context.Context, paths ...string) ([]*dat.DatFile, error) {
	item, err := c.load(ctx, paths)
	if err != nil {
		return nil, err
	}
	return item.dats, nil
}

// Forget drops the cached index of paths.
func (c *CatalogCache) Forget(paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, catalogKey(paths))
}

func (c *CatalogCache) load(ctx context.Context, paths []string) (*catalogItem, error) {
	key := catalogKey(paths)
	if key == "" {
		return nil, fmt.Errorf("no catalog path given")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[key]; ok {
		return item, nil
	}

	logger := logutil.GetLogger(ctx)
	files, err := expandCatalogPaths(paths)
	if err != nil {
		return nil, err
	}
	dats := make([]*dat.DatFile, 0, len(files))
	for _, file := range files {
		df, err := dat.ParseFile(file)
		if err != nil {
			return nil, err
		}
		logger.Debug("catalog loaded",
			zap.String("path", file),
			zap.String("name", df.Name),
			zap.Int("games", len(df.Games)),
			zap.Int("roms", df.RomCount()),
		)
		dats = append(dats, df)
	}
	item := &catalogItem{index: datindex.FromDats(dats...), dats: dats}
	c.items[key] = item
	logger.Info("catalog index built",
		zap.Int("catalogs", len(dats)),
		zap.Int("entries", item.index.Len()),
	)
	return item, nil
}

func catalogKey(paths []string) string {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		keys = append(keys, filepath.Clean(p))
	}
	return strings.Join(keys, "\x00")
}

// expandCatalogPaths keeps the given order; folders contribute their
// catalog files sorted by name.
func expandCatalogPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		st, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat catalog %s: %w", p, err)
		}
		if !st.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read catalog dir %s: %w", p, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if _, ok := catalogExts[strings.ToLower(filepath.Ext(e.Name()))]; ok {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}
	return files, nil
}
