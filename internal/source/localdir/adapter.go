package localdir

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/timmy/shotlens/internal/source"
	"github.com/timmy/shotlens/internal/storage"
)

const SourceID = "localdir"

// Adapter walks a directory tree and yields every image file in path order.
type Adapter struct {
	root   string
	items  []source.ImageItem
	loaded bool
}

// NewAdapter creates an adapter rooted at dir.
func NewAdapter(dir string) *Adapter {
	return &Adapter{root: dir}
}

// GetSourceID returns the source identifier.
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// FetchBatch scans the directory on first use, then pages through the cached listing.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.ImageItem, string, error) {
	if !a.loaded {
		if err := a.load(ctx); err != nil {
			return nil, "", fmt.Errorf("failed to load items: %w", err)
		}
		a.loaded = true
	}

	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil || start < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
	}
	if start >= len(a.items) {
		return []source.ImageItem{}, "", nil
	}
	if limit <= 0 {
		limit = len(a.items)
	}

	end := min(start+limit, len(a.items))
	next := ""
	if end < len(a.items) {
		next = strconv.Itoa(end)
	}
	return a.items[start:end], next, nil
}

func (a *Adapter) load(ctx context.Context) error {
	if _, err := os.Stat(a.root); err != nil {
		return fmt.Errorf("directory %s: %w", a.root, err)
	}

	a.items = []source.ImageItem{}
	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := d.Name()
		if d.IsDir() {
			if path != a.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		mediaType := storage.MediaTypeForExtension(filepath.Ext(name))
		if mediaType == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(a.root, path)
		a.items = append(a.items, source.ImageItem{
			SourceID:  filepath.ToSlash(rel),
			LocalPath: path,
			MediaType: mediaType,
			Size:      info.Size(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Slice(a.items, func(i, j int) bool {
		return a.items[i].SourceID < a.items[j].SourceID
	})
	return nil
}
