package policy

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

var documentExts = map[string]bool{".md": true, ".txt": true}

type addFunc func(ctx context.Context, source, content string, metadata map[string]any) (int, error)

// loadDir passes every .md and .txt file below dir to add. Files are read
// concurrently and added in path order, so chunk ids are stable across loads.
// It returns the number of files added.
func loadDir(ctx context.Context, dir string, add addFunc) (int, error) {
	var paths []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && documentExts[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, err)
	}

	contents := make([]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			contents[i] = string(data)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	for i, path := range paths {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		if _, err := add(ctx, filepath.ToSlash(rel), contents[i], map[string]any{"path": path}); err != nil {
			return i, fmt.Errorf("index %s: %w", path, err)
		}
	}

	return len(paths), nil
}
