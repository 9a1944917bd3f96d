package filetransform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// Sweep processes every regular file under root matching any of the
// patterns, in place. Patterns use doublestar syntax and are relative to
// root. Files are processed concurrently; a failing file does not stop the
// others, and all failures are returned joined.
func Sweep(ctx context.Context, root string, patterns []string, opts ...Option) ([]Result, error) {
	paths, err := Expand(root, patterns)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(paths))
	errs := make([]error, len(paths))
	var grp errgroup.Group
	grp.SetLimit(runtime.GOMAXPROCS(0))
	for idx, path := range paths {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return nil
			}
			results[idx], errs[idx] = Process(path, "", opts...)
			return nil
		})
	}
	_ = grp.Wait()
	return results, errors.Join(errs...)
}

// Expand resolves patterns against root into a sorted, de-duplicated list of
// regular files.
func Expand(root string, patterns []string) ([]string, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]struct{})
	var paths []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to expand pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			if _, ok := seen[match]; ok {
				continue
			}
			seen[match] = struct{}{}
			info, err := fs.Stat(fsys, match)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", match, err)
			}
			if !info.Mode().IsRegular() {
				continue
			}
			paths = append(paths, filepath.Join(root, filepath.FromSlash(match)))
		}
	}
	slices.Sort(paths)
	return paths, nil
}
