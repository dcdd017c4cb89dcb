package organize

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
	"strings"

	"github.com/hpungsan/tidy/internal/errors"
)

// fileEntry is a candidate file found under the source root.
type fileEntry struct {
	Path string
	Name string
	Size int64
}

// candidates yields the regular files under root that are eligible for
// organizing, in lexical order at every directory level.
//
// Skipped: hidden files, top-level directories named in organized, any
// directory in excluded, and anything that is not a regular file. Hidden
// directories are still descended into. The sequence is single-use; start
// a new one per plan.
func candidates(ctx context.Context, root string, organized, excluded map[string]struct{}) iter.Seq2[fileEntry, error] {
	return func(yield func(fileEntry, error) bool) {
		stopped := false
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return errors.NewInternal(fmt.Errorf("walk %s: %w", path, walkErr))
			}
			if path == root {
				return nil
			}
			if ctx.Err() != nil {
				return errors.NewCancelled("plan")
			}

			name := d.Name()
			if d.IsDir() {
				if _, skip := excluded[path]; skip || isOrganizedTopLevel(root, path, organized) {
					return filepath.SkipDir
				}
				return nil
			}
			if isHidden(name) || !d.Type().IsRegular() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return errors.NewInternal(fmt.Errorf("stat %s: %w", path, err))
			}
			if !yield(fileEntry{Path: path, Name: name, Size: info.Size()}, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !stopped {
			yield(fileEntry{}, err)
		}
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// isOrganizedTopLevel reports whether dir sits directly under root and is
// named after a category.
func isOrganizedTopLevel(root, dir string, organized map[string]struct{}) bool {
	if filepath.Dir(dir) != root {
		return false
	}
	_, ok := organized[filepath.Base(dir)]
	return ok
}
