package organize

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hpungsan/tidy/internal/errors"
)

// MaxSuffix is the last counter tried when resolving a collision.
// Counters run from 2 to MaxSuffix inclusive.
const MaxSuffix = 9999

// ExistsFunc reports whether something occupies path on disk.
type ExistsFunc func(path string) (bool, error)

// PathExists reports whether path exists without following a final symlink,
// so a dangling link still occupies its name.
func PathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	// A file where a parent directory should be means the path cannot exist
	if stderrors.Is(err, fs.ErrNotExist) || stderrors.Is(err, syscall.ENOTDIR) {
		return false, nil
	}
	return false, err
}

// Resolver hands out collision-free destination paths for one plan-building
// pass. A path is taken if it exists on disk or was claimed earlier through
// the same Resolver.
type Resolver struct {
	exists   ExistsFunc
	reserved map[string]struct{}
}

// NewResolver creates a Resolver that checks the disk with exists.
// A nil exists uses PathExists.
func NewResolver(exists ExistsFunc) *Resolver {
	if exists == nil {
		exists = PathExists
	}
	return &Resolver{
		exists:   exists,
		reserved: make(map[string]struct{}),
	}
}

// Claim returns candidate if it is free, otherwise the first free
// stem_N.ext sibling for N in 2..MaxSuffix. The returned path is reserved
// so later claims in the same pass never receive it.
func (r *Resolver) Claim(candidate string) (string, error) {
	candidate = filepath.Clean(candidate)

	taken, err := r.taken(candidate)
	if err != nil {
		return "", err
	}
	if !taken {
		r.reserve(candidate)
		return candidate, nil
	}

	dir := filepath.Dir(candidate)
	stem, ext := splitExt(filepath.Base(candidate))
	for i := 2; i <= MaxSuffix; i++ {
		next := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		taken, err := r.taken(next)
		if err != nil {
			return "", err
		}
		if !taken {
			r.reserve(next)
			return next, nil
		}
	}

	return "", errors.NewResolutionExhausted(candidate, MaxSuffix-1)
}

// Reserved reports whether path has been claimed in this pass.
func (r *Resolver) Reserved(path string) bool {
	_, ok := r.reserved[filepath.Clean(path)]
	return ok
}

func (r *Resolver) reserve(path string) {
	r.reserved[path] = struct{}{}
}

func (r *Resolver) taken(path string) (bool, error) {
	if _, ok := r.reserved[path]; ok {
		return true, nil
	}
	exists, err := r.exists(path)
	if err != nil {
		return false, errors.NewInternal(fmt.Errorf("check %s: %w", path, err))
	}
	return exists, nil
}

// splitExt splits a file name into stem and extension. The extension is the
// final dot-suffix; a trailing bare dot or a leading dot alone does not
// count as one ("file." and ".env" have no extension).
func splitExt(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	if ext == "." || ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}
