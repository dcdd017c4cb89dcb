package organize

import (
	"bytes"
	"context"
	"crypto/sha256"
	stderrors "errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hpungsan/tidy/internal/errors"
)

// Mode selects how Apply relocates files.
type Mode string

const (
	ModeMove Mode = "move" // in-place: source is removed
	ModeCopy Mode = "copy" // separate output: source is kept
)

// ApplyOptions contains parameters for Apply.
type ApplyOptions struct {
	Mode   Mode
	DryRun bool

	// Verify checks size and SHA-256 of each copied file.
	Verify bool

	// OnApplied is called after each move or copy succeeds, with the
	// move's position in the plan. A returned error stops the run.
	OnApplied func(seq int, m Move) error
}

// Apply executes plan in order. With DryRun set it does nothing.
//
// The first failure stops the run and is returned as an EXECUTION_FAILED
// error. Moves applied before the failure are not rolled back.
func Apply(ctx context.Context, plan Plan, opts ApplyOptions) error {
	if opts.DryRun {
		return nil
	}
	if opts.Mode != ModeMove && opts.Mode != ModeCopy {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown mode %q", opts.Mode))
	}

	for seq, m := range plan {
		select {
		case <-ctx.Done():
			return errors.NewCancelled("apply")
		default:
		}

		if err := os.MkdirAll(filepath.Dir(m.Destination), 0o755); err != nil {
			return errors.NewExecution(seq, m.Source, m.Destination, err)
		}

		var err error
		if opts.Mode == ModeMove {
			err = moveFile(m.Source, m.Destination, opts.Verify)
		} else {
			err = copyFile(m.Source, m.Destination, opts.Verify)
		}
		if err != nil {
			return errors.NewExecution(seq, m.Source, m.Destination, err)
		}

		if opts.OnApplied != nil {
			if err := opts.OnApplied(seq, m); err != nil {
				return errors.NewExecution(seq, m.Source, m.Destination, err)
			}
		}
	}
	return nil
}

var errDestinationExists = stderrors.New("destination already exists")

// moveFile renames src to dst, falling back to copy and remove when they
// live on different filesystems. It refuses to replace an existing dst.
func moveFile(src, dst string, verify bool) error {
	exists, err := PathExists(dst)
	if err != nil {
		return err
	}
	if exists {
		return errDestinationExists
	}

	err = os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !stderrors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := copyFile(src, dst, verify); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to a new file dst, preserving permission bits and
// modification time. dst must not exist. With verify, the copy is checked
// by size and SHA-256; a mismatching dst is removed.
func copyFile(src, dst string, verify bool) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if stderrors.Is(err, os.ErrExist) {
			return errDestinationExists
		}
		return err
	}
	defer func() {
		if out != nil {
			_ = out.Close()
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	var srcHasher hash.Hash
	var reader io.Reader = in
	if verify {
		srcHasher = sha256.New()
		reader = io.TeeReader(in, srcHasher)
	}

	written, err := io.Copy(out, reader)
	if err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	out = nil

	if verify {
		if written != info.Size() {
			return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
		}
		// Hash what landed on disk, not what was handed to the writer
		dstSum, err := fileSHA256(dst)
		if err != nil {
			return fmt.Errorf("hash copy: %w", err)
		}
		if !bytes.Equal(srcHasher.Sum(nil), dstSum) {
			return fmt.Errorf("copy hash mismatch: file corrupted during copy")
		}
	}

	// OpenFile's mode is filtered by the umask; set it explicitly.
	if err = os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	mtime := info.ModTime()
	return os.Chtimes(dst, mtime, mtime)
}

func fileSHA256(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
