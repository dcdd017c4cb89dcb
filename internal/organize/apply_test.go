package organize

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tidy/internal/errors"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApply_DryRunIsNoop(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.jpg")
	writeFile(t, src, "img")

	plan := Plan{{Source: src, Destination: filepath.Join(root, "Images", "a.jpg")}}

	for _, mode := range []Mode{ModeMove, ModeCopy} {
		called := false
		err := Apply(context.Background(), plan, ApplyOptions{
			Mode:      mode,
			DryRun:    true,
			OnApplied: func(int, Move) error { called = true; return nil },
		})
		require.NoError(t, err)
		assert.False(t, called)
	}

	assert.FileExists(t, src)
	assert.NoDirExists(t, filepath.Join(root, "Images"))
}

func TestApply_Move(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.jpg")
	dst := filepath.Join(root, "Images", "nested", "a.jpg")
	writeFile(t, src, "img")

	var applied []int
	err := Apply(context.Background(), Plan{{Source: src, Destination: dst}}, ApplyOptions{
		Mode: ModeMove,
		OnApplied: func(seq int, m Move) error {
			applied = append(applied, seq)
			return nil
		},
	})
	require.NoError(t, err)

	assert.NoFileExists(t, src)
	assert.Equal(t, "img", readFile(t, dst))
	assert.Equal(t, []int{0}, applied)
}

func TestApply_CopyPreservesSourceAndMetadata(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(root, "script.sh")
	dst := filepath.Join(out, "Other", "script.sh")
	writeFile(t, src, "#!/bin/sh\necho hi\n")
	require.NoError(t, os.Chmod(src, 0o750))
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, mtime, mtime))

	err := Apply(context.Background(), Plan{{Source: src, Destination: dst}}, ApplyOptions{Mode: ModeCopy, Verify: true})
	require.NoError(t, err)

	assert.FileExists(t, src)
	assert.Equal(t, readFile(t, src), readFile(t, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(mtime), "mtime = %v, want %v", info.ModTime(), mtime)
}

func TestApply_RefusesExistingDestination(t *testing.T) {
	for _, mode := range []Mode{ModeMove, ModeCopy} {
		t.Run(string(mode), func(t *testing.T) {
			root := t.TempDir()
			src := filepath.Join(root, "a.txt")
			dst := filepath.Join(root, "Docs", "a.txt")
			writeFile(t, src, "new")
			writeFile(t, dst, "appeared after planning")

			err := Apply(context.Background(), Plan{{Source: src, Destination: dst}}, ApplyOptions{Mode: mode})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrExecutionFailed))

			assert.Equal(t, "appeared after planning", readFile(t, dst))
			assert.Equal(t, "new", readFile(t, src))
		})
	}
}

func TestApply_StopsAtFirstFailureWithoutRollback(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "a.txt")
	writeFile(t, first, "a")
	third := filepath.Join(root, "c.txt")
	writeFile(t, third, "c")

	plan := Plan{
		{Source: first, Destination: filepath.Join(root, "Docs", "a.txt")},
		{Source: filepath.Join(root, "vanished.txt"), Destination: filepath.Join(root, "Docs", "vanished.txt")},
		{Source: third, Destination: filepath.Join(root, "Docs", "c.txt")},
	}

	var applied []int
	err := Apply(context.Background(), plan, ApplyOptions{
		Mode: ModeMove,
		OnApplied: func(seq int, _ Move) error {
			applied = append(applied, seq)
			return nil
		},
	})
	require.Error(t, err)

	tErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrExecutionFailed, tErr.Code)
	assert.Equal(t, 1, tErr.Details["seq"])

	// First move stays applied, third never ran
	assert.Equal(t, []int{0}, applied)
	assert.FileExists(t, filepath.Join(root, "Docs", "a.txt"))
	assert.FileExists(t, third)
}

func TestApply_OnAppliedErrorIsFatal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "b.txt"), "b")

	plan := Plan{
		{Source: filepath.Join(root, "a.txt"), Destination: filepath.Join(root, "Docs", "a.txt")},
		{Source: filepath.Join(root, "b.txt"), Destination: filepath.Join(root, "Docs", "b.txt")},
	}

	err := Apply(context.Background(), plan, ApplyOptions{
		Mode:      ModeCopy,
		OnApplied: func(int, Move) error { return os.ErrClosed },
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrExecutionFailed))
	assert.NoFileExists(t, filepath.Join(root, "Docs", "b.txt"))
}

func TestApply_UnknownMode(t *testing.T) {
	err := Apply(context.Background(), Plan{}, ApplyOptions{Mode: "teleport"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestApply_Cancelled(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.txt")
	writeFile(t, src, "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Apply(ctx, Plan{{Source: src, Destination: filepath.Join(root, "Docs", "a.txt")}}, ApplyOptions{Mode: ModeMove})
	assert.True(t, errors.Is(err, errors.ErrCancelled))
	assert.FileExists(t, src)
}

func TestApply_PlanThenApplyCopyMode(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), "img")
	writeFile(t, filepath.Join(root, "deep", "a.jpg"), "img2")
	writeFile(t, filepath.Join(root, "notes.txt"), "text")

	plan, err := BuildPlan(context.Background(), PlanInput{SourceRoot: root, DestRoot: out, Rules: testRules()})
	require.NoError(t, err)
	require.NoError(t, Apply(context.Background(), plan, ApplyOptions{Mode: ModeCopy}))

	assert.Equal(t, "img", readFile(t, filepath.Join(out, "Images", "a.jpg")))
	assert.Equal(t, "img2", readFile(t, filepath.Join(out, "Images", "a_2.jpg")))
	assert.Equal(t, "text", readFile(t, filepath.Join(out, "Docs", "notes.txt")))
	assert.FileExists(t, filepath.Join(root, "a.jpg"))
	assert.FileExists(t, filepath.Join(root, "deep", "a.jpg"))
}
