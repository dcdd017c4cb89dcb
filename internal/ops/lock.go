package ops

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/hpungsan/tidy/internal/errors"
)

// runLock serializes organize runs on one source root across processes
// (CLI, MCP server, a second terminal).
type runLock struct {
	path string
	lock *flock.Flock
}

// lockPath returns the lock file for root under stateDir/locks.
// The name is derived from the resolved root so any spelling of the same
// directory maps to the same lock.
func lockPath(stateDir, root string) string {
	sum := sha256.Sum256([]byte(root))
	return filepath.Join(stateDir, "locks", hex.EncodeToString(sum[:8])+".lock")
}

// acquireRunLock takes the run lock for root without waiting.
// A held lock is a precondition failure.
func acquireRunLock(stateDir, root string) (*runLock, error) {
	path := lockPath(stateDir, root)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create locks directory: %w", err))
	}

	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("acquire lock: %w", err))
	}
	if !ok {
		return nil, errors.NewPreconditionPath("another organize run is in progress for", root)
	}
	return &runLock{path: path, lock: l}, nil
}

func (r *runLock) release() error {
	return r.lock.Unlock()
}
