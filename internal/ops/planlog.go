package ops

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/tidy/internal/errors"
	"github.com/hpungsan/tidy/internal/organize"
)

// planLogTimeFormat is YYYYmmdd_HHMMSS.
const planLogTimeFormat = "20060102_150405"

// planLogName returns organize_log_<src>_to_<dst>_<timestamp>.txt.
func planLogName(sourceRoot, destRoot string, now time.Time) string {
	return fmt.Sprintf("organize_log_%s_to_%s_%s.txt",
		filepath.Base(sourceRoot), filepath.Base(destRoot), now.Format(planLogTimeFormat))
}

// writePlanLog writes one "<source> -> <destination>" line per move into
// logDir and returns the path written. An existing log from a run in the
// same second is never overwritten; the name gets a numeric suffix instead.
func writePlanLog(logDir, sourceRoot, destRoot string, plan organize.Plan, now time.Time) (string, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to create log directory: %w", err))
	}

	logPath, err := organize.NewResolver(nil).Claim(filepath.Join(logDir, planLogName(sourceRoot, destRoot, now)))
	if err != nil {
		return "", err
	}

	// Write to temp file first, then rename into place
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := logPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return "", err
		}
		return "", errors.NewInternal(fmt.Errorf("failed to create log file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	for _, m := range plan {
		if _, err := fmt.Fprintln(w, m.String()); err != nil {
			return "", errors.NewInternal(err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return "", errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to close log file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink planted at the final path
	if info, err := os.Lstat(logPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewPreconditionPath("log path is a symlink", logPath)
	}

	if err := os.Rename(tempPath, logPath); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to finalize log file: %w", err))
	}

	success = true
	return logPath, nil
}
