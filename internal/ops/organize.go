package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/tidy/internal/config"
	"github.com/hpungsan/tidy/internal/db"
	"github.com/hpungsan/tidy/internal/errors"
	"github.com/hpungsan/tidy/internal/logging"
	"github.com/hpungsan/tidy/internal/organize"
	"github.com/hpungsan/tidy/internal/rules"
)

// OrganizeInput contains parameters for the Organize operation.
type OrganizeInput struct {
	Root   string // required, directory to organize
	Rules  string // rules document; defaults to config rules_file
	Output string // separate output folder; empty or equal to Root means in-place
	DryRun bool
	Rename bool
	Verify bool // checksum copies (copy mode only)
}

// OrganizeOutput contains the result of the Organize operation.
type OrganizeOutput struct {
	RunID        string        `json:"run_id"`
	SourceRoot   string        `json:"source_root"`
	DestRoot     string        `json:"dest_root"`
	Mode         organize.Mode `json:"mode"`
	DryRun       bool          `json:"dry_run"`
	Rename       bool          `json:"rename"`
	RulesPath    string        `json:"rules_path"`
	LogPath      string        `json:"log_path"`
	Status       string        `json:"status"`
	PlannedCount int           `json:"planned_count"`
	AppliedCount int           `json:"applied_count"`
	TotalBytes   int64         `json:"total_bytes"`
	Moves        organize.Plan `json:"moves"`
}

// Organize plans and (unless DryRun) applies the organization of Root.
//
// Preconditions are checked before anything is written: the source root
// must be a directory, the rules must load, and a separate output folder
// must be empty or absent. The plan is logged to a file and recorded in
// the journal before execution starts. A failed apply leaves the run
// marked failed in the journal; moves already applied stay in place.
func Organize(ctx context.Context, database *sql.DB, cfg *config.Config, input OrganizeInput) (*OrganizeOutput, error) {
	logger := logging.FromContext(ctx)

	if strings.TrimSpace(input.Root) == "" {
		return nil, errors.NewInvalidRequest("root is required")
	}

	root, err := resolveSourceRoot(input.Root)
	if err != nil {
		return nil, err
	}

	rulesPath := input.Rules
	if rulesPath == "" {
		rulesPath = cfg.RulesFile
	}
	if rulesPath, err = filepath.Abs(rulesPath); err != nil {
		return nil, errors.NewInternal(err)
	}
	ruleSet, err := rules.Load(rulesPath)
	if err != nil {
		return nil, err
	}

	dest, separate, err := resolveOutput(root, input.Output)
	if err != nil {
		return nil, err
	}

	mode := organize.ModeMove
	if separate {
		mode = organize.ModeCopy
	}

	lock, err := acquireRunLock(cfg.StateDir, root)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.release(); err != nil {
			logger.Warn("failed to release run lock", "lock", lock.path, "error", err)
		}
	}()

	logDir, err := filepath.Abs(cfg.LogDir)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	plan, err := organize.BuildPlan(ctx, organize.PlanInput{
		SourceRoot: root,
		DestRoot:   dest,
		Rules:      ruleSet,
		Rename:     input.Rename,
		Exclude:    stateDirs(cfg.StateDir, logDir),
	})
	if err != nil {
		return nil, err
	}
	logger.Info("plan built", "root", root, "dest", dest, "moves", len(plan), "mode", mode)

	if separate && !input.DryRun {
		if err := os.MkdirAll(dest, 0755); err != nil {
			return nil, errors.NewInternal(fmt.Errorf("failed to create output folder: %w", err))
		}
	}

	now := time.Now()

	logPath, err := writePlanLog(logDir, root, dest, plan, now)
	if err != nil {
		return nil, err
	}
	logger.Debug("plan logged", "log", logPath)

	runID, err := newRunID(now)
	if err != nil {
		return nil, err
	}

	run := &db.Run{
		ID:           runID,
		SourceRoot:   root,
		DestRoot:     dest,
		Mode:         string(mode),
		DryRun:       input.DryRun,
		Rename:       input.Rename,
		RulesPath:    rulesPath,
		LogPath:      logPath,
		Status:       db.StatusPlanned,
		PlannedCount: len(plan),
		TotalBytes:   plan.TotalBytes(),
		CreatedAt:    now.Unix(),
	}
	if err := db.InsertRun(database, run, moveRecords(plan)); err != nil {
		return nil, err
	}

	out := &OrganizeOutput{
		RunID:        runID,
		SourceRoot:   root,
		DestRoot:     dest,
		Mode:         mode,
		DryRun:       input.DryRun,
		Rename:       input.Rename,
		RulesPath:    rulesPath,
		LogPath:      logPath,
		PlannedCount: len(plan),
		TotalBytes:   plan.TotalBytes(),
		Moves:        plan,
	}

	if input.DryRun {
		if err := db.FinishRun(database, runID, db.StatusDryRun, ""); err != nil {
			return nil, err
		}
		out.Status = db.StatusDryRun
		return out, nil
	}

	applied := 0
	err = organize.Apply(ctx, plan, organize.ApplyOptions{
		Mode:   mode,
		Verify: input.Verify || cfg.VerifyCopies,
		OnApplied: func(seq int, _ organize.Move) error {
			if err := db.MarkMoveApplied(database, runID, seq); err != nil {
				return err
			}
			applied++
			return nil
		},
	})
	if err != nil {
		logger.Error("apply failed", "run", runID, "applied", applied, "error", err)
		if finishErr := db.FinishRun(database, runID, db.StatusFailed, formatRunError(err)); finishErr != nil {
			logger.Error("failed to record run failure", "run", runID, "error", finishErr)
		}
		if tErr, ok := errors.As(err); ok {
			if tErr.Details == nil {
				tErr.Details = map[string]any{}
			}
			tErr.Details["run_id"] = runID
		}
		return nil, err
	}

	if err := db.FinishRun(database, runID, db.StatusApplied, ""); err != nil {
		return nil, err
	}
	logger.Info("run applied", "run", runID, "applied", applied)

	out.Status = db.StatusApplied
	out.AppliedCount = applied
	return out, nil
}

// resolveSourceRoot returns root as an absolute path with symlinks resolved.
func resolveSourceRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.NewInternal(err)
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", errors.NewPreconditionPath("source root does not exist", abs)
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if !info.IsDir() {
		return "", errors.NewPreconditionPath("source root is not a directory", abs)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return resolved, nil
}

// resolveOutput normalizes the output folder. separate is false for in-place
// runs: no output given, or one that names the source root itself.
// A separate output that exists must be an empty directory.
func resolveOutput(root, output string) (dest string, separate bool, err error) {
	if strings.TrimSpace(output) == "" {
		return root, false, nil
	}

	abs, err := filepath.Abs(output)
	if err != nil {
		return "", false, errors.NewInternal(err)
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return abs, abs != root, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	if resolved == root {
		return root, false, nil
	}
	if !info.IsDir() {
		return "", false, errors.NewPreconditionPath("output is not a directory", resolved)
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	if len(entries) > 0 {
		return "", false, errors.NewPreconditionPath("output folder is not empty", resolved)
	}

	return resolved, true, nil
}

// Run ids from one process sort in creation order even within a millisecond.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newRunID generates a ULID for a run.
func newRunID(now time.Time) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return id.String(), nil
}

// stateDirs returns the journal and log folders in the form the walk sees
// them, so a state folder inside the source root is never organized.
func stateDirs(dirs ...string) []string {
	out := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		out = append(out, abs)
	}
	return out
}

func moveRecords(plan organize.Plan) []db.MoveRecord {
	records := make([]db.MoveRecord, len(plan))
	for i, m := range plan {
		records[i] = db.MoveRecord{
			Seq:         i,
			Source:      m.Source,
			Destination: m.Destination,
			Size:        m.Size,
		}
	}
	return records
}

// formatRunError renders err the way the CLI prints it.
func formatRunError(err error) string {
	if tErr, ok := errors.As(err); ok {
		return fmt.Sprintf("[%s] %s", tErr.Code, tErr.Message)
	}
	return err.Error()
}
