package db

import (
	"database/sql"
	"time"

	"github.com/hpungsan/tidy/internal/errors"
)

// Run statuses.
const (
	StatusPlanned = "planned"
	StatusDryRun  = "dry_run"
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

// Run is one organize invocation as recorded in the journal.
type Run struct {
	ID           string `json:"id"`
	SourceRoot   string `json:"source_root"`
	DestRoot     string `json:"dest_root"`
	Mode         string `json:"mode"`
	DryRun       bool   `json:"dry_run"`
	Rename       bool   `json:"rename"`
	RulesPath    string `json:"rules_path"`
	LogPath      string `json:"log_path,omitempty"`
	Status       string `json:"status"`
	PlannedCount int    `json:"planned_count"`
	AppliedCount int    `json:"applied_count"`
	TotalBytes   int64  `json:"total_bytes"`
	Error        string `json:"error,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	FinishedAt   *int64 `json:"finished_at,omitempty"`
}

// MoveRecord is one planned move of a run. AppliedAt is nil until the
// file has been moved or copied.
type MoveRecord struct {
	RunID       string `json:"-"`
	Seq         int    `json:"seq"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Size        int64  `json:"size"`
	AppliedAt   *int64 `json:"applied_at,omitempty"`
}

const runColumns = `
	id, source_root, dest_root, mode, dry_run, rename, rules_path, log_path,
	status, planned_count, applied_count, total_bytes, error, created_at, finished_at
`

// InsertRun stores a run together with its planned moves in one transaction.
func InsertRun(db *sql.DB, r *Run, moves []MoveRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.Exec(`
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.SourceRoot, r.DestRoot, r.Mode, r.DryRun, r.Rename, r.RulesPath, toNullString(r.LogPath),
		r.Status, r.PlannedCount, r.AppliedCount, r.TotalBytes, toNullString(r.Error), r.CreatedAt, toNullInt64(r.FinishedAt),
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO moves (run_id, seq, source, destination, size, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for _, m := range moves {
		if _, err := stmt.Exec(r.ID, m.Seq, m.Source, m.Destination, m.Size, toNullInt64(m.AppliedAt)); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// MarkMoveApplied stamps a move as applied and bumps the run's applied count.
func MarkMoveApplied(db *sql.DB, runID string, seq int) error {
	now := time.Now().Unix()

	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.Exec(`
		UPDATE moves SET applied_at = ?
		WHERE run_id = ? AND seq = ? AND applied_at IS NULL
	`, now, runID, seq)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(runID)
	}

	if _, err := tx.Exec(`UPDATE runs SET applied_count = applied_count + 1 WHERE id = ?`, runID); err != nil {
		return errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// FinishRun records the terminal status of a run.
// errMsg is stored only when non-empty.
func FinishRun(db *sql.DB, id, status, errMsg string) error {
	now := time.Now().Unix()

	result, err := db.Exec(`
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, status, toNullString(errMsg), now, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// GetRun retrieves a run by its ULID.
func GetRun(db *sql.DB, id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListRuns returns runs newest first, optionally restricted to one source root,
// together with the total number of matching runs.
func ListRuns(db *sql.DB, sourceRoot string, limit, offset int) ([]Run, int, error) {
	where := ""
	var args []any
	if sourceRoot != "" {
		where = " WHERE source_root = ?"
		args = append(args, sourceRoot)
	}

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	// id breaks ties between runs created in the same second; ULIDs sort by time
	query := `SELECT ` + runColumns + ` FROM runs` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return runs, total, nil
}

// ListMoves returns the planned moves of a run in plan order.
func ListMoves(db *sql.DB, runID string) ([]MoveRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, seq, source, destination, size, applied_at
		FROM moves
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var moves []MoveRecord
	for rows.Next() {
		var (
			m         MoveRecord
			appliedAt sql.NullInt64
		)
		if err := rows.Scan(&m.RunID, &m.Seq, &m.Source, &m.Destination, &m.Size, &appliedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		m.AppliedAt = fromNullInt64(appliedAt)
		moves = append(moves, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return moves, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a Run struct.
func scanRun(row scanner) (*Run, error) {
	var (
		r          Run
		logPath    sql.NullString
		errMsg     sql.NullString
		finishedAt sql.NullInt64
	)

	err := row.Scan(
		&r.ID, &r.SourceRoot, &r.DestRoot, &r.Mode, &r.DryRun, &r.Rename, &r.RulesPath, &logPath,
		&r.Status, &r.PlannedCount, &r.AppliedCount, &r.TotalBytes, &errMsg, &r.CreatedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	r.LogPath = logPath.String
	r.Error = errMsg.String
	r.FinishedAt = fromNullInt64(finishedAt)

	return &r, nil
}

// toNullString maps the empty string to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}
