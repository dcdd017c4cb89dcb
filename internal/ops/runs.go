package ops

import (
	"database/sql"
	"path/filepath"
	"strings"

	"github.com/hpungsan/tidy/internal/db"
	"github.com/hpungsan/tidy/internal/errors"
)

// ListRunsInput contains parameters for the ListRuns operation.
type ListRunsInput struct {
	Root   string // optional, only runs over this source root
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// ListRunsOutput contains the result of the ListRuns operation.
type ListRunsOutput struct {
	Items      []db.Run   `json:"items"`
	Pagination Pagination `json:"pagination"`
	Sort       string     `json:"sort"`
}

// ListRuns retrieves recorded runs, newest first, with pagination.
func ListRuns(database *sql.DB, input ListRunsInput) (*ListRunsOutput, error) {
	root := strings.TrimSpace(input.Root)
	if root != "" {
		root = normalizeRoot(root)
	}

	limit := clampLimit(input.Limit)
	offset := max(input.Offset, 0)

	runs, total, err := db.ListRuns(database, root, limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	if runs == nil {
		runs = []db.Run{}
	}

	return &ListRunsOutput{
		Items: runs,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(runs) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}

// normalizeRoot maps root to the form stored in the journal. Roots that no
// longer exist are matched by their absolute path.
func normalizeRoot(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Clean(root)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// FetchRunInput contains parameters for the FetchRun operation.
type FetchRunInput struct {
	ID           string // required
	IncludeMoves bool
}

// FetchRunOutput is a run with, optionally, its planned moves.
type FetchRunOutput struct {
	db.Run
	Moves []db.MoveRecord `json:"moves,omitempty"`
}

// FetchRun retrieves a single run by id.
func FetchRun(database *sql.DB, input FetchRunInput) (*FetchRunOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	run, err := db.GetRun(database, id)
	if err != nil {
		return nil, err
	}

	out := &FetchRunOutput{Run: *run}
	if input.IncludeMoves {
		moves, err := db.ListMoves(database, id)
		if err != nil {
			return nil, err
		}
		if moves == nil {
			moves = []db.MoveRecord{}
		}
		out.Moves = moves
	}
	return out, nil
}
