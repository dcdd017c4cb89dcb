// Package organize computes and applies file organization plans.
//
// Planning and execution are separate phases. BuildPlan only reads the
// filesystem and returns the complete list of moves; Apply performs them.
// A dry run and a real run therefore share every planning decision, and a
// plan can be logged in full before anything is touched.
package organize

import (
	"context"
	"path/filepath"

	"github.com/hpungsan/tidy/internal/errors"
	"github.com/hpungsan/tidy/internal/rules"
)

// Move is one planned relocation.
type Move struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Size        int64  `json:"size"`
}

// String formats the move as a plan log line.
func (m Move) String() string {
	return m.Source + " -> " + m.Destination
}

// Plan is an ordered list of moves in discovery order.
type Plan []Move

// TotalBytes sums the source sizes of all moves.
func (p Plan) TotalBytes() int64 {
	var total int64
	for _, m := range p {
		total += m.Size
	}
	return total
}

// PlanInput contains parameters for BuildPlan.
type PlanInput struct {
	SourceRoot string // directory to organize; should be absolute with symlinks resolved
	DestRoot   string // where category folders live; equals SourceRoot for in-place runs
	Rules      *rules.RuleSet
	Rename     bool // slugify file names

	// Exclude lists directories that are never walked, such as the journal
	// and log folders when they live under SourceRoot.
	Exclude []string

	// Exists overrides the disk check used for collision resolution (tests).
	Exists ExistsFunc
}

// BuildPlan walks SourceRoot and computes where every eligible file goes.
// It never modifies the filesystem.
//
// Destinations are unique within the plan and did not exist at planning
// time. Files already inside a top-level category folder of SourceRoot are
// left out, so an in-place re-run over organized output plans nothing.
func BuildPlan(ctx context.Context, input PlanInput) (Plan, error) {
	if input.SourceRoot == "" {
		return nil, errors.NewInvalidRequest("source root is required")
	}
	if input.Rules == nil {
		return nil, errors.NewInvalidRequest("rules are required")
	}

	root := filepath.Clean(input.SourceRoot)
	dest := root
	if input.DestRoot != "" {
		dest = filepath.Clean(input.DestRoot)
	}

	resolver := NewResolver(input.Exists)
	plan := Plan{}

	excluded := make(map[string]struct{}, len(input.Exclude))
	for _, dir := range input.Exclude {
		if dir != "" {
			excluded[filepath.Clean(dir)] = struct{}{}
		}
	}

	for entry, err := range candidates(ctx, root, input.Rules.OrganizedFolders(), excluded) {
		if err != nil {
			return nil, err
		}

		_, ext := splitExt(entry.Name)
		bucket := input.Rules.BucketFor(ext)

		name := entry.Name
		if input.Rename {
			name = Slugify(name)
		}

		target, err := resolver.Claim(filepath.Join(dest, bucket, name))
		if err != nil {
			return nil, err
		}

		plan = append(plan, Move{
			Source:      entry.Path,
			Destination: target,
			Size:        entry.Size,
		})
	}

	return plan, nil
}
