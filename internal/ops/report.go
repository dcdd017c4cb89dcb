package ops

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hpungsan/tidy/internal/db"
)

// RunReportInput contains parameters for the RunReport operation.
type RunReportInput struct {
	ID string // required
}

// RunReportOutput is a markdown summary of one run.
type RunReportOutput struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Markdown string `json:"markdown"`
}

// folderTotal aggregates moves by destination folder.
type folderTotal struct {
	name  string
	count int
	bytes int64
}

// RunReport renders a run and its moves as GitHub-flavored markdown.
func RunReport(database *sql.DB, input RunReportInput) (*RunReportOutput, error) {
	run, err := FetchRun(database, FetchRunInput{ID: input.ID, IncludeMoves: true})
	if err != nil {
		return nil, err
	}

	return &RunReportOutput{
		ID:       run.ID,
		Status:   run.Status,
		Markdown: renderReport(&run.Run, run.Moves),
	}, nil
}

func renderReport(r *db.Run, moves []db.MoveRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run %s\n\n", r.ID)

	b.WriteString("| Field | Value |\n|---|---|\n")
	row := func(k, v string) { fmt.Fprintf(&b, "| %s | %s |\n", k, v) }
	row("Status", r.Status)
	row("Mode", r.Mode)
	row("Source", code(r.SourceRoot))
	row("Destination", code(r.DestRoot))
	row("Dry run", yesNo(r.DryRun))
	row("Rename", yesNo(r.Rename))
	row("Rules", code(r.RulesPath))
	if r.LogPath != "" {
		row("Log", code(r.LogPath))
	}
	row("Planned", fmt.Sprintf("%s files (%s)", humanize.Comma(int64(r.PlannedCount)), humanize.Bytes(uint64(max(r.TotalBytes, 0)))))
	row("Applied", humanize.Comma(int64(r.AppliedCount)))
	row("Created", formatUnix(r.CreatedAt))
	if r.FinishedAt != nil {
		row("Finished", formatUnix(*r.FinishedAt))
	}

	if r.Error != "" {
		fmt.Fprintf(&b, "\n## Error\n\n%s\n", escapeCell(r.Error))
	}

	if len(moves) == 0 {
		b.WriteString("\nNothing to organize.\n")
		return b.String()
	}

	b.WriteString("\n## Folders\n\n| Folder | Files | Size |\n|---|---:|---:|\n")
	for _, f := range folderTotals(moves) {
		fmt.Fprintf(&b, "| %s | %d | %s |\n", escapeCell(f.name), f.count, humanize.Bytes(uint64(max(f.bytes, 0))))
	}

	b.WriteString("\n## Moves\n\n| # | Source | Destination | Size | Applied |\n|---:|---|---|---:|---|\n")
	for _, m := range moves {
		applied := "no"
		if m.AppliedAt != nil {
			applied = "yes"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			m.Seq+1,
			code(relTo(r.SourceRoot, m.Source)),
			code(relTo(r.DestRoot, m.Destination)),
			humanize.Bytes(uint64(max(m.Size, 0))),
			applied,
		)
	}

	return b.String()
}

// folderTotals groups moves by destination folder in first-seen order.
func folderTotals(moves []db.MoveRecord) []folderTotal {
	var totals []folderTotal
	index := make(map[string]int)
	for _, m := range moves {
		name := filepath.Base(filepath.Dir(m.Destination))
		i, ok := index[name]
		if !ok {
			i = len(totals)
			index[name] = i
			totals = append(totals, folderTotal{name: name})
		}
		totals[i].count++
		totals[i].bytes += m.Size
	}
	return totals
}

func relTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// code wraps s in a code span, escaping table pipes.
func code(s string) string {
	s = escapeCell(s)
	if strings.Contains(s, "`") {
		return "`` " + s + " ``"
	}
	return "`" + s + "`"
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
