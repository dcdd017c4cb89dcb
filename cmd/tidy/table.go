package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/hpungsan/tidy/internal/db"
	"github.com/hpungsan/tidy/internal/ops"
	"github.com/hpungsan/tidy/internal/organize"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, footer []string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	if len(footer) > 0 {
		f := make(table.Row, columns)
		for i := range columns {
			if i < len(footer) {
				f[i] = footer[i]
			}
		}
		tw.AppendFooter(f)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:           i + 1,
			Align:            align,
			AlignHeader:      text.AlignLeft,
			AlignFooter:      align,
			WidthMax:         60,
			WidthMaxEnforcer: text.WrapHard,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// printOrganize prints the plan of one organize run with a short summary.
func printOrganize(w io.Writer, out *ops.OrganizeOutput) {
	verb := "Moved"
	switch {
	case out.DryRun:
		verb = "Would " + string(out.Mode)
	case out.Mode == organize.ModeCopy:
		verb = "Copied"
	}

	if len(out.Moves) == 0 {
		fmt.Fprintf(w, "Nothing to organize in %s\n", out.SourceRoot)
	} else {
		rows := make([][]string, 0, len(out.Moves))
		for i, m := range out.Moves {
			rows = append(rows, []string{
				fmt.Sprint(i + 1),
				relTo(out.SourceRoot, m.Source),
				relTo(out.DestRoot, m.Destination),
				humanize.Bytes(uint64(max(m.Size, 0))),
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"#", "Source", "Destination", "Size"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
			[]string{"", "", "Total", humanize.Bytes(uint64(max(out.TotalBytes, 0)))},
		))
	}

	fmt.Fprintf(w, "%s %d of %d files (run %s)\n", verb, appliedOrPlanned(out), out.PlannedCount, out.RunID)
	fmt.Fprintf(w, "Plan log: %s\n", out.LogPath)
	if out.Mode == organize.ModeCopy {
		fmt.Fprintf(w, "Mode: COPY to output folder (%s)\n", out.DestRoot)
	} else {
		fmt.Fprintln(w, "Mode: IN-PLACE move")
	}
	if out.DryRun {
		fmt.Fprintln(w, "Dry-run only. Re-run without --dry-run to apply.")
	}
}

func appliedOrPlanned(out *ops.OrganizeOutput) int {
	if out.DryRun {
		return out.PlannedCount
	}
	return out.AppliedCount
}

// printRuns prints one page of the run history.
func printRuns(w io.Writer, out *ops.ListRunsOutput) {
	if len(out.Items) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	rows := make([][]string, 0, len(out.Items))
	for _, r := range out.Items {
		rows = append(rows, []string{
			r.ID,
			humanize.Time(time.Unix(r.CreatedAt, 0)),
			r.SourceRoot,
			r.Mode,
			r.Status,
			fmt.Sprintf("%d/%d", r.AppliedCount, r.PlannedCount),
			humanize.Bytes(uint64(max(r.TotalBytes, 0))),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Run", "Created", "Source", "Mode", "Status", "Files", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
		nil,
	))

	p := out.Pagination
	fmt.Fprintf(w, "Showing %d-%d of %d\n", p.Offset+1, p.Offset+len(out.Items), p.Total)
}

// printRun prints one run and, when fetched, its moves.
func printRun(w io.Writer, out *ops.FetchRunOutput) {
	fields := [][]string{
		{"Run", out.ID},
		{"Status", out.Status},
		{"Mode", out.Mode},
		{"Source", out.SourceRoot},
		{"Destination", out.DestRoot},
		{"Dry run", yesNo(out.DryRun)},
		{"Rename", yesNo(out.Rename)},
		{"Rules", out.RulesPath},
		{"Log", out.LogPath},
		{"Files", fmt.Sprintf("%d planned, %d applied", out.PlannedCount, out.AppliedCount)},
		{"Size", humanize.Bytes(uint64(max(out.TotalBytes, 0)))},
		{"Created", time.Unix(out.CreatedAt, 0).Format(time.RFC3339)},
	}
	if out.FinishedAt != nil {
		fields = append(fields, []string{"Finished", time.Unix(*out.FinishedAt, 0).Format(time.RFC3339)})
	}
	if out.Error != "" {
		fields = append(fields, []string{"Error", out.Error})
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, fields, nil, nil))

	if len(out.Moves) == 0 {
		return
	}
	rows := make([][]string, 0, len(out.Moves))
	for _, m := range out.Moves {
		rows = append(rows, []string{
			fmt.Sprint(m.Seq + 1),
			relTo(out.SourceRoot, m.Source),
			relTo(out.DestRoot, m.Destination),
			humanize.Bytes(uint64(max(m.Size, 0))),
			appliedMark(m),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Source", "Destination", "Size", "Applied"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
		nil,
	))
}

func appliedMark(m db.MoveRecord) string {
	if m.AppliedAt != nil {
		return "yes"
	}
	return "no"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// relTo shortens path to be relative to base when it lies under it.
func relTo(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

func isTerminalWriter(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
