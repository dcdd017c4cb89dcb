package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/tidy/internal/config"
	"github.com/hpungsan/tidy/internal/db"
	"github.com/hpungsan/tidy/internal/ops"
)

const testRulesJSON = `{"folders": {"Images": [".jpg"], "Docs": [".txt"]}, "unknown_folder": "Other"}`

// setupTestApp creates an app over a temporary database and config.
// The returned buffer collects stdout.
func setupTestApp(t *testing.T) (*cli.App, *bytes.Buffer, *config.Config) {
	t.Helper()
	stateDir := t.TempDir()
	database, err := db.Init(stateDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	rulesPath := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(rulesPath, []byte(testRulesJSON), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.StateDir = stateDir
	cfg.RulesFile = rulesPath
	cfg.LogDir = filepath.Join(stateDir, "logs")

	var out bytes.Buffer
	app := newCLIApp(database, cfg)
	app.Writer = &out
	app.ErrWriter = io.Discard
	return app, &out, cfg
}

// testFolder returns a resolved temp folder holding the named files.
func testFolder(t *testing.T, names ...string) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(root, name), []byte(name), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

// TestCLIOrganize tests a dry run followed by a real run.
func TestCLIOrganize(t *testing.T) {
	app, out, _ := setupTestApp(t)
	root := testFolder(t, "photo.jpg", "notes.txt", "Makefile")

	if err := app.Run([]string{"tidy", "organize", "--dry-run", root}); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}

	var preview ops.OrganizeOutput
	if err := json.Unmarshal(out.Bytes(), &preview); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out.String())
	}
	if preview.Status != db.StatusDryRun {
		t.Errorf("expected status dry_run, got %s", preview.Status)
	}
	if preview.PlannedCount != 3 {
		t.Errorf("expected 3 planned moves, got %d", preview.PlannedCount)
	}
	if _, err := os.Stat(filepath.Join(root, "photo.jpg")); err != nil {
		t.Errorf("dry run moved a file: %v", err)
	}

	out.Reset()
	if err := app.Run([]string{"tidy", "organize", root}); err != nil {
		t.Fatalf("organize failed: %v", err)
	}

	var applied ops.OrganizeOutput
	if err := json.Unmarshal(out.Bytes(), &applied); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out.String())
	}
	if applied.AppliedCount != 3 {
		t.Errorf("expected 3 applied moves, got %d", applied.AppliedCount)
	}
	for _, p := range []string{"Images/photo.jpg", "Docs/notes.txt", "Other/Makefile"} {
		if _, err := os.Stat(filepath.Join(root, p)); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
}

// TestCLIOrganizeTable tests the table output of organize.
func TestCLIOrganizeTable(t *testing.T) {
	app, out, _ := setupTestApp(t)
	root := testFolder(t, "photo.jpg")

	if err := app.Run([]string{"tidy", "organize", "-n", "--format=table", root}); err != nil {
		t.Fatalf("organize failed: %v", err)
	}

	s := out.String()
	for _, want := range []string{"photo.jpg", "Images/photo.jpg", "TOTAL", "Would move 1 of 1 files", "Plan log:",
		"Mode: IN-PLACE move", "Dry-run only. Re-run without --dry-run to apply.",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in output:\n%s", want, s)
		}
	}
}

// TestCLIOrganizeTableCopyMode tests the summary for a copy into a separate folder.
func TestCLIOrganizeTableCopyMode(t *testing.T) {
	app, out, _ := setupTestApp(t)
	root := testFolder(t, "photo.jpg")
	dest := filepath.Join(t.TempDir(), "sorted")

	if err := app.Run([]string{"tidy", "organize", "--format=table", "--output", dest, root}); err != nil {
		t.Fatalf("organize failed: %v", err)
	}

	s := out.String()
	for _, want := range []string{"Copied 1 of 1 files", "Mode: COPY to output folder (" + dest + ")"} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in output:\n%s", want, s)
		}
	}
	if strings.Contains(s, "Dry-run only.") {
		t.Errorf("unexpected dry-run hint in output:\n%s", s)
	}
}

// TestCLIOrganizeOutputFolder tests copying into a separate folder.
func TestCLIOrganizeOutputFolder(t *testing.T) {
	app, out, _ := setupTestApp(t)
	root := testFolder(t, "photo.jpg")
	dest := filepath.Join(t.TempDir(), "sorted")

	if err := app.Run([]string{"tidy", "organize", "--output", dest, "--verify", root}); err != nil {
		t.Fatalf("organize failed: %v", err)
	}

	var output ops.OrganizeOutput
	if err := json.Unmarshal(out.Bytes(), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Mode != "copy" {
		t.Errorf("expected copy mode, got %s", output.Mode)
	}
	if _, err := os.Stat(filepath.Join(root, "photo.jpg")); err != nil {
		t.Errorf("source should be kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "Images", "photo.jpg")); err != nil {
		t.Errorf("expected copy in output folder: %v", err)
	}
}

// TestCLIRunsShowReport tests the history commands.
func TestCLIRunsShowReport(t *testing.T) {
	app, out, _ := setupTestApp(t)
	root := testFolder(t, "photo.jpg")

	if err := app.Run([]string{"tidy", "organize", root}); err != nil {
		t.Fatalf("organize failed: %v", err)
	}
	var org ops.OrganizeOutput
	if err := json.Unmarshal(out.Bytes(), &org); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}

	t.Run("runs", func(t *testing.T) {
		out.Reset()
		if err := app.Run([]string{"tidy", "runs", "--root", root}); err != nil {
			t.Fatalf("runs failed: %v", err)
		}
		var list ops.ListRunsOutput
		if err := json.Unmarshal(out.Bytes(), &list); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if len(list.Items) != 1 || list.Items[0].ID != org.RunID {
			t.Errorf("expected run %s, got %+v", org.RunID, list.Items)
		}
	})

	t.Run("runs table", func(t *testing.T) {
		out.Reset()
		if err := app.Run([]string{"tidy", "runs", "-f", "table"}); err != nil {
			t.Fatalf("runs failed: %v", err)
		}
		if !strings.Contains(out.String(), org.RunID) || !strings.Contains(out.String(), "Showing 1-1 of 1") {
			t.Errorf("unexpected table:\n%s", out.String())
		}
	})

	t.Run("show with moves", func(t *testing.T) {
		out.Reset()
		if err := app.Run([]string{"tidy", "show", "--moves", org.RunID}); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		var run ops.FetchRunOutput
		if err := json.Unmarshal(out.Bytes(), &run); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if len(run.Moves) != 1 || run.Moves[0].AppliedAt == nil {
			t.Errorf("expected one applied move, got %+v", run.Moves)
		}
	})

	t.Run("show table", func(t *testing.T) {
		out.Reset()
		if err := app.Run([]string{"tidy", "show", "-m", "-f", "table", org.RunID}); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		if !strings.Contains(out.String(), "Images/photo.jpg") {
			t.Errorf("expected move in table:\n%s", out.String())
		}
	})

	t.Run("report", func(t *testing.T) {
		out.Reset()
		if err := app.Run([]string{"tidy", "report", org.RunID}); err != nil {
			t.Fatalf("report failed: %v", err)
		}
		if !strings.HasPrefix(out.String(), "# Run "+org.RunID) {
			t.Errorf("expected markdown report, got:\n%s", out.String())
		}
	})
}

// TestCLIErrorHandling tests error handling in CLI commands.
func TestCLIErrorHandling(t *testing.T) {
	app, _, _ := setupTestApp(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"organize without folder", []string{"tidy", "organize"}, "[INVALID_REQUEST]"},
		{"organize missing folder", []string{"tidy", "organize", filepath.Join(t.TempDir(), "nope")}, "[PRECONDITION_FAILED]"},
		{"show unknown run", []string{"tidy", "show", "01UNKNOWN"}, "[NOT_FOUND]"},
		{"show without id", []string{"tidy", "show"}, "[INVALID_REQUEST]"},
		{"report unknown run", []string{"tidy", "report", "01UNKNOWN"}, "[NOT_FOUND]"},
		{"bad format", []string{"tidy", "runs", "--format=xml"}, "unknown format"},
		{"bad log level", []string{"tidy", "--log-level=loud", "runs"}, "[INVALID_REQUEST]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := app.Run(tt.args)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, err.Error())
			}
			if exitErr, ok := err.(cli.ExitCoder); !ok || exitErr.ExitCode() != 1 {
				t.Errorf("expected exit code 1, got %v", err)
			}
		})
	}
}

// TestResolveFormat tests --format handling.
func TestResolveFormat(t *testing.T) {
	var buf bytes.Buffer
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{"", formatJSON, false},
		{"auto", formatJSON, false},
		{"json", formatJSON, false},
		{"table", formatTable, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := resolveFormat(tt.format, &buf)
		if (err != nil) != tt.wantErr {
			t.Errorf("resolveFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("resolveFormat(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

// TestRelTo tests path shortening in tables.
func TestRelTo(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "data", "in")
	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(base, "a.jpg"), "a.jpg"},
		{filepath.Join(base, "Images", "a.jpg"), filepath.Join("Images", "a.jpg")},
		{filepath.Join(string(filepath.Separator), "elsewhere", "b.txt"), filepath.Join(string(filepath.Separator), "elsewhere", "b.txt")},
	}
	for _, tt := range tests {
		if got := relTo(base, tt.path); got != tt.want {
			t.Errorf("relTo(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"tidy"}, expected: false},
		{name: "organize command", args: []string{"tidy", "organize"}, expected: true},
		{name: "runs command", args: []string{"tidy", "runs"}, expected: true},
		{name: "ui command", args: []string{"tidy", "ui"}, expected: true},
		{name: "global log flag", args: []string{"tidy", "--log-level", "debug", "runs"}, expected: true},
		{name: "help flag", args: []string{"tidy", "--help"}, expected: true},
		{name: "short version flag", args: []string{"tidy", "-v"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"tidy", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Save and restore os.Args
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		args     []string
		expected bool
	}{
		{[]string{"tidy"}, false},
		{[]string{"tidy", "help"}, true},
		{[]string{"tidy", "--version"}, true},
		{[]string{"tidy", "organize"}, false},
	}

	for _, tt := range tests {
		oldArgs := os.Args
		os.Args = tt.args
		result := isHelpOrVersion()
		os.Args = oldArgs

		if result != tt.expected {
			t.Errorf("isHelpOrVersion(%v) = %v, want %v", tt.args, result, tt.expected)
		}
	}
}
