package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/tidy/internal/config"
	"github.com/hpungsan/tidy/internal/errors"
	"github.com/hpungsan/tidy/internal/logging"
	"github.com/hpungsan/tidy/internal/ops"
	"github.com/hpungsan/tidy/internal/web"
)

// Output formats accepted by --format.
const (
	formatAuto  = "auto"
	formatJSON  = "json"
	formatTable = "table"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "tidy",
		Usage:   "Sort a folder into category folders by file extension",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "Log level: error|warn|info|debug"},
			&cli.StringFlag{Name: "log-format", Usage: "Log format: text|json|logfmt"},
		},
		Before: func(c *cli.Context) error {
			return setupLogging(c, cfg)
		},
		Commands: []*cli.Command{
			organizeCmd(db, cfg),
			runsCmd(db),
			showCmd(db),
			reportCmd(db),
			uiCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// setupLogging builds the stderr logger from config, with the global flags
// taking precedence, and puts it on the command context.
func setupLogging(c *cli.Context, cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	level, format := cfg.LogLevel, cfg.LogFormat
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		format = c.String("log-format")
	}

	logger, err := logging.New(c.App.ErrWriter, level, format)
	if err != nil {
		return outputError(errors.NewInvalidRequest(err.Error()))
	}
	c.Context = logging.WithLogger(c.Context, logger)
	return nil
}

// organizeCmd creates the organize command.
func organizeCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "organize",
		Usage:     "Sort the files under a folder into category folders",
		ArgsUsage: "<folder>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rules", Aliases: []string{"r"}, Usage: "Rules document (.json or .yaml); defaults to rules_file from config"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Copy into this folder instead of moving in place"},
			&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Plan and log only; touch nothing"},
			&cli.BoolFlag{Name: "rename", Usage: "Slugify file names"},
			&cli.BoolFlag{Name: "verify", Usage: "Checksum every copy (with --output)"},
			formatFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one folder is required"))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			output, err := ops.Organize(ctx, db, cfg, ops.OrganizeInput{
				Root:   c.Args().First(),
				Rules:  c.String("rules"),
				Output: c.String("output"),
				DryRun: c.Bool("dry-run"),
				Rename: c.Bool("rename"),
				Verify: c.Bool("verify"),
			})
			if err != nil {
				return outputError(err)
			}

			return render(c, output, func(w io.Writer) { printOrganize(w, output) })
		},
	}
}

// runsCmd creates the runs command.
func runsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recorded runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Usage: "Only runs over this source folder"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum results"},
			&cli.IntFlag{Name: "offset", Value: 0, Usage: "Pagination offset"},
			formatFlag(),
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListRuns(db, ops.ListRunsInput{
				Root:   c.String("root"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return render(c, output, func(w io.Writer) { printRuns(w, output) })
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one recorded run",
		ArgsUsage: "<run-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "moves", Aliases: []string{"m"}, Usage: "Include planned moves"},
			formatFlag(),
		},
		Action: func(c *cli.Context) error {
			output, err := ops.FetchRun(db, ops.FetchRunInput{
				ID:           c.Args().First(),
				IncludeMoves: c.Bool("moves"),
			})
			if err != nil {
				return outputError(err)
			}

			return render(c, output, func(w io.Writer) { printRun(w, output) })
		},
	}
}

// reportCmd creates the report command.
func reportCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Print a markdown report of one run",
		ArgsUsage: "<run-id>",
		Action: func(c *cli.Context) error {
			output, err := ops.RunReport(db, ops.RunReportInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			_, err = io.WriteString(c.App.Writer, output.Markdown)
			return err
		},
	}
}

// uiCmd creates the ui command.
func uiCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Browse run history in a web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8787, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			logger := logging.FromContext(c.Context)

			srv, err := web.NewServer(db, cfg, logger, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			if err := web.Run(srv, logger); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   formatAuto,
		Usage:   "Output format: auto|json|table (auto is table on a terminal)",
	}
}

// render writes v as JSON or hands the writer to table, per --format.
func render(c *cli.Context, v any, table func(io.Writer)) error {
	format, err := resolveFormat(c.String("format"), c.App.Writer)
	if err != nil {
		return outputError(err)
	}
	if format == formatTable {
		table(c.App.Writer)
		return nil
	}
	return outputJSON(c.App.Writer, v)
}

// resolveFormat maps auto to table on a terminal and json everywhere else.
func resolveFormat(format string, w io.Writer) (string, error) {
	switch format {
	case formatJSON, formatTable:
		return format, nil
	case "", formatAuto:
		if isTerminalWriter(w) {
			return formatTable, nil
		}
		return formatJSON, nil
	default:
		return "", errors.NewInvalidRequest(fmt.Sprintf("unknown format %q (want auto, json or table)", format))
	}
}

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if tErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", tErr.Code, tErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
