package mcp

import "github.com/mark3labs/mcp-go/mcp"

func organizePlanTool() mcp.Tool {
	return mcp.NewTool("organize_plan",
		mcp.WithDescription("Plan how a folder would be organized into category folders without touching any file. The plan is logged and recorded as a dry_run run."),
		mcp.WithString("root",
			mcp.Description("Directory to organize"),
			mcp.Required(),
		),
		mcp.WithString("rules",
			mcp.Description("Rules document (JSON or YAML). Defaults to the configured rules_file."),
		),
		mcp.WithString("output",
			mcp.Description("Separate, empty output folder. Files are copied there instead of moved in place."),
		),
		mcp.WithBoolean("rename",
			mcp.Description("Slugify file names (spaces to underscores, unsafe characters dropped)"),
		),
	)
}

func organizeApplyTool() mcp.Tool {
	return mcp.NewTool("organize_apply",
		mcp.WithDescription("Organize a folder: plan, log, then move files into category folders (or copy them into a separate output folder). Stops at the first failure; completed moves are not rolled back."),
		mcp.WithString("root",
			mcp.Description("Directory to organize"),
			mcp.Required(),
		),
		mcp.WithString("rules",
			mcp.Description("Rules document (JSON or YAML). Defaults to the configured rules_file."),
		),
		mcp.WithString("output",
			mcp.Description("Separate, empty output folder. Files are copied there instead of moved in place."),
		),
		mcp.WithBoolean("rename",
			mcp.Description("Slugify file names (spaces to underscores, unsafe characters dropped)"),
		),
		mcp.WithBoolean("verify",
			mcp.Description("Checksum every copy (copy mode only)"),
		),
	)
}

func runListTool() mcp.Tool {
	return mcp.NewTool("run_list",
		mcp.WithDescription("List recorded organize runs, newest first."),
		mcp.WithString("root",
			mcp.Description("Only runs over this source root"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Page size (default 20, max 100)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Number of runs to skip"),
		),
	)
}

func runFetchTool() mcp.Tool {
	return mcp.NewTool("run_fetch",
		mcp.WithDescription("Fetch one recorded run by id."),
		mcp.WithString("id",
			mcp.Description("Run id (ULID)"),
			mcp.Required(),
		),
		mcp.WithBoolean("include_moves",
			mcp.Description("Include every planned move with its applied timestamp"),
		),
	)
}

func runReportTool() mcp.Tool {
	return mcp.NewTool("run_report",
		mcp.WithDescription("Render a recorded run as a markdown report with per-folder totals and the move table."),
		mcp.WithString("id",
			mcp.Description("Run id (ULID)"),
			mcp.Required(),
		),
	)
}
