package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/tidy/internal/config"
	"github.com/hpungsan/tidy/internal/errors"
	"github.com/hpungsan/tidy/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg}
}

// Request types for each tool

// OrganizeRequest represents the arguments for organize_plan and organize_apply.
type OrganizeRequest struct {
	Root   string `json:"root"`
	Rules  string `json:"rules,omitempty"`
	Output string `json:"output,omitempty"`
	Rename bool   `json:"rename,omitempty"`
	Verify bool   `json:"verify,omitempty"`
}

// RunListRequest represents the arguments for run_list.
type RunListRequest struct {
	Root   string `json:"root,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// RunFetchRequest represents the arguments for run_fetch.
type RunFetchRequest struct {
	ID           string `json:"id"`
	IncludeMoves bool   `json:"include_moves,omitempty"`
}

// RunReportRequest represents the arguments for run_report.
type RunReportRequest struct {
	ID string `json:"id"`
}

// Handler implementations

// HandleOrganizePlan handles the organize_plan tool call.
func (h *Handlers) HandleOrganizePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.organize(ctx, req, true)
}

// HandleOrganizeApply handles the organize_apply tool call.
func (h *Handlers) HandleOrganizeApply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.organize(ctx, req, false)
}

func (h *Handlers) organize(ctx context.Context, req mcp.CallToolRequest, dryRun bool) (*mcp.CallToolResult, error) {
	input, err := decode[OrganizeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Organize(ctx, h.db, h.cfg, ops.OrganizeInput{
		Root:   input.Root,
		Rules:  input.Rules,
		Output: input.Output,
		DryRun: dryRun,
		Rename: input.Rename,
		Verify: input.Verify,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRunList handles the run_list tool call.
func (h *Handlers) HandleRunList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListRuns(h.db, ops.ListRunsInput{
		Root:   input.Root,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRunFetch handles the run_fetch tool call.
func (h *Handlers) HandleRunFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunFetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.FetchRun(h.db, ops.FetchRunInput{
		ID:           input.ID,
		IncludeMoves: input.IncludeMoves,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRunReport handles the run_report tool call.
func (h *Handlers) HandleRunReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunReportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.RunReport(h.db, ops.RunReportInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultText(result.Markdown), nil
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if tErr, ok := errors.As(err); ok {
		// Keep wrapper context ("items[2]: ...") in front of the message
		msg := tErr.Message
		if full := err.Error(); full != tErr.Error() {
			msg = strings.TrimSuffix(full, tErr.Error()) + tErr.Message
		}
		errorObj := map[string]any{
			"code":    tErr.Code,
			"message": msg,
			"status":  tErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like SQL errors
		if tErr.Code != errors.ErrInternal && tErr.Details != nil {
			errorObj["details"] = tErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
