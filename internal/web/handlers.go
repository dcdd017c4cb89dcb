package web

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/hpungsan/tidy/internal/config"
	"github.com/hpungsan/tidy/internal/errors"
	"github.com/hpungsan/tidy/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleList handles GET /runs: recorded runs, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	root := r.URL.Query().Get("root")

	result, err := ops.ListRuns(h.db, ops.ListRunsInput{
		Root:   root,
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "runs", ListPageData{
		PageData: PageData{
			Title:   "Runs",
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Root:       root,
	})
}

// HandleDetail handles GET /runs/{id}: one run with its report.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("run ID is required"))
		return
	}

	run, err := ops.FetchRun(h.db, ops.FetchRunInput{ID: id, IncludeMoves: wantsJSON(r)})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, run)
		return
	}

	report, err := ops.RunReport(h.db, ops.RunReportInput{ID: run.ID})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData: PageData{
			Title:   "Run " + run.ID,
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Run:          run,
		RenderedHTML: h.renderer.renderMarkdown(report.Markdown),
	})
}

// HandleReportMarkdown handles GET /runs/{id}/report.md.
func (h *Handlers) HandleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	report, err := ops.RunReport(h.db, ops.RunReportInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="run_`+report.ID+`.md"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.Markdown))
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
