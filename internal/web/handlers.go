package web

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/hpungsan/memoreal/internal/clock"
	"github.com/hpungsan/memoreal/internal/errors"
	"github.com/hpungsan/memoreal/internal/ops"
)

// Handlers contains HTTP route handlers for the web viewer.
type Handlers struct {
	db       *sql.DB
	clock    clock.Clock
	renderer *Renderer
}

// NewHandlers creates the viewer's route handlers. A nil clock uses system time.
func NewHandlers(db *sql.DB, clk clock.Clock, renderer *Renderer) *Handlers {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Handlers{db: db, clock: clk, renderer: renderer}
}

// HandleList handles GET /capsules, listing capsule headers newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.ListInput{
		Author: q.Get("author"),
		Type:   q.Get("type"),
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	}

	result, err := ops.List(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	items := make([]ListItem, 0, len(result.Items))
	for _, s := range result.Items {
		items = append(items, ListItem{
			ID:          s.ID,
			Title:       displayTitle(s.Title, s.ID),
			Recipient:   s.Recipient,
			Author:      shortKey(s.Author),
			Type:        s.Type.String(),
			UnlockAt:    s.UnlockAt,
			HasLocation: s.HasLocation,
			CreatedAt:   s.CreatedAt,
		})
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Capsules",
			Version: h.renderer.version,
			Nav:     "capsules",
		},
		Items:      items,
		Pagination: result.Pagination,
		Author:     input.Author,
		Type:       input.Type,
	})
}

// HandleDetail handles GET /capsules/{id}. The header is always shown; the
// contents are shown only when both unlock gates pass for ?location=.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("capsule ID is required"))
		return
	}

	// Pin one instant so status and view agree
	now := h.clock.Now()
	clk := clock.Fixed(now)

	status, err := ops.Status(r.Context(), h.db, clk, ops.StatusInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	location := locationParam(r)
	opened, err := ops.View(r.Context(), h.db, clk, ops.ViewInput{ID: id, Location: location})

	var sealed *SealedNotice
	if err != nil {
		mErr, ok := errors.As(err)
		if !ok || (mErr.Code != errors.ErrCapsuleLocked && mErr.Code != errors.ErrLocationMismatch) {
			h.renderer.renderError(w, r, err)
			return
		}
		sealed = &SealedNotice{Code: string(mErr.Code), Message: mErr.Message}
		opened = nil
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"status":  status,
			"content": opened,
			"sealed":  sealed,
		})
		return
	}

	data := DetailPageData{
		PageData: PageData{
			Title:   displayTitle(status.Title, status.ID),
			Version: h.renderer.version,
			Nav:     "capsules",
		},
		Status:   status,
		Opened:   opened,
		Sealed:   sealed,
	}
	if location != nil {
		data.Location = *location
	}
	if opened != nil {
		data.RenderedHTML = renderMarkdown(opened.Message)
	}

	h.renderer.renderPage(w, r, "detail", data)
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

// locationParam returns the presented location. An absent parameter presents
// none; ?location= presents the empty string.
func locationParam(r *http.Request) *string {
	q := r.URL.Query()
	if !q.Has("location") {
		return nil
	}
	loc := q.Get("location")
	return &loc
}

// displayTitle returns the capsule title if present, or a truncated ID.
func displayTitle(title, id string) string {
	if title != "" {
		return title
	}
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}
