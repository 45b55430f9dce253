package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/index"
)

// Handler holds API route handlers.
type Handler struct {
	svc *graph.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *graph.Service) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the vault path from the wildcard part of the URL.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// Stats handles GET /api/stats.
//
//	@Summary		Counts for the current graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, at, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Counts: counts, ScannedAt: at})
}

// Links handles GET /api/links?from=.
//
//	@Summary		Resolved links written in a note
//	@Tags			graph
//	@Produce		json
//	@Param			from	query		string	true	"Source note path"
//	@Success		200		{object}	LinksResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links [get]
func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	if from == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("from is required"))
		return
	}
	rows, err := h.svc.Links(r.Context(), from)
	if err != nil {
		writeError(w, "links", err, slog.String("path", from))
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Path: from, Links: linkDTOs(rows)})
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary		Links pointing into a file
//	@Tags			graph
//	@Produce		json
//	@Param			path	path		string	true	"Target path"
//	@Success		200		{object}	LinksResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	rows, err := h.svc.Backlinks(r.Context(), path)
	if err != nil {
		writeError(w, "backlinks", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Path: path, Links: linkDTOs(rows)})
}

// Unresolved handles GET /api/unresolved.
//
//	@Summary		References that matched no vault file
//	@Tags			graph
//	@Produce		json
//	@Param			external	query		bool	false	"Include external URLs"
//	@Param			limit		query		int		false	"Maximum results"
//	@Success		200			{object}	UnresolvedResponse
//	@Security		BearerAuth
//	@Router			/unresolved [get]
func (h *Handler) Unresolved(w http.ResponseWriter, r *http.Request) {
	external, _ := strconv.ParseBool(r.URL.Query().Get("external"))
	refs, err := h.svc.Unresolved(r.Context(), external, queryInt(r, "limit"))
	if err != nil {
		writeError(w, "unresolved", err)
		return
	}
	writeJSON(w, http.StatusOK, UnresolvedResponse{References: refs})
}

// Outline handles GET /api/outline/*.
//
//	@Summary		Headings and blocks of a note
//	@Tags			graph
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	graph.Outline
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline/{path} [get]
func (h *Handler) Outline(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	o, err := h.svc.Outline(r.Context(), path)
	if err != nil {
		writeError(w, "outline", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Resolve handles GET /api/resolve?from=&dest=.
//
//	@Summary		Resolve a destination as if written in a note
//	@Tags			graph
//	@Produce		json
//	@Param			from	query		string	false	"Note the destination is written in"
//	@Param			dest	query		string	true	"Link destination"
//	@Success		200		{object}	graph.Resolution
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.Resolve(r.Context(), q.Get("from"), q.Get("dest"))
	if err != nil {
		writeError(w, "resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Rescan handles POST /api/rescan.
//
//	@Summary		Rescan the whole vault
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	graph.Report
//	@Security		BearerAuth
//	@Router			/rescan [post]
func (h *Handler) Rescan(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Rescan(r.Context())
	if err != nil {
		writeError(w, "rescan", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List scanned notes
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	rows, total, err := h.svc.ListNotes(r.Context(), r.URL.Query().Get("tag"), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	items := make([]NoteListItem, 0, len(rows))
	for _, n := range rows {
		items = append(items, noteListItem(n))
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a note's metadata and raw content
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	row, err := h.svc.Note(r.Context(), path)
	if err != nil {
		writeError(w, "get note", err, slog.String("path", path))
		return
	}
	data, err := h.svc.ReadNote(r.Context(), path)
	if err != nil {
		writeError(w, "read note", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, NoteDetail{NoteListItem: noteListItem(*row), Content: string(data)})
}

// Search handles GET /api/search?q=.
//
//	@Summary		Search notes by title, tags or body
//	@Tags			notes
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Maximum results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	results, err := h.svc.Search(r.Context(), q, queryInt(r, "limit"))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
