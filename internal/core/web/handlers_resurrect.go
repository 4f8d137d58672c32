package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seckatie/echoes/internal/core"
	"github.com/seckatie/echoes/internal/core/store"
)

type createRequest struct {
	URL string `json:"url"`
}

type createResponse struct {
	ResurrectionID string           `json:"resurrectionId"`
	Status         string           `json:"status"`
	Message        string           `json:"message"`
	Snapshots      []store.Snapshot `json:"snapshots"`
}

type listResponse struct {
	Resurrections []store.Record `json:"resurrections"`
}

// handleCreateResurrection serves POST /api/resurrect.
func (ws *Server) handleCreateResurrection(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		ws.writeError(w, r, err)
		return
	}

	created, err := ws.service.Create(r.Context(), req.URL)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{
		ResurrectionID: created.ID,
		Status:         created.Status,
		Message:        created.Message,
		Snapshots:      created.Snapshots,
	})
}

// handleGetResurrection serves GET /api/resurrect/{id}.
func (ws *Server) handleGetResurrection(w http.ResponseWriter, r *http.Request) {
	rec, err := ws.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleListResurrections serves GET /api/resurrections.
func (ws *Server) handleListResurrections(w http.ResponseWriter, r *http.Request) {
	recs, err := ws.service.List(r.Context())
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Resurrections: recs})
}

// handlePreview serves GET /api/resurrect/{id}/preview: a text summary of
// the selected snapshot.
func (ws *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	rec, err := ws.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ws.writeError(w, r, err)
		return
	}

	preview, err := core.FetchPreview(r.Context(), rec.SelectedSnapshot.ArchiveURL, ws.preview)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handlePage serves GET /api/resurrect/{id}/page: the selected snapshot as
// one self-contained HTML document.
func (ws *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	rec, err := ws.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ws.writeError(w, r, err)
		return
	}

	opts := ws.inline
	opts.BaseURL = rec.SelectedSnapshot.ArchiveURL
	html, err := core.FetchAndInline(r.Context(), rec.SelectedSnapshot.ArchiveURL, opts)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(html)); err != nil {
		ws.logger.Warn("failed to write resurrected page", "id", rec.ID, "error", err)
	}
}
