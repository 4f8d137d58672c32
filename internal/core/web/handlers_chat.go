package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seckatie/echoes/internal/core/resurrect"
	"github.com/seckatie/echoes/internal/core/store"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	GhostReply  string             `json:"ghost_reply"`
	Sources     []resurrect.Source `json:"sources"`
	Personality store.Personality  `json:"personality"`
}

// handleChat serves POST /api/chat/{id}.
func (ws *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		ws.writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	reply, err := ws.service.Chat(r.Context(), id, req.Message)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.logger.Debug("ghost replied", "id", id, "topic", reply.Topic)

	writeJSON(w, http.StatusOK, chatResponse{
		GhostReply:  reply.Reply,
		Sources:     reply.Sources,
		Personality: reply.Personality,
	})
}
