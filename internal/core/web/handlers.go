package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/seckatie/echoes/internal/core"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON encodes v with the given status. Encoding failures are logged;
// the status line has already been sent by then.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps err to a status code and the themed error body.
func (ws *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var cerr *core.Error
	if !errors.As(err, &cerr) {
		ws.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(cerr, core.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(cerr, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(cerr, core.ErrUpstream):
		status = http.StatusBadGateway
	}

	body := errorResponse{Error: cerr.Message}
	if status == http.StatusBadGateway {
		body.Details = cerr.Detail()
		ws.logger.Warn("upstream failure", "path", r.URL.Path, "error", cerr.Err)
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON request body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return core.Validation(core.MsgInvalidPayload)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return core.Validation(core.MsgInvalidPayload)
	}
	return nil
}

func (ws *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "alive",
		"message": "The resurrection engine awakens...",
	})
}
