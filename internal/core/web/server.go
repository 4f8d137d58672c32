package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/seckatie/echoes/internal/core"
	"github.com/seckatie/echoes/internal/core/notify"
	"github.com/seckatie/echoes/internal/core/resurrect"
)

// Options configures a Server.
type Options struct {
	// AllowedOrigins are exact CORS origins. *.amplifyapp.com is always allowed.
	AllowedOrigins []string
	Preview        core.PreviewOptions
	// Inline configures the page endpoint. BaseURL is set per request.
	Inline          core.InlineOptions
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server routes the resurrection API and the websocket channel.
type Server struct {
	service *resurrect.Service
	hub     *notify.Hub
	cors    *originPolicy
	preview core.PreviewOptions
	inline  core.InlineOptions
	logger  *slog.Logger
	router  chi.Router
}

// StartServer serves the API on addr until ctx is cancelled, then drains
// in-flight requests.
func StartServer(ctx context.Context, addr string, service *resurrect.Service, hub *notify.Hub, opts Options) error {
	ws := newServer(service, hub, opts)

	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		ws.logger.Info("resurrection engine listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ws.logger.Info("resurrection engine shutting down")
	// websocket connections are hijacked and not drained by Shutdown
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// NewServer builds the HTTP API around service and hub.
func NewServer(service *resurrect.Service, hub *notify.Hub, opts Options) *Server {
	return newServer(service, hub, opts)
}

func newServer(service *resurrect.Service, hub *notify.Hub, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	preview := opts.Preview
	if preview.Timeout <= 0 {
		preview = core.DefaultPreviewOptions()
	}
	inline := opts.Inline
	if inline.Timeout <= 0 {
		inline = core.DefaultInlineOptions("")
	}
	if inline.Logger == nil {
		inline.Logger = logger
	}

	ws := &Server{
		service: service,
		hub:     hub,
		cors:    newOriginPolicy(opts.AllowedOrigins),
		preview: preview,
		inline:  inline,
		logger:  logger,
	}
	ws.router = ws.routes()
	return ws
}

// Handler returns the root http.Handler.
func (ws *Server) Handler() http.Handler {
	return ws.router
}

func (ws *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(ws.cors.middleware)

	r.Get("/", ws.handleRoot)
	r.Get("/ws", ws.hub.ServeWS)
	r.Get("/health", ws.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/resurrect", ws.handleCreateResurrection)
		r.Get("/resurrect/{id}", ws.handleGetResurrection)
		r.Get("/resurrect/{id}/preview", ws.handlePreview)
		r.Get("/resurrect/{id}/page", ws.handlePage)
		r.Get("/resurrections", ws.handleListResurrections)
		r.Post("/chat/{id}", ws.handleChat)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method Not Allowed"})
	})
	return r
}

// handleRoot upgrades websocket requests made to / and answers plain
// requests with the health document.
func (ws *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		ws.hub.ServeWS(w, r)
		return
	}
	ws.handleHealth(w, r)
}
