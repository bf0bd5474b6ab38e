// Package dashboard serves the board over HTTP: a rendered page, a JSON API
// and whatever push endpoints the caller mounts next to them.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/swimlane/pkg/application"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

//go:embed templates/*
var templatesFS embed.FS

// BoardProvider is the board the server shows and moves cards on.
type BoardProvider interface {
	View() application.BoardView
	Move(ctx context.Context, recordID, target string) (board.DropResult, error)
}

// Server is the dashboard HTTP server.
type Server struct {
	addr     string
	provider BoardProvider
	extra    map[string]http.Handler
	server   *http.Server
	tmpl     *template.Template
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithHandler mounts h at pattern next to the built-in routes.
func WithHandler(pattern string, h http.Handler) Option {
	return func(s *Server) { s.extra[pattern] = h }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new dashboard server.
func NewServer(addr string, provider BoardProvider, opts ...Option) (*Server, error) {
	funcMap := template.FuncMap{
		"json": toJSON,
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		addr:     addr,
		provider: provider,
		extra:    make(map[string]http.Handler),
		tmpl:     tmpl,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routes without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/board", s.handleAPIBoard)
	mux.HandleFunc("POST /api/move", s.handleAPIMove)
	for pattern, h := range s.extra {
		mux.Handle(pattern, h)
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard server starting", "addr", s.addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// PageData holds data for template rendering.
type PageData struct {
	Title string
	Board application.BoardView
	Stats BoardStats
}

// BoardStats summarises the board for the page header.
type BoardStats struct {
	Columns int
	Cards   int
	Pending int
}

// MoveRequest is the body of POST /api/move.
type MoveRequest struct {
	RecordID string `json:"record_id"`
	Target   string `json:"target"`
}

// MoveResponse reports the synchronous part of a move. Persistence runs in
// the background; clients follow it on the push endpoints.
type MoveResponse struct {
	RecordID string `json:"record_id"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	v := s.provider.View()
	s.render(w, "index.html", PageData{
		Title: fmt.Sprintf("Board by %s", v.Field),
		Board: v,
		Stats: calculateStats(v),
	})
}

func (s *Server) handleAPIBoard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.provider.View())
}

func (s *Server) handleAPIMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil || req.RecordID == "" || req.Target == "" {
		writeJSON(w, http.StatusBadRequest, MoveResponse{RecordID: req.RecordID, Error: "record_id and target are required"})
		return
	}

	res, err := s.provider.Move(r.Context(), req.RecordID, req.Target)
	switch {
	case errors.Is(err, board.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, MoveResponse{RecordID: req.RecordID, Error: err.Error()})
		return
	case err != nil:
		s.logger.Error("move failed", "record_id", req.RecordID, "error", err)
		writeJSON(w, http.StatusInternalServerError, MoveResponse{RecordID: req.RecordID, Error: "internal error"})
		return
	}

	resp := MoveResponse{RecordID: req.RecordID, Outcome: res.Outcome.String()}
	status := http.StatusAccepted
	switch res.Outcome {
	case board.OutcomeInvalid:
		status = http.StatusUnprocessableEntity
		if res.Err != nil {
			resp.Error = res.Err.Error()
		}
	case board.OutcomeNoop:
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template error", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func calculateStats(v application.BoardView) BoardStats {
	stats := BoardStats{Columns: len(v.Columns), Pending: v.Pending}
	for _, c := range v.Columns {
		stats.Cards += len(c.Cards)
	}
	return stats
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
