// Package web serves a shader deck during development: static files from the
// deck root, shaders with their includes inlined, a JSON view of the deck's
// programs and a websocket that tells open pages to reload.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/felixge/httpsnoop"

	"github.com/panyam/shaderdeck/config"
	"github.com/panyam/shaderdeck/deck"
	"github.com/panyam/shaderdeck/include"
	"github.com/panyam/shaderdeck/loader"
)

type Server struct {
	cfg      config.Config
	fetcher  *loader.BaseURLFetcher
	programs *loader.ProgramLoader
	reload   *ReloadHub
	mux      *http.ServeMux
}

// NewServer creates a server for the deck under cfg.Root.  Shader and
// include names are read from fs relative to the root.  A nil fs reads the
// local disk.
func NewServer(cfg config.Config, fs loader.FileSystem) *Server {
	if fs == nil {
		fs = loader.NewLocalFS(cfg.Root)
	}
	fetcher := loader.NewBaseURLFetcher("", fs)
	s := &Server{
		cfg:      cfg,
		fetcher:  fetcher,
		programs: loader.NewProgramLoader(fetcher, include.WithTimeout(cfg.Timeout)),
		reload:   NewReloadHub(),
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /shaders/{path...}", s.handleShader)
	s.mux.HandleFunc("GET /api/deck", s.handleDeck)
	s.mux.Handle("GET /ws/reload", s.reload)
	s.mux.Handle("/", http.FileServer(http.Dir(cfg.Root)))
	return s
}

// Handler returns the server's routes wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// Reload asks every open page to reload.
func (s *Server) Reload(changed []string) {
	slog.Info("Reloading deck", "changed", changed, "clients", s.reload.Len())
	s.reload.Broadcast(ReloadMessage{Type: "reload", Changed: changed})
}

// Close disconnects the live-reload clients.
func (s *Server) Close() {
	s.reload.Close()
}

func (s *Server) handleShader(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("path")
	if !filepath.IsLocal(name) {
		http.Error(w, "invalid shader path", http.StatusBadRequest)
		return
	}

	source, err := s.fetcher.Fetch(r.Context(), name)
	if err != nil {
		if errors.Is(err, loader.ErrNotFound) {
			http.Error(w, fmt.Sprintf("shader not found: %s", name), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	session := include.NewSession(s.fetcher, include.WithTimeout(s.cfg.Timeout))
	var out string
	if err := session.Process(r.Context(), source, func(inlined string) { out = inlined }); err != nil {
		var unresolved *include.UnresolvedError
		if errors.As(err, &unresolved) {
			http.Error(w, fmt.Sprintf("missing GLSL header files: %s", strings.Join(unresolved.Files, ", ")), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprint(w, out)
}

// DeckResponse is returned by /api/deck.
type DeckResponse struct {
	File     string            `json:"file"`
	Programs []*loader.Program `json:"programs"`
	Errors   []string          `json:"errors,omitempty"`
}

func (s *Server) handleDeck(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if file == "" {
		file = "index.html"
	}
	if !filepath.IsLocal(file) {
		http.Error(w, "invalid deck path", http.StatusBadRequest)
		return
	}

	specs, err := deck.ScanFile(filepath.Join(s.cfg.Root, file))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	result := s.programs.LoadAll(r.Context(), specs)
	resp := DeckResponse{File: file, Programs: []*loader.Program{}}
	for _, prog := range result.Programs {
		if prog != nil {
			resp.Programs = append(resp.Programs, prog)
		}
	}
	for _, err := range result.Errors.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("Failed to write deck response", "file", file, "error", err)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		slog.Info("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration", m.Duration)
	})
}
