// Package http serves stored workflow logs read-only over HTTP.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/redo/internal/logging"
	"github.com/aretw0/redo/internal/presentation/graph"
	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/flat"
	"github.com/aretw0/redo/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes a log store.
type Server struct {
	Store   ports.LogStore
	Metrics http.Handler
	Logger  *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithMetrics mounts a Prometheus handler on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// NewHandler creates the HTTP handler for store.
//
//	GET /healthz
//	GET /workflows
//	GET /workflows/{name}
//	GET /workflows/{name}/tree
//	GET /workflows/{name}/graph
//	GET /workflows/{name}/flat?keys=&cols=&prop=&hash=&format=
//	GET /metrics
func NewHandler(store ports.LogStore, opts ...Option) http.Handler {
	s := &Server{Store: store, Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/workflows", s.List)
	r.Route("/workflows/{name}", func(r chi.Router) {
		r.Get("/", s.Get)
		r.Get("/tree", s.Tree)
		r.Get("/graph", s.Graph)
		r.Get("/flat", s.Flat)
	})
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// List handles GET /workflows.
func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	names, err := s.Store.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, names)
}

// Get handles GET /workflows/{name}.
func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	log, ok := s.load(w, r)
	if !ok {
		return
	}
	data, err := domain.EncodeLog(log)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// Tree handles GET /workflows/{name}/tree: the nested task classes.
func (s *Server) Tree(w http.ResponseWriter, r *http.Request) {
	log, ok := s.load(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, log.SimpleTree(nil))
}

// Graph handles GET /workflows/{name}/graph: a Mermaid flowchart.
func (s *Server) Graph(w http.ResponseWriter, r *http.Request) {
	log, ok := s.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(chi.URLParam(r, "name"), log)))
}

// Flat handles GET /workflows/{name}/flat.
func (s *Server) Flat(w http.ResponseWriter, r *http.Request) {
	log, ok := s.load(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	hash, _ := strconv.ParseBool(q.Get("hash"))
	view, err := flat.Query{
		Keys:        splitList(q["keys"]),
		Cols:        splitList(q["cols"]),
		Props:       splitList(q["prop"]),
		IncludeHash: hash,
	}.Apply(flat.New(log))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	format := q.Get("format")
	switch strings.ToLower(format) {
	case flat.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	case flat.FormatYAML, "yml":
		w.Header().Set("Content-Type", "application/yaml")
	case "", flat.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	default:
		http.Error(w, "unknown format "+strconv.Quote(format), http.StatusBadRequest)
		return
	}
	if err := view.Write(w, format); err != nil {
		s.Logger.Error("flat response encode failed", "error", err)
	}
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (domain.Log, bool) {
	log, err := s.Store.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return log, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrLogNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidName):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.Logger.Error("request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "error", err)
	}
}

// splitList accepts both repeated parameters and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
