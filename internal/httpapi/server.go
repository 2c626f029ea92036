// Package httpapi exposes document flattening over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agentic-research/xml2csv/internal/config"
	"github.com/agentic-research/xml2csv/internal/flatten"
)

// MaxBodyBytes caps the size of a posted document.
const MaxBodyBytes = 32 << 20

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server. cfg supplies the
// defaults for delimiter, encoding, format and flattening policy.
func NewServer(log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		log: log,
		cfg: cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/convert", s.handleConvert)
		r.Post("/locate", s.handleLocate)
	})

	s.router = r
}

func (s *Server) flattener() flatten.Flattener {
	return flatten.Flattener{DescendSelected: s.cfg.DescendSelected}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
